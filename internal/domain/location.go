package domain

import (
	"math"
	"strings"
	"time"
)

// LocationPoint is one GPS fix reported by a delivery person for a contract.
type LocationPoint struct {
	ID         LocationPointID `json:"id"`
	ContractID ContractID      `json:"contractId"`
	DeliveryID ProfileID       `json:"deliveryId"`

	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	SpeedKph   *float64 `json:"speedKph,omitempty"`
	HeadingDeg *float64 `json:"headingDeg,omitempty"`

	RecordedAt time.Time `json:"recordedAt"`
}

func (p LocationPoint) Point() GeoPoint { return GeoPoint{Lat: p.Lat, Lng: p.Lng} }

// ValidCoordinates reports whether lat/lng are within WGS84 bounds.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

const earthRadiusKm = 6371.0088

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b GeoPoint) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PathLengthKm sums segment distances along pts.
func PathLengthKm(pts []GeoPoint) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += HaversineKm(pts[i-1], pts[i])
	}
	return total
}

// EncodePolyline encodes pts with the Google encoded polyline algorithm (precision 1e5),
// the format map SDKs accept for drawing a route.
func EncodePolyline(pts []GeoPoint) string {
	var b strings.Builder
	var prevLat, prevLng int64
	for _, p := range pts {
		lat := int64(math.Round(p.Lat * 1e5))
		lng := int64(math.Round(p.Lng * 1e5))
		encodeSigned(&b, lat-prevLat)
		encodeSigned(&b, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return b.String()
}

func encodeSigned(b *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		b.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	b.WriteByte(byte(u + 63))
}
