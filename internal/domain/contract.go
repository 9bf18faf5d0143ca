package domain

import "time"

type ContractStatus string

const (
	ContractStatusPending   ContractStatus = "pending"
	ContractStatusAssigned  ContractStatus = "assigned"
	ContractStatusPickedUp  ContractStatus = "picked_up"
	ContractStatusInTransit ContractStatus = "in_transit"
	ContractStatusDelivered ContractStatus = "delivered"
	ContractStatusCancelled ContractStatus = "cancelled"
)

var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractStatusPending:   {ContractStatusAssigned, ContractStatusCancelled},
	ContractStatusAssigned:  {ContractStatusPickedUp, ContractStatusCancelled, ContractStatusPending},
	ContractStatusPickedUp:  {ContractStatusInTransit},
	ContractStatusInTransit: {ContractStatusDelivered},
}

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractStatusPending, ContractStatusAssigned, ContractStatusPickedUp,
		ContractStatusInTransit, ContractStatusDelivered, ContractStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine allows s -> next.
// assigned -> pending is the "unassign" edge.
func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	for _, n := range contractTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s ContractStatus) Terminal() bool {
	return len(contractTransitions[s]) == 0
}

// Trackable reports whether location updates are accepted in this state.
func (s ContractStatus) Trackable() bool {
	switch s {
	case ContractStatusAssigned, ContractStatusPickedUp, ContractStatusInTransit:
		return true
	default:
		return false
	}
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type LuggageItem struct {
	ID          LuggageItemID `json:"id"`
	ContractID  ContractID    `json:"contractId"`
	TagNumber   string        `json:"tagNumber"`
	Description string        `json:"description"`
	WeightKg    float64       `json:"weightKg"`
	Quantity    int           `json:"quantity"`
}

// Contract is a luggage delivery job.
type Contract struct {
	ID           ContractID      `json:"id"`
	ContractorID ProfileID       `json:"contractorId"`
	DeliveryID   *ProfileID      `json:"deliveryId,omitempty"`
	RegionID     PricingRegionID `json:"regionId"`

	Airline        string  `json:"airline"`
	FlightNumber   string  `json:"flightNumber"`
	PassengerName  string  `json:"passengerName"`
	PassengerPhone *string `json:"passengerPhone,omitempty"`

	PickupAddress  string    `json:"pickupAddress"`
	DropoffAddress string    `json:"dropoffAddress"`
	Pickup         *GeoPoint `json:"pickup,omitempty"`
	Dropoff        *GeoPoint `json:"dropoff,omitempty"`

	ScheduledAt time.Time      `json:"scheduledAt"`
	Status      ContractStatus `json:"status"`

	TotalCents int64   `json:"totalCents"`
	Currency   string  `json:"currency"`
	Notes      *string `json:"notes,omitempty"`

	Luggage []LuggageItem `json:"luggage"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BagCount sums quantities across all luggage items.
func (c Contract) BagCount() int {
	return BagCount(c.Luggage)
}

// Visible reports whether the profile may read the contract:
// admins see everything, contractors their own, delivery personnel their assignments
// and any unassigned pending job.
func (c Contract) Visible(p Profile) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleContractor:
		return c.ContractorID == p.ID
	case RoleDelivery:
		if c.DeliveryID != nil && *c.DeliveryID == p.ID {
			return true
		}
		return c.DeliveryID == nil && c.Status == ContractStatusPending
	default:
		return false
	}
}
