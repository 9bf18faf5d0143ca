package contracts

import (
	"time"

	"github.com/skyporter/luggage-api/internal/app/pricing"
	"github.com/skyporter/luggage-api/internal/domain"
)

type BookInput struct {
	RegionID domain.PricingRegionID

	Airline        string
	FlightNumber   string
	PassengerName  string
	PassengerPhone *string

	PickupAddress  string
	DropoffAddress string
	Pickup         *domain.GeoPoint
	Dropoff        *domain.GeoPoint

	ScheduledAt time.Time
	Notes       *string

	Luggage []pricing.LuggageInput
}

type ListInput struct {
	Status *domain.ContractStatus
}

type AssignInput struct {
	ContractID domain.ContractID
	// DeliveryID is required for admins. Delivery personnel may omit it to self-assign.
	DeliveryID *domain.ProfileID
}

type StatusInput struct {
	ContractID domain.ContractID
	Status     domain.ContractStatus
}
