package domain

// SubjectID is the authenticated subject extracted from JWT claims (typically "sub").
// We model it as an opaque identifier: its format is controlled by the IdP.
type SubjectID string

// ProfileID is an internal identifier for a user profile.
type ProfileID string

// ContractID is an internal identifier for a luggage delivery contract.
type ContractID string

type LuggageItemID string

type MessageID string

// ConversationID identifies a support thread. Each non-admin profile owns exactly one,
// and its value equals that profile's ID.
type ConversationID string

type PricingRegionID string

type PaymentID string

type LocationPointID string
