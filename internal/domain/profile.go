package domain

import "time"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleContractor Role = "contractor"
	RoleDelivery   Role = "delivery"
)

// Valid reports whether r is one of the known roles. The empty role is never valid.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleContractor, RoleDelivery:
		return true
	default:
		return false
	}
}

type ProfileStatus string

const (
	ProfileStatusPending   ProfileStatus = "pending"
	ProfileStatusActive    ProfileStatus = "active"
	ProfileStatusSuspended ProfileStatus = "suspended"
)

func (s ProfileStatus) Valid() bool {
	switch s {
	case ProfileStatusPending, ProfileStatusActive, ProfileStatusSuspended:
		return true
	default:
		return false
	}
}

// Profile is the domain representation of a user account.
type Profile struct {
	ID      ProfileID `json:"id"`
	Subject SubjectID `json:"subject"`

	Role   Role          `json:"role"`
	Status ProfileStatus `json:"status"`

	FullName    string  `json:"fullName"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`

	Verified bool `json:"verified"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationID returns the support thread owned by this profile.
func (p Profile) ConversationID() ConversationID {
	return ConversationID(p.ID)
}
