package users

import "github.com/skyporter/luggage-api/internal/domain"

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

// ProvisionMeInput is the self-service signup payload.
type ProvisionMeInput struct {
	Role        domain.Role
	FullName    string
	Email       string
	Phone       *string
	CompanyName *string
}

type CreateUserInput struct {
	Subject     domain.SubjectID
	Role        domain.Role
	FullName    string
	Email       string
	Phone       *string
	CompanyName *string
}

type UpdateUserInput struct {
	FullName    Optional[string] // cannot be null
	Email       Optional[string] // cannot be null
	Phone       Optional[string] // may be null
	CompanyName Optional[string] // may be null
}

type ListUsersInput struct {
	Role   domain.Role
	Status domain.ProfileStatus
	Query  string
}
