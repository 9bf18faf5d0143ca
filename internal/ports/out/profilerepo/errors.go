package profilerepo

import "errors"

var (
	// ErrNotFound indicates the requested profile does not exist.
	ErrNotFound = errors.New("profile not found")

	// ErrSubjectAlreadyBound indicates a profile already exists for the provided subject.
	ErrSubjectAlreadyBound = errors.New("profile subject already bound")

	// ErrAlreadyExists indicates a profile already exists with the provided ID.
	ErrAlreadyExists = errors.New("profile already exists")

	// ErrEmailTaken indicates another profile already uses the email (case-insensitive).
	ErrEmailTaken = errors.New("profile email already in use")

	// ErrInUse indicates the profile is still referenced by contracts.
	ErrInUse = errors.New("profile is referenced by contracts")
)
