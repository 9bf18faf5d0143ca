package idempotency

import (
	"context"
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
)

// Key is the caller-provided Idempotency-Key header.
type Key string

// Fingerprint scopes a stored response: key + subject + route + request body hash.
//
// Booking uses two fingerprints per key. The one with an empty BodyHash stores the hash
// of the first body seen, which lets a retry with a different body be rejected. The one
// carrying the hash stores the response to replay.
type Fingerprint struct {
	Key      Key
	Subject  domain.SubjectID
	Method   string
	Route    string
	BodyHash string
}

// Record is a stored response.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records. Put overwrites an existing fingerprint.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
	// Purge drops records created before cutoff and reports how many went.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}
