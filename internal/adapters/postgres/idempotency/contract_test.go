package idempotency

import (
	"testing"

	"github.com/skyporter/luggage-api/internal/adapters/contracttest"
	"github.com/skyporter/luggage-api/internal/adapters/postgres/testutil"
	idempotencyport "github.com/skyporter/luggage-api/internal/ports/out/idempotency"
)

func TestContract_PostgresIdempotencyStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunIdempotencyStore(t, func(*testing.T) (idempotencyport.Store, func()) {
		return NewStore(pool, "https://issuer.test/"+t.Name()), nil
	})
}
