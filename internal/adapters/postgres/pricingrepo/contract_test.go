package pricingrepo_test

import (
	"testing"

	"github.com/skyporter/luggage-api/internal/adapters/contracttest"
	"github.com/skyporter/luggage-api/internal/adapters/postgres/contractrepo"
	"github.com/skyporter/luggage-api/internal/adapters/postgres/locationrepo"
	"github.com/skyporter/luggage-api/internal/adapters/postgres/messagerepo"
	"github.com/skyporter/luggage-api/internal/adapters/postgres/paymentrepo"
	"github.com/skyporter/luggage-api/internal/adapters/postgres/pricingrepo"
	"github.com/skyporter/luggage-api/internal/adapters/postgres/profilerepo"
	"github.com/skyporter/luggage-api/internal/adapters/postgres/testutil"
)

func TestContract_PostgresPricingRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	issuer := "https://issuer.test"

	contracttest.RunPricingRepo(t, func(t *testing.T) (contracttest.Repos, func()) {
		t.Helper()
		return contracttest.Repos{
			Profiles:  profilerepo.NewRepo(pool, issuer),
			Messages:  messagerepo.NewRepo(pool),
			Contracts: contractrepo.NewRepo(pool),
			Pricing:   pricingrepo.NewRepo(pool),
			Payments:  paymentrepo.NewRepo(pool),
			Locations: locationrepo.NewRepo(pool),
		}, nil
	})
}
