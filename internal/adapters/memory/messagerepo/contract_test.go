package messagerepo_test

import (
	"testing"

	"github.com/skyporter/luggage-api/internal/adapters/contracttest"
	"github.com/skyporter/luggage-api/internal/adapters/memory/contractrepo"
	"github.com/skyporter/luggage-api/internal/adapters/memory/locationrepo"
	"github.com/skyporter/luggage-api/internal/adapters/memory/messagerepo"
	"github.com/skyporter/luggage-api/internal/adapters/memory/paymentrepo"
	"github.com/skyporter/luggage-api/internal/adapters/memory/pricingrepo"
	"github.com/skyporter/luggage-api/internal/adapters/memory/profilerepo"
)

func newRepos(t *testing.T) (contracttest.Repos, func()) {
	t.Helper()
	return contracttest.Repos{
		Profiles:  profilerepo.NewRepo(),
		Messages:  messagerepo.NewRepo(),
		Contracts: contractrepo.NewRepo(),
		Pricing:   pricingrepo.NewRepo(),
		Payments:  paymentrepo.NewRepo(),
		Locations: locationrepo.NewRepo(),
	}, nil
}

func TestContract_MessageRepo(t *testing.T) {
	contracttest.RunMessageRepo(t, newRepos)
}
