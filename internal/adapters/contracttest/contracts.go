package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skyporter/luggage-api/internal/domain"
	contractrepoport "github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	idempotencyport "github.com/skyporter/luggage-api/internal/ports/out/idempotency"
	locationrepoport "github.com/skyporter/luggage-api/internal/ports/out/locationrepo"
	messagerepoport "github.com/skyporter/luggage-api/internal/ports/out/messagerepo"
	paymentrepoport "github.com/skyporter/luggage-api/internal/ports/out/paymentrepo"
	pricingrepoport "github.com/skyporter/luggage-api/internal/ports/out/pricingrepo"
	profilerepoport "github.com/skyporter/luggage-api/internal/ports/out/profilerepo"
)

type CleanupFunc = func()

// Repos bundles every repository of one backend. Suites that need foreign-key seeding
// (messages, contracts, payments, locations) take the whole bundle.
type Repos struct {
	Profiles  profilerepoport.Repository
	Messages  messagerepoport.Repository
	Contracts contractrepoport.Repository
	Pricing   pricingrepoport.Repository
	Payments  paymentrepoport.Repository
	Locations locationrepoport.Repository
}

type ReposFactory func(t *testing.T) (Repos, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	key := idempotencyport.Key("k-" + uuid.NewString())
	meta := idempotencyport.Fingerprint{Key: key, Subject: "sub-1", Method: "POST", Route: "POST /contracts"}
	resp := meta
	resp.BodyHash = "hash-abc"

	if _, ok, err := store.Get(ctx, meta); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	created := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, meta, idempotencyport.Record{ContentType: "text/plain", Body: []byte("hash-abc"), CreatedAt: created}); err != nil {
		t.Fatalf("Put meta: %v", err)
	}
	if err := store.Put(ctx, resp, idempotencyport.Record{StatusCode: 201, ContentType: "application/json", Body: []byte(`{"data":{}}`), CreatedAt: created}); err != nil {
		t.Fatalf("Put response: %v", err)
	}

	got, ok, err := store.Get(ctx, meta)
	if err != nil || !ok {
		t.Fatalf("Get meta: ok=%v err=%v", ok, err)
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected meta record: %+v", got)
	}
	got, ok, err = store.Get(ctx, resp)
	if err != nil || !ok || got.StatusCode != 201 || string(got.Body) != `{"data":{}}` {
		t.Fatalf("unexpected response record: ok=%v err=%v rec=%+v", ok, err, got)
	}

	// The subject is part of the fingerprint.
	other := resp
	other.Subject = "sub-2"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other subject: ok=%v err=%v", ok, err)
	}

	// Overwrite semantics.
	if err := store.Put(ctx, meta, idempotencyport.Record{ContentType: "text/plain", Body: []byte("hash-def"), CreatedAt: created}); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, meta)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Purge drops records created before the cutoff.
	fresh := idempotencyport.Fingerprint{Key: idempotencyport.Key("k-" + uuid.NewString()), Subject: "sub-1", Method: "POST", Route: "POST /contracts"}
	if err := store.Put(ctx, fresh, idempotencyport.Record{ContentType: "text/plain", Body: []byte("h"), CreatedAt: created.Add(48 * time.Hour)}); err != nil {
		t.Fatalf("Put fresh: %v", err)
	}
	n, err := store.Purge(ctx, created.Add(time.Hour))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n < 2 {
		t.Fatalf("Purge removed %d records, want at least 2", n)
	}
	if _, ok, _ := store.Get(ctx, resp); ok {
		t.Fatalf("expected purged response record to be gone")
	}
	if _, ok, _ := store.Get(ctx, fresh); !ok {
		t.Fatalf("expected record after cutoff to survive")
	}
}

// SeedProfile creates a profile with a random subject and email and returns it.
func SeedProfile(t *testing.T, repo profilerepoport.Repository, role domain.Role, name string) domain.Profile {
	t.Helper()
	now := time.Unix(1000, 0).UTC()
	id := uuid.NewString()
	p := domain.Profile{
		ID:        domain.ProfileID(id),
		Subject:   domain.SubjectID("sub-" + id),
		Role:      role,
		Status:    domain.ProfileStatusActive,
		FullName:  name,
		Email:     id + "@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed profile %q: %v", name, err)
	}
	return p
}

func RunProfileRepo(t *testing.T, newRepos ReposFactory) {
	t.Helper()
	ctx := context.Background()

	repos, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	repo := repos.Profiles

	now := time.Unix(1000, 0).UTC()
	aID := domain.ProfileID(uuid.NewString())
	sub := domain.SubjectID("sub-" + uuid.NewString())
	company := "Skyline Air " + string(aID)
	if err := repo.Create(ctx, domain.Profile{
		ID:          aID,
		Subject:     sub,
		Role:        domain.RoleContractor,
		Status:      domain.ProfileStatusActive,
		FullName:    "Alice Johnson",
		Email:       string(aID) + "@example.com",
		CompanyName: &company,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if _, err := repo.GetByID(ctx, aID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got, err := repo.GetBySubject(ctx, sub)
	if err != nil {
		t.Fatalf("GetBySubject: %v", err)
	}
	if got.CompanyName == nil || *got.CompanyName != company {
		t.Fatalf("companyName not persisted: %#v", got)
	}

	// Subject uniqueness.
	if err := repo.Create(ctx, domain.Profile{
		ID:        domain.ProfileID(uuid.NewString()),
		Subject:   sub,
		Role:      domain.RoleDelivery,
		Status:    domain.ProfileStatusActive,
		FullName:  "Alice 2",
		Email:     uuid.NewString() + "@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}); !errors.Is(err, profilerepoport.ErrSubjectAlreadyBound) {
		t.Fatalf("expected ErrSubjectAlreadyBound, got %v", err)
	}

	// Email uniqueness is case-insensitive.
	if err := repo.Create(ctx, domain.Profile{
		ID:        domain.ProfileID(uuid.NewString()),
		Subject:   domain.SubjectID("sub-" + uuid.NewString()),
		Role:      domain.RoleDelivery,
		Status:    domain.ProfileStatusActive,
		FullName:  "Alice 3",
		Email:     string(aID) + "@EXAMPLE.com",
		CreatedAt: now,
		UpdatedAt: now,
	}); err == nil {
		t.Fatalf("expected email uniqueness error")
	}

	// Filter by role + query.
	b := SeedProfile(t, repo, domain.RoleDelivery, "Bob Driver")
	res, err := repo.List(ctx, profilerepoport.Filter{Role: domain.RoleContractor, Query: "alice skyline " + string(aID)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res) != 1 || res[0].ID != aID {
		t.Fatalf("unexpected filtered list: %#v", res)
	}

	// Update + delete.
	b.Status = domain.ProfileStatusSuspended
	b.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	gotB, err := repo.GetByID(ctx, b.ID)
	if err != nil || gotB.Status != domain.ProfileStatusSuspended {
		t.Fatalf("after update: %#v err=%v", gotB, err)
	}
	if err := repo.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, b.ID); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("GetByID after delete err=%v, want ErrNotFound", err)
	}
}

func RunPricingRepo(t *testing.T, newRepos ReposFactory) {
	t.Helper()
	ctx := context.Background()

	repos, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	repo := repos.Pricing

	suffix := uuid.NewString()
	a := domain.PricingRegion{ID: domain.PricingRegionID(uuid.NewString()), Name: "Airport A " + suffix, BaseFeeCents: 1000, PerBagCents: 200, PerKgCents: 5, Currency: "USD", Active: true}
	b := domain.PricingRegion{ID: domain.PricingRegionID(uuid.NewString()), Name: "Airport B " + suffix, BaseFeeCents: 900, Currency: "USD", Active: false}
	if err := repo.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert a: %v", err)
	}
	if err := repo.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert b: %v", err)
	}

	dup := domain.PricingRegion{ID: domain.PricingRegionID(uuid.NewString()), Name: a.Name, Currency: "USD"}
	if err := repo.Upsert(ctx, dup); !errors.Is(err, pricingrepoport.ErrNameTaken) {
		t.Fatalf("Upsert duplicate name err=%v, want ErrNameTaken", err)
	}

	a.PerBagCents = 300
	if err := repo.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	got, err := repo.GetByID(ctx, a.ID)
	if err != nil || got.PerBagCents != 300 {
		t.Fatalf("GetByID=%#v err=%v", got, err)
	}

	active, err := repo.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, r := range active {
		if r.ID == b.ID {
			t.Fatalf("inactive region returned when includeInactive=false")
		}
	}

	if err := repo.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, b.ID); !errors.Is(err, pricingrepoport.ErrNotFound) {
		t.Fatalf("GetByID deleted err=%v", err)
	}
}

func RunMessageRepo(t *testing.T, newRepos ReposFactory) {
	t.Helper()
	ctx := context.Background()

	repos, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	user := SeedProfile(t, repos.Profiles, domain.RoleContractor, "Chat User")
	admin := SeedProfile(t, repos.Profiles, domain.RoleAdmin, "Chat Admin")
	conv := user.ConversationID()

	base := time.Unix(5000, 0).UTC()
	ref := "tmp-1"
	msgs := []domain.Message{
		{ID: domain.MessageID(uuid.NewString()), ConversationID: conv, SenderID: user.ID, SenderRole: user.Role, Body: "hello", ClientRef: &ref, CreatedAt: base},
		{ID: domain.MessageID(uuid.NewString()), ConversationID: conv, SenderID: admin.ID, SenderRole: admin.Role, Body: "hi, how can we help?", CreatedAt: base.Add(time.Second)},
		{ID: domain.MessageID(uuid.NewString()), ConversationID: conv, SenderID: user.ID, SenderRole: user.Role, Body: "bag is late", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		if err := repos.Messages.Create(ctx, m); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := repos.Messages.ListSince(ctx, conv, time.Time{}, 0)
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(all) != 3 || all[0].Body != "hello" || all[2].Body != "bag is late" {
		t.Fatalf("unexpected order: %#v", all)
	}
	if all[0].ClientRef == nil || *all[0].ClientRef != ref {
		t.Fatalf("clientRef not persisted")
	}

	after, err := repos.Messages.ListSince(ctx, conv, base, 0)
	if err != nil {
		t.Fatalf("ListSince(base): %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("ListSince excludes rows at since: got %d, want 2", len(after))
	}

	if n, err := repos.Messages.CountUnread(ctx, conv, true); err != nil || n != 2 {
		t.Fatalf("admin unread n=%d err=%v, want 2", n, err)
	}
	changed, err := repos.Messages.MarkRead(ctx, conv, true, base.Add(time.Minute))
	if err != nil || len(changed) != 2 {
		t.Fatalf("MarkRead changed=%v err=%v", changed, err)
	}
	if n, _ := repos.Messages.CountUnread(ctx, conv, true); n != 0 {
		t.Fatalf("admin unread after MarkRead=%d", n)
	}
	if n, _ := repos.Messages.CountUnread(ctx, conv, false); n != 1 {
		t.Fatalf("user unread=%d, want 1", n)
	}

	latest, err := repos.Messages.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest[conv].Body != "bag is late" {
		t.Fatalf("Latest[conv]=%#v", latest[conv])
	}

	if err := repos.Messages.DeleteConversation(ctx, conv); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	rest, _ := repos.Messages.ListSince(ctx, conv, time.Time{}, 0)
	if len(rest) != 0 {
		t.Fatalf("messages remain after DeleteConversation: %d", len(rest))
	}
}

// RunContractRepos exercises contracts, payments and locations, which share seeding.
func RunContractRepos(t *testing.T, newRepos ReposFactory) {
	t.Helper()
	ctx := context.Background()

	repos, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	contractor := SeedProfile(t, repos.Profiles, domain.RoleContractor, "Booker")
	driver := SeedProfile(t, repos.Profiles, domain.RoleDelivery, "Driver")

	region := domain.PricingRegion{ID: domain.PricingRegionID(uuid.NewString()), Name: "Region " + uuid.NewString(), BaseFeeCents: 500, Currency: "USD", Active: true}
	if err := repos.Pricing.Upsert(ctx, region); err != nil {
		t.Fatalf("seed region: %v", err)
	}

	now := time.Unix(10_000, 0).UTC()
	cid := domain.ContractID(uuid.NewString())
	c := domain.Contract{
		ID:             cid,
		ContractorID:   contractor.ID,
		RegionID:       region.ID,
		Airline:        "Skyline",
		FlightNumber:   "SK123",
		PassengerName:  "Pat Passenger",
		PickupAddress:  "Terminal 2",
		DropoffAddress: "1 Main St",
		Dropoff:        &domain.GeoPoint{Lat: 40.1, Lng: -73.9},
		ScheduledAt:    now.Add(time.Hour),
		Status:         domain.ContractStatusPending,
		TotalCents:     1500,
		Currency:       "USD",
		Luggage: []domain.LuggageItem{
			{ID: domain.LuggageItemID(uuid.NewString()), ContractID: cid, TagNumber: "SK0001", Description: "Blue suitcase", WeightKg: 20, Quantity: 1},
			{ID: domain.LuggageItemID(uuid.NewString()), ContractID: cid, TagNumber: "SK0002", Description: "Golf bag", WeightKg: 12.5, Quantity: 1},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repos.Contracts.Create(ctx, c); err != nil {
		t.Fatalf("Create contract: %v", err)
	}
	got, err := repos.Contracts.GetByID(ctx, cid)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Luggage) != 2 || got.Dropoff == nil || got.Pickup != nil {
		t.Fatalf("unexpected contract: %#v", got)
	}

	unassigned, err := repos.Contracts.List(ctx, contractrepoport.Filter{Unassigned: true, Statuses: []domain.ContractStatus{domain.ContractStatusPending}})
	if err != nil {
		t.Fatalf("List unassigned: %v", err)
	}
	if !containsContract(unassigned, cid) {
		t.Fatalf("pending contract missing from unassigned list")
	}

	// Assign with compare-and-swap.
	got.Status = domain.ContractStatusAssigned
	got.DeliveryID = &driver.ID
	got.UpdatedAt = now.Add(time.Minute)
	if err := repos.Contracts.Save(ctx, got, domain.ContractStatusPending); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repos.Contracts.Save(ctx, got, domain.ContractStatusPending); !errors.Is(err, contractrepoport.ErrConflict) {
		t.Fatalf("stale Save err=%v, want ErrConflict", err)
	}
	mine, err := repos.Contracts.List(ctx, contractrepoport.Filter{DeliveryID: &driver.ID})
	if err != nil || !containsContract(mine, cid) {
		t.Fatalf("List by delivery: %v err=%v", mine, err)
	}

	// Payments.
	paidAt := now.Add(2 * time.Minute)
	if err := repos.Payments.Create(ctx, domain.Payment{
		ID:          domain.PaymentID(uuid.NewString()),
		ContractID:  cid,
		AmountCents: 1500,
		Currency:    "USD",
		Method:      domain.PaymentMethodCard,
		Status:      domain.PaymentStatusPaid,
		PaidAt:      &paidAt,
		CreatedAt:   paidAt,
	}); err != nil {
		t.Fatalf("Create payment: %v", err)
	}
	ps, err := repos.Payments.ListByContract(ctx, cid)
	if err != nil || len(ps) != 1 || domain.PaidCents(ps) != 1500 {
		t.Fatalf("ListByContract=%#v err=%v", ps, err)
	}
	between, err := repos.Payments.ListBetween(ctx, now, now.Add(time.Hour))
	if err != nil || len(between) == 0 {
		t.Fatalf("ListBetween=%#v err=%v", between, err)
	}

	// Locations.
	if _, err := repos.Locations.Latest(ctx, cid); !errors.Is(err, locationrepoport.ErrNotFound) {
		t.Fatalf("Latest on empty track err=%v", err)
	}
	for i := 0; i < 3; i++ {
		if err := repos.Locations.Append(ctx, domain.LocationPoint{
			ID:         domain.LocationPointID(uuid.NewString()),
			ContractID: cid,
			DeliveryID: driver.ID,
			Lat:        40 + float64(i)*0.01,
			Lng:        -73.9,
			RecordedAt: now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	pts, err := repos.Locations.ListSince(ctx, cid, now)
	if err != nil || len(pts) != 2 {
		t.Fatalf("ListSince=%d err=%v, want 2", len(pts), err)
	}
	last, err := repos.Locations.Latest(ctx, cid)
	if err != nil || last.Lat != 40.02 {
		t.Fatalf("Latest=%#v err=%v", last, err)
	}
}

func containsContract(cs []domain.Contract, id domain.ContractID) bool {
	for _, c := range cs {
		if c.ID == id {
			return true
		}
	}
	return false
}
