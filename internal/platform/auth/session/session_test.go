package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memclock "github.com/skyporter/luggage-api/internal/adapters/memory/clock"
	"github.com/skyporter/luggage-api/internal/domain"
)

func newManager() (*Manager, *memclock.ManualClock) {
	clk := memclock.NewManualClock(time.Unix(1_700_000_000, 0).UTC())
	return NewManager("0123456789abcdef0123456789abcdef", time.Hour, clk, true, "skyporter.test"), clk
}

func admin() domain.Profile {
	return domain.Profile{ID: "p-admin", Subject: "sub-admin", Role: domain.RoleAdmin}
}

func TestManager_IssueParseRoundTrip(t *testing.T) {
	t.Parallel()

	m, _ := newManager()
	token, exp, err := m.Issue(admin(), PortalAdmin)
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := m.Parse(token, PortalAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileID("p-admin"), claims.ProfileID)
	assert.Equal(t, "sub-admin", claims.Subject)
}

func TestManager_IssueRejectsRoleMismatch(t *testing.T) {
	t.Parallel()

	m, _ := newManager()
	_, _, err := m.Issue(admin(), PortalContractor)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestManager_ParseRejects(t *testing.T) {
	t.Parallel()

	m, clk := newManager()
	token, _, err := m.Issue(admin(), PortalAdmin)
	require.NoError(t, err)

	other := NewManager("ffffffffffffffffffffffffffffffff", time.Hour, clk, true, "")
	_, err = other.Parse(token, PortalAdmin)
	assert.ErrorIs(t, err, ErrInvalid, "wrong secret")

	_, err = m.Parse(token, PortalContractor)
	assert.ErrorIs(t, err, ErrInvalid, "wrong portal")

	_, err = m.Parse("not-a-jwt", PortalAdmin)
	assert.ErrorIs(t, err, ErrInvalid, "garbage")

	clk.Advance(2 * time.Hour)
	_, err = m.Parse(token, PortalAdmin)
	assert.ErrorIs(t, err, ErrInvalid, "expired")
}

func TestManager_Cookies(t *testing.T) {
	t.Parallel()

	m, _ := newManager()
	c := m.Cookie(PortalContractor, "tok", time.Unix(10, 0))
	assert.Equal(t, "contractor_session", c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, "skyporter.test", c.Domain)

	cleared := m.ClearCookie(PortalAdmin)
	assert.Equal(t, "admin_session", cleared.Name)
	assert.Equal(t, -1, cleared.MaxAge)
}
