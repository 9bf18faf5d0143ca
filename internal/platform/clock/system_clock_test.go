package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	clockport "github.com/skyporter/luggage-api/internal/ports/out/clock"
)

func TestSystemClock_Now(t *testing.T) {
	var c clockport.Clock = NewSystemClock()
	now := c.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%int(time.Microsecond))
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestFunc(t *testing.T) {
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	var c clockport.Clock = clockport.Func(func() time.Time { return fixed })
	assert.Equal(t, fixed, c.Now())
}
