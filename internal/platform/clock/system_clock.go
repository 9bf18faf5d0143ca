package clock

import "time"

// SystemClock reads the wall clock in UTC, truncated to microseconds so values survive a
// round trip through timestamptz columns unchanged.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
