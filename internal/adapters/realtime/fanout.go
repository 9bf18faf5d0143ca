package realtime

import (
	"context"
	"errors"

	"github.com/skyporter/luggage-api/internal/ports/out/events"
)

// Fanout publishes each event to every publisher and joins their errors.
type Fanout []events.Publisher

func (f Fanout) Publish(ctx context.Context, e events.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
