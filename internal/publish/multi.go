package publish

import (
	"context"
	"errors"
)

// Multi fans envelopes out to every publisher. A failing publisher does not
// stop delivery to the others.
type Multi []Publisher

// Combine returns the publishers as one. No publishers yield Nop.
func Combine(pubs ...Publisher) Publisher {
	switch len(pubs) {
	case 0:
		return Nop{}
	case 1:
		return pubs[0]
	}
	return Multi(pubs)
}

func (m Multi) Publish(ctx context.Context, envelopes ...Envelope) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, envelopes...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
