// Package fanout composes publish adapters behind the single narrow
// publish interface the core depends on.
package fanout

import (
	"context"
	"errors"

	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/ports"
)

// Multi fans a publish call out to every adapter. All adapters are
// attempted; errors are joined so a dead broker does not hide a healthy
// console hub or vice versa.
type Multi struct {
	outs []ports.EventPublisher
}

// NewMulti builds a composite publisher. Nil adapters are skipped.
func NewMulti(outs ...ports.EventPublisher) *Multi {
	m := &Multi{}
	for _, out := range outs {
		if out != nil {
			m.outs = append(m.outs, out)
		}
	}
	return m
}

// Publish implements ports.EventPublisher.
func (m *Multi) Publish(ctx context.Context, channel string, eventType ride.EventType, payload any) error {
	var errs []error
	for _, out := range m.outs {
		if err := out.Publish(ctx, channel, eventType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
