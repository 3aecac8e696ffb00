package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
)

// Multi reparte cada notificación entre varios notifiers.
type Multi []ports.Notifier

// ArenaSettled implements ports.Notifier.
func (m Multi) ArenaSettled(ctx context.Context, a domain.Arena) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.ArenaSettled(ctx, a))
	}
	return errors.Join(errs...)
}

// WindowClosed implements ports.Notifier.
func (m Multi) WindowClosed(ctx context.Context, r domain.WindowResult, top []domain.Accumulator) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.WindowClosed(ctx, r, top))
	}
	return errors.Join(errs...)
}
