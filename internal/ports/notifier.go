package ports

import (
	"context"

	"github.com/alejandrodnm/arenabet/internal/domain"
)

// Notifier presenta al operador lo que el scheduler va liquidando.
type Notifier interface {
	// ArenaSettled reports an arena that reached a final state.
	ArenaSettled(ctx context.Context, a domain.Arena) error
	// WindowClosed reports a frozen leaderboard with its top standings.
	WindowClosed(ctx context.Context, r domain.WindowResult, top []domain.Accumulator) error
}
