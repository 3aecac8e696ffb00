// Package scheduler closes ended leaderboard windows on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
)

// Windows es lo que el scheduler usa del leaderboard.
type Windows interface {
	PendingBuckets(ctx context.Context, kind domain.WindowKind) ([]uint64, error)
	EndWindow(ctx context.Context, caller string, kind domain.WindowKind, bucket uint64, thresholds, rewards []int64) (domain.WindowResult, error)
	Standings(ctx context.Context, kind domain.WindowKind, bucket uint64, limit int) ([]domain.Accumulator, error)
}

// Config contiene la configuración del scheduler.
type Config struct {
	Interval time.Duration
	Admin    string // cuenta con la que se cierran las ventanas
	TopN     int    // standings incluidos en cada notificación
	Once     bool
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{Interval: time.Minute, Admin: "admin", TopN: 10}
}

// Scheduler es el loop que cierra ventanas vencidas.
type Scheduler struct {
	cfg      Config
	windows  Windows
	notifier ports.Notifier
}

// New crea un Scheduler con todas las dependencias inyectadas.
func New(cfg Config, windows Windows, notifier ports.Notifier) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Scheduler{cfg: cfg, windows: windows, notifier: notifier}
}

// Run ejecuta el loop hasta que el contexto se cancele.
// Con cfg.Once solo ejecuta un ciclo.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting", "interval", s.cfg.Interval, "once", s.cfg.Once)

	if err := s.runCycle(ctx); err != nil {
		slog.Error("scheduler cycle failed", "err", err)
		if s.cfg.Once {
			return err
		}
	}
	if s.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				slog.Error("scheduler cycle failed", "err", err)
			}
		}
	}
}

// RunOnce cierra todas las ventanas pendientes y devuelve los resultados.
func (s *Scheduler) RunOnce(ctx context.Context) ([]domain.WindowResult, error) {
	return s.cycle(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context) error {
	start := time.Now()

	results, err := s.cycle(ctx)
	for _, r := range results {
		top, serr := s.windows.Standings(ctx, r.Kind, r.BucketID, s.cfg.TopN)
		if serr != nil {
			slog.Warn("scheduler: standings unavailable", "kind", r.Kind, "bucket", r.BucketID, "err", serr)
		}
		if nerr := s.notifier.WindowClosed(ctx, r, top); nerr != nil {
			slog.Warn("notifier error", "err", nerr)
		}
	}

	slog.Info("scheduler cycle complete",
		"closed", len(results),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return err
}

// cycle cierra cada bucket vencido de cada ventana con ranking. Un bucket
// que falla no frena a los demás.
func (s *Scheduler) cycle(ctx context.Context) ([]domain.WindowResult, error) {
	var (
		results []domain.WindowResult
		errs    []error
	)
	for _, kind := range domain.RankedKinds {
		pending, err := s.windows.PendingBuckets(ctx, kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("scheduler.cycle: %s: %w", kind, err))
			continue
		}
		for _, bucket := range pending {
			r, err := s.windows.EndWindow(ctx, s.cfg.Admin, kind, bucket, nil, nil)
			if errors.Is(err, domain.ErrDuplicateEntry) {
				slog.Debug("scheduler: window already closed", "kind", kind, "bucket", bucket)
				continue
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("scheduler.cycle: %s/%d: %w", kind, bucket, err))
				continue
			}
			results = append(results, r)
		}
	}
	return results, errors.Join(errs...)
}
