package main

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/arenabet/internal/adapters/notify"
	"github.com/alejandrodnm/arenabet/internal/application"
	"github.com/alejandrodnm/arenabet/internal/domain"
)

const reportTop = 10

// runReport imprime las arenas y el ranking de las ventanas en curso.
func runReport(ctx context.Context, app *application.App, out *notify.Console) error {
	arenas, err := app.Market.Arenas(ctx)
	if err != nil {
		return fmt.Errorf("report: arenas: %w", err)
	}
	fmt.Println("\n=== Arenas ===")
	out.PrintArenas(arenas)

	now := app.Now()
	for _, kind := range domain.RankedKinds {
		bucket := domain.BucketID(kind, now)
		top, err := app.Leaderboard.Standings(ctx, kind, bucket, reportTop)
		if err != nil {
			return fmt.Errorf("report: %s standings: %w", kind, err)
		}
		fmt.Printf("\n=== %s #%d (ends %s) ===\n", kind, bucket, domain.BucketEnd(kind, bucket).Format("2006-01-02 15:04"))
		out.PrintStandings(domain.WindowResult{Kind: kind, BucketID: bucket}, top)
	}
	return nil
}
