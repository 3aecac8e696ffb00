package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier y los reportes del CLI.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// ArenaSettled imprime una línea por arena liquidada.
func (c *Console) ArenaSettled(_ context.Context, a domain.Arena) error {
	fmt.Fprintf(c.out, "[%s] arena #%d %s outcome=%s start=%s end=%s pool=%d fee=%d\n",
		time.Now().Format("15:04:05"), a.ID, a.State, outcomeLabel(a),
		a.StartPrice.String(), a.EndPrice.String(), a.TotalPool(), a.Fee)
	return nil
}

// WindowClosed imprime el resultado de una ventana y su top.
func (c *Console) WindowClosed(_ context.Context, r domain.WindowResult, top []domain.Accumulator) error {
	start := domain.BucketStart(r.Kind, r.BucketID)
	fmt.Fprintf(c.out, "\n=== %s #%d (%s): %d participants ===\n",
		r.Kind, r.BucketID, start.Format("2006-01-02 15:04"), r.Participants)
	if len(r.Thresholds) == 0 {
		fmt.Fprintln(c.out, "  no participants, nothing to pay")
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Tier", "Min Stake", "Reward")
	for i := range r.Thresholds {
		table.Append(strconv.Itoa(i), strconv.FormatInt(r.Thresholds[i], 10), strconv.FormatInt(r.Rewards[i], 10))
	}
	table.Render()

	if len(top) > 0 {
		c.PrintStandings(r, top)
	}
	return nil
}

// PrintStandings imprime el ranking actual de un bucket. Con un result vacío
// (ventana aún abierta) la columna de tier queda vacía.
func (c *Console) PrintStandings(r domain.WindowResult, accs []domain.Accumulator) {
	if len(accs) == 0 {
		fmt.Fprintln(c.out, "No standings yet.")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "User", "Stake", "Tier", "Claimed")
	for i, acc := range accs {
		tier := "-"
		if rank, ok := r.RankOf(acc.Stake); ok {
			tier = strconv.Itoa(rank)
		}
		claimed := ""
		if acc.Claimed {
			claimed = "yes"
		}
		table.Append(strconv.Itoa(i+1), truncate(acc.UserID, 24), strconv.FormatInt(acc.Stake, 10), tier, claimed)
	}
	table.Render()
}

// PrintArenas imprime una tabla con el estado de cada arena.
func (c *Console) PrintArenas(arenas []domain.Arena) {
	if len(arenas) == 0 {
		fmt.Fprintln(c.out, "No arenas.")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "State", "Start", "End", "Up", "Down", "Bettors", "Outcome", "Fee")
	for _, a := range arenas {
		table.Append(
			strconv.FormatUint(a.ID, 10),
			string(a.State),
			priceOrDash(a, a.StartedAt, a.StartPrice.String()),
			priceOrDash(a, a.EndedAt, a.EndPrice.String()),
			strconv.FormatInt(a.UpPool, 10),
			strconv.FormatInt(a.DownPool, 10),
			strconv.Itoa(a.UpCount+a.DownCount),
			outcomeLabel(a),
			strconv.FormatInt(a.Fee, 10),
		)
	}
	table.Render()
}

func priceOrDash(a domain.Arena, at *time.Time, price string) string {
	if at == nil || a.State == domain.ArenaCancelled && price == "0" {
		return "-"
	}
	return price
}

func outcomeLabel(a domain.Arena) string {
	switch {
	case a.State == domain.ArenaCancelled:
		return "cancelled"
	case a.Outcome == domain.OutcomeNone:
		return "-"
	}
	return string(a.Outcome)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
