package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram envía los cierres de arenas y ventanas a un chat.
type Telegram struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	maxRetries uint
	retryBase  time.Duration
}

// NewTelegram conecta con la Bot API pública.
func NewTelegram(token, chatID string, maxRetries int) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second}, maxRetries, time.Second)
}

// NewTelegramWithEndpoint permite apuntar a otro servidor de la Bot API.
// endpoint lleva dos %s: token y método.
func NewTelegramWithEndpoint(token, chatID, endpoint string, client tgbotapi.HTTPClient, maxRetries int, retryBase time.Duration) (*Telegram, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: chat id %q: %w", chatID, err)
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryBase <= 0 {
		retryBase = time.Second
	}
	return &Telegram{bot: bot, chatID: id, maxRetries: uint(maxRetries), retryBase: retryBase}, nil
}

// ArenaSettled implements ports.Notifier.
func (t *Telegram) ArenaSettled(ctx context.Context, a domain.Arena) error {
	return t.send(ctx, formatArena(a))
}

// WindowClosed implements ports.Notifier.
func (t *Telegram) WindowClosed(ctx context.Context, r domain.WindowResult, top []domain.Accumulator) error {
	return t.send(ctx, formatWindow(r, top))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.retryBase
	_, err := backoff.Retry(ctx, func() (tgbotapi.Message, error) {
		return t.bot.Send(msg)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(t.maxRetries))
	if err != nil {
		return fmt.Errorf("notify.Telegram: send after %d tries: %w", t.maxRetries, err)
	}
	return nil
}

func formatArena(a domain.Arena) string {
	return fmt.Sprintf("Arena #%d %s\nOutcome: %s\nPrice: %s -> %s\nPool: %d up / %d down, fee %d",
		a.ID, a.State, outcomeLabel(a), a.StartPrice.String(), a.EndPrice.String(), a.UpPool, a.DownPool, a.Fee)
}

func formatWindow(r domain.WindowResult, top []domain.Accumulator) string {
	var sb strings.Builder
	start := domain.BucketStart(r.Kind, r.BucketID)
	fmt.Fprintf(&sb, "%s #%d (%s) closed: %d participants\n",
		r.Kind, r.BucketID, start.Format("2006-01-02 15:04"), r.Participants)
	if len(r.Thresholds) == 0 {
		sb.WriteString("No participants, nothing to pay.")
		return sb.String()
	}
	for i, acc := range top {
		rank, ok := r.RankOf(acc.Stake)
		if !ok {
			break
		}
		fmt.Fprintf(&sb, "%d. %s %d (tier %d, %d)\n", i+1, truncate(acc.UserID, 24), acc.Stake, rank, r.Rewards[rank])
	}
	return strings.TrimRight(sb.String(), "\n")
}
