package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"

	"github.com/golyo/golyo-calendar/internal/model"
)

// TelegramNotifier pushes event-change messages and upcoming-session digests
// to a trainer's Telegram chat.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: b, chatID: chatID, logger: logger}, nil
}

// Run drains the bus until ctx is done, sending one message per change.
func (n *TelegramNotifier) Run(ctx context.Context, bus *Bus) {
	changes, cancel := bus.Subscribe(16)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			n.send(ctx, formatChange(change))
		}
	}
}

// SendUpcoming pushes a digest of the next days' sessions.
func (n *TelegramNotifier) SendUpcoming(ctx context.Context, events []*model.Event) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Upcoming sessions: %d\n", len(events))
	for _, e := range events {
		fmt.Fprintf(&sb, "%s  %s-%s  (%s booked)\n",
			e.StartTime.Format("Mon 02 Jan"),
			e.StartTime.Format("15:04"),
			e.EndTime.Format("15:04"),
			e.Badge)
	}

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   sb.String(),
	})
	if err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, text string) {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		n.logger.Warn("Failed to send telegram notification", zap.Error(err))
	}
}

func formatChange(change EventChange) string {
	e := change.Event
	when := e.StartTime.Format("Mon 02 Jan 15:04")
	switch change.Type {
	case Added:
		return fmt.Sprintf("New session added: %s", when)
	case Removed:
		return fmt.Sprintf("Session removed: %s", when)
	default:
		if e.IsDeleted {
			return fmt.Sprintf("Session cancelled: %s", when)
		}
		return fmt.Sprintf("Session updated: %s (%s booked)", when, e.Badge)
	}
}
