package scenario

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

// Notifier resolves a user's private channel for proactive notifications.
type Notifier interface {
	Lookup(ctx context.Context, chatUserID string) (channelID string, ok bool)
}

// Deps are the collaborators every concrete scenario receives at
// construction. DefaultEvent names the currently active group event; empty
// means debts are recorded unscoped.
type Deps struct {
	Ledger       *ledger.Service
	Sender       chat.Sender
	Notifier     Notifier
	DefaultEvent string
	Log          zerolog.Logger
}

// notify sends text to the user's private channel if one is known.
// Best-effort: delivery problems are logged, never surfaced to the flow.
func (d *Deps) notify(ctx context.Context, user *ledger.User, text string) {
	if user.ChatID == "" {
		return
	}
	channelID, ok := d.Notifier.Lookup(ctx, user.ChatID)
	if !ok {
		d.Log.Debug().Str("user", user.Name).Msg("no primary channel for notification")
		return
	}
	if err := d.Sender.Send(ctx, channelID, text); err != nil {
		d.Log.Error().Err(err).Str("user", user.Name).Msg("failed to deliver notification")
	}
}
