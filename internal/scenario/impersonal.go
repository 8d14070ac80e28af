package scenario

import (
	"context"

	"github.com/avoevodin/debtbot/internal/chat"
)

// ImpersonalMode toggles acting on behalf of other users: with it on, the
// other flows ask for the creditor explicitly instead of assuming the sender.
type ImpersonalMode struct {
	*Chain
	deps Deps
}

func NewImpersonalMode(deps Deps) *ImpersonalMode {
	s := &ImpersonalMode{deps: deps, Chain: NewChain(deps.Sender)}
	s.ScheduleNext(s.onStart)
	return s
}

func (s *ImpersonalMode) onStart(ctx context.Context, ev *chat.Event) error {
	me, err := s.deps.currentUser(ctx, ev)
	if err != nil {
		return err
	}
	if me == nil {
		return s.deps.Sender.Send(ctx, ev.ChannelID, notRegisteredText)
	}
	s.ScheduleNext(s.onAnswer)
	return s.deps.Sender.Send(ctx, ev.ChannelID, "Enable impersonal mode?", chat.YesText, chat.NoText)
}

func (s *ImpersonalMode) onAnswer(ctx context.Context, ev *chat.Event) error {
	var impersonal bool
	switch ev.Text {
	case chat.YesText:
		impersonal = true
	case chat.NoText:
		impersonal = false
	default:
		return validationf("%s/%s?", chat.YesText, chat.NoText)
	}
	if err := s.deps.Ledger.SetImpersonalMode(ctx, ev.UserID, impersonal); err != nil {
		return err
	}
	text := "Impersonal mode enabled"
	if !impersonal {
		text = "Impersonal mode disabled"
	}
	return s.deps.Sender.Send(ctx, ev.ChannelID, text)
}
