package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

// GetMyDebts is a single-step flow listing everyone the requester owes.
type GetMyDebts struct {
	*Chain
	deps Deps
}

func NewGetMyDebts(deps Deps) *GetMyDebts {
	s := &GetMyDebts{deps: deps, Chain: NewChain(deps.Sender)}
	s.ScheduleNext(s.onStart)
	return s
}

func (s *GetMyDebts) onStart(ctx context.Context, ev *chat.Event) error {
	me, err := s.deps.currentUser(ctx, ev)
	if err != nil {
		return err
	}
	if me == nil {
		return s.deps.Sender.Send(ctx, ev.ChannelID, notRegisteredText)
	}

	event, err := s.deps.activeEvent(ctx)
	if err != nil {
		return err
	}
	var entries []ledger.BalanceEntry
	if event != nil {
		entries, err = s.deps.Ledger.GetCreditorsInEvent(ctx, me.Name, event.Name)
	} else {
		entries, err = s.deps.Ledger.GetCreditors(ctx, me.Name)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return s.deps.Sender.Send(ctx, ev.ChannelID, "No debts :)")
	}

	var b strings.Builder
	b.WriteString("You owe:\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s, amount %s\n", i+1, e.User.DisplayName(), e.Sum)
	}
	return s.deps.Sender.Send(ctx, ev.ChannelID, b.String())
}
