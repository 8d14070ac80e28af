package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

// GetDebts lists everyone who owes the creditor, with net sums. In impersonal
// mode it first asks whose borrowers to show.
type GetDebts struct {
	*Chain
	deps Deps

	activeEvent *ledger.Event
}

func NewGetDebts(deps Deps) *GetDebts {
	s := &GetDebts{deps: deps, Chain: NewChain(deps.Sender)}
	s.ScheduleNext(s.onStart)
	return s
}

func (s *GetDebts) onStart(ctx context.Context, ev *chat.Event) error {
	event, err := s.deps.activeEvent(ctx)
	if err != nil {
		return err
	}
	s.activeEvent = event

	me, err := s.deps.currentUser(ctx, ev)
	if err != nil {
		return err
	}
	if me == nil {
		return s.deps.Sender.Send(ctx, ev.ChannelID, notRegisteredText)
	}
	if !me.Impersonal {
		return s.sendBorrowers(ctx, ev.ChannelID, me)
	}
	if err := s.deps.Sender.Send(ctx, ev.ChannelID, "impersonal mode"); err != nil {
		return err
	}
	s.ScheduleNext(s.onCreditorName)
	if s.activeEvent != nil {
		return s.deps.Sender.Send(ctx, ev.ChannelID,
			buildUserList("Whose borrowers are we looking at?", s.activeEvent, nil, "Or enter @username or share a contact"))
	}
	return s.deps.Sender.Send(ctx, ev.ChannelID, requestCreditorText)
}

func (s *GetDebts) onCreditorName(ctx context.Context, ev *chat.Event) error {
	user, err := s.deps.userFromMessage(ctx, ev, s.activeEvent, nil)
	if err != nil {
		return err
	}
	if user == nil {
		return validationf("%s\n%s", userNotFoundText, requestCreditorText)
	}
	return s.sendBorrowers(ctx, ev.ChannelID, user)
}

func (s *GetDebts) sendBorrowers(ctx context.Context, channelID string, creditor *ledger.User) error {
	var entries []ledger.BalanceEntry
	var err error
	if s.activeEvent != nil {
		entries, err = s.deps.Ledger.GetBorrowersInEvent(ctx, creditor.Name, s.activeEvent.Name)
	} else {
		entries, err = s.deps.Ledger.GetBorrowers(ctx, creditor.Name)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return s.deps.Sender.Send(ctx, channelID, "No borrowers")
	}

	var b strings.Builder
	b.WriteString("Borrowers:\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s owes %s\n", i+1, e.User.DisplayName(), e.Sum)
	}
	return s.deps.Sender.Send(ctx, channelID, b.String())
}
