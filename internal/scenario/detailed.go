package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

// DetailedDebts shows individual debt records between the requester and one
// counterparty, in either direction, with amounts, dates and descriptions.
type DetailedDebts struct {
	*Chain
	deps Deps

	me      *ledger.User
	targets []*debtTarget
}

type debtTarget struct {
	user       *ledger.User
	asCreditor bool // true when the requester owes this user
}

func NewDetailedDebts(deps Deps) *DetailedDebts {
	s := &DetailedDebts{deps: deps, Chain: NewChain(deps.Sender)}
	s.ScheduleNext(s.onStart)
	return s
}

func (s *DetailedDebts) onStart(ctx context.Context, ev *chat.Event) error {
	me, err := s.deps.currentUser(ctx, ev)
	if err != nil {
		return err
	}
	if me == nil {
		return s.deps.Sender.Send(ctx, ev.ChannelID, notRegisteredText)
	}
	s.me = me

	borrowers, err := s.deps.Ledger.GetBorrowers(ctx, me.Name)
	if err != nil {
		return err
	}
	creditors, err := s.deps.Ledger.GetCreditors(ctx, me.Name)
	if err != nil {
		return err
	}
	for _, e := range borrowers {
		s.targets = append(s.targets, &debtTarget{user: e.User})
	}
	for _, e := range creditors {
		s.targets = append(s.targets, &debtTarget{user: e.User, asCreditor: true})
	}
	if len(s.targets) == 0 {
		return s.deps.Sender.Send(ctx, ev.ChannelID, "No debts in either direction :)")
	}

	var b strings.Builder
	b.WriteString("Whose debts do you want to see in detail?\n")
	for i, t := range s.targets {
		direction := "owes you"
		if t.asCreditor {
			direction = "you owe"
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, t.user.DisplayName(), direction)
	}
	b.WriteString("Enter @username or pick a number from the list")

	s.ScheduleNext(s.onTargetSelected)
	return s.deps.Sender.Send(ctx, ev.ChannelID, b.String())
}

func (s *DetailedDebts) onTargetSelected(ctx context.Context, ev *chat.Event) error {
	candidates := make([]*ledger.User, len(s.targets))
	for i, t := range s.targets {
		candidates[i] = t.user
	}
	user := userFromCandidates(ev, candidates)
	if user == nil {
		return validationf("Enter @username or pick a number from the list")
	}

	var b strings.Builder
	for _, t := range s.targets {
		if t.user.ID != user.ID {
			continue
		}
		debtor, creditor := t.user, s.me
		if t.asCreditor {
			debtor, creditor = s.me, t.user
		}
		debts, err := s.deps.Ledger.GetActiveDebts(ctx, debtor.Name, creditor.Name, "")
		if err != nil {
			return err
		}
		if len(debts) == 0 {
			continue
		}
		if t.asCreditor {
			fmt.Fprintf(&b, "You owe %s:\n", t.user.DisplayName())
		} else {
			fmt.Fprintf(&b, "%s owes you:\n", t.user.DisplayName())
		}
		for _, d := range debts {
			fmt.Fprintf(&b, "- %s of %s from %s: %s\n",
				d.Left, d.Initial, d.CreatedAt.Format("2006-01-02"), d.Description)
		}
	}
	if b.Len() == 0 {
		return s.deps.Sender.Send(ctx, ev.ChannelID, "No active debts with that user")
	}
	return s.deps.Sender.Send(ctx, ev.ChannelID, b.String())
}
