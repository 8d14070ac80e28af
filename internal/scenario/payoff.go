package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

// PayOffDebts settles a borrower's debts to a creditor: pick a borrower from
// the net-balance list, then either clear both directions entirely or write
// off a chosen amount with nearest-match allocation.
type PayOffDebts struct {
	*Chain
	deps Deps

	activeEvent *ledger.Event
	creditor    *ledger.User
	borrowers   []*ledger.User
	totals      map[int64]decimal.Decimal
	selected    *ledger.User
}

func NewPayOffDebts(deps Deps) *PayOffDebts {
	s := &PayOffDebts{deps: deps, Chain: NewChain(deps.Sender), totals: make(map[int64]decimal.Decimal)}
	s.ScheduleNext(s.onStart)
	return s
}

func (s *PayOffDebts) onStart(ctx context.Context, ev *chat.Event) error {
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
		s.creditor = me
		return s.sendBorrowerList(ctx, ev.ChannelID)
	}
	if err := s.deps.Sender.Send(ctx, ev.ChannelID, "impersonal mode"); err != nil {
		return err
	}
	s.ScheduleNext(s.onCreditorName)
	if s.activeEvent != nil {
		return s.deps.Sender.Send(ctx, ev.ChannelID,
			buildUserList("Enter the creditor", s.activeEvent, nil, "Or @username or share a contact"))
	}
	return s.deps.Sender.Send(ctx, ev.ChannelID, requestCreditorText)
}

func (s *PayOffDebts) onCreditorName(ctx context.Context, ev *chat.Event) error {
	user, err := s.deps.userFromMessage(ctx, ev, s.activeEvent, nil)
	if err != nil {
		return err
	}
	if user == nil {
		return validationf("%s\n%s", userNotFoundText, requestCreditorText)
	}
	s.creditor = user
	return s.sendBorrowerList(ctx, ev.ChannelID)
}

func (s *PayOffDebts) sendBorrowerList(ctx context.Context, channelID string) error {
	entries, err := s.deps.Ledger.GetBorrowers(ctx, s.creditor.Name)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return s.deps.Sender.Send(ctx, channelID, "No borrowers")
	}

	var b strings.Builder
	b.WriteString("Whose debts are we clearing?\n")
	for i, e := range entries {
		s.borrowers = append(s.borrowers, e.User)
		s.totals[e.User.ID] = e.Sum
		fmt.Fprintf(&b, "%d. %s (owes %s)\n", i+1, e.User.DisplayName(), e.Sum)
	}
	b.WriteString("Enter @username or pick a number from the list")

	s.ScheduleNext(s.onBorrowerSelected)
	return s.deps.Sender.Send(ctx, channelID, b.String())
}

func (s *PayOffDebts) onBorrowerSelected(ctx context.Context, ev *chat.Event) error {
	user := userFromCandidates(ev, s.borrowers)
	if user == nil {
		return validationf("Enter @username or pick a number from the list")
	}
	s.selected = user
	s.ScheduleNext(s.onWriteOffSum)
	return s.deps.Sender.Send(ctx, ev.ChannelID, "How much are we writing off?", chat.WriteOffAllText)
}

func (s *PayOffDebts) onWriteOffSum(ctx context.Context, ev *chat.Event) error {
	total := s.totals[s.selected.ID]
	errorText := fmt.Sprintf("Enter the amount to write off (at most %s) or press '%s'", total, chat.WriteOffAllText)

	if ev.Text == chat.WriteOffAllText {
		return s.writeOffAll(ctx, ev.ChannelID)
	}
	if strings.Contains(ev.Text, ",") {
		return validationf("%s", errorText)
	}
	sum, err := decimal.NewFromString(ev.Text)
	if err != nil {
		return validationf("%s", errorText)
	}
	if !sum.IsPositive() || sum.GreaterThan(total) {
		return validationf("%s", errorText)
	}
	sum = sum.Round(2)

	if sum.Equal(total) {
		return s.writeOffAll(ctx, ev.ChannelID)
	}
	if err := s.writeOffPart(ctx, ev.ChannelID, sum); err != nil {
		return err
	}

	// acting impersonally: the creditor hears about it too
	me, err := s.deps.currentUser(ctx, ev)
	if err != nil {
		return err
	}
	if me != nil && me.ID != s.creditor.ID {
		s.deps.notify(ctx, s.creditor, fmt.Sprintf("User %s wrote off a debt from %s (amount %s)",
			me.DisplayName(), s.selected.DisplayName(), sum))
	}
	return nil
}

func (s *PayOffDebts) writeOffAll(ctx context.Context, channelID string) error {
	if err := s.deps.Ledger.WriteOffDebts(ctx, s.selected.Name, s.creditor.Name, ""); err != nil {
		return err
	}
	if err := s.deps.Ledger.WriteOffDebts(ctx, s.creditor.Name, s.selected.Name, ""); err != nil {
		return err
	}
	if err := s.deps.Sender.Send(ctx, channelID, fmt.Sprintf("%s is free!", s.selected.DisplayName())); err != nil {
		return err
	}
	s.deps.notify(ctx, s.selected, fmt.Sprintf("All debts to %s written off :)", s.creditor.DisplayName()))
	return nil
}

func (s *PayOffDebts) writeOffPart(ctx context.Context, channelID string, sum decimal.Decimal) error {
	if err := s.deps.Ledger.SettleAmount(ctx, s.selected.Name, s.creditor.Name, sum); err != nil {
		return err
	}
	if err := s.deps.Sender.Send(ctx, channelID, "Done :)"); err != nil {
		return err
	}
	s.deps.notify(ctx, s.selected, fmt.Sprintf("Debt to %s written off (amount %s) :)", s.creditor.DisplayName(), sum))
	return nil
}
