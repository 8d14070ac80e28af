package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

// AddDebt is the multi-turn flow for recording one or more debts to a single
// creditor: borrower, amount, optionally more borrowers, then a shared
// description.
type AddDebt struct {
	*Chain
	deps Deps

	activeEvent *ledger.Event
	creditor    *ledger.User
	borrowers   []*borrowerEntry
	description string
}

type borrowerEntry struct {
	user *ledger.User
	sum  decimal.Decimal
}

func NewAddDebt(deps Deps) *AddDebt {
	s := &AddDebt{deps: deps, Chain: NewChain(deps.Sender)}
	s.ScheduleNext(s.onStart)
	return s
}

func (s *AddDebt) onStart(ctx context.Context, ev *chat.Event) error {
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
	if me.Impersonal {
		if err := s.deps.Sender.Send(ctx, ev.ChannelID, "impersonal mode"); err != nil {
			return err
		}
		s.ScheduleNext(s.onCreditorName)
		return s.requestBorrower(ctx, ev.ChannelID, true)
	}
	s.creditor = me
	s.ScheduleNext(s.onBorrowerName)
	return s.requestBorrower(ctx, ev.ChannelID, false)
}

func (s *AddDebt) requestBorrower(ctx context.Context, channelID string, creditor bool) error {
	if s.activeEvent != nil {
		prefix := "Pick the borrower from the list"
		if creditor {
			prefix = "Pick the creditor from the list"
		}
		return s.deps.Sender.Send(ctx, channelID,
			buildUserList(prefix, s.activeEvent, s.creditor, "Or enter @username or share a contact"))
	}
	text := requestBorrowerText
	if creditor {
		text = requestCreditorText
	}
	return s.deps.Sender.Send(ctx, channelID, text)
}

func (s *AddDebt) onCreditorName(ctx context.Context, ev *chat.Event) error {
	user, err := s.deps.userFromMessage(ctx, ev, s.activeEvent, nil)
	if err != nil {
		return err
	}
	if user == nil {
		return validationf("%s\n%s", userNotFoundText, requestCreditorText)
	}
	s.creditor = user
	s.ScheduleNext(s.onBorrowerName)
	return s.requestBorrower(ctx, ev.ChannelID, false)
}

func (s *AddDebt) onBorrowerName(ctx context.Context, ev *chat.Event) error {
	user, err := s.deps.userFromMessage(ctx, ev, s.activeEvent, s.creditor)
	if err != nil {
		return err
	}
	if user == nil {
		return validationf("%s\n%s", userNotFoundText, requestBorrowerText)
	}
	s.borrowers = append(s.borrowers, &borrowerEntry{user: user})
	s.ScheduleNext(s.onDebtSum)
	return s.deps.Sender.Send(ctx, ev.ChannelID, "Enter the debt amount")
}

func (s *AddDebt) onDebtSum(ctx context.Context, ev *chat.Event) error {
	sum, err := ParseAmount(ev.Text, requestAmountText)
	if err != nil {
		return err
	}
	s.borrowers[len(s.borrowers)-1].sum = sum
	s.ScheduleNext(s.onMoreBorrowers)
	return s.deps.Sender.Send(ctx, ev.ChannelID, "Add another borrower?", chat.YesText, chat.NoText)
}

func (s *AddDebt) onMoreBorrowers(ctx context.Context, ev *chat.Event) error {
	switch ev.Text {
	case chat.YesText:
		s.ScheduleNext(s.onBorrowerName)
		return s.requestBorrower(ctx, ev.ChannelID, false)
	case chat.NoText:
		s.ScheduleNext(s.onDescription)
		return s.deps.Sender.Send(ctx, ev.ChannelID, requestDescriptionText)
	}
	return validationf("%s/%s?", chat.YesText, chat.NoText)
}

func (s *AddDebt) onDescription(ctx context.Context, ev *chat.Event) error {
	s.description = ev.Text

	eventName := ""
	if s.activeEvent != nil {
		eventName = s.activeEvent.Name
	}
	// Debts already stored are not rolled back if a later one fails; the
	// failure is reported generically and logged with full detail.
	for _, b := range s.borrowers {
		if _, err := s.deps.Ledger.AddDebt(ctx, b.user.Name, s.creditor.Name, b.sum, s.description, eventName); err != nil {
			s.deps.Log.Error().Err(err).Str("borrower", b.user.Name).Msg("failed to store debt")
			return s.deps.Sender.Send(ctx, ev.ChannelID,
				"Something went wrong :(\nYou may not be a member of the current event")
		}
	}
	if err := s.deps.Sender.Send(ctx, ev.ChannelID, "Done :)"); err != nil {
		return err
	}

	me, err := s.deps.currentUser(ctx, ev)
	if err != nil {
		return err
	}

	var creditorNote strings.Builder
	notifyCreditor := me != nil && me.ID != s.creditor.ID
	if notifyCreditor {
		fmt.Fprintf(&creditorNote, "User %s added borrowers against you:\n", me.DisplayName())
	}
	for _, b := range s.borrowers {
		s.notifyBorrower(ctx, b)
		if notifyCreditor {
			fmt.Fprintf(&creditorNote, "Debt from %s, amount %s\n", b.user.DisplayName(), b.sum)
		}
	}
	if notifyCreditor {
		s.deps.notify(ctx, s.creditor, creditorNote.String())
	}
	return nil
}

func (s *AddDebt) notifyBorrower(ctx context.Context, b *borrowerEntry) {
	total, err := s.deps.Ledger.GetNetBalance(ctx, b.user.Name, s.creditor.Name)
	if err != nil {
		s.deps.Log.Error().Err(err).Str("borrower", b.user.Name).Msg("failed to load net balance")
		return
	}
	note := fmt.Sprintf("New debt to %s, amount %s: %s\n", s.creditor.DisplayName(), b.sum, s.description)
	if total.IsPositive() {
		note += fmt.Sprintf("Total owed: %s", total)
	} else {
		note += "The balance was in your favour, nothing owed :)"
	}
	s.deps.notify(ctx, b.user, note)
}
