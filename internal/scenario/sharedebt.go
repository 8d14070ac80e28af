package scenario

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

// ShareDebt splits one payment across several borrowers: either a chosen
// subset of the active event (the payer covers their own share) or the whole
// event via the ledger's ShareSum.
type ShareDebt struct {
	*Chain
	deps Deps

	activeEvent *ledger.Event
	creditor    *ledger.User
	borrowers   []*ledger.User // nil means share with the whole event
	sum         decimal.Decimal
	description string
}

func NewShareDebt(deps Deps) *ShareDebt {
	s := &ShareDebt{deps: deps, Chain: NewChain(deps.Sender)}
	s.ScheduleNext(s.onStart)
	return s
}

// sumPerUser is the rounded share each borrower owes. With an explicit
// borrower subset the payer is one more head splitting the bill.
func (s *ShareDebt) sumPerUser() decimal.Decimal {
	heads := int64(len(s.activeEvent.Members))
	if s.borrowers != nil {
		heads = int64(len(s.borrowers) + 1)
	}
	return s.sum.Div(decimal.NewFromInt(heads)).Round(2)
}

func (s *ShareDebt) onStart(ctx context.Context, ev *chat.Event) error {
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
		return s.requestBorrowers(ctx, ev.ChannelID, true)
	}
	s.creditor = me
	s.ScheduleNext(s.onBorrowerNames)
	return s.requestBorrowers(ctx, ev.ChannelID, false)
}

func (s *ShareDebt) requestBorrowers(ctx context.Context, channelID string, creditor bool) error {
	var quick []string
	if !creditor {
		quick = []string{chat.ShareAllText}
	}
	if s.activeEvent != nil {
		prefix, postfix := requestBorrowersText, ""
		if creditor {
			prefix, postfix = "Pick the creditor from the list", "Or enter @username or share a contact"
		}
		return s.deps.Sender.Send(ctx, channelID,
			buildUserList(prefix, s.activeEvent, s.creditor, postfix), quick...)
	}
	text := requestBorrowersText
	if creditor {
		text = requestCreditorText
	}
	return s.deps.Sender.Send(ctx, channelID, text, quick...)
}

func (s *ShareDebt) onCreditorName(ctx context.Context, ev *chat.Event) error {
	user, err := s.deps.userFromMessage(ctx, ev, s.activeEvent, nil)
	if err != nil {
		return err
	}
	if user == nil {
		return validationf("%s\n%s", userNotFoundText, requestCreditorText)
	}
	s.creditor = user
	s.ScheduleNext(s.onBorrowerNames)
	return s.requestBorrowers(ctx, ev.ChannelID, false)
}

func (s *ShareDebt) onBorrowerNames(ctx context.Context, ev *chat.Event) error {
	if ev.Text == chat.ShareAllText {
		if s.activeEvent == nil {
			return validationf("No active event, cannot share with everyone\n%s", requestBorrowersText)
		}
		s.borrowers = nil
	} else {
		borrowers, err := s.deps.usersFromMessage(ctx, ev, s.activeEvent, s.creditor)
		if err != nil {
			return err
		}
		if borrowers == nil {
			return validationf("%s", requestBorrowersText)
		}
		s.borrowers = borrowers
	}
	s.ScheduleNext(s.onDebtSum)
	return s.deps.Sender.Send(ctx, ev.ChannelID, "Enter the debt amount")
}

func (s *ShareDebt) onDebtSum(ctx context.Context, ev *chat.Event) error {
	sum, err := ParseAmount(ev.Text, requestAmountText)
	if err != nil {
		return err
	}
	s.sum = sum
	s.ScheduleNext(s.onDescription)
	return s.deps.Sender.Send(ctx, ev.ChannelID, requestDescriptionText)
}

func (s *ShareDebt) onDescription(ctx context.Context, ev *chat.Event) error {
	s.description = ev.Text

	if err := s.addDebts(ctx); err != nil {
		s.deps.Log.Error().Err(err).Msg("failed to store shared debts")
		return s.deps.Sender.Send(ctx, ev.ChannelID,
			"Something went wrong :(\nYou may not be a member of the current event")
	}
	if err := s.deps.Sender.Send(ctx, ev.ChannelID, "Done :)"); err != nil {
		return err
	}

	me, err := s.deps.currentUser(ctx, ev)
	if err != nil {
		return err
	}
	notifyCreditor := me != nil && me.ID != s.creditor.ID
	creditorNote := fmt.Sprintf("User %s split a debt of %s between:\n", me.DisplayName(), s.sum)

	for _, borrower := range s.notificationTargets() {
		s.notifyBorrower(ctx, borrower)
		if notifyCreditor {
			creditorNote += borrower.DisplayName() + "\n"
		}
	}
	if notifyCreditor {
		s.deps.notify(ctx, s.creditor, creditorNote)
	}
	return nil
}

func (s *ShareDebt) addDebts(ctx context.Context) error {
	if s.borrowers == nil {
		return s.deps.Ledger.ShareSum(ctx, s.sum, s.creditor.Name, s.activeEvent.Name, s.description)
	}
	eventName := ""
	if s.activeEvent != nil {
		eventName = s.activeEvent.Name
	}
	share := s.sumPerUser()
	for _, borrower := range s.borrowers {
		if _, err := s.deps.Ledger.AddDebt(ctx, borrower.Name, s.creditor.Name, share, s.description, eventName); err != nil {
			return err
		}
	}
	return nil
}

func (s *ShareDebt) notificationTargets() []*ledger.User {
	if s.borrowers != nil {
		return s.borrowers
	}
	return eventMembers(s.activeEvent, s.creditor)
}

func (s *ShareDebt) notifyBorrower(ctx context.Context, borrower *ledger.User) {
	total, err := s.deps.Ledger.GetNetBalance(ctx, borrower.Name, s.creditor.Name)
	if err != nil {
		s.deps.Log.Error().Err(err).Str("borrower", borrower.Name).Msg("failed to load net balance")
		return
	}
	note := fmt.Sprintf("New debt to %s, amount %s: %s\n", s.creditor.DisplayName(), s.sumPerUser(), s.description)
	if total.IsPositive() {
		note += fmt.Sprintf("Total owed: %s", total)
	} else {
		note += "The balance was in your favour, nothing owed :)"
	}
	s.deps.notify(ctx, borrower, note)
}
