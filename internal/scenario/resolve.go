package scenario

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

const (
	requestCreditorText    = "Enter the creditor (@username or share a contact)"
	requestBorrowerText    = "Enter the borrower (@username or share a contact)"
	requestBorrowersText   = "Enter borrower numbers (comma or space separated)"
	requestDescriptionText = "Enter a debt description"
	requestAmountText      = "Enter the debt amount (a number or a simple expression)"
	notRegisteredText      = "I don't see you in the database, /start should help :)"
	userNotFoundText       = "No such user, ask them to register first (or check the input)"
)

var indexSequenceRe = regexp.MustCompile(`^(\d+[.,\s]*)+$`)
var numberRe = regexp.MustCompile(`\d+`)

// currentUser resolves the author of an inbound event, nil when unregistered.
func (d *Deps) currentUser(ctx context.Context, ev *chat.Event) (*ledger.User, error) {
	return d.Ledger.GetUserByChatID(ctx, ev.UserID)
}

// activeEvent loads the configured default event, nil when none is set.
func (d *Deps) activeEvent(ctx context.Context) (*ledger.Event, error) {
	if d.DefaultEvent == "" {
		return nil, nil
	}
	return d.Ledger.GetEvent(ctx, d.DefaultEvent)
}

// eventMembers returns the event members without skip, in listing order.
func eventMembers(event *ledger.Event, skip *ledger.User) []*ledger.User {
	out := make([]*ledger.User, 0, len(event.Members))
	for _, m := range event.Members {
		if skip != nil && m.ID == skip.ID {
			continue
		}
		out = append(out, m)
	}
	return out
}

// buildUserList renders a numbered member list the user can answer by index.
func buildUserList(prefix string, event *ledger.Event, skip *ledger.User, postfix string) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix + "\n")
	}
	for i, m := range eventMembers(event, skip) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.DisplayName())
	}
	if postfix != "" {
		b.WriteString(postfix)
	}
	return b.String()
}

// userByIndex resolves a 1-based index against the event member list.
func (d *Deps) userByIndex(text string, event *ledger.Event, skip *ledger.User) *ledger.User {
	idx, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		d.Log.Warn().Str("text", text).Msg("cannot extract index")
		return nil
	}
	members := eventMembers(event, skip)
	if idx < 1 || idx > len(members) {
		d.Log.Warn().Int("index", idx).Int("members", len(members)).Msg("index out of range")
		return nil
	}
	return members[idx-1]
}

// userFromMessage resolves a user reference from a message: a shared contact,
// an @username, or an index into the event member list. Returns nil when the
// reference cannot be resolved (or the user falls outside the event).
func (d *Deps) userFromMessage(ctx context.Context, ev *chat.Event, event *ledger.Event, skip *ledger.User) (*ledger.User, error) {
	if ev.IsContact() {
		u, err := d.Ledger.GetUserByChatID(ctx, ev.ContactID)
		if err != nil {
			return nil, err
		}
		if u != nil && event != nil && !event.HasMember(u.ID) {
			return nil, nil
		}
		return u, nil
	}
	if strings.HasPrefix(ev.Text, "@") {
		u, err := d.Ledger.GetUserByUsername(ctx, strings.TrimPrefix(ev.Text, "@"))
		if err != nil {
			return nil, err
		}
		if u != nil && event != nil && !event.HasMember(u.ID) {
			return nil, nil
		}
		return u, nil
	}
	if event == nil {
		d.Log.Warn().Msg("no active event, cannot resolve user by index")
		return nil, nil
	}
	return d.userByIndex(ev.Text, event, skip), nil
}

// usersFromMessage resolves a multi-user selection: either a single contact
// or an index sequence like "1, 3 4" against the event member list.
func (d *Deps) usersFromMessage(ctx context.Context, ev *chat.Event, event *ledger.Event, skip *ledger.User) ([]*ledger.User, error) {
	if ev.IsContact() {
		u, err := d.userFromMessage(ctx, ev, event, skip)
		if err != nil || u == nil {
			return nil, err
		}
		return []*ledger.User{u}, nil
	}
	if event == nil {
		d.Log.Warn().Msg("no active event, multi-user selection unsupported")
		return nil, nil
	}
	if !indexSequenceRe.MatchString(ev.Text) {
		d.Log.Warn().Str("text", ev.Text).Msg("cannot read text as an index sequence")
		return nil, nil
	}
	var out []*ledger.User
	for _, num := range numberRe.FindAllString(ev.Text, -1) {
		u := d.userByIndex(num, event, skip)
		if u == nil {
			return nil, nil
		}
		out = append(out, u)
	}
	return out, nil
}

// userFromCandidates matches a message against an already-built candidate
// list: @username, shared contact, or 1-based index into the list.
func userFromCandidates(ev *chat.Event, candidates []*ledger.User) *ledger.User {
	if ev.IsContact() {
		for _, c := range candidates {
			if c.ChatID == ev.ContactID {
				return c
			}
		}
		return nil
	}
	if strings.HasPrefix(ev.Text, "@") {
		name := strings.TrimPrefix(ev.Text, "@")
		for _, c := range candidates {
			if c.Username == name {
				return c
			}
		}
		return nil
	}
	if idx, err := strconv.Atoi(strings.TrimSpace(ev.Text)); err == nil {
		if idx >= 1 && idx <= len(candidates) {
			return candidates[idx-1]
		}
	}
	return nil
}
