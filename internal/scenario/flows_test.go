package scenario

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

type mapNotifier struct {
	channels map[string]string
}

func (n *mapNotifier) Lookup(_ context.Context, chatUserID string) (string, bool) {
	c, ok := n.channels[chatUserID]
	return c, ok
}

type flowFixture struct {
	svc    *ledger.Service
	sender *recordingSender
	deps   Deps
}

func newFlowFixture(t *testing.T, defaultEvent string) *flowFixture {
	t.Helper()
	f := &flowFixture{
		svc:    ledger.NewService(ledger.NewMemoryStore(), zerolog.Nop()),
		sender: &recordingSender{},
	}
	f.deps = Deps{
		Ledger:       f.svc,
		Sender:       f.sender,
		Notifier:     &mapNotifier{channels: map[string]string{"1": "dm1", "2": "dm2", "3": "dm3"}},
		DefaultEvent: defaultEvent,
		Log:          zerolog.Nop(),
	}
	for _, u := range []*ledger.User{
		{Name: "alex", ChatID: "1", Username: "alex"},
		{Name: "kim", ChatID: "2", Username: "kim"},
		{Name: "sam", ChatID: "3", Username: "sam"},
	} {
		if _, err := f.svc.AddUser(context.Background(), u); err != nil {
			t.Fatalf("failed to add user %s: %v", u.Name, err)
		}
	}
	return f
}

// drive feeds one message from the given chat user into the scenario.
func drive(t *testing.T, sc interface {
	Execute(ctx context.Context, ev *chat.Event) (bool, error)
}, userID, text string) bool {
	t.Helper()
	done, err := sc.Execute(context.Background(), &chat.Event{
		ChannelID: "dm" + userID, UserID: userID, Private: true, Text: text,
	})
	if err != nil {
		t.Fatalf("Execute(%q): %v", text, err)
	}
	return done
}

func (f *flowFixture) lastMessage() string {
	if len(f.sender.sent) == 0 {
		return ""
	}
	return f.sender.sent[len(f.sender.sent)-1]
}

func TestAddDebtFlow(t *testing.T) {
	f := newFlowFixture(t, "")
	ctx := context.Background()
	sc := NewAddDebt(f.deps)

	drive(t, sc, "1", "/add_debt")
	drive(t, sc, "1", "nobody-here") // bad input, step retries
	drive(t, sc, "1", "@kim")
	drive(t, sc, "1", "250")
	drive(t, sc, "1", chat.NoText)
	done := drive(t, sc, "1", "weekend trip")
	if !done {
		t.Fatal("flow should be completed after the description")
	}

	sum, err := f.svc.GetNetBalance(ctx, "kim", "alex")
	if err != nil {
		t.Fatalf("GetNetBalance: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("250")) {
		t.Errorf("expected kim to owe 250, got %s", sum)
	}
	debts, err := f.svc.GetActiveDebts(ctx, "kim", "alex", "")
	if err != nil {
		t.Fatalf("GetActiveDebts: %v", err)
	}
	if len(debts) != 1 || debts[0].Description != "weekend trip" {
		t.Errorf("unexpected debts: %+v", debts)
	}

	joined := strings.Join(f.sender.sent, "\n")
	if !strings.Contains(joined, userNotFoundText) {
		t.Error("expected a retry prompt for the bad borrower input")
	}
	if !strings.Contains(joined, "Done :)") {
		t.Error("expected a completion message")
	}
	if !strings.Contains(joined, "New debt to @alex") {
		t.Error("expected a borrower notification")
	}
}

func TestAddDebtFlowMultipleBorrowers(t *testing.T) {
	f := newFlowFixture(t, "")
	ctx := context.Background()
	sc := NewAddDebt(f.deps)

	drive(t, sc, "1", "/add_debt")
	drive(t, sc, "1", "@kim")
	drive(t, sc, "1", "100")
	drive(t, sc, "1", chat.YesText)
	drive(t, sc, "1", "@sam")
	drive(t, sc, "1", "70+30") // arithmetic input
	drive(t, sc, "1", chat.NoText)
	if !drive(t, sc, "1", "concert") {
		t.Fatal("flow should be completed")
	}

	for _, name := range []string{"kim", "sam"} {
		sum, err := f.svc.GetNetBalance(ctx, name, "alex")
		if err != nil {
			t.Fatalf("GetNetBalance(%s): %v", name, err)
		}
		if !sum.Equal(decimal.RequireFromString("100")) {
			t.Errorf("expected %s to owe 100, got %s", name, sum)
		}
	}
}

func TestPayOffDebtsFlowFull(t *testing.T) {
	f := newFlowFixture(t, "")
	ctx := context.Background()
	mustAddDebt(t, f.svc, "kim", "alex", "100", "lunch")

	sc := NewPayOffDebts(f.deps)
	drive(t, sc, "1", "/pay_off")
	drive(t, sc, "1", "1")
	if !drive(t, sc, "1", chat.WriteOffAllText) {
		t.Fatal("flow should be completed")
	}

	sum, err := f.svc.GetNetBalance(ctx, "kim", "alex")
	if err != nil {
		t.Fatalf("GetNetBalance: %v", err)
	}
	if !sum.IsZero() {
		t.Errorf("expected a clean slate, got %s", sum)
	}
	if !strings.Contains(strings.Join(f.sender.sent, "\n"), "@kim is free!") {
		t.Error("expected the write-off confirmation")
	}
}

func TestPayOffDebtsFlowPartial(t *testing.T) {
	f := newFlowFixture(t, "")
	ctx := context.Background()
	mustAddDebt(t, f.svc, "kim", "alex", "30", "coffee")
	mustAddDebt(t, f.svc, "kim", "alex", "70", "tickets")
	mustAddDebt(t, f.svc, "kim", "alex", "120", "rent share")

	sc := NewPayOffDebts(f.deps)
	drive(t, sc, "1", "/pay_off")
	drive(t, sc, "1", "@kim")
	drive(t, sc, "1", "500") // more than owed, retried
	if !drive(t, sc, "1", "90") {
		t.Fatal("flow should be completed")
	}

	// nearest match: the 70 debt is cleared, 20 comes off the 30 debt
	debts, err := f.svc.GetActiveDebts(ctx, "kim", "alex", "")
	if err != nil {
		t.Fatalf("GetActiveDebts: %v", err)
	}
	if len(debts) != 2 {
		t.Fatalf("expected 2 active debts, got %d", len(debts))
	}
	sum, err := f.svc.GetNetBalance(ctx, "kim", "alex")
	if err != nil {
		t.Fatalf("GetNetBalance: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("130")) {
		t.Errorf("expected 130 outstanding, got %s", sum)
	}
}

func TestShareDebtFlowWholeEvent(t *testing.T) {
	f := newFlowFixture(t, "trip")
	ctx := context.Background()
	if _, err := f.svc.AddEvent(ctx, "trip", []string{"alex", "kim", "sam"}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	sc := NewShareDebt(f.deps)
	drive(t, sc, "1", "/share_debt")
	drive(t, sc, "1", chat.ShareAllText)
	drive(t, sc, "1", "300")
	if !drive(t, sc, "1", "taxi") {
		t.Fatal("flow should be completed")
	}

	for _, name := range []string{"kim", "sam"} {
		sum, err := f.svc.GetNetBalance(ctx, name, "alex")
		if err != nil {
			t.Fatalf("GetNetBalance(%s): %v", name, err)
		}
		if !sum.Equal(decimal.RequireFromString("100")) {
			t.Errorf("expected %s to owe 100, got %s", name, sum)
		}
	}
}

func TestShareDebtFlowSubset(t *testing.T) {
	f := newFlowFixture(t, "trip")
	ctx := context.Background()
	if _, err := f.svc.AddEvent(ctx, "trip", []string{"alex", "kim", "sam"}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	sc := NewShareDebt(f.deps)
	drive(t, sc, "1", "/share_debt")
	drive(t, sc, "1", "1") // kim only: alex is skipped in the listing
	drive(t, sc, "1", "90")
	if !drive(t, sc, "1", "pizza") {
		t.Fatal("flow should be completed")
	}

	// payer covers their own share: 90 split two ways
	sum, err := f.svc.GetNetBalance(ctx, "kim", "alex")
	if err != nil {
		t.Fatalf("GetNetBalance: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("45")) {
		t.Errorf("expected kim to owe 45, got %s", sum)
	}
	samSum, err := f.svc.GetNetBalance(ctx, "sam", "alex")
	if err != nil {
		t.Fatalf("GetNetBalance: %v", err)
	}
	if !samSum.IsZero() {
		t.Errorf("sam was not selected, got %s", samSum)
	}
}

func TestGetDebtsAndMyDebtsFlows(t *testing.T) {
	f := newFlowFixture(t, "")
	mustAddDebt(t, f.svc, "kim", "alex", "150", "dinner")

	if !drive(t, NewGetDebts(f.deps), "1", "/get_debts") {
		t.Fatal("listing should complete in one step")
	}
	if !strings.Contains(f.lastMessage(), "@kim owes 150") {
		t.Errorf("unexpected borrower listing: %q", f.lastMessage())
	}

	if !drive(t, NewGetMyDebts(f.deps), "2", "/my_debts") {
		t.Fatal("listing should complete in one step")
	}
	if !strings.Contains(f.lastMessage(), "@alex, amount 150") {
		t.Errorf("unexpected creditor listing: %q", f.lastMessage())
	}

	if !drive(t, NewGetMyDebts(f.deps), "1", "/my_debts") {
		t.Fatal("listing should complete in one step")
	}
	if f.lastMessage() != "No debts :)" {
		t.Errorf("expected an empty listing, got %q", f.lastMessage())
	}
}

func TestDetailedDebtsFlow(t *testing.T) {
	f := newFlowFixture(t, "")
	mustAddDebt(t, f.svc, "kim", "alex", "60", "groceries")
	mustAddDebt(t, f.svc, "alex", "sam", "40", "parking")

	sc := NewDetailedDebts(f.deps)
	drive(t, sc, "1", "/detailed_debts")
	if !drive(t, sc, "1", "@kim") {
		t.Fatal("flow should be completed")
	}
	if !strings.Contains(f.lastMessage(), "groceries") {
		t.Errorf("expected the debt description, got %q", f.lastMessage())
	}

	sc = NewDetailedDebts(f.deps)
	drive(t, sc, "1", "/detailed_debts")
	if !drive(t, sc, "1", "@sam") {
		t.Fatal("flow should be completed")
	}
	if !strings.Contains(f.lastMessage(), "You owe @sam") || !strings.Contains(f.lastMessage(), "parking") {
		t.Errorf("expected the reverse-direction debt, got %q", f.lastMessage())
	}
}

func TestImpersonalModeFlow(t *testing.T) {
	f := newFlowFixture(t, "")
	ctx := context.Background()

	sc := NewImpersonalMode(f.deps)
	drive(t, sc, "1", "/impersonal")
	if !drive(t, sc, "1", chat.YesText) {
		t.Fatal("flow should be completed")
	}
	user, err := f.svc.GetUser(ctx, "alex")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !user.Impersonal {
		t.Error("expected impersonal mode on")
	}

	// impersonal add: alex records a debt owed to kim
	add := NewAddDebt(f.deps)
	drive(t, add, "1", "/add_debt")
	drive(t, add, "1", "@kim")
	drive(t, add, "1", "@sam")
	drive(t, add, "1", "80")
	drive(t, add, "1", chat.NoText)
	if !drive(t, add, "1", "on behalf of kim") {
		t.Fatal("flow should be completed")
	}
	sum, err := f.svc.GetNetBalance(ctx, "sam", "kim")
	if err != nil {
		t.Fatalf("GetNetBalance: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("80")) {
		t.Errorf("expected sam to owe kim 80, got %s", sum)
	}
}

func TestUnregisteredUserIsTurnedAway(t *testing.T) {
	f := newFlowFixture(t, "")

	if !drive(t, NewAddDebt(f.deps), "99", "/add_debt") {
		t.Fatal("flow should finish immediately for unknown users")
	}
	if f.lastMessage() != notRegisteredText {
		t.Errorf("expected the registration hint, got %q", f.lastMessage())
	}
}

func mustAddDebt(t *testing.T, svc *ledger.Service, debtor, creditor, sum, description string) {
	t.Helper()
	if _, err := svc.AddDebt(context.Background(), debtor, creditor, decimal.RequireFromString(sum), description, ""); err != nil {
		t.Fatalf("AddDebt(%s->%s %s): %v", debtor, creditor, sum, err)
	}
}
