package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

type fakeUsers struct {
	user  *ledger.User
	calls int
}

func (f *fakeUsers) GetUserByChatID(_ context.Context, chatID string) (*ledger.User, error) {
	f.calls++
	if f.user != nil && f.user.ChatID == chatID {
		return f.user, nil
	}
	return nil, nil
}

type fakeScenario struct {
	executions int
	doneAfter  int
}

func (s *fakeScenario) Execute(context.Context, *chat.Event) (bool, error) {
	s.executions++
	return s.executions >= s.doneAfter, nil
}

func newTestRegistry(users UserSource) *Registry {
	if users == nil {
		users = &fakeUsers{}
	}
	return New(users, time.Hour, zerolog.Nop())
}

func TestDispatchWithoutScenario(t *testing.T) {
	r := newTestRegistry(nil)
	handled, err := r.Dispatch(context.Background(), &chat.Event{ChannelID: "c1", UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestCompletedSecondaryContextIsRemoved(t *testing.T) {
	r := newTestRegistry(nil)
	ev := &chat.Event{ChannelID: "group", UserID: "u1"}
	key := KeyFor(ev)
	require.False(t, key.Primary)

	r.RunScenario(key, &fakeScenario{doneAfter: 2})

	handled, err := r.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, handled)

	handled, err = r.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, handled)

	r.mu.Lock()
	_, exists := r.entries[key]
	r.mu.Unlock()
	assert.False(t, exists, "secondary context should be gone after completion")
}

func TestCompletedPrimaryContextStaysIdle(t *testing.T) {
	r := newTestRegistry(nil)
	ev := &chat.Event{ChannelID: "dm1", UserID: "u1", Private: true}
	key := KeyFor(ev)

	r.RunScenario(key, &fakeScenario{doneAfter: 1})

	handled, err := r.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, handled)

	// idle but still registered, so the private channel stays resolvable
	channelID, ok := r.Lookup(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, "dm1", channelID)

	handled, err = r.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestResetScenarioAsymmetry(t *testing.T) {
	r := newTestRegistry(nil)
	primary := ChatKey{ChannelID: "dm1", UserID: "u1", Primary: true}
	secondary := ChatKey{ChannelID: "group", UserID: "u1"}
	r.RunScenario(primary, &fakeScenario{})
	r.RunScenario(secondary, &fakeScenario{})

	r.ResetScenario(primary)
	r.ResetScenario(secondary)

	_, ok := r.Lookup(context.Background(), "u1")
	assert.True(t, ok, "primary context should survive a reset")

	r.mu.Lock()
	_, exists := r.entries[secondary]
	r.mu.Unlock()
	assert.False(t, exists)
}

func TestRunScenarioReplacesInFlight(t *testing.T) {
	r := newTestRegistry(nil)
	ev := &chat.Event{ChannelID: "group", UserID: "u1"}
	key := KeyFor(ev)

	old := &fakeScenario{doneAfter: 10}
	r.RunScenario(key, old)
	_, err := r.Dispatch(context.Background(), ev)
	require.NoError(t, err)

	replacement := &fakeScenario{doneAfter: 10}
	r.RunScenario(key, replacement)
	_, err = r.Dispatch(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, 1, old.executions)
	assert.Equal(t, 1, replacement.executions)
}

func TestLookupFallsBackToStore(t *testing.T) {
	users := &fakeUsers{user: &ledger.User{ID: 1, Name: "alex", ChatID: "u1", PrivateChannelID: "dm1"}}
	r := newTestRegistry(users)

	channelID, ok := r.Lookup(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, "dm1", channelID)
	assert.Equal(t, 1, users.calls)

	// the store hit was registered, the second lookup skips the store
	channelID, ok = r.Lookup(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, "dm1", channelID)
	assert.Equal(t, 1, users.calls)

	_, ok = r.Lookup(context.Background(), "nobody")
	assert.False(t, ok)
}

func TestDispatchSerializesPerContext(t *testing.T) {
	r := newTestRegistry(nil)
	ev := &chat.Event{ChannelID: "group", UserID: "u1"}
	key := KeyFor(ev)

	var inFlight, overlaps atomic.Int32
	r.RunScenario(key, scenarioFunc(func(context.Context, *chat.Event) (bool, error) {
		if inFlight.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return false, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Dispatch(context.Background(), ev)
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps.Load(), "events in one context must not run concurrently")
}

type scenarioFunc func(ctx context.Context, ev *chat.Event) (bool, error)

func (f scenarioFunc) Execute(ctx context.Context, ev *chat.Event) (bool, error) {
	return f(ctx, ev)
}

func TestEvictStale(t *testing.T) {
	r := newTestRegistry(nil)
	idlePrimary := ChatKey{ChannelID: "dm1", UserID: "u1", Primary: true}
	busyPrimary := ChatKey{ChannelID: "dm2", UserID: "u2", Primary: true}
	secondary := ChatKey{ChannelID: "group", UserID: "u3"}

	r.ObservePrimary(idlePrimary)
	r.RunScenario(busyPrimary, &fakeScenario{doneAfter: 10})
	r.RunScenario(secondary, &fakeScenario{doneAfter: 10})

	r.evictStale(time.Now().Add(2 * time.Hour))

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Contains(t, r.entries, idlePrimary, "idle primary contexts are kept")
	require.Contains(t, r.entries, busyPrimary)
	assert.Nil(t, r.entries[busyPrimary].scenario, "stale primary scenario is abandoned")
	assert.NotContains(t, r.entries, secondary)
}
