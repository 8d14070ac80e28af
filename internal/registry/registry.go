// Package registry tracks which scenario is in flight in each chat context
// and routes inbound events to it. A context is a (channel, user) pair;
// private channels are primary contexts and survive scenario completion so
// they stay usable for proactive notifications.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avoevodin/debtbot/internal/chat"
	"github.com/avoevodin/debtbot/internal/ledger"
)

// Scenario is a resumable multi-step interaction. Execute consumes one
// inbound event and reports whether the whole interaction has completed.
type Scenario interface {
	Execute(ctx context.Context, ev *chat.Event) (bool, error)
}

// ChatKey identifies one conversation context. In a group channel each user
// gets their own context; a private channel belongs to a single user.
type ChatKey struct {
	ChannelID string
	UserID    string
	Primary   bool
}

// KeyFor derives the context key for an inbound event.
func KeyFor(ev *chat.Event) ChatKey {
	return ChatKey{ChannelID: ev.ChannelID, UserID: ev.UserID, Primary: ev.Private}
}

// UserSource resolves users for the private-channel fallback in Lookup.
type UserSource interface {
	GetUserByChatID(ctx context.Context, chatID string) (*ledger.User, error)
}

type entry struct {
	mu       sync.Mutex
	scenario Scenario // nil when the context is idle
	lastSeen time.Time
}

// Registry owns the context table and the idle-eviction janitor.
type Registry struct {
	mu      sync.Mutex
	entries map[ChatKey]*entry

	users UserSource
	ttl   time.Duration
	log   zerolog.Logger

	ticker   *time.Ticker
	stopChan chan struct{}
}

func New(users UserSource, ttl time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		entries:  make(map[ChatKey]*entry),
		users:    users,
		ttl:      ttl,
		log:      log.With().Str("component", "registry").Logger(),
		stopChan: make(chan struct{}),
	}
}

func (r *Registry) touch(key ChatKey) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e
}

// RunScenario installs a scenario in the context, replacing any in-flight
// one. The replacement is logged: an abandoned flow is worth knowing about.
func (r *Registry) RunScenario(key ChatKey, sc Scenario) {
	e := r.touch(key)
	e.mu.Lock()
	if e.scenario != nil {
		r.log.Info().Str("channel", key.ChannelID).Str("user", key.UserID).
			Msg("replacing in-flight scenario")
	}
	e.scenario = sc
	e.mu.Unlock()
}

// ResetScenario clears the context. Primary contexts stay registered as idle
// so Lookup keeps resolving the user's private channel; secondary contexts
// are removed entirely.
func (r *Registry) ResetScenario(key ChatKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key.Primary {
		if e, ok := r.entries[key]; ok {
			e.scenario = nil
		}
		return
	}
	delete(r.entries, key)
}

// ObservePrimary registers an idle primary context if none exists. Called on
// every private message so the user becomes reachable for notifications even
// before they start a scenario.
func (r *Registry) ObservePrimary(key ChatKey) {
	if !key.Primary {
		return
	}
	r.touch(key)
}

// Lookup resolves a user's private channel: first the registered primary
// contexts, then the store (users who registered before the last restart).
// A store hit is registered as an idle primary context for next time.
func (r *Registry) Lookup(ctx context.Context, chatUserID string) (string, bool) {
	r.mu.Lock()
	for key := range r.entries {
		if key.Primary && key.UserID == chatUserID {
			r.mu.Unlock()
			return key.ChannelID, true
		}
	}
	r.mu.Unlock()

	user, err := r.users.GetUserByChatID(ctx, chatUserID)
	if err != nil {
		r.log.Error().Err(err).Str("user", chatUserID).Msg("lookup failed")
		return "", false
	}
	if user == nil || user.PrivateChannelID == "" {
		return "", false
	}
	r.ObservePrimary(ChatKey{ChannelID: user.PrivateChannelID, UserID: chatUserID, Primary: true})
	return user.PrivateChannelID, true
}

// Dispatch feeds the event to the context's in-flight scenario, if any.
// Execution holds the context's lock, so events within one context are
// handled strictly in order while other contexts proceed concurrently.
func (r *Registry) Dispatch(ctx context.Context, ev *chat.Event) (bool, error) {
	key := KeyFor(ev)
	e := r.touch(key)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scenario == nil {
		return false, nil
	}
	done, err := e.scenario.Execute(ctx, ev)
	if err != nil {
		return true, err
	}
	if done {
		e.scenario = nil
		if !key.Primary {
			r.ResetScenario(key)
		}
	}
	return true, nil
}

// Start launches the eviction janitor.
func (r *Registry) Start(interval time.Duration) {
	r.ticker = time.NewTicker(interval)
	go r.loop()
}

func (r *Registry) Stop() {
	close(r.stopChan)
	if r.ticker != nil {
		r.ticker.Stop()
	}
}

func (r *Registry) loop() {
	for {
		select {
		case <-r.ticker.C:
			r.evictStale(time.Now())
		case <-r.stopChan:
			return
		}
	}
}

// evictStale drops secondary contexts idle past the TTL and abandons stale
// in-flight scenarios in primary contexts. Idle primary contexts are kept:
// they cost one map entry and keep the user reachable.
func (r *Registry) evictStale(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		if now.Sub(e.lastSeen) < r.ttl {
			continue
		}
		if !e.mu.TryLock() {
			continue // in use, next sweep will catch it
		}
		if key.Primary {
			if e.scenario != nil {
				r.log.Info().Str("user", key.UserID).Msg("abandoning stale scenario")
				e.scenario = nil
			}
			e.mu.Unlock()
			continue
		}
		e.mu.Unlock()
		r.log.Debug().Str("channel", key.ChannelID).Str("user", key.UserID).Msg("evicting stale context")
		delete(r.entries, key)
	}
}
