package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store backed by maps. It backs the test suite
// and small single-node deployments.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[int64]*User
	events   map[int64]*Event
	debts    map[int64]*Debt
	balances map[int64]*NetBalance
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*User),
		events:   make(map[int64]*Event),
		debts:    make(map[int64]*Debt),
		balances: make(map[int64]*NetBalance),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	cp.ID = s.id()
	s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) UserByID(ctx context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) findUser(match func(*User) bool) *User {
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (s *MemoryStore) UserByName(ctx context.Context, name string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUser(func(u *User) bool { return u.Name == name }), nil
}

func (s *MemoryStore) UserByChatID(ctx context.Context, chatID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chatID == "" {
		return nil, nil
	}
	return s.findUser(func(u *User) bool { return u.ChatID == chatID }), nil
}

func (s *MemoryStore) UserByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if username == "" {
		return nil, nil
	}
	return s.findUser(func(u *User) bool { return u.Username == username }), nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return consistencyf("user %d not found", u.ID)
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateEvent(ctx context.Context, name string, memberIDs []int64) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := &Event{ID: s.id(), Name: name}
	for _, id := range memberIDs {
		u, ok := s.users[id]
		if !ok {
			return nil, consistencyf("user %d not found", id)
		}
		cp := *u
		ev.Members = append(ev.Members, &cp)
	}
	s.events[ev.ID] = ev
	return s.copyEvent(ev), nil
}

func (s *MemoryStore) copyEvent(ev *Event) *Event {
	cp := &Event{ID: ev.ID, Name: ev.Name}
	for _, m := range ev.Members {
		mc := *m
		cp.Members = append(cp.Members, &mc)
	}
	return cp
}

func (s *MemoryStore) EventByName(ctx context.Context, name string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Name == name {
			return s.copyEvent(ev), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AddEventMember(ctx context.Context, eventID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return consistencyf("event %d not found", eventID)
	}
	u, ok := s.users[userID]
	if !ok {
		return consistencyf("user %d not found", userID)
	}
	cp := *u
	ev.Members = append(ev.Members, &cp)
	return nil
}

func (s *MemoryStore) CreateDebt(ctx context.Context, d *Debt) (*Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	cp.ID = s.id()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.debts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) DebtByID(ctx context.Context, id int64) (*Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.debts[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) UpdateDebt(ctx context.Context, d *Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debts[d.ID]; !ok {
		return consistencyf("debt %d not found", d.ID)
	}
	cp := *d
	s.debts[d.ID] = &cp
	return nil
}

func (s *MemoryStore) ActiveDebts(ctx context.Context, debtorID, creditorID int64, eventID *int64) ([]*Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Debt
	for _, d := range s.debts {
		if d.Paid || d.DebtorID != debtorID || d.CreditorID != creditorID {
			continue
		}
		if eventID != nil && (d.EventID == nil || *d.EventID != *eventID) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	// creation order; ids are serial
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (s *MemoryStore) NetBalanceByPair(ctx context.Context, aID, bID int64) (*NetBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.balances {
		if (b.FirstID == aID && b.SecondID == bID) || (b.FirstID == bID && b.SecondID == aID) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateNetBalance(ctx context.Context, firstID, secondID int64, sum decimal.Decimal) (*NetBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &NetBalance{ID: s.id(), FirstID: firstID, SecondID: secondID, Sum: sum}
	s.balances[b.ID] = b
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) UpdateNetBalance(ctx context.Context, b *NetBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[b.ID]; !ok {
		return consistencyf("net balance %d not found", b.ID)
	}
	cp := *b
	s.balances[b.ID] = &cp
	return nil
}

func (s *MemoryStore) NetBalancesByUser(ctx context.Context, userID int64) ([]*NetBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*NetBalance
	for _, b := range s.balances {
		if b.FirstID == userID || b.SecondID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}
