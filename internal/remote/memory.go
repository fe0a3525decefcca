package remote

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/entity"
)

// Op names a remote operation, used by fault hooks.
type Op string

const (
	OpCreateExpense Op = "create_expense"
	OpFetchExpenses Op = "fetch_expenses"
	OpUpdateExpense Op = "update_expense"
	OpDeleteExpense Op = "delete_expense"
	OpCreateProfile Op = "create_profile"
	OpFetchProfile  Op = "fetch_profile"
	OpUpdateProfile Op = "update_profile"
)

// FaultFunc is consulted before every operation; a non-nil error is returned
// to the caller instead of performing the operation. key is the record id or
// user id the call is about.
type FaultFunc func(ctx context.Context, op Op, key string) error

// MemoryStore is an in-process remote store with the same surface and error
// semantics as PostgresClient. Several devices can share one instance.
type MemoryStore struct {
	mu       sync.RWMutex
	expenses map[uuid.UUID]entity.Expense
	profiles map[string]entity.Profile
	fault    FaultFunc
}

var _ Client = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expenses: make(map[uuid.UUID]entity.Expense),
		profiles: make(map[string]entity.Profile),
	}
}

// SetFault installs (or with nil, removes) a fault hook.
func (m *MemoryStore) SetFault(f FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = f
}

func (m *MemoryStore) check(ctx context.Context, op Op, key string) error {
	if err := ctx.Err(); err != nil {
		return common.ConnectivityError(string(op)+": timed out", err)
	}
	m.mu.RLock()
	f := m.fault
	m.mu.RUnlock()
	if f == nil {
		return nil
	}
	return f(ctx, op, key)
}

// normalizeExpense round-trips through the wire row, the way a real store
// returns server-normalized fields.
func normalizeExpense(e entity.Expense) (entity.Expense, error) {
	payload, err := encodeExpense(e)
	if err != nil {
		return entity.Expense{}, err
	}
	return decodeExpense(payload)
}

func normalizeProfile(p entity.Profile) (entity.Profile, error) {
	payload, err := encodeProfile(p)
	if err != nil {
		return entity.Profile{}, err
	}
	return decodeProfile(payload)
}

func (m *MemoryStore) CreateExpense(ctx context.Context, e entity.Expense) (entity.Expense, error) {
	if err := m.check(ctx, OpCreateExpense, e.ID.String()); err != nil {
		return entity.Expense{}, err
	}
	stored, err := normalizeExpense(e)
	if err != nil {
		return entity.Expense{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[e.ID]; ok {
		return entity.Expense{}, common.ConflictError("create expense", nil)
	}
	m.expenses[e.ID] = stored
	return stored, nil
}

func (m *MemoryStore) FetchExpenses(ctx context.Context, userID string) ([]entity.Expense, error) {
	if err := m.check(ctx, OpFetchExpenses, userID); err != nil {
		return nil, err
	}
	return m.filter(func(e entity.Expense) bool { return e.UserID == userID }, func(a, b entity.Expense) bool {
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}

func (m *MemoryStore) FetchExpense(ctx context.Context, id uuid.UUID) (entity.Expense, error) {
	if err := m.check(ctx, OpFetchExpenses, id.String()); err != nil {
		return entity.Expense{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.expenses[id]
	if !ok {
		return entity.Expense{}, common.NotFound("fetch expense")
	}
	return e, nil
}

func (m *MemoryStore) FetchExpensesByDateRange(ctx context.Context, userID string, from, to time.Time) ([]entity.Expense, error) {
	if err := m.check(ctx, OpFetchExpenses, userID); err != nil {
		return nil, err
	}
	return m.filter(func(e entity.Expense) bool {
		return e.UserID == userID && !e.Date.Before(from) && !e.Date.After(to)
	}, func(a, b entity.Expense) bool {
		return a.Date.After(b.Date)
	}), nil
}

func (m *MemoryStore) UpdateExpense(ctx context.Context, e entity.Expense) (entity.Expense, error) {
	if err := m.check(ctx, OpUpdateExpense, e.ID.String()); err != nil {
		return entity.Expense{}, err
	}
	incoming, err := normalizeExpense(e)
	if err != nil {
		return entity.Expense{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.expenses[e.ID]
	if !ok {
		return entity.Expense{}, common.NotFound("update expense")
	}
	current.Category = incoming.Category
	current.Amount = incoming.Amount
	current.Date = incoming.Date
	current.IconName = incoming.IconName
	current.UpdatedAt = incoming.UpdatedAt
	m.expenses[e.ID] = current
	return current, nil
}

func (m *MemoryStore) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	if err := m.check(ctx, OpDeleteExpense, id.String()); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[id]; !ok {
		return common.NotFound("delete expense")
	}
	delete(m.expenses, id)
	return nil
}

func (m *MemoryStore) CreateProfile(ctx context.Context, p entity.Profile) (entity.Profile, error) {
	if err := m.check(ctx, OpCreateProfile, p.ID); err != nil {
		return entity.Profile{}, err
	}
	stored, err := normalizeProfile(p)
	if err != nil {
		return entity.Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return entity.Profile{}, common.ConflictError("create profile: duplicate key", nil)
	}
	for _, existing := range m.profiles {
		if strings.EqualFold(existing.Email, p.Email) {
			return entity.Profile{}, common.ConflictError("create profile: duplicate email", nil)
		}
	}
	m.profiles[p.ID] = stored
	return stored, nil
}

func (m *MemoryStore) FetchProfile(ctx context.Context, id string) (entity.Profile, error) {
	if err := m.check(ctx, OpFetchProfile, id); err != nil {
		return entity.Profile{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return entity.Profile{}, common.NotFound("fetch profile")
	}
	return p, nil
}

func (m *MemoryStore) FetchProfileByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	if err := m.check(ctx, OpFetchProfile, email); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if strings.EqualFold(p.Email, email) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ProfileExists(ctx context.Context, id string) (bool, error) {
	if err := m.check(ctx, OpFetchProfile, id); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.profiles[id]
	return ok, nil
}

func (m *MemoryStore) UpdateProfile(ctx context.Context, p entity.Profile) (entity.Profile, error) {
	if err := m.check(ctx, OpUpdateProfile, p.ID); err != nil {
		return entity.Profile{}, err
	}
	incoming, err := normalizeProfile(p)
	if err != nil {
		return entity.Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.profiles[p.ID]
	if !ok {
		return entity.Profile{}, common.NotFound("update profile")
	}
	// id, email and created_at are not updatable
	incoming.Email = current.Email
	incoming.CreatedAt = current.CreatedAt
	m.profiles[p.ID] = incoming
	return incoming, nil
}

func (m *MemoryStore) DeleteProfile(ctx context.Context, id string) error {
	if err := m.check(ctx, OpUpdateProfile, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return common.NotFound("delete profile")
	}
	delete(m.profiles, id)
	return nil
}

func (m *MemoryStore) filter(keep func(entity.Expense) bool, less func(a, b entity.Expense) bool) []entity.Expense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entity.Expense, 0)
	for _, e := range m.expenses {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
