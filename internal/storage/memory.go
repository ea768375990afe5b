package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"atlas/internal/core"
)

// MemoryRepository is an in-process Repository with the same semantics as
// SQLRepository, including foreign key checks on category delete.
type MemoryRepository struct {
	mu         sync.RWMutex
	categories map[string]core.Category
	vehicles   map[string]core.Vehicle
	entries    map[string]core.Entry
	mirrored   map[string]time.Time
	users      map[string]User
	sessions   map[string]Session
	resets     map[string]PasswordReset
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		categories: make(map[string]core.Category),
		vehicles:   make(map[string]core.Vehicle),
		entries:    make(map[string]core.Entry),
		mirrored:   make(map[string]time.Time),
		users:      make(map[string]User),
		sessions:   make(map[string]Session),
		resets:     make(map[string]PasswordReset),
	}
}

func (m *MemoryRepository) Ping(context.Context) error { return nil }
func (m *MemoryRepository) Close() error               { return nil }

// Categories

func (m *MemoryRepository) ListCategories(_ context.Context, owner string) ([]core.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.categoriesOf(owner), nil
}

func (m *MemoryRepository) categoriesOf(owner string) []core.Category {
	out := []core.Category{}
	for _, c := range m.categories {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *MemoryRepository) GetCategory(_ context.Context, owner, id string) (core.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok || c.Owner != owner {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *MemoryRepository) CreateCategory(_ context.Context, c core.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; ok {
		return fmt.Errorf("create category: %w", ErrConflict)
	}
	m.categories[c.ID] = c
	return nil
}

func (m *MemoryRepository) UpdateCategory(_ context.Context, c core.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.categories[c.ID]
	if !ok || cur.Owner != c.Owner {
		return fmt.Errorf("update category %s: %w", c.ID, ErrNotFound)
	}
	cur.Name, cur.Kind = c.Name, c.Kind
	m.categories[c.ID] = cur
	return nil
}

func (m *MemoryRepository) DeleteCategory(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok || c.Owner != owner {
		return fmt.Errorf("delete category %s: %w", id, ErrNotFound)
	}
	for _, e := range m.entries {
		if e.CategoryID == id {
			return fmt.Errorf("delete category %s: %w: entries reference this category", id, ErrForeignKey)
		}
	}
	delete(m.categories, id)
	return nil
}

// Vehicles

func (m *MemoryRepository) ListVehicles(_ context.Context, owner string) ([]core.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehiclesOf(owner), nil
}

func (m *MemoryRepository) vehiclesOf(owner string) []core.Vehicle {
	out := []core.Vehicle{}
	for _, v := range m.vehicles {
		if v.Owner == owner {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *MemoryRepository) GetVehicle(_ context.Context, owner, id string) (core.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	if !ok || v.Owner != owner {
		return core.Vehicle{}, fmt.Errorf("get vehicle %s: %w", id, ErrNotFound)
	}
	return v, nil
}

func (m *MemoryRepository) CreateVehicle(_ context.Context, v core.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[v.ID]; ok {
		return fmt.Errorf("create vehicle: %w", ErrConflict)
	}
	m.vehicles[v.ID] = v
	return nil
}

func (m *MemoryRepository) UpdateVehicle(_ context.Context, v core.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.vehicles[v.ID]
	if !ok || cur.Owner != v.Owner {
		return fmt.Errorf("update vehicle %s: %w", v.ID, ErrNotFound)
	}
	v.CreatedAt = cur.CreatedAt
	m.vehicles[v.ID] = v
	return nil
}

func (m *MemoryRepository) DeleteVehicle(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok || v.Owner != owner {
		return fmt.Errorf("delete vehicle %s: %w", id, ErrNotFound)
	}
	for eid, e := range m.entries {
		if e.Owner == owner && e.BelongsTo(id) {
			e.VehicleID = nil
			m.entries[eid] = e
			delete(m.mirrored, eid)
		}
	}
	delete(m.vehicles, id)
	return nil
}

// Entries

func (m *MemoryRepository) ListEntries(_ context.Context, owner string) ([]core.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []core.Entry{}
	for _, e := range m.entries {
		if e.Owner == owner {
			out = append(out, e)
		}
	}
	core.SortEntries(out)
	JoinEntries(out, m.categoriesOf(owner), m.vehiclesOf(owner))
	return out, nil
}

func (m *MemoryRepository) GetEntry(_ context.Context, owner, id string) (core.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok || e.Owner != owner {
		return core.Entry{}, fmt.Errorf("get entry %s: %w", id, ErrNotFound)
	}
	one := []core.Entry{e}
	JoinEntries(one, m.categoriesOf(owner), m.vehiclesOf(owner))
	return one[0], nil
}

// checkReferences mirrors the foreign keys of the entries table.
func (m *MemoryRepository) checkReferences(e core.Entry) error {
	if _, ok := m.categories[e.CategoryID]; !ok {
		return fmt.Errorf("%w: category %s does not exist", ErrForeignKey, e.CategoryID)
	}
	if e.HasVehicle() {
		if _, ok := m.vehicles[*e.VehicleID]; !ok {
			return fmt.Errorf("%w: vehicle %s does not exist", ErrForeignKey, *e.VehicleID)
		}
	}
	return nil
}

func (m *MemoryRepository) CreateEntry(_ context.Context, e core.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; ok {
		return fmt.Errorf("create entry: %w", ErrConflict)
	}
	if err := m.checkReferences(e); err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	e.Category, e.Vehicle = nil, nil
	m.entries[e.ID] = e
	return nil
}

func (m *MemoryRepository) UpdateEntry(_ context.Context, e core.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[e.ID]
	if !ok || cur.Owner != e.Owner {
		return fmt.Errorf("update entry %s: %w", e.ID, ErrNotFound)
	}
	if err := m.checkReferences(e); err != nil {
		return fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	e.CreatedAt = cur.CreatedAt
	e.Category, e.Vehicle = nil, nil
	m.entries[e.ID] = e
	delete(m.mirrored, e.ID)
	return nil
}

func (m *MemoryRepository) DeleteEntry(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.Owner != owner {
		return fmt.Errorf("delete entry %s: %w", id, ErrNotFound)
	}
	delete(m.entries, id)
	delete(m.mirrored, id)
	return nil
}

// Mirror

func (m *MemoryRepository) ListUnmirrored(_ context.Context, limit int) ([]core.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []core.Entry{}
	for id, e := range m.entries {
		if _, done := m.mirrored[id]; !done {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) MarkMirrored(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("mark entry %s mirrored: %w", id, ErrNotFound)
	}
	m.mirrored[id] = at
	return nil
}

// Users, sessions and password resets

func (m *MemoryRepository) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w", ErrConflict)
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryRepository) GetUser(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("get user: %w", ErrNotFound)
	}
	return u, nil
}

func (m *MemoryRepository) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("get user by email: %w", ErrNotFound)
}

func (m *MemoryRepository) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("update password: %w", ErrNotFound)
	}
	u.PasswordHash = hash
	m.users[userID] = u
	return nil
}

func (m *MemoryRepository) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[s.UserID]; !ok {
		return fmt.Errorf("create session: %w: unknown user", ErrForeignKey)
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryRepository) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("get session: %w", ErrNotFound)
	}
	return s, nil
}

func (m *MemoryRepository) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryRepository) DeleteUserSessions(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MemoryRepository) CreatePasswordReset(_ context.Context, r PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[r.UserID]; !ok {
		return fmt.Errorf("create password reset: %w: unknown user", ErrForeignKey)
	}
	m.resets[r.Token] = r
	return nil
}

func (m *MemoryRepository) ConsumePasswordReset(_ context.Context, token string) (PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resets[token]
	if !ok {
		return PasswordReset{}, fmt.Errorf("get password reset: %w", ErrNotFound)
	}
	delete(m.resets, token)
	return r, nil
}

var _ Repository = (*MemoryRepository)(nil)
