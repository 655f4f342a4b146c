package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tokengate/auth-service/internal/auth"
	"github.com/tokengate/auth-service/internal/config"
	"github.com/tokengate/auth-service/internal/domain"
	"github.com/tokengate/auth-service/internal/events"
	"github.com/tokengate/auth-service/internal/repository"
)

var testSecret = []byte(strings.Repeat("0123456789", 4))

var testAuthConfig = config.AuthConfig{BcryptCost: bcrypt.MinCost}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newManager() (*auth.TokenManager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return auth.NewTokenManager(testSecret, 0, 0, auth.WithClock(clock.Now)), clock
}

// memoryUsers is an in-memory repository.UserRepository.
type memoryUsers struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	order []string
	err   error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*domain.User{}}
}

func (m *memoryUsers) seed(t *testing.T, username, email, password string, role domain.UserRole) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{Username: username, Email: email, PasswordHash: hash, Role: role}
	require.NoError(t, m.Create(context.Background(), user))
	return user
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, u := range m.byID {
		if u.Username == user.Username || (user.Email != "" && u.Email == user.Email) {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	m.order = append(m.order, user.ID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memoryUsers) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[user.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memoryUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Username == username })
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *memoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *memoryUsers) List(_ context.Context, role *domain.UserRole) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.User, 0, len(m.byID))
	for _, id := range m.order {
		u, ok := m.byID[id]
		if !ok || (role != nil && u.Role != *role) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryUsers) LoadIdentity(ctx context.Context, username string) (*domain.Identity, error) {
	u, err := m.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	identity := u.Identity()
	return &identity, nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func recordAll(d events.Dispatcher) *recordedEvents {
	r := &recordedEvents{}
	for _, et := range []events.EventType{
		events.EventUserRegistered,
		events.EventUserLoggedIn,
		events.EventLoginFailed,
		events.EventTokenRefreshed,
		events.EventUserUpdated,
	} {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
	return r
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type invalidations struct {
	usernames []string
}

func (i *invalidations) Invalidate(_ context.Context, username string) error {
	i.usernames = append(i.usernames, username)
	return nil
}
