package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tokengate/auth-service/internal/domain"
	"github.com/tokengate/auth-service/internal/repository"
)

var testSecret = []byte(strings.Repeat("s3cr3t-", 6))

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
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

func newTestManager(t *testing.T) (*TokenManager, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return NewTokenManager(testSecret, 0, 0, WithClock(clock.Now)), clock
}

type memoryIdentities struct {
	identities map[string]domain.Identity
	err        error
}

func (m *memoryIdentities) LoadIdentity(_ context.Context, username string) (*domain.Identity, error) {
	if m.err != nil {
		return nil, m.err
	}
	identity, ok := m.identities[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &identity, nil
}

var (
	alice = domain.Identity{ID: "1", Username: "alice", Role: domain.UserRoleUser}
	admin = domain.Identity{ID: "2", Username: "root", Role: domain.UserRoleAdmin}
)

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// signatureVariants returns every token that differs from token only in the
// signature character at offset pos. Negative offsets count from the end.
func signatureVariants(token string, pos int) []string {
	start := strings.LastIndex(token, ".") + 1
	i := start + pos
	if pos < 0 {
		i = len(token) + pos
	}
	variants := make([]string, 0, len(base64URLAlphabet)-1)
	for j := 0; j < len(base64URLAlphabet); j++ {
		if base64URLAlphabet[j] == token[i] {
			continue
		}
		b := []byte(token)
		b[i] = base64URLAlphabet[j]
		variants = append(variants, string(b))
	}
	return variants
}

// tamper flips the first character of the signature segment.
func tamper(token string) string {
	i := strings.LastIndex(token, ".") + 1
	b := []byte(token)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
