package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tokengate/auth-service/internal/api/dto"
	"github.com/tokengate/auth-service/internal/api/http/handlers"
	"github.com/tokengate/auth-service/internal/auth"
	"github.com/tokengate/auth-service/internal/config"
	"github.com/tokengate/auth-service/internal/domain"
	"github.com/tokengate/auth-service/internal/events"
	"github.com/tokengate/auth-service/internal/observability"
	"github.com/tokengate/auth-service/internal/repository"
	"github.com/tokengate/auth-service/internal/service"
)

type memoryUsers struct {
	mu    sync.Mutex
	users []*domain.User
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	cp := *user
	m.users = append(m.users, &cp)
	return nil
}

func (m *memoryUsers) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.users {
		if u.ID == user.ID {
			cp := *user
			m.users[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memoryUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
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
	return m.find(func(u *domain.User) bool { return u.Email != "" && u.Email == email })
}

func (m *memoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memoryUsers) List(_ context.Context, role *domain.UserRole) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.User{}
	for _, u := range m.users {
		if role == nil || u.Role == *role {
			cp := *u
			out = append(out, &cp)
		}
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

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testServer struct {
	app     *fiber.App
	clock   *clock
	users   *memoryUsers
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	cfg := config.AuthConfig{BcryptCost: bcrypt.MinCost}
	clk := &clock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	tokens := auth.NewTokenManager([]byte(strings.Repeat("k", 32)), 0, 0, auth.WithClock(clk.Now))
	users := &memoryUsers{}
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	service.NewAuditService(dispatcher, logger, metrics).RegisterHandlers()

	authSvc := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: users, Tokens: tokens, Dispatcher: dispatcher})
	tokenSvc := service.NewTokenService(tokens, users, service.TokenServiceOptions{Dispatcher: dispatcher})
	userSvc := service.NewUserService(cfg, service.UserDependencies{UserRepo: users, Dispatcher: dispatcher})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("auth-service", "test", metrics, nil),
		Auth:           handlers.NewAuthHandler(authSvc),
		Tokens:         handlers.NewTokenHandler(tokenSvc),
		Users:          handlers.NewUsersHandler(userSvc),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, users, logger),
	})

	return &testServer{app: app, clock: clk, users: users, tokens: tokens, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestTokenLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodPost, "/api/v1/auth/register", "",
		dto.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	require.Equal(t, nethttp.StatusOK, status, string(body))
	assert.Equal(t, service.MsgUserRegistered, decode[dto.MessageResponse](t, body).Message)

	status, body = s.do(t, nethttp.MethodPost, "/api/v1/auth/login", "",
		dto.LoginRequest{Username: "alice", Password: "pw"})
	require.Equal(t, nethttp.StatusOK, status, string(body))
	login := decode[dto.TokenResponse](t, body)
	assert.Equal(t, service.MsgLoginSuccessful, login.Message)
	refresh := login.Token

	// refresh tokens never grant resource access
	status, _ = s.do(t, nethttp.MethodGet, "/api/v1/user", refresh, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, body = s.do(t, nethttp.MethodPost, "/api/v1/token/refresh-token", "", dto.TokenRequest{Token: refresh})
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, dto.TokenResponse{Token: refresh, Message: service.MsgTokenRefreshed}, decode[dto.TokenResponse](t, body))

	status, body = s.do(t, nethttp.MethodPost, "/api/v1/token/validate-token", "", dto.TokenRequest{Token: refresh})
	require.Equal(t, nethttp.StatusOK, status)
	assert.True(t, decode[dto.ValidateTokenResponse](t, body).Valid)

	s.clock.Advance(16 * time.Minute)

	status, body = s.do(t, nethttp.MethodPost, "/api/v1/token/refresh-token", "",
		dto.TokenRequest{Token: refresh, Type: "access"})
	require.Equal(t, nethttp.StatusOK, status)
	access := decode[dto.TokenResponse](t, body).Token
	require.NotEqual(t, refresh, access)
	assert.True(t, s.tokens.IsAccessToken(access))

	status, body = s.do(t, nethttp.MethodGet, "/api/v1/user", access, nil)
	require.Equal(t, nethttp.StatusOK, status, string(body))
	list := decode[[]dto.UserResponse](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)

	status, _ = s.do(t, nethttp.MethodGet, "/metrics", access, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)

	s.clock.Advance(6 * time.Minute)
	status, _ = s.do(t, nethttp.MethodGet, "/api/v1/user", access, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, body = s.do(t, nethttp.MethodPost, "/api/v1/token/validate-token", "", dto.TokenRequest{Token: access})
	require.Equal(t, nethttp.StatusOK, status)
	assert.False(t, decode[dto.ValidateTokenResponse](t, body).Valid)

	snap := s.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Events[string(events.EventTokenRefreshed)])
}

func TestValidate_UnknownSubject(t *testing.T) {
	s := newTestServer(t)

	bob, err := s.tokens.IssueAccessToken(domain.Identity{Username: "bob"})
	require.NoError(t, err)

	status, body := s.do(t, nethttp.MethodPost, "/api/v1/token/validate-token", "", dto.TokenRequest{Token: bob})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, dto.ValidateTokenResponse{Valid: false, Message: service.MsgTokenInvalid},
		decode[dto.ValidateTokenResponse](t, body))
}

func TestRefresh_InvalidTokenEchoesInput(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodPost, "/api/v1/token/refresh-token", "", dto.TokenRequest{Token: "garbage"})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, dto.TokenResponse{Token: "garbage", Message: service.MsgTokenInvalidBang},
		decode[dto.TokenResponse](t, body))
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t)
	hash, err := auth.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	root := &domain.User{Username: "root", Email: "root@example.com", PasswordHash: hash, Role: domain.UserRoleAdmin}
	require.NoError(t, s.users.Create(context.Background(), root))

	token, err := s.tokens.IssueAccessToken(domain.Identity{Username: "root"})
	require.NoError(t, err)

	status, body := s.do(t, nethttp.MethodGet, "/api/v1/user/username/root", token, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, domain.UserRoleAdmin, decode[dto.UserResponse](t, body).Role)

	status, _ = s.do(t, nethttp.MethodGet, "/api/v1/user/email/root@example.com", token, nil)
	assert.Equal(t, nethttp.StatusOK, status)

	status, _ = s.do(t, nethttp.MethodGet, "/api/v1/user/id/"+root.ID, token, nil)
	assert.Equal(t, nethttp.StatusOK, status)

	status, _ = s.do(t, nethttp.MethodGet, "/api/v1/user/id/"+uuid.NewString(), token, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)

	for _, path := range []string{"/api/v1/user/id/abc", "/api/v1/user/id/42"} {
		status, body = s.do(t, nethttp.MethodGet, path, token, nil)
		assert.Equal(t, nethttp.StatusBadRequest, status, path)
		assert.Contains(t, string(body), service.MsgInvalidUserID, path)
	}

	status, _ = s.do(t, nethttp.MethodPatch, "/api/v1/user/update/abc", token,
		dto.UserUpdateRequest{Email: strPtr("x@example.com")})
	assert.Equal(t, nethttp.StatusBadRequest, status)

	status, _ = s.do(t, nethttp.MethodGet, "/api/v1/user?role=ROOT", token, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)

	status, body = s.do(t, nethttp.MethodPatch, "/api/v1/user/update/"+root.ID, token,
		dto.UserUpdateRequest{Password: strPtr("pw")})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Contains(t, string(body), service.MsgPasswordUnchanged)

	status, body = s.do(t, nethttp.MethodPatch, "/api/v1/user/update/"+root.ID, token,
		dto.UserUpdateRequest{Email: strPtr("admin@example.com")})
	require.Equal(t, nethttp.StatusOK, status, string(body))
	assert.Equal(t, service.MsgUserUpdated, decode[dto.MessageResponse](t, body).Message)

	status, _ = s.do(t, nethttp.MethodGet, "/metrics", token, nil)
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestAuthErrorsUseEnvelope(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Username: "ghost", Password: "pw"})
	assert.Equal(t, nethttp.StatusNotFound, status)

	envelope := decode[map[string]map[string]any](t, body)
	assert.Equal(t, "NOT_FOUND", envelope["error"]["code"])

	status, body = s.do(t, nethttp.MethodGet, "/nope", "", nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Contains(t, string(body), `"code":"NOT_FOUND"`)
}

func TestErrorMetricsKeyedByRoute(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 5; i++ {
		status, _ := s.do(t, nethttp.MethodGet, "/missing/"+uuid.NewString(), "", nil)
		require.Equal(t, nethttp.StatusNotFound, status)
	}

	errs := s.metrics.Snapshot().Errors
	var total int64
	for key, n := range errs {
		assert.NotContains(t, key, "/missing/", "unmatched paths must not become metric keys")
		total += n
	}
	assert.Equal(t, int64(5), total)
	assert.LessOrEqual(t, len(errs), 1)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Contains(t, string(body), `"alive"`)

	status, _ = s.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
}

func strPtr(s string) *string { return &s }
