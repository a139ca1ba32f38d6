package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/redsalud/turnos-board/internal/config"
	"github.com/redsalud/turnos-board/internal/domain"
	"github.com/redsalud/turnos-board/internal/repository/postgres"
)

type fakeProfiles struct {
	email string
	hash  string
	role  domain.Role
}

func (f *fakeProfiles) Authenticate(_ context.Context, email, passwordHash string) (*domain.Profile, error) {
	if email != f.email || passwordHash != f.hash {
		return nil, postgres.ErrProfileNotFound
	}
	return &domain.Profile{UserID: "user-1", Email: email, Role: f.role}, nil
}

func (f *fakeProfiles) GetRole(_ context.Context, userID string) (domain.Role, error) {
	if userID != "user-1" {
		return domain.RoleViewer, nil
	}
	return f.role, nil
}

func newTestManager(role domain.Role) *Manager {
	cfg := &config.AuthConfig{Enabled: true, CookieName: "turnos_session", CookieMaxAge: 3600}
	profiles := &fakeProfiles{
		email: "ana@redsalud.gob.ar",
		hash:  HashPassword("secreto123"),
		role:  role,
	}
	return NewManager(cfg, profiles, zap.NewNop())
}

func TestLogin(t *testing.T) {
	m := newTestManager(domain.RoleAdmin)

	session, err := m.Login(context.Background(), "ana@redsalud.gob.ar", "secreto123")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, domain.RoleAdmin, session.Profile.Role)
	assert.True(t, session.ExpiresAt.After(time.Now()))
}

func TestLoginBadPassword(t *testing.T) {
	m := newTestManager(domain.RoleViewer)

	_, err := m.Login(context.Background(), "ana@redsalud.gob.ar", "incorrecta")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHashPasswordDeterministic(t *testing.T) {
	assert.Equal(t, HashPassword("x"), HashPassword("x"))
	assert.NotEqual(t, HashPassword("x"), HashPassword("y"))
	assert.Len(t, HashPassword("x"), 64)
}

func TestHandleLoginSetsCookie(t *testing.T) {
	m := newTestManager(domain.RoleViewer)

	body, _ := json.Marshal(map[string]string{
		"email": "ana@redsalud.gob.ar", "password": "secreto123",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	m.HandleLogin(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "turnos_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestHandleLoginRejectsBadCredentials(t *testing.T) {
	m := newTestManager(domain.RoleViewer)

	body, _ := json.Marshal(map[string]string{
		"email": "ana@redsalud.gob.ar", "password": "incorrecta",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	m.HandleLogin(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestGetSessionExpiry(t *testing.T) {
	m := newTestManager(domain.RoleViewer)
	session, err := m.Login(context.Background(), "ana@redsalud.gob.ar", "secreto123")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/turnos", nil)
	req.AddCookie(&http.Cookie{Name: "turnos_session", Value: session.ID})
	require.NotNil(t, m.GetSession(req))

	m.sessionMu.Lock()
	m.sessions[session.ID].ExpiresAt = time.Now().Add(-time.Minute)
	m.sessionMu.Unlock()
	assert.Nil(t, m.GetSession(req))
}

func TestRequireAuth(t *testing.T) {
	m := newTestManager(domain.RoleAdmin)
	session, err := m.Login(context.Background(), "ana@redsalud.gob.ar", "secreto123")
	require.NoError(t, err)

	var seen *Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// Without a cookie the request never reaches the handler.
	rec := httptest.NewRecorder()
	m.RequireAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/turnos", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/api/turnos", nil)
	req.AddCookie(&http.Cookie{Name: "turnos_session", Value: session.ID})
	rec = httptest.NewRecorder()
	m.RequireAuth(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.Profile.UserID)
}

func TestHandleUserInfoRefreshesRole(t *testing.T) {
	cfg := &config.AuthConfig{Enabled: true, CookieName: "turnos_session", CookieMaxAge: 3600}
	profiles := &fakeProfiles{
		email: "ana@redsalud.gob.ar",
		hash:  HashPassword("secreto123"),
		role:  domain.RoleViewer,
	}
	m := NewManager(cfg, profiles, zap.NewNop())

	session, err := m.Login(context.Background(), "ana@redsalud.gob.ar", "secreto123")
	require.NoError(t, err)

	// Promotion in the store shows up on the next user info call without
	// a new login.
	profiles.role = domain.RoleAdmin

	req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req.AddCookie(&http.Cookie{Name: "turnos_session", Value: session.ID})
	rec := httptest.NewRecorder()
	m.HandleUserInfo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Authenticated bool           `json:"authenticated"`
		User          domain.Profile `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Authenticated)
	assert.Equal(t, domain.RoleAdmin, resp.User.Role)
	assert.Equal(t, domain.RoleAdmin, m.GetSession(req).Profile.Role)
}

func TestCleanupExpiredSessions(t *testing.T) {
	m := newTestManager(domain.RoleViewer)
	session, err := m.Login(context.Background(), "ana@redsalud.gob.ar", "secreto123")
	require.NoError(t, err)

	m.sessionMu.Lock()
	m.sessions[session.ID].ExpiresAt = time.Now().Add(-time.Minute)
	m.sessionMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	m.CleanupExpiredSessions(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		m.sessionMu.RLock()
		defer m.sessionMu.RUnlock()
		return len(m.sessions) == 0
	}, time.Second, 5*time.Millisecond)

	// After cancel the sweeper leaves later expired sessions alone.
	cancel()
	time.Sleep(30 * time.Millisecond)
	session2, err := m.Login(context.Background(), "ana@redsalud.gob.ar", "secreto123")
	require.NoError(t, err)
	m.sessionMu.Lock()
	m.sessions[session2.ID].ExpiresAt = time.Now().Add(-time.Minute)
	m.sessionMu.Unlock()

	time.Sleep(30 * time.Millisecond)
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	assert.Len(t, m.sessions, 1)
}

func TestHandleLogout(t *testing.T) {
	m := newTestManager(domain.RoleViewer)
	session, err := m.Login(context.Background(), "ana@redsalud.gob.ar", "secreto123")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "turnos_session", Value: session.ID})
	rec := httptest.NewRecorder()
	m.HandleLogout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, m.GetSession(req))
}
