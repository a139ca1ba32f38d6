package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/redsalud/turnos-board/internal/config"
	"github.com/redsalud/turnos-board/internal/domain"
	"github.com/redsalud/turnos-board/internal/repository/postgres"
)

// ErrInvalidCredentials is returned on any login failure, without saying
// whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ProfileStore authenticates principals against the profiles table.
type ProfileStore interface {
	Authenticate(ctx context.Context, email, passwordHash string) (*domain.Profile, error)
	GetRole(ctx context.Context, userID string) (domain.Role, error)
}

// Session represents an authenticated user session.
type Session struct {
	ID        string         `json:"-"`
	Profile   domain.Profile `json:"profile"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Manager handles email and password sessions. Sessions live in memory;
// a restart logs everyone out, which is acceptable for an internal
// dashboard behind short cookie lifetimes.
type Manager struct {
	config    *config.AuthConfig
	profiles  ProfileStore
	log       *zap.Logger
	sessions  map[string]*Session
	sessionMu sync.RWMutex
}

// NewManager creates an authentication manager backed by the given
// profile store.
func NewManager(cfg *config.AuthConfig, profiles ProfileStore, log *zap.Logger) *Manager {
	return &Manager{
		config:   cfg,
		profiles: profiles,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// HashPassword returns the hex SHA-256 digest stored in profiles.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Login verifies credentials and opens a session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	profile, err := m.profiles.Authenticate(ctx, email, HashPassword(password))
	if errors.Is(err, postgres.ErrProfileNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}
	session := &Session{
		ID:        id,
		Profile:   *profile,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Duration(m.config.CookieMaxAge) * time.Second),
	}

	m.sessionMu.Lock()
	m.sessions[id] = session
	m.sessionMu.Unlock()

	m.log.Info("user logged in",
		zap.String("email", profile.Email), zap.String("role", string(profile.Role)))
	return session, nil
}

// GetSession returns the request's session, or nil when unauthenticated
// or expired.
func (m *Manager) GetSession(r *http.Request) *Session {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil {
		return nil
	}

	m.sessionMu.RLock()
	session, exists := m.sessions[cookie.Value]
	m.sessionMu.RUnlock()
	if !exists {
		return nil
	}

	if time.Now().After(session.ExpiresAt) {
		m.sessionMu.Lock()
		delete(m.sessions, cookie.Value)
		m.sessionMu.Unlock()
		return nil
	}
	return session
}

// HandleLogin processes a JSON email and password login.
func (m *Manager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := m.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		writeJSONError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}
	if err != nil {
		m.log.Error("login failed", zap.String("email", req.Email), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   m.config.CookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// HandleLogout drops the session and clears the cookie.
func (m *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(m.config.CookieName); err == nil {
		m.sessionMu.Lock()
		delete(m.sessions, cookie.Value)
		m.sessionMu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:   m.config.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleUserInfo returns the current principal as JSON. The role is
// re-read from the profile store so grants take effect without a new
// login; on store errors the cached role is kept.
func (m *Manager) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	session := m.GetSession(r)
	w.Header().Set("Content-Type", "application/json")
	if session == nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{"authenticated": false})
		return
	}

	role, err := m.profiles.GetRole(r.Context(), session.Profile.UserID)
	if err != nil {
		m.log.Warn("role refresh failed",
			zap.String("user_id", session.Profile.UserID), zap.Error(err))
	} else if role != session.Profile.Role {
		m.sessionMu.Lock()
		session.Profile.Role = role
		m.sessionMu.Unlock()
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"authenticated": true,
		"user":          session.Profile,
	})
}

// RequireAuth rejects unauthenticated API requests and stores the session
// in the request context for handlers downstream.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := m.GetSession(r)
		if session == nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

type contextKey struct{}

// WithSession stores a session in the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SessionFrom returns the session stored in the context, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// CleanupExpiredSessions sweeps expired sessions every interval until the
// context is canceled.
func (m *Manager) CleanupExpiredSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweepExpired(time.Now())
			}
		}
	}()
}

func (m *Manager) sweepExpired(now time.Time) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	for id, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
