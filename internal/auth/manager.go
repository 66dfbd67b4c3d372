// Package auth tracks the signed-in account. It owns the session
// lifecycle: exchanging credentials with the backend, persisting the
// session through encrypted secure storage so it survives restarts, and
// telling listeners when the active identity changes so per-user state
// can reload.
package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/crypto"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
)

// sessionAccount is the secure-storage slot holding the session JSON.
const sessionAccount = "session"

// Listener is notified with the new user id after every identity
// change; the id is empty when the account signed out.
type Listener func(userID string)

// tokenClaims is the subset of access-token claims the client reads.
// The token is issued and verified by the backend; locally it is only
// decoded for the subject and expiry.
type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager holds the current session and profile.
type Manager struct {
	client *backend.Client
	secure *crypto.SecureStorage
	logger *logging.Logger

	mu        sync.RWMutex
	session   *backend.Session
	profile   *backend.Profile
	userID    string
	expiresAt time.Time
	listeners []Listener
}

// NewManager creates a manager over the backend client and the secure
// credential store. Call Init to restore a persisted session.
func NewManager(client *backend.Client, secure *crypto.SecureStorage) *Manager {
	return &Manager{
		client: client,
		secure: secure,
		logger: logging.Get().WithComponent("auth"),
	}
}

// OnChange registers an identity-change listener. Listeners run on the
// goroutine that changed the identity, outside the manager's lock.
func (m *Manager) OnChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Init restores a persisted session if one exists. An expired session
// is refreshed; when the refresh fails the stored session is dropped
// and the app starts as guest. Init never fails the startup path.
func (m *Manager) Init(ctx context.Context) {
	raw, err := m.secure.GetCredential(sessionAccount)
	if err != nil {
		m.logger.Debug("no persisted session")
		return
	}

	var session backend.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		m.logger.Warn("persisted session unreadable, discarding", map[string]interface{}{
			"error": err.Error(),
		})
		m.secure.DeleteCredential(sessionAccount)
		return
	}

	userID, expiresAt := decodeToken(&session)
	if userID == "" {
		m.secure.DeleteCredential(sessionAccount)
		return
	}

	if !expiresAt.IsZero() && time.Now().After(expiresAt) {
		if session.RefreshToken == "" {
			m.secure.DeleteCredential(sessionAccount)
			return
		}
		refreshed, err := m.client.RefreshSession(ctx, session.RefreshToken)
		if err != nil {
			m.logger.Warn("session refresh failed, starting as guest", map[string]interface{}{
				"error": err.Error(),
			})
			m.secure.DeleteCredential(sessionAccount)
			return
		}
		m.adopt(refreshed)
		return
	}

	m.adopt(&session)
}

// =====================================================
// Sign in / out
// =====================================================

// SignIn authenticates with email and password.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.New(errors.ErrInvalid, "email and password are required")
	}
	session, err := m.client.SignIn(ctx, email, password)
	if err != nil {
		return errors.Wrap(errors.ErrAuthFailed, "sign in failed", err)
	}
	m.adopt(session)
	return nil
}

// SignUp registers a new account. When the project requires email
// confirmation the returned session carries no token; the account then
// stays guest until the first SignIn.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName string) error {
	if email == "" || password == "" {
		return errors.New(errors.ErrInvalid, "email and password are required")
	}
	session, err := m.client.SignUp(ctx, email, password, fullName)
	if err != nil {
		return errors.Wrap(errors.ErrAuthFailed, "sign up failed", err)
	}
	if session.AccessToken != "" {
		m.adopt(session)
	}
	return nil
}

// SignOut revokes the session and clears all local session state. The
// local state is cleared even when revocation fails, so the device
// never stays signed in.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.client.SignOut(ctx)
	if err != nil {
		m.logger.Warn("remote sign out failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	m.mu.Lock()
	m.session = nil
	m.profile = nil
	m.userID = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	if err := m.secure.DeleteCredential(sessionAccount); err != nil {
		m.logger.Warn("failed to delete persisted session", map[string]interface{}{
			"error": err.Error(),
		})
	}
	m.client.ClearCache()
	m.notify("")
	return nil
}

// RefreshSession exchanges the held refresh token for a new session.
func (m *Manager) RefreshSession(ctx context.Context) error {
	m.mu.RLock()
	var refreshToken string
	if m.session != nil {
		refreshToken = m.session.RefreshToken
	}
	m.mu.RUnlock()

	if refreshToken == "" {
		return errors.New(errors.ErrAuthNoSession, "no session to refresh")
	}
	session, err := m.client.RefreshSession(ctx, refreshToken)
	if err != nil {
		return errors.Wrap(errors.ErrAuthSessionExpired, "session refresh failed", err)
	}
	m.adopt(session)
	return nil
}

// =====================================================
// Profile
// =====================================================

// UpdateProfile upserts the signed-in account's profile row.
func (m *Manager) UpdateProfile(ctx context.Context, fullName, avatarURL string) error {
	m.mu.RLock()
	userID := m.userID
	var email string
	if m.session != nil {
		email = m.session.User.Email
	}
	m.mu.RUnlock()

	if userID == "" {
		return errors.New(errors.ErrAuthNoSession, "not signed in")
	}

	stored, err := m.client.UpsertProfile(ctx, &backend.Profile{
		ID:        userID,
		Email:     email,
		FullName:  fullName,
		AvatarURL: avatarURL,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.profile = stored
	m.mu.Unlock()
	return nil
}

// Profile returns a copy of the cached profile, if one is loaded.
func (m *Manager) Profile() (backend.Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return backend.Profile{}, false
	}
	return *m.profile, true
}

// =====================================================
// State
// =====================================================

// CurrentUserID returns the signed-in user id, or "" for guest.
func (m *Manager) CurrentUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

// SignedIn reports whether a session is held.
func (m *Manager) SignedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil
}

// SessionExpired reports whether the held session's token is past its
// expiry. A missing session reports false; check SignedIn first.
func (m *Manager) SessionExpired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil && !m.expiresAt.IsZero() && time.Now().After(m.expiresAt)
}

// adopt installs a session: state, backend token, persisted copy, and
// listener notification, in that order.
func (m *Manager) adopt(session *backend.Session) {
	userID, expiresAt := decodeToken(session)
	if userID == "" {
		userID = session.User.ID
	}

	m.mu.Lock()
	m.session = session
	m.userID = userID
	m.expiresAt = expiresAt
	m.mu.Unlock()

	m.client.SetToken(session.AccessToken)

	if data, err := json.Marshal(session); err == nil {
		if err := m.secure.StoreCredential(sessionAccount, string(data)); err != nil {
			// The in-memory session still works; it just won't survive
			// a restart.
			m.logger.Warn("failed to persist session", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	m.notify(userID)
}

func (m *Manager) notify(userID string) {
	m.mu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, l := range listeners {
		l(userID)
	}
}

// decodeToken reads the subject and expiry from the access token
// without verifying the signature; verification is the backend's job
// and the key never leaves it. Falls back to the session's user record
// when the token is unreadable.
func decodeToken(session *backend.Session) (string, time.Time) {
	if session.AccessToken == "" {
		return session.User.ID, time.Time{}
	}

	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, &claims); err != nil {
		return session.User.ID, time.Time{}
	}

	userID := claims.Subject
	if userID == "" {
		userID = session.User.ID
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return userID, expiresAt
}
