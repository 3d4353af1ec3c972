// Package session owns the in-memory session state and is the sole
// authority on whether a user is authenticated, and as whom.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/recruitport/recruitport-go/internal/gateway"
	"github.com/recruitport/recruitport-go/internal/model"
	"github.com/recruitport/recruitport-go/internal/storage"
)

// Session is the decoded projection of the current credential.
type Session struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// Snapshot is a point-in-time view handed to the access guard. While
// Loading is true no access decision may be trusted.
type Snapshot struct {
	Session       Session
	Authenticated bool
	Loading       bool
}

// Result is the outcome of a login or register call. The manager never
// propagates raw errors across its public boundary; Error is already
// normalized for display.
type Result struct {
	OK    bool
	Error string
}

// Manager holds the current session and exposes the login, register
// and logout operations. It is the only component besides the gateway
// permitted to mutate the credential store.
type Manager struct {
	gw    *gateway.Client
	store *storage.Store
	log   *slog.Logger
	now   func() time.Time

	mu      sync.Mutex
	user    *Session
	loading bool
}

// NewManager creates a Manager in the loading state. Initialize must
// run before any guard decision is trusted.
func NewManager(gw *gateway.Client, store *storage.Store) *Manager {
	return &Manager{
		gw:      gw,
		store:   store,
		log:     slog.Default(),
		now:     time.Now,
		loading: true,
	}
}

// Initialize restores the session from the credential store. A stored
// credential that fails to decode is purged and the session stays
// anonymous; decode failures are diagnostics, not user-facing errors.
// Loading drops to false exactly once, after this resolves.
func (m *Manager) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.loading = false }()

	cred, err := m.store.Get()
	if err != nil {
		m.user = nil
		return
	}

	sess, err := decodeCredential(cred, m.now())
	if err != nil {
		m.log.Warn("stored credential failed to decode, resetting to anonymous", "error", err)
		if cerr := m.store.Clear(); cerr != nil {
			m.log.Error("purging undecodable credential", "error", cerr)
		}
		m.user = nil
		return
	}
	m.user = &sess
}

// Login exchanges credentials for a token, persists it and populates
// the session. On failure the session is left untouched and the error
// comes back as a normalized message.
func (m *Manager) Login(ctx context.Context, email, password string) Result {
	form := url.Values{
		"username": {email},
		"password": {password},
	}

	var resp model.AuthResponse
	if err := m.gw.PostForm(ctx, gateway.LoginPath, form, &resp); err != nil {
		return Result{Error: gateway.Message(err, "Login failed")}
	}

	// Decode before persisting: a credential that cannot be decoded must
	// never be left in storage.
	sess, err := decodeCredential(resp.AccessToken, m.now())
	if err != nil {
		m.log.Error("login returned an undecodable credential", "error", err)
		return Result{Error: "Login failed"}
	}

	if err := m.store.Set(resp.AccessToken); err != nil {
		m.log.Error("persisting credential", "error", err)
		return Result{Error: "Login failed"}
	}
	if profile, err := json.Marshal(sess); err == nil {
		if err := m.store.SetProfile(profile); err != nil {
			m.log.Warn("caching profile", "error", err)
		}
	}

	m.mu.Lock()
	m.user = &sess
	m.mu.Unlock()
	return Result{OK: true}
}

// Register creates an account. Registration is not auto-login: the
// session is never mutated on success.
func (m *Manager) Register(ctx context.Context, req model.RegisterRequest) Result {
	if err := m.gw.PostJSON(ctx, "/auth/register", req, nil); err != nil {
		return Result{Error: gateway.Message(err, "Registration failed")}
	}
	return Result{OK: true}
}

// Logout purges the credential store and nulls the session. It is
// idempotent and requires no network round trip.
func (m *Manager) Logout() {
	if err := m.store.Clear(); err != nil {
		m.log.Error("clearing credential store on logout", "error", err)
	}
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
}

// Invalidate drops the in-memory session without touching the store.
// It is wired to the gateway's auth-expired hook, which has already
// cleared storage by the time it fires.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
}

// Me fetches the caller's profile from the gateway and refreshes the
// cached copy in the store.
func (m *Manager) Me(ctx context.Context) (model.User, error) {
	var user model.User
	if err := m.gw.GetJSON(ctx, "/users/me", nil, &user); err != nil {
		return model.User{}, err
	}
	if blob, err := json.Marshal(user); err == nil {
		if err := m.store.SetProfile(blob); err != nil {
			m.log.Warn("caching profile", "error", err)
		}
	}
	return user, nil
}

// Current returns the session and whether one is established.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return Session{}, false
	}
	return *m.user, true
}

// IsAuthenticated reports whether a session is established.
func (m *Manager) IsAuthenticated() bool {
	_, ok := m.Current()
	return ok
}

// Snapshot returns the state the access guard decides on.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{Loading: m.loading}
	if m.user != nil {
		snap.Session = *m.user
		snap.Authenticated = true
	}
	return snap
}
