package session_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/recruitport/recruitport-go/internal/gateway"
	"github.com/recruitport/recruitport-go/internal/gatewaytest"
	"github.com/recruitport/recruitport-go/internal/guard"
	"github.com/recruitport/recruitport-go/internal/model"
	"github.com/recruitport/recruitport-go/internal/session"
	"github.com/recruitport/recruitport-go/internal/storage"
)

type env struct {
	backend *gatewaytest.Gateway
	store   *storage.Store
	gw      *gateway.Client
	mgr     *session.Manager
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	backend := gatewaytest.New()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := storage.New(filepath.Join(t.TempDir(), "session.json"))
	gw, err := gateway.New(srv.URL, store, gateway.Options{})
	if err != nil {
		t.Fatalf("gateway.New() unexpected error: %v", err)
	}

	return &env{
		backend: backend,
		store:   store,
		gw:      gw,
		mgr:     session.NewManager(gw, store),
	}
}

func TestInitialize_NoCredential(t *testing.T) {
	e := newTestEnv(t)

	e.mgr.Initialize()

	if e.mgr.IsAuthenticated() {
		t.Error("authenticated with empty store")
	}
	if snap := e.mgr.Snapshot(); snap.Loading {
		t.Error("loading still true after Initialize")
	}
}

func TestInitialize_UndecodableCredentialPurged(t *testing.T) {
	e := newTestEnv(t)
	if err := e.store.Set("garbage-credential"); err != nil {
		t.Fatal(err)
	}

	e.mgr.Initialize()

	if e.mgr.IsAuthenticated() {
		t.Error("authenticated with undecodable credential")
	}
	if e.store.IsPresent() {
		t.Error("undecodable credential left in store")
	}
}

func TestInitialize_ExpiredCredentialPurged(t *testing.T) {
	e := newTestEnv(t)
	u := e.backend.SeedUser("c@example.com", "pw", model.RoleCandidate)
	if err := e.store.Set(e.backend.MintToken(u, -time.Minute)); err != nil {
		t.Fatal(err)
	}

	e.mgr.Initialize()

	if e.mgr.IsAuthenticated() {
		t.Error("authenticated with expired credential")
	}
	if e.store.IsPresent() {
		t.Error("expired credential left in store")
	}
}

func TestInitialize_ValidCredential(t *testing.T) {
	e := newTestEnv(t)
	u := e.backend.SeedUser("r@example.com", "pw", model.RoleRecruiter)
	if err := e.store.Set(e.backend.MintToken(u, time.Hour)); err != nil {
		t.Fatal(err)
	}

	e.mgr.Initialize()

	sess, ok := e.mgr.Current()
	if !ok {
		t.Fatal("expected authenticated session")
	}
	if sess.Email != "r@example.com" || sess.Role != model.RoleRecruiter {
		t.Errorf("session = %+v", sess)
	}
}

func TestLogin_Success(t *testing.T) {
	e := newTestEnv(t)
	e.backend.SeedUser("c@example.com", "secret-pw", model.RoleCandidate)
	e.mgr.Initialize()

	res := e.mgr.Login(context.Background(), "c@example.com", "secret-pw")
	if !res.OK {
		t.Fatalf("Login() failed: %s", res.Error)
	}

	sess, ok := e.mgr.Current()
	if !ok || sess.Role != model.RoleCandidate {
		t.Errorf("session = %+v, ok = %v", sess, ok)
	}
	if !e.store.IsPresent() {
		t.Error("credential not persisted after login")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	e := newTestEnv(t)
	e.backend.SeedUser("c@example.com", "right-pw", model.RoleCandidate)
	e.mgr.Initialize()

	res := e.mgr.Login(context.Background(), "c@example.com", "wrong-pw")

	if res.OK {
		t.Fatal("Login() succeeded with wrong password")
	}
	if res.Error != "Invalid email or password" {
		t.Errorf("Error = %q, want backend detail verbatim", res.Error)
	}
	if e.mgr.IsAuthenticated() {
		t.Error("session mutated by failed login")
	}
	if e.store.IsPresent() {
		t.Error("credential stored after failed login")
	}
}

func TestLogin_NetworkFailureFallbackMessage(t *testing.T) {
	store := storage.New(filepath.Join(t.TempDir(), "session.json"))
	gw, err := gateway.New("http://127.0.0.1:1", store, gateway.Options{})
	if err != nil {
		t.Fatal(err)
	}
	mgr := session.NewManager(gw, store)
	mgr.Initialize()

	res := mgr.Login(context.Background(), "a@b.c", "pw")

	if res.OK {
		t.Fatal("Login() succeeded against dead endpoint")
	}
	if res.Error != "Login failed" {
		t.Errorf("Error = %q, want generic fallback", res.Error)
	}
}

func TestRegister_NoAutoLogin(t *testing.T) {
	e := newTestEnv(t)
	e.mgr.Initialize()

	res := e.mgr.Register(context.Background(), model.RegisterRequest{
		Email:    "new@example.com",
		Password: "pw",
		Role:     model.RoleCandidate,
	})
	if !res.OK {
		t.Fatalf("Register() failed: %s", res.Error)
	}

	if e.mgr.IsAuthenticated() {
		t.Error("registration must not establish a session")
	}
	if e.store.IsPresent() {
		t.Error("registration must not persist a credential")
	}
}

func TestRegister_ValidationErrorNormalized(t *testing.T) {
	e := newTestEnv(t)
	e.mgr.Initialize()

	res := e.mgr.Register(context.Background(), model.RegisterRequest{
		Password: "pw",
		Role:     model.RoleCandidate,
	})

	if res.OK {
		t.Fatal("Register() succeeded without email")
	}
	if res.Error != "Error in email: field required" {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	e.backend.SeedUser("c@example.com", "pw", model.RoleCandidate)
	e.mgr.Initialize()
	if res := e.mgr.Login(context.Background(), "c@example.com", "pw"); !res.OK {
		t.Fatalf("Login() failed: %s", res.Error)
	}

	e.mgr.Logout()
	e.mgr.Logout()

	if e.mgr.IsAuthenticated() {
		t.Error("still authenticated after logout")
	}
	if e.store.IsPresent() {
		t.Error("credential survived logout")
	}
}

func TestMe_CachesProfile(t *testing.T) {
	e := newTestEnv(t)
	e.backend.SeedUser("c@example.com", "pw", model.RoleCandidate)
	e.mgr.Initialize()
	if res := e.mgr.Login(context.Background(), "c@example.com", "pw"); !res.OK {
		t.Fatalf("Login() failed: %s", res.Error)
	}

	user, err := e.mgr.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() unexpected error: %v", err)
	}
	if user.Email != "c@example.com" {
		t.Errorf("Email = %q", user.Email)
	}
	if _, err := e.store.Profile(); err != nil {
		t.Errorf("profile not cached: %v", err)
	}
}

func TestExpiredSession_Converges(t *testing.T) {
	e := newTestEnv(t)
	e.backend.SeedUser("c@example.com", "pw", model.RoleCandidate)
	e.gw.OnAuthExpired(e.mgr.Invalidate)
	e.mgr.Initialize()
	if res := e.mgr.Login(context.Background(), "c@example.com", "pw"); !res.OK {
		t.Fatalf("Login() failed: %s", res.Error)
	}

	e.backend.ForceUnauthorized(true)
	if _, err := e.mgr.Me(context.Background()); err == nil {
		t.Fatal("expected error from forced 401")
	}

	if e.mgr.IsAuthenticated() {
		t.Error("session survived gateway 401")
	}
	if e.store.IsPresent() {
		t.Error("credential survived gateway 401")
	}

	// A user-initiated logout afterwards lands in the same terminal state.
	e.mgr.Logout()
	if e.mgr.IsAuthenticated() || e.store.IsPresent() {
		t.Error("logout after 401 diverged")
	}
}

func TestGuard_LoadingGatesThenRoleDecides(t *testing.T) {
	e := newTestEnv(t)
	e.backend.SeedUser("c@example.com", "pw", model.RoleCandidate)

	recruiterOnly := []model.Role{model.RoleRecruiter}

	// Before Initialize resolves, a protected route shows a neutral
	// placeholder; never the wrong content.
	out := guard.Decide(e.mgr.Snapshot(), "/recruiter/dashboard", recruiterOnly)
	if out.Decision != guard.ShowNeutral {
		t.Fatalf("pre-init Decision = %s, want show-neutral", out.Decision)
	}

	e.mgr.Initialize()
	out = guard.Decide(e.mgr.Snapshot(), "/recruiter/dashboard", recruiterOnly)
	if out.Decision != guard.RedirectLogin {
		t.Fatalf("anonymous Decision = %s, want redirect-login", out.Decision)
	}

	if res := e.mgr.Login(context.Background(), "c@example.com", "pw"); !res.OK {
		t.Fatalf("Login() failed: %s", res.Error)
	}
	out = guard.Decide(e.mgr.Snapshot(), "/recruiter/dashboard", recruiterOnly)
	if out.Decision != guard.RedirectUnauthorized {
		t.Errorf("candidate on recruiter route Decision = %s, want redirect-unauthorized", out.Decision)
	}

	out = guard.Decide(e.mgr.Snapshot(), "/jobs", []model.Role{model.RoleCandidate})
	if out.Decision != guard.Render {
		t.Errorf("candidate on candidate route Decision = %s, want render", out.Decision)
	}
}
