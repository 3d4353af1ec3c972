package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recruitport/recruitport-go/internal/config"
	"github.com/recruitport/recruitport-go/internal/guard"
	"github.com/recruitport/recruitport-go/internal/model"
	"github.com/recruitport/recruitport-go/internal/session"
)

func TestResolveRoute(t *testing.T) {
	cases := []struct {
		args    []string
		route   string
		restLen int
	}{
		{[]string{"login", "-email", "a@b.c"}, "login", 2},
		{[]string{"jobs", "search", "-q", "go"}, "jobs.search", 2},
		{[]string{"jobs", "post"}, "jobs.post", 0},
		{[]string{"jobs"}, "", 0},
		{[]string{"review", "status", "-id", "x"}, "review.status", 2},
		{[]string{"notifications"}, "notifications", 0},
		{[]string{"notifications", "watch"}, "notifications.watch", 0},
		{[]string{"notifications", "read", "-id", "n1"}, "notifications.read", 2},
		{[]string{"frobnicate"}, "", 0},
	}

	for _, tc := range cases {
		route, rest := resolveRoute(tc.args)
		if route != tc.route {
			t.Errorf("resolveRoute(%v) route = %q, want %q", tc.args, route, tc.route)
		}
		if len(rest) != tc.restLen {
			t.Errorf("resolveRoute(%v) rest = %v, want %d args", tc.args, rest, tc.restLen)
		}
	}
}

func TestRouteTable_EveryRouteResolvable(t *testing.T) {
	for name := range routeTable {
		if routeTable[name].Name != name {
			t.Errorf("route %q has mismatched Name %q", name, routeTable[name].Name)
		}
	}
}

func TestRouteTable_RolePolicies(t *testing.T) {
	candidateOnly := []string{"jobs.search", "apply", "applications"}
	recruiterOnly := []string{"jobs.post", "jobs.delete", "review.list", "review.status", "review.resume"}

	for _, name := range candidateOnly {
		r, ok := routeTable.Lookup(name)
		if !ok {
			t.Fatalf("route %q missing", name)
		}
		if !slices.Contains(r.Allowed, model.RoleCandidate) || len(r.Allowed) != 1 {
			t.Errorf("route %q Allowed = %v, want candidate only", name, r.Allowed)
		}
	}
	for _, name := range recruiterOnly {
		r, ok := routeTable.Lookup(name)
		if !ok {
			t.Fatalf("route %q missing", name)
		}
		if !slices.Contains(r.Allowed, model.RoleRecruiter) || len(r.Allowed) != 1 {
			t.Errorf("route %q Allowed = %v, want recruiter only", name, r.Allowed)
		}
	}

	broadcast, _ := routeTable.Lookup("notifications.broadcast")
	if !slices.Contains(broadcast.Allowed, model.RoleAdmin) {
		t.Error("broadcast must be admin only")
	}
}

func TestNotificationsWatch_StopsWhenSessionExpires(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	t.Cleanup(srv.Close)

	a, err := newApp(config.Config{
		BaseURL:      srv.URL,
		StateFile:    filepath.Join(t.TempDir(), "session.json"),
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.store.Set("soon-to-be-rejected"); err != nil {
		t.Fatal(err)
	}

	done := make(chan int, 1)
	go func() { done <- a.cmdNotificationsWatch(context.Background()) }()

	// The first fetch 401s, clears the store and must stop the watch.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch kept running after the session became unauthenticated")
	}

	settled := requests.Load()
	time.Sleep(50 * time.Millisecond)
	if got := requests.Load(); got != settled {
		t.Errorf("fetches kept arriving after expiry: %d -> %d", settled, got)
	}
}

func TestRouteTable_GuardIntegration(t *testing.T) {
	candidate := session.Snapshot{
		Session:       session.Session{ID: "u1", Email: "c@example.com", Role: model.RoleCandidate},
		Authenticated: true,
	}

	if out := routeTable.Decide("jobs.search", candidate); out.Decision != guard.Render {
		t.Errorf("candidate jobs.search = %s, want render", out.Decision)
	}
	if out := routeTable.Decide("jobs.post", candidate); out.Decision != guard.RedirectUnauthorized {
		t.Errorf("candidate jobs.post = %s, want redirect-unauthorized", out.Decision)
	}
	if out := routeTable.Decide("login", session.Snapshot{Loading: true}); out.Decision != guard.Render {
		t.Errorf("login while loading = %s, want render (public)", out.Decision)
	}
	if out := routeTable.Decide("notifications", session.Snapshot{}); out.Decision != guard.RedirectLogin {
		t.Errorf("anonymous notifications = %s, want redirect-login", out.Decision)
	}
}
