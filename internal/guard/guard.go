// Package guard computes render/redirect decisions from the current
// session and a route's allowed-roles set. Decisions are pure: no I/O,
// exactly one outcome per call.
package guard

import (
	"slices"

	"github.com/recruitport/recruitport-go/internal/model"
	"github.com/recruitport/recruitport-go/internal/session"
)

// Decision is the single outcome of an access check.
type Decision int

const (
	// ShowNeutral renders a placeholder while the session is still loading.
	ShowNeutral Decision = iota
	// RedirectLogin sends an unauthenticated user to the login entry point.
	RedirectLogin
	// RedirectUnauthorized rejects an authenticated user whose role is
	// not in the route's allowed set.
	RedirectUnauthorized
	// Render grants access.
	Render
)

func (d Decision) String() string {
	switch d {
	case ShowNeutral:
		return "show-neutral"
	case RedirectLogin:
		return "redirect-login"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	case Render:
		return "render"
	}
	return "unknown"
}

// Outcome pairs a decision with the originally requested route, so a
// login redirect can resume where the user was headed.
type Outcome struct {
	Decision Decision
	From     string
}

// Decide evaluates access to the route named from. An empty allowed
// set means any authenticated role. Loading always wins: no content
// and no redirect until the session manager has resolved.
func Decide(snap session.Snapshot, from string, allowed []model.Role) Outcome {
	if snap.Loading {
		return Outcome{Decision: ShowNeutral}
	}
	if !snap.Authenticated {
		return Outcome{Decision: RedirectLogin, From: from}
	}
	if len(allowed) > 0 && !slices.Contains(allowed, snap.Session.Role) {
		return Outcome{Decision: RedirectUnauthorized}
	}
	return Outcome{Decision: Render}
}

// Route declares the access policy for one route.
type Route struct {
	Name string
	// Public routes skip the guard entirely (login, register).
	Public bool
	// Allowed is the role set granted access; empty means any
	// authenticated role.
	Allowed []model.Role
}

// Table is a declarative route policy map, decoupled from any
// rendering or command framework.
type Table map[string]Route

// Lookup returns the policy for a route name.
func (t Table) Lookup(name string) (Route, bool) {
	r, ok := t[name]
	return r, ok
}

// Decide applies the table's policy for the named route to a snapshot.
// Unknown routes are treated as requiring authentication with no role
// restriction.
func (t Table) Decide(name string, snap session.Snapshot) Outcome {
	r, ok := t.Lookup(name)
	if !ok {
		return Decide(snap, name, nil)
	}
	if r.Public {
		return Outcome{Decision: Render}
	}
	return Decide(snap, name, r.Allowed)
}
