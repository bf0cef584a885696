// Package guard decides, for a session record, whether a guarded route subtree
// may be rendered. Decisions are pure functions of the record.
package guard

import (
	"github.com/storefront-dev/storefront/internal/session"
)

// Outcome of a guard evaluation
type Outcome int

const (
	Render Outcome = iota
	Loading
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the result of evaluating a guard
type Decision struct {
	Outcome Outcome
	// Location is set for redirects only
	Location string
}

// Guard gates a route subtree on the state of one namespace
type Guard struct {
	Name      string
	Namespace session.Namespace
	Allow     func(session.Record) bool
	Redirect  string
}

// Evaluate never redirects while the namespace is still loading
func (g Guard) Evaluate(rec session.Record) Decision {
	if rec.IsLoading {
		return Decision{Outcome: Loading}
	}
	if g.Allow(rec) {
		return Decision{Outcome: Render}
	}
	return Decision{Outcome: Redirect, Location: g.Redirect}
}

// Check evaluates the guard against the matching record of a visitor state
func (g Guard) Check(st *session.State) Decision {
	return g.Evaluate(st.Record(g.Namespace))
}

func authenticated(rec session.Record) bool {
	return rec.IsAuthenticated && rec.User != nil
}

func anonymous(rec session.Record) bool {
	return !authenticated(rec)
}

var (
	// UserArea protects the shopper pages
	UserArea = Guard{
		Name:      "user-area",
		Namespace: session.NamespaceUser,
		Allow: func(rec session.Record) bool {
			return authenticated(rec) && rec.HasIdentity()
		},
		Redirect: "/user/login",
	}

	// UserLogin keeps signed-in shoppers away from login and signup
	UserLogin = Guard{
		Name:      "user-login",
		Namespace: session.NamespaceUser,
		Allow:     anonymous,
		Redirect:  "/user/home",
	}

	// AdminArea protects the back-office pages
	AdminArea = Guard{
		Name:      "admin-area",
		Namespace: session.NamespaceAdmin,
		Allow:     authenticated,
		Redirect:  "/admin/login",
	}

	// AdminLogin keeps signed-in administrators away from the admin login
	AdminLogin = Guard{
		Name:      "admin-login",
		Namespace: session.NamespaceAdmin,
		Allow:     anonymous,
		Redirect:  "/admin/dashboard",
	}
)
