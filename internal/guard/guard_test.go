package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/storefront-dev/storefront/internal/session"
)

var (
	anonymousRecord = session.Record{}
	signedInRecord  = session.Record{IsAuthenticated: true, User: &session.Profile{ID: "u1"}, Role: session.RoleUser}
	noIdentity      = session.Record{IsAuthenticated: true, User: &session.Profile{}, Role: session.RoleUser}
	flagWithoutUser = session.Record{IsAuthenticated: true}

	signedInRecordTime = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
)

func TestGuards_Table(t *testing.T) {
	tests := []struct {
		name     string
		guard    Guard
		record   session.Record
		outcome  Outcome
		location string
	}{
		{"user area anonymous", UserArea, anonymousRecord, Redirect, "/user/login"},
		{"user area signed in", UserArea, signedInRecord, Render, ""},
		{"user area missing _id", UserArea, noIdentity, Redirect, "/user/login"},
		{"user area flag without profile", UserArea, flagWithoutUser, Redirect, "/user/login"},

		{"user login anonymous", UserLogin, anonymousRecord, Render, ""},
		{"user login signed in", UserLogin, signedInRecord, Redirect, "/user/home"},
		{"user login flag without profile", UserLogin, flagWithoutUser, Render, ""},

		{"admin area anonymous", AdminArea, anonymousRecord, Redirect, "/admin/login"},
		{"admin area signed in", AdminArea, signedInRecord, Render, ""},
		{"admin area missing _id", AdminArea, noIdentity, Render, ""},

		{"admin login anonymous", AdminLogin, anonymousRecord, Render, ""},
		{"admin login signed in", AdminLogin, signedInRecord, Redirect, "/admin/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.guard.Evaluate(tt.record)
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, tt.location, d.Location)
		})
	}
}

func TestGuards_LoadingNeverRedirects(t *testing.T) {
	records := []session.Record{
		{IsLoading: true},
		{IsLoading: true, IsAuthenticated: true, User: &session.Profile{ID: "u1"}},
	}

	for _, g := range []Guard{UserArea, UserLogin, AdminArea, AdminLogin} {
		for _, rec := range records {
			d := g.Evaluate(rec)
			assert.Equal(t, Loading, d.Outcome, g.Name)
			assert.Empty(t, d.Location, g.Name)
		}
	}
}

func TestGuards_FollowLoginAndLogout(t *testing.T) {
	for _, g := range []Guard{UserArea, AdminArea} {
		st := session.NewState("v1", signedInRecordTime, 0)

		st.Login(g.Namespace, session.RawProfile{ID: "p1"})
		assert.Equal(t, Render, g.Check(st).Outcome, g.Name)

		st.Logout(g.Namespace)
		assert.Equal(t, Redirect, g.Check(st).Outcome, g.Name)
	}
}

func TestGuards_NamespaceIsolation(t *testing.T) {
	st := session.NewState("v1", signedInRecordTime, 0)
	st.Login(session.NamespaceAdmin, session.RawProfile{ID: "a1", IsAdmin: true})

	assert.Equal(t, Render, AdminArea.Check(st).Outcome)
	assert.Equal(t, Redirect, UserArea.Check(st).Outcome)
	assert.Equal(t, Render, UserLogin.Check(st).Outcome)
}

func TestGuards_DoNotMutate(t *testing.T) {
	st := session.NewState("v1", signedInRecordTime, 0)
	st.Login(session.NamespaceUser, session.RawProfile{ID: "u1"})
	before := st.Clone()

	for _, g := range []Guard{UserArea, UserLogin, AdminArea, AdminLogin} {
		g.Check(st)
	}
	assert.Equal(t, before, st)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "render", Render.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "redirect", Redirect.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
