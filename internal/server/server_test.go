package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-dev/storefront/internal/auth"
	"github.com/storefront-dev/storefront/internal/backend/backendtest"
	"github.com/storefront-dev/storefront/internal/config"
	"github.com/storefront-dev/storefront/internal/session"
)

var shopper = map[string]any{
	"id":        "u-1",
	"firstName": "Ada",
	"lastName":  "Lovelace",
	"email":     "ada@example.com",
	"isAdmin":   false,
}

var administrator = map[string]any{
	"_id":       "a-1",
	"firstName": "Grace",
	"email":     "grace@example.com",
	"isAdmin":   true,
}

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Address: ":0", AllowedOrigins: []string{"http://localhost:5173"}},
		Backend: config.BackendConfig{URL: backendURL, OAuthURL: backendURL + "/auth/google", SessionCookie: "connect.sid", Timeout: 5 * time.Second},
		Session: config.SessionConfig{Store: config.StoreMemory, Secret: "test-secret", TTL: time.Hour},
	}
}

type harness struct {
	t       *testing.T
	server  *Server
	store   session.Store
	memory  *session.MemoryStore
	backend *backendtest.Server
	http    *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, nil)
}

// newHarnessWithStore lets a test wrap the in-memory store the gateway writes to
func newHarnessWithStore(t *testing.T, wrap func(*session.MemoryStore) session.Store) *harness {
	t.Helper()

	fake := backendtest.New(t)
	memory := session.NewMemoryStore()
	var store session.Store = memory
	if wrap != nil {
		store = wrap(memory)
	}

	srv, err := NewWithStore(testConfig(fake.URL()), zerolog.Nop(), store, fake.Client(), "test")
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{t: t, server: srv, store: store, memory: memory, backend: fake, http: ts}
}

// visitor is a browser with its own cookie jar that does not follow redirects
type visitor struct {
	h      *harness
	client *http.Client
}

func (h *harness) visitor() *visitor {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &visitor{
		h: h,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type response struct {
	Status   int
	Location string
	View     View
}

func (v *visitor) do(method, path string, body any, cookies ...*http.Cookie) response {
	v.h.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(v.h.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, v.h.http.URL+path, reader)
	require.NoError(v.h.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := v.client.Do(req)
	require.NoError(v.h.t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode, Location: resp.Header.Get("Location")}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(v.h.t, err)
	if resp.Header.Get("Content-Type") == "application/json; charset=utf-8" && len(raw) > 0 {
		require.NoError(v.h.t, json.Unmarshal(raw, &out.View))
	}
	return out
}

func (v *visitor) get(path string, cookies ...*http.Cookie) response {
	return v.do(http.MethodGet, path, nil, cookies...)
}

func (v *visitor) post(path string, body any) response {
	return v.do(http.MethodPost, path, body)
}

// state reads the visitor's session straight from the store
func (v *visitor) state() *session.State {
	v.h.t.Helper()

	u, err := url.Parse(v.h.http.URL)
	require.NoError(v.h.t, err)

	for _, ck := range v.client.Jar.Cookies(u) {
		if ck.Name != auth.CookieName {
			continue
		}
		claims, err := v.h.server.signer.ValidateToken(ck.Value)
		require.NoError(v.h.t, err)
		st, err := v.h.memory.Get(context.Background(), claims.SessionID)
		require.NoError(v.h.t, err)
		return st
	}
	v.h.t.Fatal("visitor has no session cookie")
	return nil
}

func (v *visitor) loginShopper() {
	v.h.t.Helper()
	resp := v.post("/user/login", map[string]any{"email": "ada@example.com", "password": "secret1"})
	require.Equal(v.h.t, http.StatusSeeOther, resp.Status)
	require.Equal(v.h.t, "/user/home", resp.Location)
}

func (v *visitor) loginAdmin() {
	v.h.t.Helper()
	resp := v.post("/admin/login", map[string]any{"email": "grace@example.com", "password": "secret1"})
	require.Equal(v.h.t, http.StatusSeeOther, resp.Status)
	require.Equal(v.h.t, "/admin/dashboard", resp.Location)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	resp := h.visitor().get("/health")

	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestRoot_RedirectsToLogin(t *testing.T) {
	h := newHarness(t)

	resp := h.visitor().get("/")

	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/user/login", resp.Location)
}

func TestUnknownPath_NotFound(t *testing.T) {
	h := newHarness(t)

	resp := h.visitor().get("/nowhere")

	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, ScreenNotFound, resp.View.Screen)
}

func TestGuards_AnonymousVisitor(t *testing.T) {
	h := newHarness(t)
	v := h.visitor()

	tests := []struct {
		path     string
		status   int
		location string
		screen   string
	}{
		{"/user/home", http.StatusFound, "/user/login", ""},
		{"/user/Profile", http.StatusFound, "/user/login", ""},
		{"/admin/dashboard", http.StatusFound, "/admin/login", ""},
		{"/admin/data", http.StatusFound, "/admin/login", ""},
		{"/admin/Orders", http.StatusFound, "/admin/login", ""},
		{"/user/login", http.StatusOK, "", ScreenLogin},
		{"/user/signup", http.StatusOK, "", ScreenSignup},
		{"/admin/login", http.StatusOK, "", ScreenAdminLogin},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := v.get(tt.path)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.location, resp.Location)
			if tt.screen != "" {
				assert.Equal(t, tt.screen, resp.View.Screen)
			}
		})
	}
}

func TestShopperLogin_Flow(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("POST /user/login", backendtest.VerifiedLogin(shopper, "shop-cookie"))
	v := h.visitor()

	v.loginShopper()

	st := v.state()
	assert.True(t, st.User.IsAuthenticated)
	require.NotNil(t, st.User.User)
	assert.Equal(t, "u-1", st.User.User.ID)
	assert.Equal(t, session.RoleUser, st.User.Role)
	assert.Equal(t, "connect.sid=shop-cookie", st.Credential(session.NamespaceUser))
	assert.False(t, st.Admin.IsAuthenticated)

	resp := v.get("/user/home")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, ScreenHome, resp.View.Screen)

	// The login screen is no longer reachable
	resp = v.get("/user/login")
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/user/home", resp.Location)

	// Signing in as a shopper grants nothing in the back office
	resp = v.get("/admin/dashboard")
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/admin/login", resp.Location)
}

func TestShopperLogin_ValidationSkipsBackend(t *testing.T) {
	h := newHarness(t)
	v := h.visitor()

	resp := v.post("/user/login", map[string]any{"email": "not-an-email", "password": "x"})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, ScreenLogin, resp.View.Screen)
	assert.Contains(t, resp.View.Errors, "email")
	assert.Contains(t, resp.View.Errors, "password")
	assert.Zero(t, h.backend.Count(http.MethodPost, "/user/login"))
}

func TestShopperLogin_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   int
	}{
		{"wrong password", http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"}, http.StatusUnauthorized},
		{"not verified", http.StatusOK, map[string]any{"status": "PENDING", "message": "Verify your email"}, http.StatusBadRequest},
		{"missing profile", http.StatusOK, map[string]any{"status": "VERIFIED"}, http.StatusBadGateway},
		{"backend down", http.StatusServiceUnavailable, map[string]any{"message": "maintenance"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.JSON("POST /user/login", tt.status, tt.body)
			v := h.visitor()

			resp := v.post("/user/login", map[string]any{"email": "ada@example.com", "password": "secret1"})

			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, ScreenLogin, resp.View.Screen)
			require.NotNil(t, resp.View.Notice)
			assert.Equal(t, NoticeError, resp.View.Notice.Level)

			st := v.state()
			assert.False(t, st.User.IsAuthenticated)
			assert.Nil(t, st.User.User)
			assert.Empty(t, st.Credentials)
		})
	}
}

func TestShopperLogout(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("POST /user/login", backendtest.VerifiedLogin(shopper, "shop-cookie"))
	h.backend.JSON("POST /user/logout", http.StatusOK, map[string]any{"message": "bye"})
	v := h.visitor()
	v.loginShopper()

	resp := v.post("/user/logout", nil)

	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/user/login", resp.Location)

	st := v.state()
	assert.False(t, st.User.IsAuthenticated)
	assert.Nil(t, st.User.User)
	assert.Empty(t, st.Credential(session.NamespaceUser))

	reqs := h.backend.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "/user/logout", last.Path)
	assert.Equal(t, "connect.sid=shop-cookie", last.Cookie)

	resp = v.get("/user/home")
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/user/login", resp.Location)
}

func TestShopperLogout_BackendFailureStillSignsOut(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("POST /user/login", backendtest.VerifiedLogin(shopper, "shop-cookie"))
	h.backend.JSON("POST /user/logout", http.StatusInternalServerError, map[string]any{"message": "boom"})
	v := h.visitor()
	v.loginShopper()

	resp := v.post("/user/logout", nil)

	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.False(t, v.state().User.IsAuthenticated)
}

func TestNamespaces_AreIndependent(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("POST /user/login", backendtest.VerifiedLogin(shopper, "shop-cookie"))
	h.backend.Handle("POST /admin/login", backendtest.VerifiedLogin(administrator, "admin-cookie"))
	h.backend.JSON("POST /user/logout", http.StatusOK, map[string]any{})
	v := h.visitor()

	v.loginShopper()
	v.loginAdmin()

	st := v.state()
	assert.True(t, st.User.IsAuthenticated)
	assert.True(t, st.Admin.IsAuthenticated)
	assert.Equal(t, session.RoleAdmin, st.Admin.Role)
	assert.Equal(t, "a-1", st.Admin.User.ID)

	resp := v.post("/admin/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/admin/login", resp.Location)

	st = v.state()
	assert.False(t, st.Admin.IsAuthenticated)
	assert.True(t, st.User.IsAuthenticated)
	assert.Equal(t, "connect.sid=shop-cookie", st.Credential(session.NamespaceUser))
}

func TestAdminLogin_RejectsShopperAccount(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("POST /admin/login", backendtest.VerifiedLogin(shopper, "shop-cookie"))
	v := h.visitor()

	resp := v.post("/admin/login", map[string]any{"email": "ada@example.com", "password": "secret1"})

	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, ScreenAdminLogin, resp.View.Screen)
	assert.False(t, v.state().Admin.IsAuthenticated)
}

func TestSignup_NavigatesToOTP(t *testing.T) {
	h := newHarness(t)
	h.backend.JSON("POST /user/signup", http.StatusCreated, map[string]any{
		"userId":  "u-9",
		"email":   "new@example.com",
		"message": "OTP sent",
	})
	v := h.visitor()

	resp := v.post("/user/signup", map[string]any{
		"firstName":       "New",
		"lastName":        "Shopper",
		"email":           "new@example.com",
		"phone":           "+14155550100",
		"password":        "secret1",
		"confirmPassword": "secret1",
	})

	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/user/verify-otp/u-9/new@example.com", resp.Location)
}

func TestSignup_PasswordsMustMatch(t *testing.T) {
	h := newHarness(t)
	v := h.visitor()

	resp := v.post("/user/signup", map[string]any{
		"firstName":       "New",
		"lastName":        "Shopper",
		"email":           "new@example.com",
		"phone":           "12",
		"password":        "secret1",
		"confirmPassword": "secret2",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, "Passwords do not match", resp.View.Errors["confirmPassword"])
	assert.Equal(t, "Enter a valid phone number", resp.View.Errors["phone"])
	assert.Zero(t, h.backend.Count(http.MethodPost, "/user/signup"))
}

func TestVerifyOTP(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		status   int
		location string
	}{
		{"verified", map[string]any{"status": "VERIFIED"}, http.StatusSeeOther, "/user/login"},
		{"wrong code", map[string]any{"status": "FAILED", "message": "Invalid OTP"}, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.JSON("POST /user/verifyOTP", http.StatusOK, tt.body)
			v := h.visitor()
			v.get("/user/login")
			before := v.state()

			resp := v.post("/user/verify-otp/u-9/new@example.com", map[string]any{"otp": "1234"})

			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.location, resp.Location)

			after := v.state()
			assert.Equal(t, before.User, after.User)
			assert.Equal(t, before.Admin, after.Admin)
		})
	}
}

func TestLoadingNamespace_RendersLoadingView(t *testing.T) {
	h := newHarness(t)
	v := h.visitor()
	v.get("/user/login")

	_, err := h.server.Sessions().Update(context.Background(), v.state().ID, func(st *session.State) error {
		st.BeginLoading(session.NamespaceUser, time.Now())
		return nil
	})
	require.NoError(t, err)

	for _, path := range []string{"/user/home", "/user/login"} {
		resp := v.get(path)
		assert.Equal(t, http.StatusOK, resp.Status, path)
		assert.Equal(t, ScreenLoading, resp.View.Screen, path)
		assert.Empty(t, resp.Location, path)
	}
}

func TestRestore_FromBackendCookie(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("GET /auth/login/success", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("connect.sid"); err != nil || ck.Value != "oauth-cookie" {
			backendtest.WriteJSON(w, http.StatusUnauthorized, map[string]any{"message": "no session"})
			return
		}
		backendtest.WriteJSON(w, http.StatusOK, map[string]any{"user": shopper, "role": "user"})
	})
	v := h.visitor()

	resp := v.get("/user/home", &http.Cookie{Name: "connect.sid", Value: "oauth-cookie"})

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, ScreenHome, resp.View.Screen)

	st := v.state()
	assert.True(t, st.User.IsAuthenticated)
	assert.False(t, st.User.IsLoading)
	assert.Equal(t, "connect.sid=oauth-cookie", st.Credential(session.NamespaceUser))

	// A shopper session never opens the back office
	resp = v.get("/admin/dashboard", &http.Cookie{Name: "connect.sid", Value: "oauth-cookie"})
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.False(t, v.state().Admin.IsAuthenticated)
}

func TestRestore_RejectedCookieClearsLoading(t *testing.T) {
	h := newHarness(t)
	h.backend.JSON("GET /auth/login/success", http.StatusUnauthorized, map[string]any{"message": "no session"})
	v := h.visitor()

	resp := v.get("/user/home", &http.Cookie{Name: "connect.sid", Value: "stale"})

	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/user/login", resp.Location)

	st := v.state()
	assert.False(t, st.User.IsAuthenticated)
	assert.False(t, st.User.IsLoading)
	assert.Empty(t, st.Credentials)
}

func TestOAuthStart_RedirectsToBackend(t *testing.T) {
	h := newHarness(t)

	resp := h.visitor().get("/user/auth/google")

	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, h.backend.URL()+"/auth/google", resp.Location)
}

func TestInvalidSessionCookie_StartsNewSession(t *testing.T) {
	h := newHarness(t)
	v := h.visitor()

	resp := v.get("/user/login", &http.Cookie{Name: auth.CookieName, Value: "garbage"})

	assert.Equal(t, http.StatusOK, resp.Status)
	st := v.state()
	assert.False(t, st.User.IsAuthenticated)
	assert.Equal(t, 1, h.memory.Len())
}
