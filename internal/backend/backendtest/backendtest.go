// Package backendtest provides a scriptable stand-in for the storefront backend.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/storefront-dev/storefront/internal/backend"
)

// Request is a call the fake backend received
type Request struct {
	Method string
	Path   string
	Cookie string
	Body   map[string]any
}

// Server is a fake backend. Routes are registered with Handle using the
// Go 1.22 ServeMux pattern syntax ("POST /user/login").
type Server struct {
	t   testing.TB
	mux *http.ServeMux
	srv *httptest.Server

	mu       sync.Mutex
	requests []Request
}

// New starts a fake backend that is closed when the test ends
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{t: t, mux: http.NewServeMux()}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	rec := Request{Method: r.Method, Path: r.URL.Path, Cookie: r.Header.Get("Cookie")}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()

	s.mux.ServeHTTP(w, r)
}

// URL is the base URL of the fake backend
func (s *Server) URL() string {
	return s.srv.URL
}

// Client returns a backend client pointed at the fake
func (s *Server) Client() *backend.Client {
	return backend.New(s.srv.URL, s.srv.URL+"/auth/google", 5*time.Second)
}

// Handle registers a handler for a pattern
func (s *Server) Handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
}

// JSON registers a handler answering with a fixed status and JSON body
func (s *Server) JSON(pattern string, status int, body any) {
	s.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Requests returns the calls received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many calls hit the given method and path
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// VerifiedLogin answers a login with a VERIFIED status, the profile and a session cookie
func VerifiedLogin(profile map[string]any, cookieValue string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: cookieValue, Path: "/"})
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":  backend.StatusVerified,
			"message": "Login successful",
			"user":    profile,
		})
	}
}
