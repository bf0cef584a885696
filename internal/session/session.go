package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Namespace identifies one of the two independent actor contexts of a visitor
type Namespace string

const (
	NamespaceUser  Namespace = "user"
	NamespaceAdmin Namespace = "admin"
)

// Namespaces lists every namespace in a stable order
var Namespaces = []Namespace{NamespaceUser, NamespaceAdmin}

// ParseNamespace validates a namespace name
func ParseNamespace(value string) (Namespace, error) {
	switch Namespace(value) {
	case NamespaceUser, NamespaceAdmin:
		return Namespace(value), nil
	default:
		return "", fmt.Errorf("unknown session namespace %q", value)
	}
}

// Role is derived from the profile at login time
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RoleFor maps the backend isAdmin flag to a role
func RoleFor(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// RawProfile is a profile as the backend sends it. Depending on the endpoint the
// identity arrives as "id" or "_id".
type RawProfile struct {
	ID           string `json:"id,omitempty"`
	MongoID      string `json:"_id,omitempty"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Email        string `json:"email,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	IsAdmin      bool   `json:"isAdmin,omitempty"`
}

// Identity returns whichever identity field the backend filled in
func (r RawProfile) Identity() string {
	if r.MongoID != "" {
		return r.MongoID
	}
	return r.ID
}

// Profile is the normalized profile kept in a session record
type Profile struct {
	ID           string `json:"_id"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Email        string `json:"email,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	IsAdmin      bool   `json:"isAdmin"`
}

// NormalizeProfile merges the identity into _id
func NormalizeProfile(raw RawProfile) Profile {
	return Profile{
		ID:           raw.Identity(),
		FirstName:    raw.FirstName,
		LastName:     raw.LastName,
		Email:        raw.Email,
		ProfileImage: raw.ProfileImage,
		IsAdmin:      raw.IsAdmin,
	}
}

// Record is the authentication state of one namespace.
//
// Epoch is bumped by every mutation and lets an asynchronous session check detect
// that its result no longer applies.
type Record struct {
	IsAuthenticated bool     `json:"isAuthenticated"`
	User            *Profile `json:"user"`
	IsLoading       bool     `json:"isLoading"`
	Role            Role     `json:"role,omitempty"`
	Epoch           uint64   `json:"epoch"`

	// Set by BeginLoading; a check that never resolved is abandoned after a while
	LoadingSince time.Time `json:"loadingSince,omitzero"`
}

// LoadingAbandoned reports whether the namespace has been loading for longer
// than maxAge. A loading record without a start time counts as abandoned.
func (r Record) LoadingAbandoned(now time.Time, maxAge time.Duration) bool {
	return r.IsLoading && now.Sub(r.LoadingSince) > maxAge
}

// HasIdentity reports whether the record carries a profile with an _id
func (r Record) HasIdentity() bool {
	return r.User != nil && r.User.ID != ""
}

func (r Record) isDefault() bool {
	return !r.IsAuthenticated && r.User == nil && !r.IsLoading && r.Role == ""
}

// State holds both namespace records of one visitor
type State struct {
	ID    string `json:"id"`
	User  Record `json:"user"`
	Admin Record `json:"admin"`

	// Backend session cookies captured at login, per namespace
	Credentials map[Namespace]string `json:"credentials,omitempty"`

	// Backend cookies the backend recently refused to restore, per namespace
	Rejections map[Namespace]Rejection `json:"rejections,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Rejection remembers a backend cookie that did not restore a session. Only a
// hash of the cookie is kept.
type Rejection struct {
	CredentialHash string    `json:"credentialHash"`
	At             time.Time `json:"at"`
}

func credentialHash(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// NewState returns a visitor state with both namespaces in their default state
func NewState(id string, now time.Time, ttl time.Duration) *State {
	return &State{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (s *State) record(ns Namespace) *Record {
	switch ns {
	case NamespaceUser:
		return &s.User
	case NamespaceAdmin:
		return &s.Admin
	}
	panic(fmt.Sprintf("session: unknown namespace %q", ns))
}

// Record returns a copy of the namespace record
func (s *State) Record(ns Namespace) Record {
	r := *s.record(ns)
	if r.User != nil {
		p := *r.User
		r.User = &p
	}
	return r
}

// Credential returns the backend cookie stored for the namespace
func (s *State) Credential(ns Namespace) string {
	return s.Credentials[ns]
}

// SetCredential stores the backend cookie for the namespace
func (s *State) SetCredential(ns Namespace, credential string) {
	if credential == "" {
		delete(s.Credentials, ns)
		return
	}
	if s.Credentials == nil {
		s.Credentials = make(map[Namespace]string)
	}
	s.Credentials[ns] = credential
}

// RejectCredential remembers that the backend refused the credential
func (s *State) RejectCredential(ns Namespace, credential string, now time.Time) {
	if s.Rejections == nil {
		s.Rejections = make(map[Namespace]Rejection)
	}
	s.Rejections[ns] = Rejection{CredentialHash: credentialHash(credential), At: now}
}

// RecentlyRejected reports whether the same credential was refused within window
func (s *State) RecentlyRejected(ns Namespace, credential string, now time.Time, window time.Duration) bool {
	rej, ok := s.Rejections[ns]
	if !ok || rej.CredentialHash != credentialHash(credential) {
		return false
	}
	return now.Sub(rej.At) < window
}

// Login authenticates the namespace with the given profile. The caller must have
// made sure the profile carries an identity; no validation happens here.
func (s *State) Login(ns Namespace, raw RawProfile) {
	r := s.record(ns)
	profile := NormalizeProfile(raw)
	delete(s.Rejections, ns)
	*r = Record{
		IsAuthenticated: true,
		User:            &profile,
		Role:            RoleFor(raw.IsAdmin),
		Epoch:           r.Epoch + 1,
	}
}

// Logout resets the namespace to its default state and forgets its backend cookie
func (s *State) Logout(ns Namespace) {
	r := s.record(ns)
	delete(s.Credentials, ns)
	if r.isDefault() {
		return
	}
	*r = Record{Epoch: r.Epoch + 1}
}

// BeginLoading marks the namespace as being checked and returns the ticket that
// Resolve needs to apply the outcome.
func (s *State) BeginLoading(ns Namespace, now time.Time) uint64 {
	r := s.record(ns)
	r.IsLoading = true
	r.LoadingSince = now
	r.Epoch++
	return r.Epoch
}

// Resolve finishes a check started by BeginLoading. A nil profile means the check
// found no valid session. It returns false, leaving the record untouched, when the
// namespace was mutated after the ticket was issued.
func (s *State) Resolve(ns Namespace, ticket uint64, raw *RawProfile) bool {
	r := s.record(ns)
	if !r.IsLoading || r.Epoch != ticket {
		return false
	}
	if raw != nil {
		s.Login(ns, *raw)
		return true
	}
	r.IsLoading = false
	r.LoadingSince = time.Time{}
	r.Epoch++
	return true
}

// Expired reports whether the state outlived its expiry
func (s *State) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(now)
}

// Clone returns a deep copy
func (s *State) Clone() *State {
	c := *s
	c.User = s.Record(NamespaceUser)
	c.Admin = s.Record(NamespaceAdmin)
	if s.Credentials != nil {
		c.Credentials = make(map[Namespace]string, len(s.Credentials))
		for k, v := range s.Credentials {
			c.Credentials[k] = v
		}
	}
	if s.Rejections != nil {
		c.Rejections = make(map[Namespace]Rejection, len(s.Rejections))
		for k, v := range s.Rejections {
			c.Rejections[k] = v
		}
	}
	return &c
}
