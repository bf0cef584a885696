package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/storefront-dev/storefront/internal/auth"
	"github.com/storefront-dev/storefront/internal/backend"
	"github.com/storefront-dev/storefront/internal/guard"
	"github.com/storefront-dev/storefront/internal/session"
)

const sessionKey = "session"

var (
	errAlreadySettled = errors.New("namespace already settled")
	errStaleCheck     = errors.New("session check superseded")
)

func setSession(c *gin.Context, st *session.State) {
	c.Set(sessionKey, st)
}

// GetSession returns the visitor state resolved for this request
func GetSession(c *gin.Context) (*session.State, bool) {
	value, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}

	st, ok := value.(*session.State)
	return st, ok
}

func currentSession(c *gin.Context) *session.State {
	st, ok := GetSession(c)
	if !ok {
		panic("server: session middleware not installed")
	}
	return st
}

func (s *Server) issueCookie(c *gin.Context, st *session.State) {
	token, err := s.signer.GenerateToken(st.ID, st.ExpiresAt)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", st.ID).Msg("Failed to sign session cookie")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(s.sessions.TTL().Seconds()), "/", "", s.config.Session.SecureCookie, true)
}

// sessionMiddleware resolves the visitor session from the cookie, starting a new
// one when the cookie is missing, invalid or points at an expired session
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if token, err := c.Cookie(auth.CookieName); err == nil && token != "" {
			claims, err := s.signer.ValidateToken(token)
			if err != nil {
				s.logger.Debug().Err(err).Msg("Ignoring invalid session cookie")
			} else {
				st, err := s.sessions.Load(ctx, claims.SessionID)
				switch {
				case err == nil:
					setSession(c, st)
					c.Next()
					return
				case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
					s.logger.Debug().Err(err).Str("session_id", claims.SessionID).Msg("Starting a new session")
				default:
					s.logger.Error().Err(err).Str("session_id", claims.SessionID).Msg("Failed to load session")
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
					return
				}
			}
		}

		st, err := s.sessions.Create(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to create session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		s.issueCookie(c, st)
		setSession(c, st)
		c.Next()
	}
}

// backendCredential returns the backend cookie that can prove a signed-in
// account for the namespace: the one stored at login, or the one the browser
// presents (after an OAuth round trip, or a backend session created elsewhere)
func (s *Server) backendCredential(c *gin.Context, st *session.State, ns session.Namespace) string {
	if cred := st.Credential(ns); cred != "" {
		return cred
	}
	name := s.config.Backend.SessionCookie
	if name == "" {
		return ""
	}
	value, err := c.Cookie(name)
	if err != nil || value == "" {
		return ""
	}
	return name + "=" + value
}

const (
	// Added to the backend timeout before a loading namespace counts as abandoned
	loadingGrace = 5 * time.Second

	// How long a backend cookie the backend refused is not asked about again
	rejectionWindow = time.Minute
)

func (s *Server) loadingMaxAge() time.Duration {
	return s.config.Backend.Timeout + loadingGrace
}

// restoreMiddleware re-queries the backend session for a signed-out namespace
// when a backend credential is available. While the check runs, the namespace is
// loading and concurrent requests get the loading view instead of a redirect.
// A check that never finished is taken over or cleared once it is abandoned.
func (s *Server) restoreMiddleware(ns session.Namespace) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := currentSession(c)
		rec := st.Record(ns)
		now := s.sessions.Now()
		abandoned := rec.LoadingAbandoned(now, s.loadingMaxAge())
		if rec.IsAuthenticated || (rec.IsLoading && !abandoned) {
			c.Next()
			return
		}

		credential := s.backendCredential(c, st, ns)
		if credential != "" && st.RecentlyRejected(ns, credential, now, rejectionWindow) {
			credential = ""
		}

		switch {
		case credential != "":
			s.restore(c, ns, credential)
		case abandoned:
			s.clearAbandoned(c, ns)
		}
		c.Next()
	}
}

func (s *Server) restore(c *gin.Context, ns session.Namespace, credential string) {
	ctx := c.Request.Context()
	id := currentSession(c).ID
	log := s.logger.With().Str("session_id", id).Str("namespace", string(ns)).Logger()

	var ticket uint64
	st, err := s.sessions.Update(ctx, id, func(st *session.State) error {
		rec := st.Record(ns)
		now := s.sessions.Now()
		if rec.IsAuthenticated || (rec.IsLoading && !rec.LoadingAbandoned(now, s.loadingMaxAge())) {
			return errAlreadySettled
		}
		ticket = st.BeginLoading(ns, now)
		return nil
	})
	if err != nil {
		if !errors.Is(err, errAlreadySettled) {
			log.Error().Err(err).Msg("Failed to start session check")
		}
		s.reloadSession(c)
		return
	}
	setSession(c, st)

	var profile *session.RawProfile
	rejected := false
	res, err := s.backend.RestoreSession(ctx, credential)
	switch {
	case err != nil:
		_, rejected = backend.IsRejection(err)
		log.Debug().Err(err).Msg("Backend session not restorable")
	case ns == session.NamespaceAdmin && res.Role != session.RoleAdmin:
		rejected = true
		log.Debug().Str("user_id", res.Profile.Identity()).Msg("Backend session is not an admin session")
	default:
		profile = &res.Profile
	}

	// A visitor that went away must not be signed in by a late answer, but the
	// loading flag still has to be cleared.
	if ctx.Err() != nil {
		profile = nil
		rejected = false
	}

	finishCtx := context.WithoutCancel(ctx)
	st, err = s.sessions.Update(finishCtx, id, func(st *session.State) error {
		if !st.Resolve(ns, ticket, profile) {
			return errStaleCheck
		}
		if profile != nil {
			st.SetCredential(ns, credential)
		} else {
			st.SetCredential(ns, "")
		}
		if rejected {
			st.RejectCredential(ns, credential, s.sessions.Now())
		}
		return nil
	})
	switch {
	case errors.Is(err, errStaleCheck):
		log.Debug().Msg("Dropping superseded session check")
		s.reloadSession(c)
	case err != nil:
		log.Error().Err(err).Msg("Failed to finish session check")
		s.releaseLoading(finishCtx, log, id, ns, ticket)
		s.reloadSession(c)
	default:
		if profile != nil {
			log.Info().Str("user_id", profile.Identity()).Msg("Session restored from backend")
		}
		setSession(c, st)
	}
}

// releaseLoading retries a plain loading-clear after the outcome of a check
// could not be written. If this fails as well the record is cleared later as
// abandoned.
func (s *Server) releaseLoading(ctx context.Context, log zerolog.Logger, id string, ns session.Namespace, ticket uint64) {
	_, err := s.sessions.Update(ctx, id, func(st *session.State) error {
		if !st.Resolve(ns, ticket, nil) {
			return errStaleCheck
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStaleCheck) {
		log.Error().Err(err).Msg("Failed to clear loading flag")
	}
}

// clearAbandoned ends a check that never resolved, leaving the namespace signed out
func (s *Server) clearAbandoned(c *gin.Context, ns session.Namespace) {
	id := currentSession(c).ID
	st, err := s.sessions.Update(context.WithoutCancel(c.Request.Context()), id, func(st *session.State) error {
		rec := st.Record(ns)
		if !rec.LoadingAbandoned(s.sessions.Now(), s.loadingMaxAge()) {
			return errAlreadySettled
		}
		st.Resolve(ns, rec.Epoch, nil)
		return nil
	})
	if err != nil {
		if !errors.Is(err, errAlreadySettled) {
			s.logger.Error().Err(err).Str("session_id", id).Str("namespace", string(ns)).Msg("Failed to clear abandoned session check")
		}
		s.reloadSession(c)
		return
	}
	s.logger.Info().Str("session_id", id).Str("namespace", string(ns)).Msg("Cleared abandoned session check")
	setSession(c, st)
}

func (s *Server) reloadSession(c *gin.Context) {
	id := currentSession(c).ID
	st, err := s.sessions.Load(context.WithoutCancel(c.Request.Context()), id)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("Failed to reload session")
		return
	}
	setSession(c, st)
}

// guardMiddleware renders the guarded subtree, the loading view, or redirects
func (s *Server) guardMiddleware(g guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Check(currentSession(c))

		switch d.Outcome {
		case guard.Render:
			c.Next()
		case guard.Loading:
			c.Header("Retry-After", "1")
			c.Header("Cache-Control", "no-store")
			c.AbortWithStatusJSON(http.StatusOK, View{Screen: ScreenLoading})
		case guard.Redirect:
			s.logger.Debug().
				Str("guard", g.Name).
				Str("path", c.Request.URL.Path).
				Str("location", d.Location).
				Msg("Guard redirect")
			c.Header("Cache-Control", "no-store")
			c.Redirect(http.StatusFound, d.Location)
			c.Abort()
		}
	}
}

// dispatch commits a session mutation for the current visitor. Nothing is
// written when the visitor already left.
func (s *Server) dispatch(c *gin.Context, fn func(*session.State) error) error {
	ctx := c.Request.Context()
	if err := ctx.Err(); err != nil {
		return err
	}

	st, err := s.sessions.Update(ctx, currentSession(c).ID, fn)
	if err != nil {
		return err
	}
	setSession(c, st)
	s.issueCookie(c, st)
	return nil
}
