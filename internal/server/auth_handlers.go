package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/storefront-dev/storefront/internal/backend"
	"github.com/storefront-dev/storefront/internal/guard"
	"github.com/storefront-dev/storefront/internal/session"
)

// SignupForm represents the shopper registration form
type SignupForm struct {
	FirstName       string `json:"firstName" form:"firstName" validate:"required"`
	LastName        string `json:"lastName" form:"lastName" validate:"required"`
	Email           string `json:"email" form:"email" validate:"required,email"`
	Phone           string `json:"phone" form:"phone" validate:"required,phone"`
	Password        string `json:"password" form:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"required,eqfield=Password"`
}

// OTPForm represents the OTP entry form
type OTPForm struct {
	OTP string `json:"otp" form:"otp" validate:"required,otp"`
}

// LoginForm represents the login form of both namespaces
type LoginForm struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
}

func (s *Server) showSignup(c *gin.Context) {
	render(c, http.StatusOK, ScreenSignup, nil)
}

func (s *Server) signup(c *gin.Context) {
	var req SignupForm
	if !s.bindForm(c, ScreenSignup, nil, &req) {
		return
	}

	res, err := s.backend.Signup(c.Request.Context(), backend.SignupRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
	})
	if err != nil {
		s.backendFailure(c, ScreenSignup, nil, err)
		return
	}

	s.logger.Info().Str("user_id", res.UserID).Str("email", res.Email).Msg("Shopper signed up, OTP pending")
	navigate(c, otpPath(res.UserID, res.Email))
}

func otpPath(userID, email string) string {
	return "/user/verify-otp/" + url.PathEscape(userID) + "/" + url.PathEscape(email)
}

func otpData(c *gin.Context) gin.H {
	return gin.H{"userId": c.Param("userId"), "email": c.Param("email")}
}

func (s *Server) showVerifyOTP(c *gin.Context) {
	render(c, http.StatusOK, ScreenVerifyOTP, otpData(c))
}

func (s *Server) verifyOTP(c *gin.Context) {
	data := otpData(c)

	var req OTPForm
	if !s.bindForm(c, ScreenVerifyOTP, data, &req) {
		return
	}

	if _, err := s.backend.VerifyOTP(c.Request.Context(), c.Param("userId"), req.OTP); err != nil {
		s.backendFailure(c, ScreenVerifyOTP, data, err)
		return
	}

	s.logger.Info().Str("user_id", c.Param("userId")).Msg("Email verified")
	navigate(c, guard.UserArea.Redirect)
}

func (s *Server) resendOTP(c *gin.Context) {
	data := otpData(c)

	message, err := s.backend.ResendOTP(c.Request.Context(), c.Param("userId"), c.Param("email"))
	if err != nil {
		s.backendFailure(c, ScreenVerifyOTP, data, err)
		return
	}
	if message == "" {
		message = "A new code is on its way"
	}
	renderNotice(c, http.StatusOK, ScreenVerifyOTP, data, NoticeInfo, message)
}

func (s *Server) showLogin(c *gin.Context) {
	render(c, http.StatusOK, ScreenLogin, nil)
}

func (s *Server) login(c *gin.Context) {
	var req LoginForm
	if !s.bindForm(c, ScreenLogin, nil, &req) {
		return
	}

	res, err := s.backend.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.backendFailure(c, ScreenLogin, nil, err)
		return
	}

	err = s.dispatch(c, func(st *session.State) error {
		st.Login(session.NamespaceUser, res.Profile)
		st.SetCredential(session.NamespaceUser, res.Credential)
		return nil
	})
	if err != nil {
		s.sessionFailure(c, ScreenLogin, err)
		return
	}

	s.logger.Info().Str("user_id", res.Profile.Identity()).Msg("Shopper logged in")
	navigate(c, guard.UserLogin.Redirect)
}

// oauthStart hands the browser over to the backend-hosted OAuth flow
func (s *Server) oauthStart(c *gin.Context) {
	c.Redirect(http.StatusFound, s.backend.OAuthURL())
}

// oauthCallback is where the backend sends the browser back. A successful round
// trip has already signed the namespace in through restoreMiddleware and the
// login-area guard redirected; reaching this handler means it did not work.
func (s *Server) oauthCallback(c *gin.Context) {
	renderNotice(c, http.StatusUnauthorized, ScreenLogin, nil, NoticeError, "Sign-in with Google did not complete, please try again")
}

func (s *Server) home(c *gin.Context) {
	rec := currentSession(c).Record(session.NamespaceUser)
	render(c, http.StatusOK, ScreenHome, gin.H{"user": rec.User, "role": rec.Role})
}

func (s *Server) profile(c *gin.Context) {
	rec := currentSession(c).Record(session.NamespaceUser)
	render(c, http.StatusOK, ScreenProfile, gin.H{"user": rec.User})
}

func (s *Server) logout(c *gin.Context) {
	s.signOut(c, session.NamespaceUser, ScreenHome, guard.UserArea.Redirect)
}

// signOut clears the namespace locally first, then ends the backend session on a
// best-effort basis
func (s *Server) signOut(c *gin.Context, ns session.Namespace, screen, location string) {
	credential := currentSession(c).Credential(ns)

	if err := s.dispatch(c, func(st *session.State) error {
		st.Logout(ns)
		return nil
	}); err != nil {
		s.sessionFailure(c, screen, err)
		return
	}

	if credential != "" {
		if err := s.backend.Logout(context.WithoutCancel(c.Request.Context()), credential); err != nil {
			s.logger.Warn().Err(err).Str("namespace", string(ns)).Msg("Backend logout failed")
		}
	}

	navigate(c, location)
}
