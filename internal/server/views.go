package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storefront-dev/storefront/internal/backend"
)

// Screen names carried in every view
const (
	ScreenLoading  = "loading"
	ScreenNotFound = "not_found"

	ScreenSignup    = "user.signup"
	ScreenVerifyOTP = "user.verify_otp"
	ScreenLogin     = "user.login"
	ScreenHome      = "user.home"
	ScreenProfile   = "user.profile"

	ScreenAdminLogin   = "admin.login"
	ScreenDashboard    = "admin.dashboard"
	ScreenCustomers    = "admin.customers"
	ScreenProducts     = "admin.products"
	ScreenAddProduct   = "admin.add_product"
	ScreenEditProduct  = "admin.edit_product"
	ScreenCategories   = "admin.categories"
	ScreenAddCategory  = "admin.add_category"
	ScreenEditCategory = "admin.edit_category"
	ScreenOrders       = "admin.orders"
)

// Notice levels
const (
	NoticeInfo    = "info"
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// View is what a screen hands to the renderer
type View struct {
	Screen string            `json:"screen"`
	Data   any               `json:"data,omitempty"`
	Notice *Notice           `json:"notice,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Notice is a transient message (toast)
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func render(c *gin.Context, status int, screen string, data any) {
	c.JSON(status, View{Screen: screen, Data: data})
}

func renderNotice(c *gin.Context, status int, screen string, data any, level, message string) {
	c.JSON(status, View{
		Screen: screen,
		Data:   data,
		Notice: &Notice{Level: level, Message: message},
	})
}

// renderInvalid shows inline field errors; the backend was not contacted
func renderInvalid(c *gin.Context, screen string, data any, fields map[string]string) {
	c.JSON(http.StatusUnprocessableEntity, View{Screen: screen, Data: data, Errors: fields})
}

// navigate sends the browser on after a successful form submission
func navigate(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

func (s *Server) notFound(c *gin.Context) {
	render(c, http.StatusNotFound, ScreenNotFound, gin.H{"path": c.Request.URL.Path})
}

// backendFailure reports a failed backend call on the initiating screen. The
// session is never touched here.
func (s *Server) backendFailure(c *gin.Context, screen string, data any, err error) {
	log := s.logger.With().Str("screen", screen).Str("path", c.Request.URL.Path).Logger()

	if errors.Is(err, context.Canceled) || c.Request.Context().Err() != nil {
		log.Debug().Err(err).Msg("Visitor left before the backend answered")
		c.Abort()
		return
	}

	if rej, ok := backend.IsRejection(err); ok {
		log.Warn().Err(err).Msg("Backend rejected request")
		status := rej.StatusCode
		switch {
		case status >= 500:
			status = http.StatusBadGateway
		case status < 400:
			status = http.StatusBadRequest
		}
		renderNotice(c, status, screen, data, NoticeError, rej.Message)
		return
	}

	if errors.Is(err, backend.ErrMalformedPayload) {
		log.Error().Err(err).Msg("Unexpected backend response")
		renderNotice(c, http.StatusBadGateway, screen, data, NoticeError, "Unexpected response from the server, please try again")
		return
	}

	log.Error().Err(err).Msg("Backend request failed")
	renderNotice(c, http.StatusBadGateway, screen, data, NoticeError, "Could not reach the server, please try again")
}

// sessionFailure reports a session store error after a successful backend call
func (s *Server) sessionFailure(c *gin.Context, screen string, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Debug().Err(err).Str("screen", screen).Msg("Visitor left before the session was updated")
		c.Abort()
		return
	}
	s.logger.Error().Err(err).Str("screen", screen).Msg("Failed to update session")
	renderNotice(c, http.StatusInternalServerError, screen, nil, NoticeError, "Internal server error")
}
