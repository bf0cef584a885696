package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storefront-dev/storefront/internal/guard"
	"github.com/storefront-dev/storefront/internal/listing"
	"github.com/storefront-dev/storefront/internal/session"
)

// BlockForm toggles a customer's blocked flag
type BlockForm struct {
	IsBlocked *bool `json:"isBlocked" form:"isBlocked" validate:"required"`
}

func adminCredential(c *gin.Context) string {
	return currentSession(c).Credential(session.NamespaceAdmin)
}

func (s *Server) showAdminLogin(c *gin.Context) {
	render(c, http.StatusOK, ScreenAdminLogin, nil)
}

func (s *Server) adminLogin(c *gin.Context) {
	var req LoginForm
	if !s.bindForm(c, ScreenAdminLogin, nil, &req) {
		return
	}

	res, err := s.backend.AdminLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.backendFailure(c, ScreenAdminLogin, nil, err)
		return
	}

	// The admin-area guard only checks that the namespace is signed in, so the
	// namespace must never hold a non-admin profile.
	if !res.Profile.IsAdmin {
		s.logger.Warn().Str("user_id", res.Profile.Identity()).Msg("Non-admin account tried the back-office login")
		renderNotice(c, http.StatusForbidden, ScreenAdminLogin, nil, NoticeError, "This account has no back-office access")
		return
	}

	err = s.dispatch(c, func(st *session.State) error {
		st.Login(session.NamespaceAdmin, res.Profile)
		st.SetCredential(session.NamespaceAdmin, res.Credential)
		return nil
	})
	if err != nil {
		s.sessionFailure(c, ScreenAdminLogin, err)
		return
	}

	s.logger.Info().Str("user_id", res.Profile.Identity()).Msg("Admin logged in")
	navigate(c, guard.AdminLogin.Redirect)
}

func (s *Server) adminLogout(c *gin.Context) {
	s.signOut(c, session.NamespaceAdmin, ScreenDashboard, guard.AdminArea.Redirect)
}

func (s *Server) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	credential := adminCredential(c)
	admin := currentSession(c).Record(session.NamespaceAdmin).User

	customers, err := s.backend.ListCustomers(ctx, credential)
	if err != nil {
		s.backendFailure(c, ScreenDashboard, gin.H{"admin": admin}, err)
		return
	}
	products, err := s.backend.ListProducts(ctx, credential)
	if err != nil {
		s.backendFailure(c, ScreenDashboard, gin.H{"admin": admin}, err)
		return
	}
	orders, err := s.backend.ListOrders(ctx, credential)
	if err != nil {
		s.backendFailure(c, ScreenDashboard, gin.H{"admin": admin}, err)
		return
	}

	render(c, http.StatusOK, ScreenDashboard, gin.H{
		"admin":            admin,
		"customers":        len(customers),
		"blockedCustomers": len(listing.Customers(customers, "", listing.CustomersBlocked)),
		"products":         len(products),
		"orders":           len(orders),
	})
}

func (s *Server) customers(c *gin.Context) {
	search := c.Query("search")
	status := listing.ParseCustomerStatus(c.Query("status"))
	data := gin.H{"search": search, "status": status}

	all, err := s.backend.ListCustomers(c.Request.Context(), adminCredential(c))
	if err != nil {
		s.backendFailure(c, ScreenCustomers, data, err)
		return
	}

	found := listing.Customers(all, search, status)
	data["customers"] = found
	data["total"] = len(all)
	render(c, http.StatusOK, ScreenCustomers, data)
}

func (s *Server) blockCustomer(c *gin.Context) {
	userID := c.Param("userId")
	data := gin.H{"userId": userID}

	var req BlockForm
	if !s.bindForm(c, ScreenCustomers, data, &req) {
		return
	}
	data["isBlocked"] = *req.IsBlocked

	if err := s.backend.SetBlocked(c.Request.Context(), adminCredential(c), userID, *req.IsBlocked); err != nil {
		s.backendFailure(c, ScreenCustomers, data, err)
		return
	}

	message := "Customer unblocked"
	if *req.IsBlocked {
		message = "Customer blocked"
	}
	s.logger.Info().
		Str("customer_id", userID).
		Bool("is_blocked", *req.IsBlocked).
		Str("admin_id", currentSession(c).Record(session.NamespaceAdmin).User.ID).
		Msg("Customer block status changed")
	renderNotice(c, http.StatusOK, ScreenCustomers, data, NoticeSuccess, message)
}
