package backend

import (
	"context"
	"net/http"

	"github.com/storefront-dev/storefront/internal/session"
)

// SignupRequest represents the signup request body
type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

// SignupResult is the answer to a signup; the OTP goes out by email
type SignupResult struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Signup registers a shopper and triggers the OTP email
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	var res SignupResult
	if _, err := c.call(ctx, http.MethodPost, "/user/signup", "", req, &res); err != nil {
		return nil, err
	}
	if res.UserID == "" {
		return nil, malformed("signup response without userId")
	}
	if res.Email == "" {
		res.Email = req.Email
	}
	return &res, nil
}

type verifyOTPRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

// VerifyOTP checks an OTP. Any status other than VERIFIED is a rejection.
func (c *Client) VerifyOTP(ctx context.Context, userID, otp string) (string, error) {
	var res messageBody
	if _, err := c.call(ctx, http.MethodPost, "/user/verifyOTP", "", verifyOTPRequest{UserID: userID, OTP: otp}, &res); err != nil {
		return "", err
	}
	if res.Status != StatusVerified {
		return "", &RejectionError{StatusCode: http.StatusOK, Status: res.Status, Message: res.text()}
	}
	return res.text(), nil
}

type resendOTPRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// ResendOTP asks the backend to mail a fresh OTP
func (c *Client) ResendOTP(ctx context.Context, userID, email string) (string, error) {
	var res messageBody
	if _, err := c.call(ctx, http.MethodPost, "/user/resendOTP", "", resendOTPRequest{UserID: userID, Email: email}, &res); err != nil {
		return "", err
	}
	return res.text(), nil
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	User    *session.RawProfile `json:"user"`
}

// LoginResult carries the profile and the backend session cookie
type LoginResult struct {
	Profile    session.RawProfile
	Credential string
}

// Login authenticates a shopper
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return c.login(ctx, "/user/login", email, password)
}

// AdminLogin authenticates an administrator
func (c *Client) AdminLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	return c.login(ctx, "/admin/login", email, password)
}

func (c *Client) login(ctx context.Context, path, email, password string) (*LoginResult, error) {
	var res loginResponse
	cookies, err := c.call(ctx, http.MethodPost, path, "", LoginRequest{Email: email, Password: password}, &res)
	if err != nil {
		return nil, err
	}
	if res.Status != StatusVerified {
		return nil, &RejectionError{StatusCode: http.StatusOK, Status: res.Status, Message: res.Message}
	}
	if res.User == nil || res.User.Identity() == "" {
		return nil, malformed("%s: verified login without profile id", path)
	}
	return &LoginResult{Profile: *res.User, Credential: CookieHeader(cookies)}, nil
}

type restoreResponse struct {
	User *session.RawProfile `json:"user"`
	Role string              `json:"role"`
}

// RestoreResult is a session found by the backend from its cookie
type RestoreResult struct {
	Profile session.RawProfile
	Role    session.Role
}

// RestoreSession asks the backend whether the credential still maps to a signed-in account
func (c *Client) RestoreSession(ctx context.Context, credential string) (*RestoreResult, error) {
	var res restoreResponse
	if _, err := c.call(ctx, http.MethodGet, "/auth/login/success", credential, nil, &res); err != nil {
		return nil, err
	}
	if res.User == nil || res.User.Identity() == "" {
		return nil, malformed("session restore without profile id")
	}

	role := session.RoleFor(res.User.IsAdmin)
	if res.Role == string(session.RoleAdmin) {
		role = session.RoleAdmin
		res.User.IsAdmin = true
	}
	return &RestoreResult{Profile: *res.User, Role: role}, nil
}

// Logout ends the backend session behind the credential
func (c *Client) Logout(ctx context.Context, credential string) error {
	_, err := c.call(ctx, http.MethodPost, "/user/logout", credential, nil, nil)
	return err
}
