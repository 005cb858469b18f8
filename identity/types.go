package identity

import (
	"fmt"
	"net/http"

	apperrors "github.com/hosilim/dashboard-session/internal/errors"
	"golang.org/x/oauth2"
)

// Identity service routes, relative to the base URL.
const (
	RouteAuthLogin   = "/auth/login"
	RouteAuthVerify  = "/auth/verify"
	RouteAuthRefresh = "/auth/refresh"
	RouteUsersMe     = "/users/me"
)

// TokenPair is the bearer token pair issued by verify and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// OAuth2Token converts the pair for use with golang.org/x/oauth2 transports.
func (p TokenPair) OAuth2Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
	}
	if exp, ok := ExpiresAt(p.AccessToken); ok {
		t.Expiry = exp
	}
	return t
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// tokenResponse accepts both camelCase and snake_case token fields.
type tokenResponse struct {
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
	AccessTokenSnake  string `json:"access_token"`
	RefreshTokenSnake string `json:"refresh_token"`
}

func (r tokenResponse) pair() TokenPair {
	p := TokenPair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	if p.AccessToken == "" {
		p.AccessToken = r.AccessTokenSnake
	}
	if p.RefreshToken == "" {
		p.RefreshToken = r.RefreshTokenSnake
	}
	return p
}

// errorBody is the error shape the service answers with.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// StatusError is a non-2xx answer. Message is the server's text, suitable for display.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("[%s] %d: %s", e.Op, e.Code, e.Message)
}

// Unwrap maps 401 and 403 to errors.ErrUnauthorized.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden {
		return apperrors.ErrUnauthorized
	}
	return nil
}

// ErrorMessage returns the text to show a user for err.
func ErrorMessage(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return ""
	case apperrors.As(err, &se):
		return se.Message
	case apperrors.Is(err, apperrors.ErrInvalidResponse):
		return "Unexpected response from server, please try again"
	case apperrors.Is(err, apperrors.ErrNetwork):
		return "Network error, check your connection"
	default:
		return err.Error()
	}
}
