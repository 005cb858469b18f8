// Package identity is the HTTP client for the Hosilim identity service: OTP login,
// token refresh and profile resolution.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/hosilim/dashboard-session/internal/errors"
	"github.com/hosilim/dashboard-session/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

// Service is the identity collaborator consumed by the session manager.
type Service interface {
	RequestOTP(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, otp string) (TokenPair, error)
	Me(ctx context.Context, accessToken string) (*users.Profile, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

var _ Service = (*Client)(nil)

// Client talks to the identity service REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient returns a Client for the service rooted at baseURL.
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[NewClient] invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("[NewClient] base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// RequestOTP asks the service to deliver a one time password to phone.
func (c *Client) RequestOTP(ctx context.Context, phone string) error {
	return c.do(ctx, c.httpClient, http.MethodPost, RouteAuthLogin, phoneRequest{Phone: phone}, nil)
}

// Verify exchanges phone and otp for a token pair. A success answer without an access
// token is ErrInvalidResponse.
func (c *Client) Verify(ctx context.Context, phone, otp string) (TokenPair, error) {
	var resp tokenResponse
	if err := c.do(ctx, c.httpClient, http.MethodPost, RouteAuthVerify, verifyRequest{Phone: phone, OTP: otp}, &resp); err != nil {
		return TokenPair{}, err
	}
	pair := resp.pair()
	if strings.TrimSpace(pair.AccessToken) == "" {
		return TokenPair{}, apperrors.Wrapf(apperrors.ErrInvalidResponse, "[Verify] missing accessToken")
	}
	return pair, nil
}

// Refresh exchanges refreshToken for a new pair. When the service does not rotate the
// refresh token the old one is carried over.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, apperrors.Wrapf(apperrors.ErrUnauthorized, "[Refresh] no refresh token")
	}
	var resp tokenResponse
	if err := c.do(ctx, c.httpClient, http.MethodPost, RouteAuthRefresh, refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return TokenPair{}, err
	}
	pair := resp.pair()
	if strings.TrimSpace(pair.AccessToken) == "" {
		return TokenPair{}, apperrors.Wrapf(apperrors.ErrInvalidResponse, "[Refresh] missing accessToken")
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// Me resolves the profile that accessToken belongs to. 401 and 403 answers wrap
// ErrUnauthorized.
func (c *Client) Me(ctx context.Context, accessToken string) (*users.Profile, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "[Me] no access token")
	}
	hc := c.BearerClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	var profile users.Profile
	if err := c.do(ctx, hc, http.MethodGet, RouteUsersMe, nil, &profile); err != nil {
		return nil, err
	}
	if profile.ID == "" && profile.Phone == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidResponse, "[Me] empty profile")
	}
	return &profile, nil
}

// BearerClient returns an HTTP client that authorizes every request with a token from ts,
// built on this client's transport.
func (c *Client) BearerClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	return oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), ts)
}

// ResolveURL joins path onto the service root.
func (c *Client) ResolveURL(path string) string {
	return c.baseURL.JoinPath(path).String()
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("[%s] encoding request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ResolveURL(path), body)
	if err != nil {
		return fmt.Errorf("[%s] building request: %w", op, err)
	}
	requestID := uuid.New().String()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("request_id", requestID).Str("op", op).Msg("identity request failed")
		return fmt.Errorf("[%s] %w: %w", op, apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("request_id", requestID).
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("identity request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Message: readErrorMessage(resp)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("[%s] %w: %w", op, apperrors.ErrInvalidResponse, err)
	}
	return nil
}

func readErrorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil {
		for _, m := range []string{eb.Message, eb.Error, eb.Detail} {
			if m = strings.TrimSpace(m); m != "" {
				return m
			}
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
