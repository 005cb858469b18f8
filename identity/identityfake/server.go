// Package identityfake runs an in-process identity service for tests and local
// development. It implements the same routes as the real service.
package identityfake

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/hosilim/dashboard-session/identity"
	"github.com/hosilim/dashboard-session/users"
	fakeuserrepo "github.com/hosilim/dashboard-session/users/repofake"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// Server is a fake identity service listening on a local port.
type Server struct {
	echo *echo.Echo
	http *httptest.Server
	repo users.UserRepo

	secret    []byte
	accessTTL time.Duration
	otpHook   func(phone, otp string)

	mu            sync.Mutex
	otpHashes     map[string][]byte // phone -> bcrypt(otp)
	delivered     map[string]string // phone -> last otp sent "out of band"
	refreshTokens map[string]string // refresh token -> user id
	calls         map[string]int    // route -> count

	failRefresh     bool
	omitAccessToken bool
	down            bool
	delay           time.Duration
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithOTPHook calls fn with every one time password the service sends, in place of
// the real delivery channel.
func WithOTPHook(fn func(phone, otp string)) Option {
	return func(s *Server) {
		s.otpHook = fn
	}
}

// New starts a fake service. Callers must Close it.
func New(options ...Option) *Server {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)

	s := &Server{
		echo:          echo.New(),
		repo:          fakeuserrepo.NewFakeUserRepo(),
		secret:        secret,
		accessTTL:     15 * time.Minute,
		otpHashes:     make(map[string][]byte),
		delivered:     make(map[string]string),
		refreshTokens: make(map[string]string),
		calls:         make(map[string]int),
	}
	for _, opt := range options {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(s.instrument)
	s.echo.POST(identity.RouteAuthLogin, s.handleLogin)
	s.echo.POST(identity.RouteAuthVerify, s.handleVerify)
	s.echo.POST(identity.RouteAuthRefresh, s.handleRefresh)
	s.echo.GET(identity.RouteUsersMe, s.handleMe)

	s.http = httptest.NewServer(s.echo)
	return s
}

// URL is the base URL to hand to identity.NewClient.
func (s *Server) URL() string {
	return s.http.URL
}

func (s *Server) Close() {
	s.http.Close()
}

// AddUser registers a profile that can log in.
func (s *Server) AddUser(p *users.Profile) *users.Profile {
	_ = s.repo.Upsert(p)
	return p
}

// SetStatus changes a registered user's account status.
func (s *Server) SetStatus(phone string, status users.Status) error {
	return s.repo.SetStatus(phone, status)
}

// DeliveredOTP returns the last one time password sent to phone.
func (s *Server) DeliveredOTP(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered[phone]
}

// IssueTokens mints a pair for the user, bypassing the OTP flow. A negative accessTTL
// yields an already expired access token.
func (s *Server) IssueTokens(userID string, accessTTL time.Duration) (identity.TokenPair, error) {
	access, err := s.signAccessToken(userID, accessTTL)
	if err != nil {
		return identity.TokenPair{}, err
	}
	refresh := s.newRefreshToken(userID)
	return identity.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// SetFailRefresh makes /auth/refresh answer 401.
func (s *Server) SetFailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// SetOmitAccessToken makes /auth/verify answer 200 without an accessToken.
func (s *Server) SetOmitAccessToken(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitAccessToken = omit
}

// SetDown makes every route answer 503.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// SetDelay holds every request for d, or until the client goes away.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns how many requests hit route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.calls[c.Path()]++
		delay, down := s.delay, s.down
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}
		if down {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"message": "service unavailable"})
		}
		return next(c)
	}
}

type phoneReq struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req phoneReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Phone) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "phone is required"})
	}
	if _, err := s.repo.GetByPhone(req.Phone); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "User not found"})
	}

	code, err := newOTP()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "otp generation failed"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "otp generation failed"})
	}

	s.mu.Lock()
	s.otpHashes[req.Phone] = hash
	s.delivered[req.Phone] = code
	s.mu.Unlock()
	if s.otpHook != nil {
		s.otpHook(req.Phone, code)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent to Telegram bot"})
}

func (s *Server) handleVerify(c echo.Context) error {
	var req phoneReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}

	s.mu.Lock()
	hash, ok := s.otpHashes[req.Phone]
	omit := s.omitAccessToken
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(req.OTP)) != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid OTP code"})
	}

	user, err := s.repo.GetByPhone(req.Phone)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "User not found"})
	}

	s.mu.Lock()
	delete(s.otpHashes, req.Phone)
	s.mu.Unlock()

	pair, err := s.IssueTokens(user.ID, s.accessTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "token issue failed"})
	}
	if omit {
		return c.JSON(http.StatusOK, echo.Map{"refreshToken": pair.RefreshToken})
	}
	return c.JSON(http.StatusOK, pair)
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}

	s.mu.Lock()
	userID, ok := s.refreshTokens[req.RefreshToken]
	fail := s.failRefresh
	if ok && !fail {
		delete(s.refreshTokens, req.RefreshToken)
	}
	s.mu.Unlock()
	if !ok || fail {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid refresh token"})
	}

	pair, err := s.IssueTokens(userID, s.accessTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "token issue failed"})
	}
	return c.JSON(http.StatusOK, pair)
}

func (s *Server) handleMe(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "missing bearer token"})
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	tok, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid claims"})
	}

	user, err := s.repo.GetByID(sub)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "user not found"})
	}
	if user.IsBlocked() {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "user is blocked"})
	}
	return c.JSON(http.StatusOK, user)
}

func (s *Server) signAccessToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) newRefreshToken(userID string) string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.refreshTokens[token] = userID
	s.mu.Unlock()
	return token
}

func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
