package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/hosilim/dashboard-session/identity"
	"github.com/hosilim/dashboard-session/identity/identityfake"
	apperrors "github.com/hosilim/dashboard-session/internal/errors"
	"github.com/hosilim/dashboard-session/users"
	"github.com/stretchr/testify/require"
)

const testPhone = "+998901234567"

type testFixture struct {
	fake   *identityfake.Server
	client *identity.Client
	user   *users.Profile
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	fake := identityfake.New()
	t.Cleanup(fake.Close)

	client, err := identity.NewClient(fake.URL())
	require.NoError(t, err)

	user := fake.AddUser(&users.Profile{
		Phone:     testPhone,
		FirstName: "Aziz",
		Roles:     users.NewRoles(users.RoleBroker),
		Status:    users.StatusActive,
	})
	return &testFixture{fake: fake, client: client, user: user}
}

func TestNewClient(t *testing.T) {
	_, err := identity.NewClient("ftp://example.com")
	require.Error(t, err)

	_, err = identity.NewClient("://bad")
	require.Error(t, err)

	c, err := identity.NewClient("https://api.hosilim.uz/v1/")
	require.NoError(t, err)
	require.Equal(t, "https://api.hosilim.uz/v1/users/me", c.ResolveURL(identity.RouteUsersMe))
}

func TestClient_OTPLogin(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.RequestOTP(ctx, testPhone))
	otp := f.fake.DeliveredOTP(testPhone)
	require.Len(t, otp, 6)

	t.Run("wrong otp is surfaced verbatim", func(t *testing.T) {
		_, err := f.client.Verify(ctx, testPhone, "000000x")
		require.Error(t, err)
		require.Equal(t, "Invalid OTP code", identity.ErrorMessage(err))
	})

	t.Run("correct otp yields tokens", func(t *testing.T) {
		pair, err := f.client.Verify(ctx, testPhone, otp)
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)

		profile, err := f.client.Me(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, f.user, profile)
	})

	t.Run("otp is single use", func(t *testing.T) {
		_, err := f.client.Verify(ctx, testPhone, otp)
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})
}

func TestClient_RequestOTPUnknownUser(t *testing.T) {
	f := setupTestFixture(t)

	err := f.client.RequestOTP(context.Background(), "+998900000000")
	var se *identity.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusNotFound, se.Code)
	require.Equal(t, "User not found", identity.ErrorMessage(err))
}

func TestClient_VerifyMissingAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.fake.SetOmitAccessToken(true)

	require.NoError(t, f.client.RequestOTP(ctx, testPhone))
	_, err := f.client.Verify(ctx, testPhone, f.fake.DeliveredOTP(testPhone))
	require.ErrorIs(t, err, apperrors.ErrInvalidResponse)
	require.NotErrorIs(t, err, apperrors.ErrNetwork)
}

func TestClient_Me(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	t.Run("expired token is unauthorized", func(t *testing.T) {
		pair, err := f.fake.IssueTokens(f.user.ID, -time.Minute)
		require.NoError(t, err)
		_, err = f.client.Me(ctx, pair.AccessToken)
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("empty token never hits the network", func(t *testing.T) {
		before := f.fake.Calls(identity.RouteUsersMe)
		_, err := f.client.Me(ctx, "  ")
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		require.Equal(t, before, f.fake.Calls(identity.RouteUsersMe))
	})

	t.Run("blocked user is forbidden", func(t *testing.T) {
		pair, err := f.fake.IssueTokens(f.user.ID, time.Minute)
		require.NoError(t, err)
		require.NoError(t, f.fake.SetStatus(testPhone, users.StatusBlocked))
		t.Cleanup(func() { _ = f.fake.SetStatus(testPhone, users.StatusActive) })

		_, err = f.client.Me(ctx, pair.AccessToken)
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})
}

func TestClient_Refresh(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	pair, err := f.fake.IssueTokens(f.user.ID, -time.Minute)
	require.NoError(t, err)

	next, err := f.client.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = f.client.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized, "rotated refresh token must not be reusable")

	_, err = f.client.Refresh(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	f.fake.SetFailRefresh(true)
	_, err = f.client.Refresh(ctx, next.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestClient_NetworkErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := identity.NewClient(url)
		require.NoError(t, err)
		err = c.RequestOTP(context.Background(), testPhone)
		require.ErrorIs(t, err, apperrors.ErrNetwork)
		require.Equal(t, "Network error, check your connection", identity.ErrorMessage(err))
	})

	t.Run("context deadline", func(t *testing.T) {
		f := setupTestFixture(t)
		f.fake.SetDelay(time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := f.client.Me(ctx, "token")
		require.ErrorIs(t, err, apperrors.ErrNetwork)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("undecodable body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>maintenance</html>"))
		}))
		t.Cleanup(srv.Close)

		c, err := identity.NewClient(srv.URL)
		require.NoError(t, err)
		_, err = c.Verify(context.Background(), testPhone, "123456")
		require.ErrorIs(t, err, apperrors.ErrInvalidResponse)
	})

	t.Run("plain text error body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "too many attempts", http.StatusTooManyRequests)
		}))
		t.Cleanup(srv.Close)

		c, err := identity.NewClient(srv.URL)
		require.NoError(t, err)
		err = c.RequestOTP(context.Background(), testPhone)
		require.Equal(t, "too many attempts", identity.ErrorMessage(err))
	})
}

func TestClient_SnakeCaseTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, identity.RouteAuthVerify, r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := identity.NewClient(srv.URL)
	require.NoError(t, err)
	pair, err := c.Verify(context.Background(), testPhone, "123456")
	require.NoError(t, err)
	require.Equal(t, identity.TokenPair{AccessToken: "a", RefreshToken: "r"}, pair)
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	got, ok := identity.ExpiresAt(signed)
	require.True(t, ok)
	require.True(t, exp.Equal(got))
	require.False(t, identity.IsExpired(signed, time.Now()))
	require.True(t, identity.IsExpired(signed, exp))

	_, ok = identity.ExpiresAt("opaque-token")
	require.False(t, ok)
	require.False(t, identity.IsExpired("opaque-token", time.Now()))

	_, ok = identity.ExpiresAt("a.b.c")
	require.False(t, ok)
}

func TestRefreshTokenSource(t *testing.T) {
	f := setupTestFixture(t)
	pair, err := f.fake.IssueTokens(f.user.ID, -time.Minute)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		rotated []identity.TokenPair
	)
	ts := f.client.TokenSource(context.Background(), pair.RefreshToken, func(p identity.TokenPair) {
		mu.Lock()
		defer mu.Unlock()
		rotated = append(rotated, p)
	})

	tok, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, "Bearer", tok.TokenType)
	require.False(t, tok.Expiry.IsZero())
	require.NotEqual(t, pair.RefreshToken, ts.RefreshToken())

	hc := f.client.BearerClient(context.Background(), ts)
	req, err := http.NewRequest(http.MethodGet, f.client.ResolveURL(identity.RouteUsersMe), nil)
	require.NoError(t, err)
	resp, err := hc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, rotated)
	require.Equal(t, ts.RefreshToken(), rotated[len(rotated)-1].RefreshToken)
}
