package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hosilim/dashboard-session/identity"
	"github.com/hosilim/dashboard-session/identity/identityfake"
	"github.com/hosilim/dashboard-session/internal/config"
	"github.com/hosilim/dashboard-session/nav"
	"github.com/hosilim/dashboard-session/server"
	"github.com/hosilim/dashboard-session/session"
	"github.com/hosilim/dashboard-session/tokenstore"
	"github.com/hosilim/dashboard-session/users"
	"github.com/stretchr/testify/require"
)

const brokerPhone = "+998935551122"

type testFixture struct {
	fake    *identityfake.Server
	manager *session.Manager
	server  *server.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	fake := identityfake.New()
	t.Cleanup(fake.Close)
	fake.AddUser(&users.Profile{
		Phone:  brokerPhone,
		Roles:  users.NewRoles(users.RoleBroker),
		Status: users.StatusActive,
	})

	client, err := identity.NewClient(fake.URL())
	require.NoError(t, err)
	manager, err := session.NewManager(tokenstore.New(tokenstore.NewMemoryBackend()), client)
	require.NoError(t, err)
	_, err = manager.Boot(context.Background())
	require.NoError(t, err)

	srv, err := server.New(config.New(), manager)
	require.NoError(t, err)
	return &testFixture{fake: fake, manager: manager, server: srv}
}

func (f *testFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, server.RouteAPIOTP, map[string]string{"phone": brokerPhone})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteAPILogin, map[string]string{
		"phone": brokerPhone,
		"otp":   f.fake.DeliveredOTP(brokerPhone),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, nav.RouteBrokerDashboard, resp.Redirect)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestNew(t *testing.T) {
	_, err := server.New(nil, nil)
	require.Error(t, err)
	_, err = server.New(config.New(), nil)
	require.ErrorContains(t, err, "session manager is required")
}

func TestPagesAreGuarded(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, "/dashboard/broker/sales/new", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, nav.RouteLogin, rec.Header().Get("Location"))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, nav.RouteLogin, nil).Code)

	f.login(t)

	rec = f.do(t, http.MethodGet, "/dashboard/admin", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, nav.RouteBrokerDashboard, rec.Header().Get("Location"))

	rec = f.do(t, http.MethodGet, "/dashboard/broker/sales/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))

	page := decode[struct {
		Path     string           `json:"path"`
		Sections []nav.Section    `json:"sections"`
		Submenu  nav.SubmenuState `json:"submenu"`
		Back     string           `json:"back"`
	}](t, rec)
	require.Equal(t, "/dashboard/broker/sales/new", page.Path)
	require.Equal(t, nav.SubmenuState{IsOpen: true, ActiveSection: "sales", ActiveSubSection: "new"}, page.Submenu)
	require.Equal(t, "/dashboard/broker/sales", page.Back)
	require.Len(t, page.Sections, 5)
}

func TestSessionLifecycle(t *testing.T) {
	f := setupTestFixture(t)

	view := decode[map[string]any](t, f.do(t, http.MethodGet, server.RouteAPISession, nil))
	require.Equal(t, "ANONYMOUS", view["state"])
	require.Equal(t, nav.RouteLogin, view["home"])

	f.login(t)
	view = decode[map[string]any](t, f.do(t, http.MethodGet, server.RouteAPISession, nil))
	require.Equal(t, "AUTHENTICATED", view["state"])
	require.Equal(t, false, view["loading"])

	rec := f.do(t, http.MethodPost, server.RouteAPILogout, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, session.StateAnonymous, f.manager.State())
}

func TestLoginErrors(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name  string
		setup func()
		body  any
		code  int
		desc  string
	}{
		{"malformed body", nil, "not an object", http.StatusBadRequest, "Failed to parse request body"},
		{"blank otp", nil, map[string]string{"phone": brokerPhone}, http.StatusBadRequest, ""},
		{"wrong otp", nil, map[string]string{"phone": brokerPhone, "otp": "000000"}, http.StatusUnauthorized, "Invalid OTP code"},
		{"service down", func() { f.fake.SetDown(true) }, map[string]string{"phone": brokerPhone, "otp": "000000"}, http.StatusServiceUnavailable, "service unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			rec := f.do(t, http.MethodPost, server.RouteAPILogin, tt.body)
			require.Equal(t, tt.code, rec.Code)
			if tt.desc != "" {
				require.Equal(t, tt.desc, decode[map[string]string](t, rec)["error_description"])
			}
		})
	}
}

func TestNavActions(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteAPINav, map[string]string{"path": "/dashboard/broker"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	f.login(t)

	type navResponse struct {
		Navigate string           `json:"navigate"`
		Submenu  nav.SubmenuState `json:"submenu"`
		Back     string           `json:"back"`
	}

	tests := []struct {
		name string
		req  map[string]string
		code int
		want navResponse
	}{
		{
			name: "open baskets",
			req:  map[string]string{"path": "/dashboard/broker", "action": "open", "target": "baskets"},
			code: http.StatusOK,
			want: navResponse{
				Navigate: "/dashboard/broker/baskets",
				Submenu:  nav.SubmenuState{IsOpen: true, ActiveSection: "baskets", ActiveSubSection: "all"},
				Back:     "/dashboard/broker",
			},
		},
		{
			name: "select archived",
			req:  map[string]string{"path": "/dashboard/broker/baskets", "action": "select", "target": "archived"},
			code: http.StatusOK,
			want: navResponse{
				Navigate: "/dashboard/broker/baskets/archived",
				Submenu:  nav.SubmenuState{IsOpen: true, ActiveSection: "baskets", ActiveSubSection: "archived"},
				Back:     "/dashboard/broker/baskets",
			},
		},
		{
			name: "collapse",
			req:  map[string]string{"path": "/dashboard/broker/sales/active", "action": "collapse"},
			code: http.StatusOK,
			want: navResponse{Navigate: "/dashboard/broker", Back: "/dashboard/broker"},
		},
		{
			name: "reconcile",
			req:  map[string]string{"path": "/dashboard/broker/sales/completed/7"},
			code: http.StatusOK,
			want: navResponse{
				Submenu: nav.SubmenuState{IsOpen: true, ActiveSection: "sales", ActiveSubSection: "completed"},
				Back:    "/dashboard/broker/sales",
			},
		},
		{
			name: "select while collapsed",
			req:  map[string]string{"path": "/dashboard/broker", "action": "select", "target": "new"},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown action",
			req:  map[string]string{"path": "/dashboard/broker", "action": "fly"},
			code: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, server.RouteAPINav, tt.req)
			require.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				require.Equal(t, tt.want, decode[navResponse](t, rec))
			}
		})
	}
}
