// Package nav derives dashboard navigation from the signed in user: landing routes,
// visible sections, route guarding and the submenu state.
package nav

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/hosilim/dashboard-session/users"
	"github.com/rs/zerolog/log"
)

var roleAreas = map[users.RoleType]string{
	users.RoleAdmin:  RouteAdminDashboard,
	users.RoleBroker: RouteBrokerDashboard,
	users.RoleFarmer: RouteFarmerDashboard,
}

// DefaultRouteFor is the landing route for user. Roles are tried in priority order
// ADMIN, BROKER, FARMER; a user without any of them lands on RouteFallback and an
// anonymous user on RouteLogin.
func DefaultRouteFor(user *users.Profile) string {
	if user == nil {
		return RouteLogin
	}
	role, ok := user.PrimaryRole()
	if !ok {
		return RouteFallback
	}
	return roleAreas[role]
}

// IsRouteAllowed reports whether user may open p. Public routes are open to all;
// the dashboard shell and the area of every held role are open to signed in users.
func IsRouteAllowed(user *users.Profile, p string) bool {
	p = CleanPath(p)
	if publicRoutes[p] {
		return true
	}
	if user == nil {
		return false
	}
	if p == RouteDashboard {
		return true
	}
	for _, area := range areasFor(user) {
		if within(p, area) {
			return true
		}
	}
	return false
}

// Resolve returns the route to render for p. Unauthorized routes redirect to the
// user's default route rather than an error page.
func Resolve(user *users.Profile, p string) (target string, redirected bool) {
	if IsRouteAllowed(user, p) {
		return CleanPath(p), false
	}
	return DefaultRouteFor(user), true
}

// CleanPath strips the query and fragment and normalises p to a rooted, clean path.
func CleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func areasFor(user *users.Profile) []string {
	var areas []string
	for _, role := range users.RolePriority {
		if user.HasRole(role) {
			areas = append(areas, roleAreas[role])
		}
	}
	if len(areas) == 0 {
		areas = append(areas, RouteFallback)
	}
	return areas
}

func within(p, root string) bool {
	return p == root || strings.HasPrefix(p, root+"/")
}

type contextKey string

const contextKeyUser contextKey = "user"

// UserFromContext returns the user Guard stored on the request context.
func UserFromContext(ctx context.Context) *users.Profile {
	u, _ := ctx.Value(contextKeyUser).(*users.Profile)
	return u
}

// Guard is middleware that redirects requests the current user may not see to the
// user's default route. userFn resolves the current user; nil means anonymous. The
// redirect carries no return-to target: a refused route always lands on a known page.
func Guard(userFn func(*http.Request) *users.Profile) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user := userFn(r)
			target, redirected := Resolve(user, r.URL.Path)
			if redirected {
				log.Debug().Str("path", r.URL.Path).Str("target", target).Msg("route not allowed, redirecting")
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			r = r.WithContext(context.WithValue(r.Context(), contextKeyUser, user))
			next(w, r)
		}
	}
}
