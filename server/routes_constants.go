package server

// Route path constants for the JSON API. Dashboard page routes live in package nav.
const (
	// Session
	RouteAPISession = "/api/session"
	RouteAPIOTP     = "/api/otp"
	RouteAPILogin   = "/api/login"
	RouteAPILogout  = "/api/logout"

	// Navigation
	RouteAPINav = "/api/nav"
)
