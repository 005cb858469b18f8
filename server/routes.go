package server

import (
	"net/http"

	"github.com/hosilim/dashboard-session/nav"
	"github.com/hosilim/dashboard-session/users"
)

func (s *Server) initRoutes() {
	// SESSION
	s.RegisterRouteFunc("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAPIOTP, ChainMiddleware(s.OTPHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAPILogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAPILogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// NAVIGATION
	s.RegisterRouteFunc("POST "+RouteAPINav, ChainMiddleware(s.NavHandler(), s.APIMiddleware()...))

	// Every other path is a dashboard page, guarded by role
	s.RegisterRouteFunc("GET /", ChainMiddleware(s.PageHandler(), s.PageMiddleware(nav.Guard(s.currentUser))...))
}

func (s *Server) currentUser(*http.Request) *users.Profile {
	return s.session.User()
}
