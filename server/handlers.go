package server

import (
	"encoding/json"
	"net/http"

	"github.com/hosilim/dashboard-session/identity"
	apperrors "github.com/hosilim/dashboard-session/internal/errors"
	"github.com/hosilim/dashboard-session/nav"
	"github.com/hosilim/dashboard-session/session"
	"github.com/hosilim/dashboard-session/users"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

type sessionView struct {
	State   string         `json:"state"`
	Loading bool           `json:"loading"`
	User    *users.Profile `json:"user,omitempty"`
	Home    string         `json:"home"`
}

func newSessionView(snap session.Snapshot) sessionView {
	return sessionView{
		State:   snap.State.String(),
		Loading: snap.Loading,
		User:    snap.User,
		Home:    nav.DefaultRouteFor(snap.User),
	}
}

// SessionHandler reports the current session snapshot
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, newSessionView(s.session.Snapshot()))
	}
}

type otpRequest struct {
	Phone string `json:"phone"`
}

// OTPHandler starts a login by sending a one time password
func (s *Server) OTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req otpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse request body", http.StatusBadRequest)
			return
		}
		if err := s.session.RequestOTP(r.Context(), req.Phone); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "OTP sent"})
	}
}

type loginRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type loginResponse struct {
	User     *users.Profile `json:"user"`
	Redirect string         `json:"redirect"`
}

// LoginHandler completes a login and returns where to go next
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse request body", http.StatusBadRequest)
			return
		}
		user, err := s.session.Login(r.Context(), session.Credentials{Phone: req.Phone, OTP: req.OTP})
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{User: user, Redirect: nav.DefaultRouteFor(user)})
	}
}

// LogoutHandler ends the session
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.session.Logout()
		writeJSON(w, http.StatusOK, map[string]string{"redirect": nav.RouteLogin})
	}
}

type pageView struct {
	Path     string           `json:"path"`
	User     *users.Profile   `json:"user,omitempty"`
	Home     string           `json:"home"`
	Sections []nav.Section    `json:"sections"`
	Submenu  nav.SubmenuState `json:"submenu"`
	Back     string           `json:"back"`
}

// PageHandler describes the dashboard page at the request path. It runs behind
// nav.Guard, so the path is already allowed for the user.
func (s *Server) PageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := nav.UserFromContext(r.Context())
		path := nav.CleanPath(r.URL.Path)

		submenu, err := nav.NewSubmenu(user, nav.NavigatorFunc(func(string) {}))
		if err != nil {
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		state := submenu.ReconcileFromPath(path)

		writeJSON(w, http.StatusOK, pageView{
			Path:     path,
			User:     user,
			Home:     nav.DefaultRouteFor(user),
			Sections: nav.SectionsForPath(user, path),
			Submenu:  state,
			Back:     submenu.BackTarget(),
		})
	}
}

type navRequest struct {
	Path   string `json:"path"`
	Action string `json:"action"` // open, select, collapse or reconcile
	Target string `json:"target"`
}

type navResponse struct {
	Navigate string           `json:"navigate,omitempty"`
	Submenu  nav.SubmenuState `json:"submenu"`
	Back     string           `json:"back"`
}

// NavHandler applies a submenu action to the state derived from the current path and
// returns the navigation it requests
func (s *Server) NavHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.session.User()
		if user == nil {
			writeJSONError(w, "unauthorized", "Sign in first", http.StatusUnauthorized)
			return
		}

		var req navRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse request body", http.StatusBadRequest)
			return
		}

		var resp navResponse
		submenu, err := nav.NewSubmenu(user, nav.NavigatorFunc(func(p string) { resp.Navigate = p }))
		if err != nil {
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		submenu.ReconcileFromPath(req.Path)

		switch req.Action {
		case "open":
			err = submenu.OpenSubmenu(req.Target)
		case "select":
			err = submenu.SelectSub(req.Target)
		case "collapse":
			submenu.Collapse()
		case "reconcile", "":
		default:
			writeJSONError(w, "invalid_request", "Unknown action "+req.Action, http.StatusBadRequest)
			return
		}
		if err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusUnprocessableEntity)
			return
		}

		resp.Submenu = submenu.State()
		resp.Back = submenu.BackTarget()
		writeJSON(w, http.StatusOK, resp)
	}
}

// writeSessionError maps session and identity errors onto HTTP answers
func writeSessionError(w http.ResponseWriter, err error) {
	var se *identity.StatusError
	switch {
	case apperrors.Is(err, apperrors.ErrNoCredentials):
		writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
	case apperrors.Is(err, apperrors.ErrSuperseded):
		writeJSONError(w, "superseded", err.Error(), http.StatusConflict)
	case apperrors.Is(err, apperrors.ErrUserBlocked):
		writeJSONError(w, "user_blocked", "Account is blocked", http.StatusForbidden)
	case apperrors.Is(err, apperrors.ErrInvalidResponse):
		writeJSONError(w, "invalid_response", identity.ErrorMessage(err), http.StatusBadGateway)
	case apperrors.Is(err, apperrors.ErrNetwork):
		writeJSONError(w, "unavailable", identity.ErrorMessage(err), http.StatusServiceUnavailable)
	case apperrors.As(err, &se):
		writeJSONError(w, "identity_error", se.Message, se.Code)
	default:
		log.Err(err).Msg("unexpected session error")
		writeJSONError(w, "server_error", "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
