package session

import "github.com/hosilim/dashboard-session/users"

// State is the session lifecycle state.
type State int

const (
	StateBooting State = iota
	StateAuthenticated
	StateAnonymous
	StateLoggingIn
	StateLoggingOut
)

var stateNames = map[State]string{
	StateBooting:       "BOOTING",
	StateAuthenticated: "AUTHENTICATED",
	StateAnonymous:     "ANONYMOUS",
	StateLoggingIn:     "LOGGING_IN",
	StateLoggingOut:    "LOGGING_OUT",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Transient reports whether s is an in-flight state.
func (s State) Transient() bool {
	return s == StateBooting || s == StateLoggingIn || s == StateLoggingOut
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	State   State
	User    *users.Profile
	Loading bool
}

// Authenticated reports whether the snapshot carries a resolved user.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// Listener is called after every transition.
type Listener func(Snapshot)

// Credentials are the second login step inputs.
type Credentials struct {
	Phone string
	OTP   string
}
