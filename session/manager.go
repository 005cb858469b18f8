// Package session owns the authentication lifecycle: boot from stored tokens, OTP
// login and logout. It is the only writer of the token store.
package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hosilim/dashboard-session/identity"
	apperrors "github.com/hosilim/dashboard-session/internal/errors"
	"github.com/hosilim/dashboard-session/tokenstore"
	"github.com/hosilim/dashboard-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultTimeout = 10 * time.Second

// Manager is the session state machine. All methods are safe for concurrent use; a
// Boot, Login or Logout supersedes whichever of them is still in flight.
type Manager struct {
	store     *tokenstore.Store
	identity  identity.Service
	timeout   time.Duration
	now       func() time.Time
	listeners []Listener

	mu         sync.Mutex
	state      State
	user       *users.Profile
	generation uint64
	cancel     context.CancelFunc

	notifyMu sync.Mutex
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithTimeout bounds every identity service call.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithNowTime sets the clock used to check token expiry.
func WithNowTime(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithListener registers l to observe transitions. Listeners run synchronously and
// must not call Boot, Login or Logout.
func WithListener(l Listener) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// NewManager returns a Manager in the Booting state.
func NewManager(store *tokenstore.Store, svc identity.Service, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] token store is required")
	}
	if svc == nil {
		return nil, errors.New("[NewManager] identity service is required")
	}

	m := &Manager{
		store:    store,
		identity: svc,
		timeout:  defaultTimeout,
		now:      time.Now,
		state:    StateBooting,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Snapshot returns the current state, user and loading flag together.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) State() State {
	return m.Snapshot().State
}

// User is the resolved profile, nil unless Authenticated.
func (m *Manager) User() *users.Profile {
	return m.Snapshot().User
}

func (m *Manager) Loading() bool {
	return m.Snapshot().Loading
}

// Boot resolves the stored session. It always ends in Authenticated or Anonymous.
// An invalid session is cleared and reported as Anonymous with a nil error. When
// ctx is cancelled the result is Anonymous with the stored tokens kept.
func (m *Manager) Boot(ctx context.Context) (State, error) {
	op, _ := m.begin(ctx, StateBooting, "boot")
	defer m.end(op)

	access, refresh := m.store.GetAccessToken(), m.store.GetRefreshToken()
	if access == "" && refresh == "" {
		return m.settleAnonymous(op, false)
	}

	profile, err := m.resolveProfile(op.ctx, access)
	if err == nil {
		return m.authenticate(op, profile, nil)
	}
	if state, stop, cerr := m.interrupted(ctx, op); stop {
		return state, cerr
	}
	op.log.Debug().Err(err).Msg("access token rejected")

	if refresh != "" && !apperrors.Is(err, apperrors.ErrUserBlocked) {
		var pair identity.TokenPair
		pair, err = m.refresh(op.ctx, refresh)
		if err == nil {
			profile, err = m.resolveProfile(op.ctx, pair.AccessToken)
			if err == nil {
				return m.authenticate(op, profile, &pair)
			}
		}
		if state, stop, cerr := m.interrupted(ctx, op); stop {
			return state, cerr
		}
	}

	op.log.Info().Err(err).Msg("stored session invalid, clearing")
	return m.settleAnonymous(op, true)
}

// RequestOTP asks the identity service to send a one time password to phone.
func (m *Manager) RequestOTP(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return errors.Wrap(apperrors.ErrNoCredentials, "[RequestOTP]")
	}
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.identity.RequestOTP(callCtx, phone); err != nil {
		return errors.Wrap(err, "[RequestOTP]")
	}
	return nil
}

// Login verifies creds and resolves the profile. On failure the previous state is
// restored and nothing is persisted.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*users.Profile, error) {
	phone, otp := strings.TrimSpace(creds.Phone), strings.TrimSpace(creds.OTP)
	if phone == "" || otp == "" {
		return nil, errors.Wrap(apperrors.ErrNoCredentials, "[Login]")
	}

	op, prev := m.begin(ctx, StateLoggingIn, "login")
	defer m.end(op)

	callCtx, cancel := context.WithTimeout(op.ctx, m.timeout)
	pair, err := m.identity.Verify(callCtx, phone, otp)
	cancel()

	var profile *users.Profile
	if err == nil {
		profile, err = m.resolveProfile(op.ctx, pair.AccessToken)
	}
	if err != nil {
		if m.superseded(op) {
			return nil, errors.Wrap(apperrors.ErrSuperseded, "[Login]")
		}
		op.log.Debug().Err(err).Msg("login failed")
		m.restore(op, prev)
		return nil, errors.Wrap(err, "[Login]")
	}

	if _, err := m.authenticate(op, profile, &pair); err != nil {
		return nil, err
	}
	return profile, nil
}

// Logout cancels any in-flight operation and clears the session.
func (m *Manager) Logout() {
	op, _ := m.begin(context.Background(), StateLoggingOut, "logout")
	defer m.end(op)

	_ = m.commit(op, func() {
		m.store.ClearAuth()
		m.state = StateAnonymous
		m.user = nil
	})
	op.log.Info().Msg("logged out")
}

type bearerProvider interface {
	BearerClient(ctx context.Context, ts oauth2.TokenSource) *http.Client
	TokenSource(ctx context.Context, refreshToken string, onRotate func(identity.TokenPair)) *identity.RefreshTokenSource
}

// HTTPClient returns a client that authorizes requests with the session's access
// token and refreshes it when it expires. Rotated tokens are persisted while the
// session that created the client is still current.
func (m *Manager) HTTPClient(ctx context.Context) (*http.Client, error) {
	provider, ok := m.identity.(bearerProvider)
	if !ok {
		return nil, errors.New("[HTTPClient] identity service cannot issue bearer clients")
	}

	m.mu.Lock()
	gen, state := m.generation, m.state
	m.mu.Unlock()
	if state != StateAuthenticated {
		return nil, errors.Wrap(apperrors.ErrNoSession, "[HTTPClient]")
	}

	access, refresh := m.store.GetAccessToken(), m.store.GetRefreshToken()
	var current *oauth2.Token
	if access != "" {
		current = identity.TokenPair{AccessToken: access, RefreshToken: refresh}.OAuth2Token()
	}

	switch {
	case refresh != "":
		rts := provider.TokenSource(ctx, refresh, func(pair identity.TokenPair) {
			m.persistRotation(gen, pair)
		})
		return provider.BearerClient(ctx, oauth2.ReuseTokenSource(current, rts)), nil
	case current != nil:
		return provider.BearerClient(ctx, oauth2.StaticTokenSource(current)), nil
	default:
		return nil, errors.Wrap(apperrors.ErrNoSession, "[HTTPClient]")
	}
}

type operation struct {
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
	log    zerolog.Logger
}

// begin cancels the in-flight operation and moves to state.
func (m *Manager) begin(ctx context.Context, state State, name string) (operation, Snapshot) {
	opCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.generation++
	m.cancel = cancel
	prev := m.snapshotLocked()
	m.state = state
	snap := m.snapshotLocked()
	gen := m.generation
	m.mu.Unlock()

	m.notify(snap)
	return operation{
		ctx:    opCtx,
		cancel: cancel,
		gen:    gen,
		log:    log.With().Str("op", name).Str("op_id", uuid.NewString()).Logger(),
	}, prev
}

func (m *Manager) end(op operation) {
	op.cancel()
	m.mu.Lock()
	if m.generation == op.gen {
		m.cancel = nil
	}
	m.mu.Unlock()
}

// commit applies fn under the lock if op is still current.
func (m *Manager) commit(op operation, fn func()) error {
	m.mu.Lock()
	if op.gen != m.generation {
		m.mu.Unlock()
		return errors.Wrap(apperrors.ErrSuperseded, "[commit]")
	}
	fn()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

func (m *Manager) superseded(op operation) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return op.gen != m.generation
}

// interrupted settles the operation when it was superseded or its caller gave up.
func (m *Manager) interrupted(ctx context.Context, op operation) (State, bool, error) {
	if m.superseded(op) {
		return m.State(), true, errors.Wrap(apperrors.ErrSuperseded, "[Boot]")
	}
	if err := ctx.Err(); err != nil {
		state, serr := m.settleAnonymous(op, false)
		if serr != nil {
			return state, true, serr
		}
		return state, true, errors.Wrap(err, "[Boot]")
	}
	return 0, false, nil
}

func (m *Manager) authenticate(op operation, profile *users.Profile, pair *identity.TokenPair) (State, error) {
	err := m.commit(op, func() {
		if pair != nil {
			m.store.SetTokens(pair.AccessToken, pair.RefreshToken)
		}
		m.store.SetUser(profile)
		m.state = StateAuthenticated
		m.user = profile
	})
	if err != nil {
		return m.State(), err
	}
	op.log.Info().Str("user_id", profile.ID).Msg("session authenticated")
	return StateAuthenticated, nil
}

func (m *Manager) settleAnonymous(op operation, clear bool) (State, error) {
	err := m.commit(op, func() {
		if clear {
			m.store.ClearAuth()
		}
		m.state = StateAnonymous
		m.user = nil
	})
	if err != nil {
		return m.State(), err
	}
	return StateAnonymous, nil
}

// restore reverts a failed login. A transient previous state has no outcome to go
// back to, so it becomes Anonymous.
func (m *Manager) restore(op operation, prev Snapshot) {
	_ = m.commit(op, func() {
		if prev.State.Transient() {
			m.state = StateAnonymous
			m.user = nil
			return
		}
		m.state = prev.State
		m.user = prev.User
	})
}

func (m *Manager) persistRotation(gen uint64, pair identity.TokenPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.state != StateAuthenticated {
		return
	}
	m.store.SetTokens(pair.AccessToken, pair.RefreshToken)
}

func (m *Manager) resolveProfile(ctx context.Context, accessToken string) (*users.Profile, error) {
	if accessToken == "" {
		return nil, errors.Wrap(apperrors.ErrUnauthorized, "[resolveProfile] no access token")
	}
	if identity.IsExpired(accessToken, m.now()) {
		return nil, errors.Wrap(apperrors.ErrUnauthorized, "[resolveProfile] access token expired")
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	profile, err := m.identity.Me(callCtx, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[resolveProfile]")
	}
	if profile.IsBlocked() {
		return nil, errors.Wrap(apperrors.ErrUserBlocked, "[resolveProfile]")
	}
	return profile, nil
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (identity.TokenPair, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	pair, err := m.identity.Refresh(callCtx, refreshToken)
	if err != nil {
		return identity.TokenPair{}, errors.Wrap(err, "[refresh]")
	}
	return pair, nil
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, User: m.user, Loading: m.state.Transient()}
}

func (m *Manager) notify(snap Snapshot) {
	if len(m.listeners) == 0 {
		return
	}
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	for _, l := range m.listeners {
		l(snap)
	}
}
