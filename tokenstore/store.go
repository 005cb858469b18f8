// Package tokenstore persists the session tokens and the cached user profile.
//
// Every operation is best effort: a failing backend degrades to "no session" and is
// logged, never returned to the caller.
package tokenstore

import (
	"encoding/json"
	"strings"

	apperrors "github.com/hosilim/dashboard-session/internal/errors"
	"github.com/hosilim/dashboard-session/users"
	"github.com/rs/zerolog/log"
)

// Canonical keys. Only these are written.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// LegacyAccessTokenKeys are read, in order, when KeyAccessToken is absent.
var LegacyAccessTokenKeys = []string{"authToken", "accessToken", "token", "jwt"}

// Backend is a string key/value store. Get returns errors.ErrNotFound for a missing key.
type Backend interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store is the single owner of the persisted session.
type Store struct {
	backend Backend
}

// New returns a Store over backend. A nil backend behaves as unavailable storage.
func New(backend Backend) *Store {
	if backend == nil {
		backend = Unavailable{}
	}
	return &Store{backend: backend}
}

// SetTokens trims and persists both tokens. Empty values remove their key.
func (s *Store) SetTokens(access, refresh string) {
	s.setOrDelete(KeyAccessToken, access)
	s.setOrDelete(KeyRefreshToken, refresh)
	for _, key := range LegacyAccessTokenKeys {
		s.delete(key)
	}
}

func (s *Store) GetAccessToken() string {
	if v := s.get(KeyAccessToken); v != "" {
		return v
	}
	for _, key := range LegacyAccessTokenKeys {
		if v := s.get(key); v != "" {
			return v
		}
	}
	return ""
}

func (s *Store) GetRefreshToken() string {
	return s.get(KeyRefreshToken)
}

// HasTokens reports whether either token is present.
func (s *Store) HasTokens() bool {
	return s.GetAccessToken() != "" || s.GetRefreshToken() != ""
}

// SetUser caches profile. A nil profile removes the cached user.
func (s *Store) SetUser(profile *users.Profile) {
	if profile == nil {
		s.delete(KeyUser)
		return
	}
	data, err := json.Marshal(profile)
	if err != nil {
		log.Err(err).Msg("tokenstore: encoding user")
		s.delete(KeyUser)
		return
	}
	s.set(KeyUser, string(data))
}

// GetUser returns the cached profile, or nil when it is missing or unreadable.
func (s *Store) GetUser() *users.Profile {
	raw := s.get(KeyUser)
	if raw == "" {
		return nil
	}
	var profile *users.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		log.Debug().Err(err).Msg("tokenstore: discarding malformed cached user")
		return nil
	}
	return profile
}

// ClearAuth removes the tokens, their legacy aliases and the cached user. Idempotent.
func (s *Store) ClearAuth() {
	s.delete(KeyAccessToken)
	s.delete(KeyRefreshToken)
	s.delete(KeyUser)
	for _, key := range LegacyAccessTokenKeys {
		s.delete(key)
	}
}

func (s *Store) setOrDelete(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		s.delete(key)
		return
	}
	s.set(key, value)
}

func (s *Store) get(key string) string {
	v, err := s.backend.Get(key)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("tokenstore: read failed")
		}
		return ""
	}
	return strings.TrimSpace(v)
}

func (s *Store) set(key, value string) {
	if err := s.backend.Set(key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("tokenstore: write failed")
	}
}

func (s *Store) delete(key string) {
	if err := s.backend.Delete(key); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		log.Warn().Err(err).Str("key", key).Msg("tokenstore: delete failed")
	}
}
