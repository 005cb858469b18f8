package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/hosilim/dashboard-session/identity"
	"github.com/hosilim/dashboard-session/session"
	"github.com/hosilim/dashboard-session/tokenstore"
	"github.com/rs/zerolog/log"
)

type application struct {
	manager *session.Manager
	closer  io.Closer
}

// openApplication wires the token store, identity client and session manager. An
// empty baseURL uses the configured identity service.
func openApplication(baseURL string) (*application, error) {
	if baseURL == "" {
		baseURL = cfg.GetIdentityBaseURL()
	}

	backend, closer, err := tokenstore.OpenBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("[openApplication] token store: %w", err)
	}

	client, err := identity.NewClient(baseURL, identity.WithHTTPClient(&http.Client{Timeout: cfg.GetIdentityTimeout()}))
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("[openApplication] identity client: %w", err)
	}

	manager, err := session.NewManager(tokenstore.New(backend), client,
		session.WithTimeout(cfg.GetIdentityTimeout()),
		session.WithListener(logTransition),
	)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("[openApplication] session manager: %w", err)
	}

	return &application{manager: manager, closer: closer}, nil
}

func (a *application) Close() {
	if err := a.closer.Close(); err != nil {
		log.Err(err).Msg("closing token store")
	}
}

func logTransition(s session.Snapshot) {
	ev := log.Debug().Str("state", s.State.String()).Bool("loading", s.Loading)
	if s.User != nil {
		ev = ev.Str("user_id", s.User.ID)
	}
	ev.Msg("session transition")
}
