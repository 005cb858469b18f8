package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/hosilim/dashboard-session/identity/identityfake"
	"github.com/hosilim/dashboard-session/server"
	"github.com/hosilim/dashboard-session/users"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var fakeIdentity bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard shell API",
	Long: `Restores the stored session and serves the session, login and navigation
API together with role guarded dashboard pages. With --fake-identity an in-process
identity service is started and the one time passwords it sends are logged.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&fakeIdentity, "fake-identity", false, "run against an in-process identity service with demo users")
}

func run(ctx context.Context) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(cfg.GetAppName())

	baseURL := ""
	if fakeIdentity {
		fake := startFakeIdentity()
		defer fake.Close()
		baseURL = fake.URL()
	}

	app, err := openApplication(baseURL)
	if err != nil {
		return err
	}
	defer app.Close()

	state, err := app.manager.Boot(ctx)
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	log.Info().Str("state", state.String()).Msg("Session restored")

	handler, err := server.New(cfg, app.manager)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: cfg.GetListenAddr(), Handler: handler}

	errc := make(chan error, 1)
	go func() { errc <- listenAndServe(srv) }()

	select {
	case err := <-errc:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func listenAndServe(srv *http.Server) error {
	log.Info().Str("addr", srv.Addr).Msg("Server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

// startFakeIdentity runs the in-process identity service with one user per role.
func startFakeIdentity() *identityfake.Server {
	fake := identityfake.New(identityfake.WithOTPHook(func(phone, otp string) {
		log.Info().Str("phone", phone).Str("otp", otp).Msg("OTP delivered")
	}))

	demo := []struct {
		phone, first string
		role         users.RoleType
	}{
		{"+998900000001", "Admin", users.RoleAdmin},
		{"+998900000002", "Broker", users.RoleBroker},
		{"+998900000003", "Farmer", users.RoleFarmer},
	}
	for _, d := range demo {
		fake.AddUser(&users.Profile{
			Phone:     d.phone,
			FirstName: d.first,
			LastName:  "Demo",
			Roles:     users.NewRoles(d.role),
			Status:    users.StatusActive,
		})
		log.Info().Str("phone", d.phone).Str("role", string(d.role)).Msg("Demo user")
	}
	log.Info().Str("url", fake.URL()).Msg("Fake identity service started")
	return fake
}
