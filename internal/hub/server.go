// ABOUTME: HTTP server wiring for the hub: websocket endpoint, health check,
// ABOUTME: auth routes, and the cache admin API, with graceful shutdown.

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/socksthoughtshop/parlor/internal/auth"
	"github.com/socksthoughtshop/parlor/internal/store"
)

// Server hosts the hub's HTTP surface on one address.
type Server struct {
	addr       string
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer mounts all routes. authSvc and adminAPI may be nil when the
// deployment disables those surfaces.
func NewServer(addr string, ws *WSHandler, authSvc *auth.Service, adminAPI *AdminAPI) *Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.HandleFunc("/health", handleHealth)
	if authSvc != nil {
		authSvc.RegisterRoutes(mux)
	}
	if adminAPI != nil {
		adminAPI.RegisterRoutes(mux)
	}

	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: slog.Default().With("component", "server"),
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Run serves until the context is canceled or the listener fails, then shuts
// down gracefully with a fresh timeout context.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.httpServer.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// UserDirectory adapts the store to the auth service's user lookup, mapping
// store sentinels onto auth ones.
type UserDirectory struct {
	store store.Store
}

// NewUserDirectory wraps a store for the auth service.
func NewUserDirectory(s store.Store) *UserDirectory {
	return &UserDirectory{store: s}
}

func (d *UserDirectory) CreateUser(username, passwordHash string) error {
	err := d.store.CreateUser(context.Background(), username, passwordHash)
	if errors.Is(err, store.ErrDuplicateUser) {
		return auth.ErrUserExists
	}
	return err
}

func (d *UserDirectory) PasswordHash(username string) (string, error) {
	u, err := d.store.GetUser(context.Background(), username)
	if errors.Is(err, store.ErrNotFound) {
		return "", auth.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return u.PasswordHash, nil
}
