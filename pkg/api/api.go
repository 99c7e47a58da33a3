package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Server timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Errors for serving the API.
var (
	// errMissingToken indicates Start was called without an authentication token.
	errMissingToken = errors.New("api token is empty or has not been set")
	// errServe indicates the server stopped with an error.
	errServe = errors.New("http api server failed")
	// errShutdown indicates a graceful shutdown did not complete.
	errShutdown = errors.New("http api server shutdown failed")
)

// HTTPServer is the part of http.Server the API drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// API is a token protected HTTP server.
type API struct {
	Addr       string
	token      string
	mux        *http.ServeMux
	registered bool
	server     HTTPServer
}

// New creates an API listening on addr.
//
// Parameters:
//   - token: Bearer token every request must present.
//   - addr: Listen address, e.g. ":8080".
//   - server: Optional server replacing the default http.Server, used in tests.
//
// Returns:
//   - *API: API without handlers.
func New(token, addr string, server ...HTTPServer) *API {
	api := &API{
		Addr:  addr,
		token: token,
		mux:   http.NewServeMux(),
	}

	if len(server) > 0 {
		api.server = server[0]
	}

	logrus.WithField("addr", addr).Debug("Initialized HTTP API")

	return api
}

// RegisterFunc registers handler for path behind token authentication.
func (a *API) RegisterFunc(path string, handler http.HandlerFunc) {
	a.mux.Handle(path, a.RequireToken(handler))
	a.registered = true
}

// RegisterHandler registers handler for path behind token authentication.
func (a *API) RegisterHandler(path string, handler http.Handler) {
	a.mux.Handle(path, a.RequireToken(handler.ServeHTTP))
	a.registered = true
}

// Handler returns the API's routes.
func (a *API) Handler() http.Handler {
	return a.mux
}

// Start serves the registered handlers until ctx is cancelled.
//
// Parameters:
//   - ctx: Context whose cancellation shuts the server down.
//   - block: Serve in the foreground when true, in a goroutine otherwise.
//
// Returns:
//   - error: Non-nil if no token is set, or, when blocking, if serving failed.
func (a *API) Start(ctx context.Context, block bool) error {
	if !a.registered {
		logrus.Info("No HTTP API handlers registered, skipping API start")

		return nil
	}

	if a.token == "" {
		return errMissingToken
	}

	server := a.server
	if server == nil {
		server = &http.Server{
			Addr:              a.Addr,
			Handler:           a.mux,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
	}

	logrus.WithField("addr", a.Addr).Info("Starting HTTP API server")

	if block {
		return RunHTTPServer(ctx, server)
	}

	go func() {
		if err := RunHTTPServer(ctx, server); err != nil {
			logrus.WithError(err).Error("HTTP API server stopped")
		}
	}()

	return nil
}

// RequireToken wraps handler with bearer token authentication.
func (a *API) RequireToken(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			logrus.WithFields(logrus.Fields{
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Debug("Rejected unauthenticated HTTP API request")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		handler(w, r)
	}
}

// RunHTTPServer serves until ctx is cancelled, then shuts server down gracefully.
//
// Parameters:
//   - ctx: Context whose cancellation stops the server.
//   - server: Server to run.
//
// Returns:
//   - error: Non-nil if the server failed to serve or to shut down.
func RunHTTPServer(ctx context.Context, server HTTPServer) error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("%w: %w", errServe, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%w: %w", errShutdown, err)
		}

		logrus.Debug("HTTP API server stopped")

		return nil
	}
}
