// Package api wires ship's HTTP endpoints to the run pipeline and starts the server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/shipctl/ship/pkg/api"
	metricsAPI "github.com/shipctl/ship/pkg/api/metrics"
	"github.com/shipctl/ship/pkg/api/update"
	"github.com/shipctl/ship/pkg/metrics"
)

var (
	// errStartAPI indicates the HTTP API server could not be started.
	errStartAPI = errors.New("failed to start HTTP API")
	// errMissingMetrics indicates the metrics endpoint was enabled without collectors.
	errMissingMetrics = errors.New("metrics endpoint enabled without metrics")
)

// Config selects the endpoints to serve.
type Config struct {
	Host  string
	Port  string
	Token string

	EnableUpdate  bool
	EnableMetrics bool
	// Block serves in the foreground until ctx is cancelled.
	Block bool

	// Lock is the run lock shared with the scheduler.
	Lock chan bool
	// Update performs a run triggered through /v1/update.
	Update update.Func
	// Metrics backs /v1/metrics.
	Metrics *metrics.Metrics
}

// GetAPIAddr formats the listen address, bracketing IPv6 hosts.
func GetAPIAddr(host, port string) string {
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		return "[" + host + "]:" + port
	}

	return host + ":" + port
}

// SetupAndStartAPI registers the enabled endpoints and starts the HTTP API.
//
// Parameters:
//   - ctx: Context controlling the server's lifecycle.
//   - cfg: Endpoint selection and collaborators.
//   - server: Optional server replacing the default http.Server, used in tests.
//
// Returns:
//   - error: Non-nil if the configuration is incomplete or the server failed.
func SetupAndStartAPI(ctx context.Context, cfg Config, server ...api.HTTPServer) error {
	httpAPI := api.New(cfg.Token, GetAPIAddr(cfg.Host, cfg.Port), server...)

	if cfg.EnableUpdate {
		handler := update.New(cfg.Update, cfg.Lock)
		httpAPI.RegisterFunc(handler.Path, handler.Handle)
	}

	if cfg.EnableMetrics {
		if cfg.Metrics == nil {
			return errMissingMetrics
		}

		handler := metricsAPI.New(cfg.Metrics)
		httpAPI.RegisterHandler(handler.Path, handler.Handle)
	}

	if err := httpAPI.Start(ctx, cfg.Block); err != nil {
		return fmt.Errorf("%w: %w", errStartAPI, err)
	}

	return nil
}
