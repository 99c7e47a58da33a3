// Package metrics provides the HTTP handler exposing ship's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shipctl/ship/pkg/metrics"
)

// Path is the endpoint the handler serves.
const Path = "/v1/metrics"

// Handler serves metric data in the Prometheus exposition format.
type Handler struct {
	Path    string
	Handle  http.Handler
	Metrics *metrics.Metrics
}

// New creates a Handler for m's registry.
func New(m *metrics.Metrics) *Handler {
	return &Handler{
		Path:    Path,
		Handle:  promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}),
		Metrics: m,
	}
}
