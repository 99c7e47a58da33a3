package update

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shipctl/ship/pkg/metrics"
)

// Path is the endpoint the handler serves.
const Path = "/v1/update"

// retryAfterSeconds is suggested to clients turned away by a running update.
const retryAfterSeconds = "30"

// Func performs one run, over dirs when given or the configured targets otherwise.
type Func func(ctx context.Context, dirs []string) *metrics.Metric

// Handler triggers scan and update runs via HTTP.
type Handler struct {
	fn   Func
	Path string
	lock chan bool
	now  func() time.Time
}

// summary is the JSON body of a completed run.
type summary struct {
	Scanned     int `json:"scanned"`
	UpToDate    int `json:"up_to_date"`
	Updatable   int `json:"updatable"`
	RateLimited int `json:"rate_limited"`
	Updated     int `json:"updated"`
	Failed      int `json:"failed"`
}

type timing struct {
	DurationMs int64  `json:"duration_ms"`
	Duration   string `json:"duration"`
}

type response struct {
	Summary    *summary `json:"summary,omitempty"`
	Timing     *timing  `json:"timing,omitempty"`
	Error      string   `json:"error,omitempty"`
	Timestamp  string   `json:"timestamp"`
	APIVersion string   `json:"api_version"`
}

// New creates a Handler.
//
// Parameters:
//   - fn: Function performing a run.
//   - lock: Run lock shared with the scheduler; nil creates a private one.
//
// Returns:
//   - *Handler: Handler serving Path.
func New(fn Func, lock chan bool) *Handler {
	if lock == nil {
		lock = make(chan bool, 1)
		lock <- true
	}

	return &Handler{
		fn:   fn,
		Path: Path,
		lock: lock,
		now:  time.Now,
	}
}

// Handle runs an update for a POST request.
//
// Targeted requests (one or more "dir" query parameters) wait for a running update to
// finish. Full requests are turned away with 429 while another update runs.
//
// Parameters:
//   - w: Response writer.
//   - r: Request, optionally carrying "dir" query parameters.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	logrus.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Info("Received HTTP API update request")

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.write(w, http.StatusMethodNotAllowed, response{Error: "use POST"})

		return
	}

	dirs := requestedDirs(r)

	if len(dirs) > 0 {
		select {
		case v := <-h.lock:
			defer func() { h.lock <- v }()
		case <-r.Context().Done():
			logrus.Debug("Update request cancelled while waiting for lock")
			h.write(w, http.StatusServiceUnavailable, response{Error: "request cancelled"})

			return
		}

		logrus.WithField("dirs", dirs).Info("Executing targeted update")
	} else {
		select {
		case v := <-h.lock:
			defer func() { h.lock <- v }()
		default:
			logrus.Debug("Skipped update, another update already in progress")
			w.Header().Set("Retry-After", retryAfterSeconds)
			h.write(w, http.StatusTooManyRequests, response{Error: "another update is already running"})

			return
		}

		logrus.Info("Executing full update")
	}

	start := h.now()
	metric := h.fn(r.Context(), dirs)
	elapsed := h.now().Sub(start)

	h.write(w, http.StatusOK, response{
		Summary: &summary{
			Scanned:     metric.Scanned,
			UpToDate:    metric.UpToDate,
			Updatable:   metric.Updatable,
			RateLimited: metric.RateLimited,
			Updated:     metric.Updated,
			Failed:      metric.Failed,
		},
		Timing: &timing{
			DurationMs: elapsed.Milliseconds(),
			Duration:   elapsed.String(),
		},
	})
}

// write sends body as JSON with status.
func (h *Handler) write(w http.ResponseWriter, status int, body response) {
	body.Timestamp = h.now().UTC().Format(time.RFC3339)
	body.APIVersion = "v1"

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("Failed to write HTTP API response")
	}
}

// requestedDirs collects the "dir" query parameters, splitting comma separated values.
func requestedDirs(r *http.Request) []string {
	var dirs []string

	for _, value := range r.URL.Query()["dir"] {
		for dir := range strings.SplitSeq(value, ",") {
			if dir = strings.TrimSpace(dir); dir != "" {
				dirs = append(dirs, dir)
			}
		}
	}

	return dirs
}
