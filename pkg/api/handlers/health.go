package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/mediaforge/pkg/media"
)

// PipelineStatus is the view of the transcode pipeline the readiness
// probe needs. *transcode.Pipeline satisfies it.
type PipelineStatus interface {
	Running() bool
	Pending() int
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Can uploads be recorded and transcoded?
type HealthHandler struct {
	store    media.Store
	pipeline PipelineStatus
}

// NewHealthHandler creates a new health handler. pipeline may be nil when
// transcoding is disabled.
func NewHealthHandler(store media.Store, pipeline PipelineStatus) *HealthHandler {
	return &HealthHandler{store: store, pipeline: pipeline}
}

// Liveness handles GET /health. It succeeds whenever the API answers.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "mediaforge",
	}))
}

// ReadinessData is the payload of GET /health/ready.
type ReadinessData struct {
	Store        string `json:"store"`
	StoreLatency string `json:"store_latency,omitempty"`
	Pipeline     string `json:"pipeline"`
	QueueDepth   int    `json:"queue_depth"`
}

// Readiness handles GET /health/ready.
//
// Returns 503 when the media store fails its healthcheck or the pipeline
// is configured but not running.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("media store not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	data := ReadinessData{Store: "healthy", Pipeline: "disabled"}

	start := time.Now()
	storeErr := h.store.Healthcheck(ctx)
	data.StoreLatency = time.Since(start).String()
	if storeErr != nil {
		data.Store = "unhealthy"
	}

	if h.pipeline != nil {
		data.QueueDepth = h.pipeline.Pending()
		if h.pipeline.Running() {
			data.Pipeline = "running"
		} else {
			data.Pipeline = "stopped"
		}
	}

	switch {
	case storeErr != nil:
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(data, storeErr.Error()))
	case data.Pipeline == "stopped":
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(data, "transcode pipeline not running"))
	default:
		writeJSON(w, http.StatusOK, healthyResponse(data))
	}
}
