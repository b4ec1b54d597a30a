// Package health decodes the admin API health responses for the CLI.
package health

import "time"

// Readiness is the body of GET /health/ready.
type Readiness struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		Store        string `json:"store"`
		StoreLatency string `json:"store_latency,omitempty"`
		Pipeline     string `json:"pipeline"`
		QueueDepth   int    `json:"queue_depth"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Healthy reports whether the server considers itself ready.
func (r *Readiness) Healthy() bool {
	return r.Status == "healthy"
}
