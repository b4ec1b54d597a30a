package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/mediaforge/pkg/media/store/memory"
)

type fakePipeline struct {
	running bool
	pending int
}

func (p fakePipeline) Running() bool { return p.running }
func (p fakePipeline) Pending() int  { return p.pending }

type brokenStore struct {
	*memory.Store
}

func (brokenStore) Healthcheck(context.Context) error { return errors.New("disk on fire") }

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler.Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}
	if data["service"] != "mediaforge" {
		t.Errorf("Expected service 'mediaforge', got '%s'", data["service"])
	}
}

func TestReadiness_NoStore_Returns503(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error != "media store not initialized" {
		t.Errorf("Expected error 'media store not initialized', got '%s'", resp.Error)
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name         string
		handler      *HealthHandler
		wantCode     int
		wantPipeline string
		wantQueue    float64
	}{
		{
			name:         "TranscodingDisabled",
			handler:      NewHealthHandler(memory.New(), nil),
			wantCode:     http.StatusOK,
			wantPipeline: "disabled",
		},
		{
			name:         "PipelineRunning",
			handler:      NewHealthHandler(memory.New(), fakePipeline{running: true, pending: 3}),
			wantCode:     http.StatusOK,
			wantPipeline: "running",
			wantQueue:    3,
		},
		{
			name:         "PipelineStopped",
			handler:      NewHealthHandler(memory.New(), fakePipeline{}),
			wantCode:     http.StatusServiceUnavailable,
			wantPipeline: "stopped",
		},
		{
			name:         "StoreUnhealthy",
			handler:      NewHealthHandler(brokenStore{memory.New()}, fakePipeline{running: true}),
			wantCode:     http.StatusServiceUnavailable,
			wantPipeline: "running",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler.Readiness(w, httptest.NewRequest("GET", "/health/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}

			resp := decodeResponse(t, w)
			data, ok := resp.Data.(map[string]interface{})
			if !ok {
				t.Fatalf("Expected Data to be a map, got %T", resp.Data)
			}
			if data["pipeline"] != tt.wantPipeline {
				t.Errorf("Expected pipeline %q, got %v", tt.wantPipeline, data["pipeline"])
			}
			if data["queue_depth"] != tt.wantQueue {
				t.Errorf("Expected queue_depth %v, got %v", tt.wantQueue, data["queue_depth"])
			}
			if tt.wantCode == http.StatusOK && resp.Status != "healthy" {
				t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
			}
			if tt.wantCode != http.StatusOK && (resp.Status != "unhealthy" || resp.Error == "") {
				t.Errorf("Expected unhealthy with error, got %q / %q", resp.Status, resp.Error)
			}
		})
	}
}
