package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/media/store/memory"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for i, st := range []media.Status{media.StatusReady, media.StatusPending, media.StatusReady, media.StatusFailed} {
		rec := &media.Record{
			ID:           "vid_1700000000_" + string(rune('0'+i)),
			OriginalName: "clip.mp4",
			StoragePath:  "/srv/hls/out/master.m3u8",
			Status:       st,
			CreatedAt:    time.Unix(1700000000+int64(i), 0),
		}
		if err := store.InsertMediaRecord(ctx, rec); err != nil {
			t.Fatalf("Failed to seed store: %v", err)
		}
	}
	return store
}

func mediaRouter(store media.Store) http.Handler {
	h := NewMediaHandler(store)
	r := chi.NewRouter()
	r.Get("/media", h.List)
	r.Get("/media/{id}", h.Get)
	return r
}

type listResponse struct {
	Status string          `json:"status"`
	Data   []*media.Record `json:"data"`
	Error  string          `json:"error"`
}

func TestMediaList(t *testing.T) {
	router := mediaRouter(seededStore(t))

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCount int
	}{
		{"All", "", http.StatusOK, 4},
		{"ReadyOnly", "?status=ready", http.StatusOK, 2},
		{"StatusCaseInsensitive", "?status=PENDING", http.StatusOK, 1},
		{"Limit", "?limit=1", http.StatusOK, 1},
		{"UnknownStatus", "?status=archived", http.StatusBadRequest, 0},
		{"BadLimit", "?limit=-3", http.StatusBadRequest, 0},
		{"NonNumericLimit", "?limit=ten", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/media"+tt.query, nil))

			if w.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}

			var resp listResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if tt.wantCode != http.StatusOK {
				if resp.Status != "error" || resp.Error == "" {
					t.Errorf("Expected error envelope, got %+v", resp)
				}
				return
			}
			if len(resp.Data) != tt.wantCount {
				t.Errorf("Expected %d records, got %d", tt.wantCount, len(resp.Data))
			}
		})
	}
}

func TestMediaList_EmptyIsArray(t *testing.T) {
	w := httptest.NewRecorder()
	mediaRouter(memory.New()).ServeHTTP(w, httptest.NewRequest("GET", "/media", nil))

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if string(raw["data"]) != "[]" {
		t.Errorf("Expected empty array, got %s", raw["data"])
	}
}

func TestMediaGet(t *testing.T) {
	router := mediaRouter(seededStore(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/media/vid_1700000000_0", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp struct {
		Status string       `json:"status"`
		Data   media.Record `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Data.ID != "vid_1700000000_0" || resp.Data.Status != media.StatusReady {
		t.Errorf("Unexpected record: %+v", resp.Data)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/media/vid_missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
