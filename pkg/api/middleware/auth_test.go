package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediaforge/pkg/api/auth"
)

func TestRequireBearer(t *testing.T) {
	svc, err := auth.NewJWTService("0123456789abcdef0123456789abcdef", "mediaforge")
	require.NoError(t, err)
	token, _, err := svc.IssueToken("dashboard", time.Minute)
	require.NoError(t, err)

	var subject string
	h := RequireBearer(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := ClaimsFromContext(r.Context()); c != nil {
			subject = c.Subject
		}
	}))

	tests := []struct {
		name      string
		header    string
		wantCode  int
		challenge string
	}{
		{"Missing", "", http.StatusUnauthorized, `Bearer realm="mediaforge"`},
		{"EmptyToken", "Bearer ", http.StatusUnauthorized, `Bearer realm="mediaforge"`},
		{"Invalid", "Bearer abc", http.StatusUnauthorized, `Bearer realm="mediaforge", error="invalid_token"`},
		{"LowercaseScheme", "bearer " + token, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			req := httptest.NewRequest("GET", "/api/v1/media", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.challenge, w.Header().Get("WWW-Authenticate"))
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "dashboard", subject)
			} else {
				assert.Contains(t, w.Body.String(), `"status":"error"`)
				assert.Empty(t, subject)
			}
		})
	}
}
