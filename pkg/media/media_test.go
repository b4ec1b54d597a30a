package media

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Ready ")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, st)

	_, err = ParseStatus("")
	assert.Error(t, err)
	_, err = ParseStatus("archived")
	assert.Error(t, err)
}

func TestNewID(t *testing.T) {
	now := time.Unix(1700000000, 0)
	for range 100 {
		id := NewID(now)
		require.True(t, strings.HasPrefix(id, "vid_1700000000_"), id)

		got, rest, ok := ExtractID("/" + id)
		require.True(t, ok)
		assert.Equal(t, id, got)
		assert.Empty(t, rest)
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		path string
		id   string
		rest string
		ok   bool
	}{
		{"/vid_1700000000_42", "vid_1700000000_42", "", true},
		{"/vid_1700000000_42/", "vid_1700000000_42", "/", true},
		{"/vid_1700000000_42/720p/index003.ts", "vid_1700000000_42", "/720p/index003.ts", true},
		{"/media/vid_1_2/master.m3u8", "vid_1_2", "/master.m3u8", true},
		{"vid_9_9", "vid_9_9", "", true},
		{"/index.html", "", "", false},
		{"/covid_19/stats", "", "", false},
		{"/", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			id, rest, ok := ExtractID(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.rest, rest)
		})
	}
}
