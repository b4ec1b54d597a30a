package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture points the logger at a buffer and restores stdout afterwards.
func capture(t *testing.T, lvl, format string) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	InitWithWriter(buf, lvl, format, false)
	t.Cleanup(func() {
		SetFormat("text")
		SetLevel("INFO")
		require.NoError(t, Init(Config{Output: "stdout"}))
	})
	return buf
}

// ============================================================================
// Levels
// ============================================================================

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugShowsEverything", func(t *testing.T) {
		buf := capture(t, "DEBUG", "text")

		Debug("d")
		Info("i")
		Warn("w")
		Error("e")

		out := buf.String()
		for _, want := range []string{"[DEBUG] d", "[INFO] i", "[WARN] w", "[ERROR] e"} {
			assert.Contains(t, out, want)
		}
	})

	t.Run("WarnHidesDebugAndInfo", func(t *testing.T) {
		buf := capture(t, "WARN", "text")

		Debug("d")
		Info("i")
		Warn("w")

		out := buf.String()
		assert.NotContains(t, out, "[DEBUG]")
		assert.NotContains(t, out, "[INFO]")
		assert.Contains(t, out, "[WARN] w")
	})

	t.Run("ErrorIsNeverFiltered", func(t *testing.T) {
		buf := capture(t, "ERROR", "text")
		Error("boom")
		assert.Contains(t, buf.String(), "boom")
	})

	t.Run("UnknownLevelIgnored", func(t *testing.T) {
		capture(t, "WARN", "text")
		SetLevel("loud")
		assert.Equal(t, "WARN", GetLevel())
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	capture(t, "INFO", "text")
	assert.Error(t, Init(Config{Level: "verbose"}))
}

// ============================================================================
// Formats
// ============================================================================

func TestJSONFormat(t *testing.T) {
	buf := capture(t, "INFO", "json")

	Info("upload finished", KeyMediaID, "vid_1_2", KeyBytes, 42)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "upload finished", rec["msg"])
	assert.Equal(t, "vid_1_2", rec[KeyMediaID])
	assert.EqualValues(t, 42, rec[KeyBytes])
}

func TestTextFormatAttributes(t *testing.T) {
	buf := capture(t, "INFO", "text")

	With(KeyConnID, 7).Info("accepted", slog.Group("peer", slog.String("addr", "10.0.0.1:5000")))

	line := buf.String()
	assert.Contains(t, line, "conn_id=7")
	assert.Contains(t, line, "peer.addr=10.0.0.1:5000")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

// ============================================================================
// Context fields
// ============================================================================

func TestContextFieldsArePrepended(t *testing.T) {
	buf := capture(t, "DEBUG", "text")

	lc := NewLogContext(3, "127.0.0.1:9000").WithRequest("GET", "/index.html").WithMedia("vid_9_1").
		WithTrace("4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "served", KeyStatus, 200)

	line := buf.String()
	connIdx := strings.Index(line, "conn_id=3")
	statusIdx := strings.Index(line, "status=200")
	require.NotEqual(t, -1, connIdx)
	require.NotEqual(t, -1, statusIdx)
	assert.Less(t, connIdx, statusIdx)
	assert.Contains(t, line, "method=GET")
	assert.Contains(t, line, "path=/index.html")
	assert.Contains(t, line, "media_id=vid_9_1")
	assert.Contains(t, line, "trace_id=4bf92f3577b34da6a3ce929d0e0e4736")
	assert.Contains(t, line, "span_id=00f067aa0ba902b7")
}

func TestLogContextCopiesAreIndependent(t *testing.T) {
	base := NewLogContext(1, "a")
	withReq := base.WithRequest("POST", "/upload")

	assert.Empty(t, base.Method)
	assert.Equal(t, "POST", withReq.Method)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.WithMedia("x"))
	assert.Zero(t, nilCtx.DurationMs())
	assert.Nil(t, FromContext(context.Background()))
}

func TestErrAttr(t *testing.T) {
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, "", Err(nil).Value.String())
}

// ============================================================================
// Concurrency
// ============================================================================

func TestConcurrentLoggingAndLevelChanges(t *testing.T) {
	capture(t, "INFO", "text")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Info("tick", "worker", i)
				if j%10 == 0 {
					SetLevel("DEBUG")
					SetLevel("INFO")
				}
			}
		}(i)
	}
	wg.Wait()
}
