package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediaforge/pkg/api/auth"
	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/media/store/database"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, initForce, pidFile = "", false, ""
	mediaOutput, mediaStatus, mediaLimit = "table", "", 50
	statusOutput, statusAPIAddr = "table", ""
	tokenSubject, tokenTTL = "admin", 0
	migrateStatusOnly = false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// seededSQLite writes a config pointing at a SQLite database holding one
// ready and one failed record.
func seededSQLite(t *testing.T) string {
	t.Helper()
	dir := filepath.ToSlash(t.TempDir())
	dbPath := dir + "/media.db"

	store, err := database.New(context.Background(), &database.Config{
		Type:   database.DatabaseTypeSQLite,
		SQLite: database.SQLiteConfig{Path: dbPath},
	})
	require.NoError(t, err)

	now := time.Now()
	for _, rec := range []*media.Record{
		{ID: "vid_100_1", OriginalName: "holiday.mp4", StoragePath: dir + "/hls/vid_100_1", Status: media.StatusReady, SizeBytes: 2048, CreatedAt: now.Add(-time.Hour)},
		{ID: "vid_200_2", OriginalName: "broken.mov", StoragePath: dir + "/uploads/broken.mov", Status: media.StatusFailed, SizeBytes: 17, CreatedAt: now},
	} {
		require.NoError(t, store.InsertMediaRecord(context.Background(), rec))
	}
	require.NoError(t, store.Close())

	return writeConfig(t, `
server:
  src_dir: "`+dir+`"
database:
  type: sqlite
  sqlite:
    path: "`+dbPath+`"
api:
  jwt:
    secret: "`+testSecret+`"
`)
}

func TestVersion(t *testing.T) {
	Version = "1.2.3"
	t.Cleanup(func() { Version = "dev" })

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mediaforge 1.2.3")
}

func TestInitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediaforge.yaml")

	out, err := run(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = run(t, "init", "--config", path)
	assert.Error(t, err, "second init without --force must fail")

	_, err = run(t, "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	path := seededSQLite(t)

	out, err := run(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "Database type:   sqlite")
	assert.NotContains(t, out, "api.jwt.secret not set")

	bad := writeConfig(t, "database:\n  type: mongodb\n")
	_, err = run(t, "config", "validate", "--config", bad)
	assert.Error(t, err)
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	out, err := run(t, "config", "show", "--config", seededSQLite(t))
	require.NoError(t, err)
	assert.NotContains(t, out, testSecret)
	assert.Contains(t, out, "<redacted>")
}

func TestMediaList(t *testing.T) {
	path := seededSQLite(t)

	out, err := run(t, "media", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "holiday.mp4")
	assert.Contains(t, out, "broken.mov")

	out, err = run(t, "media", "list", "--config", path, "--status", "ready", "-o", "json")
	require.NoError(t, err)
	var items []mediaView
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "vid_100_1", items[0].ID)

	out, err = run(t, "media", "list", "--config", path, "--status", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No media found")

	_, err = run(t, "media", "list", "--config", path, "--status", "lost")
	assert.Error(t, err)
}

func TestMediaShow(t *testing.T) {
	path := seededSQLite(t)

	out, err := run(t, "media", "show", "vid_200_2", "--config", path, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "original_name: broken.mov")
	assert.Contains(t, out, "status: failed")

	out, err = run(t, "media", "show", "vid_100_1", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "holiday.mp4")

	_, err = run(t, "media", "show", "vid_999_9", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTokenIsAcceptedByTheAPI(t *testing.T) {
	out, err := run(t, "token", "--config", seededSQLite(t), "--subject", "dashboard", "--ttl", "5m")
	require.NoError(t, err)

	svc, err := auth.NewJWTService(testSecret, "mediaforge")
	require.NoError(t, err)
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
}

func TestTokenRequiresSecret(t *testing.T) {
	path := writeConfig(t, "database:\n  type: memory\n")
	_, err := run(t, "token", "--config", path)
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	ready := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ready", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","data":{"store":"ok","store_latency":"1ms","pipeline":"running","queue_depth":3}}`))
	}))
	defer ready.Close()

	out, err := run(t, "status", "--api-addr", strings.TrimPrefix(ready.URL, "http://"), "-o", "json")
	require.NoError(t, err)

	var status ServerStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Running)
	assert.True(t, status.Healthy)
	assert.Equal(t, "running", status.Pipeline)
	assert.Equal(t, 3, status.QueueDepth)

	out, err = run(t, "status", "--api-addr", strings.TrimPrefix(ready.URL, "http://"))
	require.NoError(t, err)
	assert.Contains(t, out, "Ready")
}

func TestStatusNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	out, err := run(t, "status", "--api-addr", addr, "-o", "json")
	require.NoError(t, err)

	var status ServerStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.False(t, status.Running)
}

func TestMigrateSQLite(t *testing.T) {
	out, err := run(t, "migrate", "--config", seededSQLite(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations completed successfully")
}
