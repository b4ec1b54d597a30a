package transcode

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/media/store/memory"
)

// fakeRunner writes the variant playlist named by the last argument and
// fails for variants whose output dir ends in one of fail.
type fakeRunner struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls [][]string
	block chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, args []string, log io.Writer) error {
	r.mu.Lock()
	r.calls = append(r.calls, args)
	r.mu.Unlock()

	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	out := args[len(args)-1]
	variant := filepath.Base(filepath.Dir(out))
	_, _ = io.WriteString(log, "encoding "+variant+"\n")
	if r.fail[variant] {
		return errors.New("exit status 1")
	}
	return os.WriteFile(out, []byte("#EXTM3U\n"), 0644)
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newJob(t *testing.T, id string) Job {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(input, []byte("not really mp4"), 0644))
	return Job{
		MediaID:      id,
		OriginalName: "clip.mp4",
		InputPath:    input,
		OutputDir:    filepath.Join(dir, "hls", id+"_out"),
		SizeBytes:    14,
		Checksum:     "abcd",
	}
}

func waitStatus(t *testing.T, store media.Store, id string, want media.Status) *media.Record {
	t.Helper()
	var rec *media.Record
	require.Eventually(t, func() bool {
		r, err := store.GetMedia(context.Background(), id)
		if err != nil {
			return false
		}
		rec = r
		return r.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return rec
}

func TestPipelineReady(t *testing.T) {
	store := memory.New()
	runner := &fakeRunner{fail: map[string]bool{"1080p": true}}
	p := New(Config{Workers: 1}, store, runner, nil, nil)
	p.Start(t.Context())
	defer func() { _ = p.Stop(context.Background()) }()

	job := newJob(t, "vid_1_1")
	require.NoError(t, p.Submit(job))

	rec := waitStatus(t, store, "vid_1_1", media.StatusReady)
	assert.Equal(t, filepath.Join(job.OutputDir, "master.m3u8"), rec.StoragePath)
	assert.Equal(t, "abcd", rec.Checksum)
	assert.Equal(t, int64(14), rec.SizeBytes)
	assert.Equal(t, 3, runner.callCount())

	master, err := os.ReadFile(rec.StoragePath)
	require.NoError(t, err)
	assert.Contains(t, string(master), "360p/index.m3u8")
	assert.Contains(t, string(master), "720p/index.m3u8")
	assert.NotContains(t, string(master), "1080p")

	assert.FileExists(t, filepath.Join(job.OutputDir, "1080p", "ffmpeg.log"))
}

func TestPipelineAllVariantsFail(t *testing.T) {
	store := memory.New()
	runner := &fakeRunner{fail: map[string]bool{"360p": true, "720p": true, "1080p": true}}
	p := New(Config{Workers: 1}, store, runner, nil, nil)
	p.Start(t.Context())
	defer func() { _ = p.Stop(context.Background()) }()

	job := newJob(t, "vid_1_2")
	require.NoError(t, p.Submit(job))

	waitStatus(t, store, "vid_1_2", media.StatusFailed)
	assert.NoFileExists(t, job.StoragePath())

	_, ok, err := store.QueryReadyMediaPath(context.Background(), "vid_1_2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPipelineInputMissing(t *testing.T) {
	store := memory.New()
	runner := &fakeRunner{}
	p := New(Config{Workers: 1}, store, runner, nil, nil)
	p.Start(t.Context())
	defer func() { _ = p.Stop(context.Background()) }()

	job := newJob(t, "vid_1_3")
	require.NoError(t, os.Remove(job.InputPath))
	require.NoError(t, p.Submit(job))

	waitStatus(t, store, "vid_1_3", media.StatusFailed)
	assert.Zero(t, runner.callCount())
}

func TestPipelineDuplicateIDLeavesRecord(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.InsertMediaRecord(context.Background(), &media.Record{
		ID: "vid_1_4", OriginalName: "first.mp4", StoragePath: "/hls/first/master.m3u8", Status: media.StatusReady,
	}))

	runner := &fakeRunner{}
	p := New(Config{Workers: 1}, store, runner, nil, nil)
	p.Start(t.Context())

	require.NoError(t, p.Submit(newJob(t, "vid_1_4")))
	require.NoError(t, p.Stop(context.Background()))

	rec, err := store.GetMedia(context.Background(), "vid_1_4")
	require.NoError(t, err)
	assert.Equal(t, media.StatusReady, rec.Status)
	assert.Equal(t, "/hls/first/master.m3u8", rec.StoragePath)
	assert.Zero(t, runner.callCount())
}

func TestSubmitQueueFull(t *testing.T) {
	p := New(Config{Workers: 1, QueueSize: 1}, memory.New(), &fakeRunner{}, nil, nil)

	require.NoError(t, p.Submit(Job{MediaID: "vid_1_5"}))
	assert.ErrorIs(t, p.Submit(Job{MediaID: "vid_1_6"}), ErrQueueFull)
	assert.Equal(t, 1, p.Pending())
}

func TestSubmitAfterStop(t *testing.T) {
	p := New(Config{}, memory.New(), &fakeRunner{}, nil, nil)
	p.Start(t.Context())
	assert.True(t, p.Running())

	require.NoError(t, p.Stop(context.Background()))
	assert.False(t, p.Running())
	assert.ErrorIs(t, p.Submit(Job{MediaID: "vid_1_7"}), ErrPipelineStopped)
	assert.NoError(t, p.Stop(context.Background()))
}

func TestStopTimeoutCancelsJobs(t *testing.T) {
	store := memory.New()
	runner := &fakeRunner{block: make(chan struct{})}
	p := New(Config{Workers: 1}, store, runner, nil, nil)
	p.Start(t.Context())

	require.NoError(t, p.Submit(newJob(t, "vid_1_8")))
	require.Eventually(t, func() bool { return runner.callCount() > 0 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	rec, err := store.GetMedia(context.Background(), "vid_1_8")
	require.NoError(t, err)
	assert.Equal(t, media.StatusFailed, rec.Status)
}

type recordingPublisher struct {
	mu   sync.Mutex
	dirs []string
}

func (r *recordingPublisher) Publish(_ context.Context, mediaID, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, mediaID+"="+dir)
	return nil
}

func TestPipelinePublishesReadyOutput(t *testing.T) {
	pub := &recordingPublisher{}
	p := New(Config{Workers: 1}, memory.New(), &fakeRunner{}, pub, nil)
	p.Start(t.Context())

	job := newJob(t, "vid_1_9")
	require.NoError(t, p.Submit(job))
	require.NoError(t, p.Stop(context.Background()))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, []string{"vid_1_9=" + job.OutputDir}, pub.dirs)
}

func TestVariantArgs(t *testing.T) {
	v := Variant{Name: "720p", Width: 1280, Height: 720, VideoBitrate: 2000, AudioBitrate: 128}
	args := strings.Join(v.Args("/up/in.mp4", "/hls/x_out/720p"), " ")

	assert.Equal(t,
		"-y -i /up/in.mp4 "+
			"-vf scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2 "+
			"-c:v libx264 -profile:v baseline -level 3.1 -b:v 2000k -maxrate 2000k -bufsize 4000k "+
			"-c:a aac -ar 44100 -b:a 128k -hls_time 4 -hls_list_size 0 "+
			"-hls_segment_filename /hls/x_out/720p/index%03d.ts -f hls /hls/x_out/720p/index.m3u8",
		args)
	assert.Equal(t, 2128000, v.Bandwidth())
	assert.Equal(t, "1280x720", v.Resolution())
}

func TestMasterPlaylist(t *testing.T) {
	got := MasterPlaylist(DefaultVariants()[:2])
	want := "#EXTM3U\n#EXT-X-VERSION:3\n\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=896000,RESOLUTION=640x360\n360p/index.m3u8\n\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2128000,RESOLUTION=1280x720\n720p/index.m3u8\n\n"
	assert.Equal(t, want, got)

	dir := t.TempDir()
	path, err := WriteMasterPlaylist(dir, DefaultVariants())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "master.m3u8"), path)
}

func TestTailBuffer(t *testing.T) {
	var tb tailBuffer
	_, _ = tb.Write([]byte(strings.Repeat("a", stderrTail-1)))
	_, _ = tb.Write([]byte("bc"))
	assert.Len(t, tb.String(), stderrTail)
	assert.True(t, strings.HasSuffix(tb.String(), "abc"))

	_, _ = tb.Write([]byte(strings.Repeat("z", stderrTail*2)))
	assert.Equal(t, strings.Repeat("z", stderrTail), tb.String())
}

func TestFFmpegRunnerMissingBinary(t *testing.T) {
	r := FFmpegRunner{Path: filepath.Join(t.TempDir(), "no-ffmpeg")}
	err := r.Run(context.Background(), []string{"-version"}, io.Discard)
	assert.Error(t, err)
}
