package transcode

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	err     error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = string(body)
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func writeHLSTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"master.m3u8":      "#EXTM3U\n",
		"360p/index.m3u8":  "#EXTM3U\n#EXTINF:4,\nindex000.ts\n",
		"360p/index000.ts": "segment",
		"360p/ffmpeg.log":  "noise",
	}
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	}
	return dir
}

func TestS3PublisherUploadsTree(t *testing.T) {
	putter := &fakePutter{objects: map[string]string{}, types: map[string]string{}}
	pub := newS3Publisher(putter, "media", "/hls/", nil)

	require.NoError(t, pub.Publish(context.Background(), "vid_1_1", writeHLSTree(t)))

	keys := make([]string, 0, len(putter.objects))
	for k := range putter.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"hls/vid_1_1/360p/index.m3u8",
		"hls/vid_1_1/360p/index000.ts",
		"hls/vid_1_1/master.m3u8",
	}, keys)
	assert.Equal(t, "segment", putter.objects["hls/vid_1_1/360p/index000.ts"])
	assert.Equal(t, "video/mp2t", putter.types["hls/vid_1_1/360p/index000.ts"])
	assert.Equal(t, "application/vnd.apple.mpegurl", putter.types["hls/vid_1_1/master.m3u8"])
}

func TestS3PublisherError(t *testing.T) {
	putter := &fakePutter{err: errors.New("access denied")}
	pub := newS3Publisher(putter, "media", "", nil)

	err := pub.Publish(context.Background(), "vid_1_2", writeHLSTree(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3PublisherKey(t *testing.T) {
	pub := newS3Publisher(nil, "media", "", nil)
	assert.Equal(t, "vid_1_3/720p/index001.ts", pub.Key("vid_1_3", filepath.Join("720p", "index001.ts")))
}

func TestNewS3PublisherRequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), S3Config{Enabled: true}, nil)
	assert.Error(t, err)
}
