package transcode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MasterPlaylistName is the file every ready record points at.
const MasterPlaylistName = "master.m3u8"

// MasterPlaylist renders an HLS master playlist listing variants in order.
func MasterPlaylist(variants []Variant) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n%s\n\n",
			v.Bandwidth(), v.Resolution(), v.Playlist())
	}
	return b.String()
}

// WriteMasterPlaylist writes dir/master.m3u8 and returns its path.
func WriteMasterPlaylist(dir string, variants []Variant) (string, error) {
	path := filepath.Join(dir, MasterPlaylistName)
	if err := os.WriteFile(path, []byte(MasterPlaylist(variants)), 0644); err != nil {
		return "", fmt.Errorf("write master playlist: %w", err)
	}
	return path, nil
}
