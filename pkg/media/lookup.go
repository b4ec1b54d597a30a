package media

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marmos91/mediaforge/pkg/pathsafe"
)

// Lookup resolves playback paths such as "/vid_1700000000_42/720p/index003.ts"
// to files inside the HLS output directory of a ready record.
type Lookup struct {
	store Store
}

// NewLookup returns a Lookup over store.
func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

// Resolution is the result of a successful Resolve.
type Resolution struct {
	MediaID string
	File    string
}

// Resolve maps requestPath to a file. ok is false when the path carries no
// media identifier or the identifier is unknown or not ready. A remainder
// that is empty or "/" resolves to the master playlist itself; anything else
// is joined under the playlist's directory and may not escape it.
func (l *Lookup) Resolve(ctx context.Context, requestPath string) (Resolution, bool, error) {
	id, rest, ok := ExtractID(requestPath)
	if !ok {
		return Resolution{}, false, nil
	}

	playlist, ok, err := l.store.QueryReadyMediaPath(ctx, id)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("query media %s: %w", id, err)
	}
	if !ok {
		return Resolution{MediaID: id}, false, nil
	}

	if rest == "" || rest == "/" {
		return Resolution{MediaID: id, File: playlist}, true, nil
	}

	file, err := pathsafe.Join(filepath.Dir(playlist), rest)
	if err != nil {
		return Resolution{MediaID: id}, false, err
	}
	return Resolution{MediaID: id, File: file.String()}, true, nil
}
