package pathsafe

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAccepts(t *testing.T) {
	inputs := []string{
		"",
		"test.mp4",
		"./data/uploads/My_Video-01.MP4",
		"/var/lib/mediaforge/hls/vid_1700000000_42_out",
		"..",
		"a/b/c/d.e_f-g",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := Sanitize(in)
			require.NoError(t, err)
			assert.Equal(t, in, got.String())
		})
	}
}

func TestSanitizeRejects(t *testing.T) {
	inputs := map[string]int{
		"video;rm -rf /":  5,
		"my video.mp4":    2,
		"`id`.mp4":        0,
		"name$(x)":        4,
		"a\"b":            1,
		"tab\there":       3,
		"caf\xc3\xa9.mp4": 3,
		"nul\x00":         3,
		"back\\slash":     4,
	}
	for in, offset := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := Sanitize(in)
			require.Error(t, err)
			assert.Empty(t, got)
			assert.ErrorIs(t, err, ErrUnsafeInput)

			var ue *UnsafeInputError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, offset, ue.Offset)
			assert.Equal(t, in[offset], ue.Byte)
		})
	}
}

func TestJoin(t *testing.T) {
	got, err := Join("/srv/hls/vid_1_2_out", "720p/index001.ts")
	require.NoError(t, err)
	assert.Equal(t, "/srv/hls/vid_1_2_out/720p/index001.ts", got.String())

	got, err = Join("./hls/vid_1_2_out", "/master.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "hls/vid_1_2_out/master.m3u8", got.String())

	got, err = Join("/srv/hls", "")
	require.NoError(t, err)
	assert.Equal(t, "/srv/hls", got.String())
}

func TestJoinRejectsEscapes(t *testing.T) {
	for _, rel := range []string{"../secret", "a/../../etc/passwd", "/../../x"} {
		t.Run(rel, func(t *testing.T) {
			_, err := Join("/srv/hls/vid_1_2_out", rel)
			assert.ErrorIs(t, err, ErrEscapesRoot)
		})
	}
}

func TestJoinRejectsUnsafeBytes(t *testing.T) {
	_, err := Join("/srv", "a b")
	assert.ErrorIs(t, err, ErrUnsafeInput)
	assert.True(t, strings.Contains(err.Error(), "offset 1"))
}
