package transcode

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Variant is one HLS rendition. Bitrates are in kbit/s.
type Variant struct {
	Name         string `mapstructure:"name" yaml:"name" validate:"required"`
	Width        int    `mapstructure:"width" yaml:"width" validate:"gt=0"`
	Height       int    `mapstructure:"height" yaml:"height" validate:"gt=0"`
	VideoBitrate int    `mapstructure:"video_kbps" yaml:"video_kbps" validate:"gt=0"`
	AudioBitrate int    `mapstructure:"audio_kbps" yaml:"audio_kbps" validate:"gt=0"`
}

// DefaultVariants is the 360p/720p/1080p ladder.
func DefaultVariants() []Variant {
	return []Variant{
		{Name: "360p", Width: 640, Height: 360, VideoBitrate: 800, AudioBitrate: 96},
		{Name: "720p", Width: 1280, Height: 720, VideoBitrate: 2000, AudioBitrate: 128},
		{Name: "1080p", Width: 1920, Height: 1080, VideoBitrate: 5000, AudioBitrate: 192},
	}
}

// Bandwidth is the advertised peak rate in bit/s.
func (v Variant) Bandwidth() int {
	return (v.VideoBitrate + v.AudioBitrate) * 1000
}

// Resolution formats the frame size as "WxH".
func (v Variant) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// Playlist is the variant playlist path relative to the output directory.
func (v Variant) Playlist() string {
	return v.Name + "/index.m3u8"
}

// Args builds the ffmpeg argument vector that renders input into dir as a
// VOD HLS stream with 4 second segments. The frame is letterboxed to the
// exact variant size.
func (v Variant) Args(input, dir string) []string {
	w, h := strconv.Itoa(v.Width), strconv.Itoa(v.Height)
	vf := "scale=" + w + ":" + h + ":force_original_aspect_ratio=decrease," +
		"pad=" + w + ":" + h + ":(ow-iw)/2:(oh-ih)/2"
	vb := strconv.Itoa(v.VideoBitrate) + "k"

	return []string{
		"-y", "-i", input,
		"-vf", vf,
		"-c:v", "libx264", "-profile:v", "baseline", "-level", "3.1",
		"-b:v", vb, "-maxrate", vb, "-bufsize", strconv.Itoa(2*v.VideoBitrate) + "k",
		"-c:a", "aac", "-ar", "44100", "-b:a", strconv.Itoa(v.AudioBitrate) + "k",
		"-hls_time", "4", "-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(dir, "index%03d.ts"),
		"-f", "hls", filepath.Join(dir, "index.m3u8"),
	}
}
