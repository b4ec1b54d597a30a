package web

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/marmos91/mediaforge/internal/bytesize"
	"github.com/marmos91/mediaforge/internal/protocol/http1"
	"github.com/marmos91/mediaforge/pkg/adapter"
	"github.com/marmos91/mediaforge/pkg/pathsafe"
)

// Default values for Config.
const (
	DefaultPort            = 1316
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultWriteThreshold  = 10 * bytesize.KiB
)

// Config is the explicit server configuration handed to every connection.
type Config struct {
	// BindAddress is the IP address to bind to. Empty binds all IPv4
	// interfaces.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// Port is the TCP port; 0 picks an ephemeral one.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// EdgeTriggered arms connections with EPOLLET: reads and writes then
	// continue until the socket would block.
	EdgeTriggered bool `mapstructure:"edge_triggered" yaml:"edge_triggered"`

	// ListenEdgeTriggered arms the listening socket with EPOLLET, so each
	// notification accepts until the backlog is empty.
	ListenEdgeTriggered bool `mapstructure:"listen_edge_triggered" yaml:"listen_edge_triggered"`

	// Workers is the number of goroutines driving connections.
	// 0 means runtime.NumCPU().
	Workers int `mapstructure:"workers" validate:"gte=0" yaml:"workers"`

	// MaxConnections bounds concurrent connections; 0 is unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0" yaml:"max_connections"`

	// IdleTimeout evicts connections without traffic for this long.
	// Negative disables eviction.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown before connections are
	// force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// MetricsLogInterval logs the connection count periodically; 0 disables.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval"`

	// WriteThreshold keeps a level-triggered connection writing while more
	// than this many bytes remain queued.
	WriteThreshold bytesize.ByteSize `mapstructure:"write_threshold" yaml:"write_threshold"`

	// SrcDir holds the static site and the <code>.html error pages.
	SrcDir string `mapstructure:"src_dir" validate:"required" yaml:"src_dir"`

	// UploadDir receives multipart file parts.
	UploadDir string `mapstructure:"upload_dir" validate:"required" yaml:"upload_dir"`

	// HLSDir receives one <media id>_out directory per transcoded upload.
	HLSDir string `mapstructure:"hls_dir" validate:"required" yaml:"hls_dir"`

	MaxLineBytes   bytesize.ByteSize `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	MaxHeaderBytes bytesize.ByteSize `mapstructure:"max_header_bytes" yaml:"max_header_bytes"`
	MaxFormBytes   bytesize.ByteSize `mapstructure:"max_form_bytes" yaml:"max_form_bytes"`
}

// ApplyDefaults fills zero values. Port is left alone since 0 requests an
// ephemeral port; the config loader defaults it to DefaultPort.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.WriteThreshold == 0 {
		c.WriteThreshold = DefaultWriteThreshold
	}
	if c.SrcDir == "" {
		c.SrcDir = "resources"
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.SrcDir, "uploads")
	}
	if c.HLSDir == "" {
		c.HLSDir = filepath.Join(c.SrcDir, "hls")
	}
	if c.MaxLineBytes == 0 {
		c.MaxLineBytes = http1.DefaultMaxLineBytes
	}
	if c.MaxHeaderBytes == 0 {
		c.MaxHeaderBytes = http1.DefaultMaxHeaderBytes
	}
	if c.MaxFormBytes == 0 {
		c.MaxFormBytes = http1.DefaultMaxFormBytes
	}
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.MaxLineBytes > c.MaxHeaderBytes {
		return fmt.Errorf("server.max_line_bytes (%s) exceeds server.max_header_bytes (%s)",
			c.MaxLineBytes, c.MaxHeaderBytes)
	}
	// The directories end up in ffmpeg arguments next to client filenames,
	// so they obey the same allow-list.
	for _, d := range []struct{ key, dir string }{
		{"server.src_dir", c.SrcDir},
		{"server.upload_dir", c.UploadDir},
		{"server.hls_dir", c.HLSDir},
	} {
		if _, err := pathsafe.Sanitize(d.dir); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}
	return nil
}

func (c *Config) baseConfig() adapter.BaseConfig {
	return adapter.BaseConfig{
		BindAddress:        c.BindAddress,
		Port:               c.Port,
		MaxConnections:     c.MaxConnections,
		ShutdownTimeout:    c.ShutdownTimeout,
		MetricsLogInterval: c.MetricsLogInterval,
	}
}

func (c *Config) parserOptions(open http1.SinkOpener) http1.Options {
	return http1.Options{
		MaxLineBytes:   c.MaxLineBytes.Int(),
		MaxHeaderBytes: c.MaxHeaderBytes.Int(),
		MaxFormBytes:   c.MaxFormBytes.Int(),
		OpenSink:       open,
	}
}
