package transcode

import "context"

// Publisher copies a finished HLS directory to remote storage.
type Publisher interface {
	Publish(ctx context.Context, mediaID, dir string) error
}

// PublishConfig selects an optional remote copy of every ready output.
type PublishConfig struct {
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// ApplyDefaults fills zero values.
func (c *PublishConfig) ApplyDefaults() {
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}
