// Package transcode turns completed uploads into multi-bitrate HLS output.
//
// Uploads are handed over as Jobs through Submit, which never blocks. A
// fixed set of workers records each job as pending, renders every variant
// with ffmpeg, writes the master playlist and flips the record to ready, or
// to failed when no variant could be produced. Jobs are never retried.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/internal/telemetry"
	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/metrics"
)

var (
	ErrQueueFull       = errors.New("transcode queue full")
	ErrPipelineStopped = errors.New("transcode pipeline stopped")
	ErrInputMissing    = errors.New("transcode input missing")
	ErrNoVariants      = errors.New("no variant could be rendered")
)

// Config controls the worker pool.
type Config struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Workers    int           `mapstructure:"workers" yaml:"workers" validate:"gte=0"`
	QueueSize  int           `mapstructure:"queue_size" yaml:"queue_size" validate:"gte=0"`
	FFmpegPath string        `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	JobTimeout time.Duration `mapstructure:"job_timeout" yaml:"job_timeout"`
	Variants   []Variant     `mapstructure:"variants" yaml:"variants" validate:"dive"`
	Publish    PublishConfig `mapstructure:"publish" yaml:"publish"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = 2
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = 2 * time.Hour
	}
	if len(c.Variants) == 0 {
		c.Variants = DefaultVariants()
	}
	c.Publish.ApplyDefaults()
}

// Job is one completed upload waiting to be transcoded.
type Job struct {
	ID           uuid.UUID
	MediaID      string
	OriginalName string
	InputPath    string
	OutputDir    string
	SizeBytes    int64
	Checksum     string
	SubmittedAt  time.Time
}

// StoragePath is what the record points at once the job is ready.
func (j Job) StoragePath() string {
	return filepath.Join(j.OutputDir, MasterPlaylistName)
}

// Pipeline owns the job queue and its workers.
type Pipeline struct {
	cfg       Config
	store     media.Store
	runner    Runner
	publisher Publisher
	metrics   metrics.TranscodeMetrics

	mu      sync.RWMutex
	queue   chan Job
	stopped bool
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a pipeline. publisher and m may be nil.
func New(cfg Config, store media.Store, runner Runner, publisher Publisher, m metrics.TranscodeMetrics) *Pipeline {
	cfg.ApplyDefaults()
	if runner == nil {
		runner = FFmpegRunner{Path: cfg.FFmpegPath}
	}
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		runner:    runner,
		publisher: publisher,
		metrics:   m,
		queue:     make(chan Job, cfg.QueueSize),
	}
}

// Start launches the workers. Jobs run under ctx; cancelling it aborts
// running ffmpeg processes.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	logger.Info("Transcode pipeline started", "workers", p.cfg.Workers, "queue_size", p.cfg.QueueSize)
}

// Submit enqueues job without blocking.
func (p *Pipeline) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPipelineStopped
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	select {
	case p.queue <- job:
		if p.metrics != nil {
			p.metrics.SetQueueDepth(len(p.queue))
		}
		return nil
	default:
		if p.metrics != nil {
			p.metrics.RecordRejected()
		}
		return ErrQueueFull
	}
}

// Pending reports how many jobs wait for a worker.
func (p *Pipeline) Pending() int {
	return len(p.queue)
}

// Running reports whether workers are accepting jobs.
func (p *Pipeline) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started && !p.stopped
}

// Stop closes the queue and waits for queued and in-flight jobs. When ctx
// expires first the running jobs are cancelled.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.queue)
	cancel := p.cancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		logger.Info("Transcode pipeline stopped")
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return fmt.Errorf("transcode pipeline stop: %w", ctx.Err())
	}
}

func (p *Pipeline) worker(ctx context.Context, n int) {
	defer p.wg.Done()
	for job := range p.queue {
		if p.metrics != nil {
			p.metrics.SetQueueDepth(len(p.queue))
		}
		if ctx.Err() != nil {
			logger.Warn("Dropping transcode job after cancellation",
				logger.KeyMediaID, job.MediaID, logger.KeyJobID, job.ID.String())
			continue
		}
		p.run(ctx, job, n)
	}
}

func (p *Pipeline) run(ctx context.Context, job Job, worker int) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	ctx, span := telemetry.StartTranscodeSpan(ctx, telemetry.SpanTranscodeJob, job.MediaID,
		telemetry.JobID(job.ID.String()),
		telemetry.Filename(job.OriginalName),
		telemetry.SizeBytes(job.SizeBytes),
	)
	defer span.End()

	lc := (&logger.LogContext{MediaID: job.MediaID, StartTime: start}).WithTrace(telemetry.IDs(ctx))
	ctx = logger.WithContext(ctx, lc)

	logger.InfoCtx(ctx, "Transcode job started",
		logger.KeyJobID, job.ID.String(),
		logger.KeyInput, job.InputPath,
		logger.KeyOutput, job.OutputDir,
		"worker", worker)

	result := media.StatusFailed
	err := p.execute(ctx, job, span)
	switch {
	case errors.Is(err, media.ErrDuplicateMedia):
		// Another job owns this id; leave its record alone.
		logger.ErrorCtx(ctx, "Transcode job rejected", logger.KeyError, err)
		telemetry.RecordError(ctx, err)
		p.recordJob("duplicate", start)
		return
	case err != nil:
		logger.ErrorCtx(ctx, "Transcode job failed", logger.KeyError, err)
		telemetry.RecordError(ctx, err)
	default:
		result = media.StatusReady
	}

	// The job context may have expired; the status write must still land.
	updCtx, updCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer updCancel()

	storagePath := ""
	if result == media.StatusReady {
		storagePath = job.StoragePath()
	}
	if err := p.store.UpdateMediaStatus(updCtx, job.MediaID, result, storagePath); err != nil {
		logger.ErrorCtx(ctx, "Failed to update media status",
			logger.KeyError, err, "status", string(result))
	}
	span.SetAttributes(telemetry.Status(string(result)))
	p.recordJob(string(result), start)

	logger.InfoCtx(ctx, "Transcode job finished",
		"status", string(result),
		logger.KeyDurationMs, logger.Duration(start))

	if result == media.StatusReady && p.publisher != nil {
		if err := p.publisher.Publish(ctx, job.MediaID, job.OutputDir); err != nil {
			logger.WarnCtx(ctx, "Publishing HLS output failed", logger.KeyError, err)
		}
	}
}

func (p *Pipeline) recordJob(result string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordJob(result, time.Since(start))
	}
}

// execute performs every step up to, but not including, the final status
// update.
func (p *Pipeline) execute(ctx context.Context, job Job, span trace.Span) error {
	rec := &media.Record{
		ID:           job.MediaID,
		OriginalName: job.OriginalName,
		StoragePath:  job.StoragePath(),
		Status:       media.StatusPending,
		SizeBytes:    job.SizeBytes,
		Checksum:     job.Checksum,
	}
	if err := p.store.InsertMediaRecord(ctx, rec); err != nil {
		return fmt.Errorf("insert media record: %w", err)
	}

	if _, err := os.Stat(job.InputPath); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInputMissing, job.InputPath, err)
	}
	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var rendered []Variant
	for _, v := range p.cfg.Variants {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.renderVariant(ctx, job, v); err != nil {
			logger.WarnCtx(ctx, "Variant failed", logger.KeyVariant, v.Name, logger.KeyError, err)
			continue
		}
		rendered = append(rendered, v)
	}
	span.SetAttributes(attribute.Int("transcode.variants_rendered", len(rendered)))

	if len(rendered) == 0 {
		return ErrNoVariants
	}
	if _, err := WriteMasterPlaylist(job.OutputDir, rendered); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) renderVariant(ctx context.Context, job Job, v Variant) (err error) {
	start := time.Now()
	ctx, span := telemetry.StartTranscodeSpan(ctx, telemetry.SpanTranscodeVariant, job.MediaID,
		telemetry.Variant(v.Name), telemetry.Resolution(v.Resolution()))
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		span.End()
		if p.metrics != nil {
			p.metrics.RecordVariant(v.Name, err, time.Since(start))
		}
	}()

	dir := filepath.Join(job.OutputDir, v.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create variant dir: %w", err)
	}

	logFile, err := os.Create(filepath.Join(dir, "ffmpeg.log"))
	if err != nil {
		return fmt.Errorf("create ffmpeg log: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	if err := p.runner.Run(ctx, v.Args(job.InputPath, dir), logFile); err != nil {
		return err
	}
	logger.DebugCtx(ctx, "Variant rendered", logger.KeyVariant, v.Name, logger.KeyDurationMs, logger.Duration(start))
	return nil
}
