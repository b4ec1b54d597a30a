package metrics

import "time"

// TranscodeMetrics observes the transcode pipeline.
//
// Pass nil to disable collection.
type TranscodeMetrics interface {
	// RecordJob records a finished job. result is "ready" or "failed".
	RecordJob(result string, duration time.Duration)

	// RecordVariant records one rendition attempt.
	RecordVariant(variant string, err error, duration time.Duration)

	// RecordRejected counts jobs dropped because the queue was full.
	RecordRejected()

	// SetQueueDepth reports how many jobs are waiting.
	SetQueueDepth(depth int)

	// RecordPublish records one object upload to remote storage.
	RecordPublish(bytes int64, err error)
}
