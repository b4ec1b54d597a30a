package metrics

import "time"

// HTTPMetrics observes the media web adapter: connection lifecycle,
// completed requests and upload traffic.
//
// Pass nil to disable collection.
type HTTPMetrics interface {
	// RecordConnectionAccepted counts a connection handed to a worker.
	RecordConnectionAccepted()

	// RecordConnectionClosed counts a connection torn down normally.
	RecordConnectionClosed()

	// RecordConnectionRejected counts a connection refused because the
	// server was at MaxConnections.
	RecordConnectionRejected()

	// RecordConnectionForceClosed counts connections still open when the
	// shutdown timeout expired.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordRequest records a completed response with its method and
	// status code. duration runs from the first parsed byte to the final
	// write.
	RecordRequest(method string, status int, duration time.Duration)

	// RecordBytesTransferred records socket traffic; direction is "read"
	// or "write".
	RecordBytesTransferred(direction string, bytes int64)

	// RecordUpload records the outcome of one multipart upload:
	// "complete" or "failed".
	RecordUpload(result string, bytes int64)
}
