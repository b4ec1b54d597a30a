package metrics

import "time"

// StoreMetrics observes media store operations.
//
// Pass nil to disable collection.
type StoreMetrics interface {
	// ObserveOperation records one store call. store is the backend type
	// ("sqlite", "badger", ...), op the method name.
	ObserveOperation(store, op string, duration time.Duration, err error)

	// RecordCacheHitRatio reports a backend cache hit ratio in [0, 1].
	RecordCacheHitRatio(store, cache string, ratio float64)
}
