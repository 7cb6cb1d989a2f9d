package config

import "time"

// Worker intervals
const (
	// PersistFlushInterval defines how often the persist worker flushes
	// dirty run snapshots to the Redis cache.
	PersistFlushInterval = 2 * time.Second

	// ResultSaveInterval is a checkpoint interval for partial results. No
	// worker reads it: a run's result is saved to PostgreSQL once, when the
	// run completes.
	ResultSaveInterval = 30 * time.Second
)
