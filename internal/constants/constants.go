// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Embedding constants
const (
	// EmbeddingDim is the dimension of face embeddings produced by the detector
	EmbeddingDim = 512

	// LookupIDLength is the length of a hexadecimal object-store identifier
	LookupIDLength = 24
)

// Queue constants
const (
	// QueueCapacity is the hard capacity of the processing queue
	QueueCapacity = 128

	// QueueSoftLimit is the queued-job count above which new work is rejected.
	// Kept strictly below QueueCapacity so callers get an overload signal
	// before the buffer itself fills up.
	QueueSoftLimit = 100

	// WorkerPoolSize is the default number of processing workers
	WorkerPoolSize = 24

	// EnqueueTimeout is how long an enqueue waits for queue space
	EnqueueTimeout = 5 * time.Second

	// ResultTimeout is how long a caller waits for a job result
	ResultTimeout = 120 * time.Second

	// FetchTimeout applies to remote image fetches and lookup requests
	FetchTimeout = 30 * time.Second
)

// Batch processing constants
const (
	// MaxBatchWorkers is the hard cap on concurrent batch workers
	MaxBatchWorkers = 16

	// ProgressInterval is the number of completions between progress reports
	ProgressInterval = 10
)

// Image constants
const (
	// MaxImageSize is the maximum dimension (width or height) for image processing
	MaxImageSize = 1920
)
