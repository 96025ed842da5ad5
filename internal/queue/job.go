// Package queue implements the bounded processing queue and worker pool that
// serialize access to the face detector. Callers enqueue a file reference and
// wait for the job's result on a dedicated channel; workers are never
// cancelled once they claim a job.
package queue

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-service/internal/constants"
	"github.com/kozaktomas/face-service/internal/detector"
)

var (
	// ErrOverloaded signals that the queue rejected new work, either because
	// the soft limit was reached or because no buffer space freed up within
	// the enqueue timeout.
	ErrOverloaded = errors.New("service overloaded")

	// ErrResultTimeout signals that no result arrived within the await
	// window. The worker keeps running; its eventual result is discarded.
	ErrResultTimeout = errors.New("processing timeout")
)

// RefKind classifies how a file reference is resolved to image bytes.
type RefKind int

const (
	// KindLocalPath reads the image from local storage.
	KindLocalPath RefKind = iota
	// KindRemoteURL fetches the image from an object-storage URL.
	KindRemoteURL
	// KindLookupID resolves a hex identifier through the image lookup service.
	KindLookupID
)

// FileReference is a job input: a local path, a remote URL, or an opaque
// identifier resolved through the lookup service.
type FileReference struct {
	Raw  string
	Kind RefKind
}

// ParseFileReference classifies a raw reference string. A URL is only treated
// as remote when it points at the configured object-storage domain; a
// 24-character hex token is a lookup identifier; everything else is a local
// path.
func ParseFileReference(raw, storageDomain string) FileReference {
	if strings.HasPrefix(raw, "http") && storageDomain != "" && strings.Contains(raw, storageDomain) {
		return FileReference{Raw: raw, Kind: KindRemoteURL}
	}
	if isLookupID(raw) {
		return FileReference{Raw: strings.ToLower(raw), Kind: KindLookupID}
	}
	return FileReference{Raw: raw, Kind: KindLocalPath}
}

func isLookupID(s string) bool {
	if len(s) != constants.LookupIDLength {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Job is a unit of work owned by the queue from enqueue until a worker
// claims it.
type Job struct {
	ID         string
	Ref        FileReference
	EnqueuedAt time.Time

	// result is buffered so the worker's single send never blocks, even
	// when the caller has already timed out and walked away.
	result chan Result
}

// Result is delivered exactly once per job.
type Result struct {
	Faces []detector.Face
	Err   error
}

func newJob(ref FileReference) *Job {
	return &Job{
		ID:         uuid.New().String(),
		Ref:        ref,
		EnqueuedAt: time.Now(),
		result:     make(chan Result, 1),
	}
}
