// Package batch implements dynamic batch processing for bulk workloads: a
// capped set of workers pulls from a shared input list and publishes each
// result the moment it completes, so a slow image never stalls the rest of
// the batch the way fixed-size batching would.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-service/internal/constants"
	"github.com/kozaktomas/face-service/internal/detector"
	"github.com/kozaktomas/face-service/internal/queue"
)

// ProgressFunc observes batch progress. It is called every few completions
// and once at the end, from worker goroutines.
type ProgressFunc func(completed, total int)

// Scheduler processes lists of image paths through the detector.
//
// A Scheduler's workers compete with the serve path's worker pool for the
// same detector; the two are not coordinated. Batch runs are expected to be
// offline work against an otherwise idle detector.
type Scheduler struct {
	det        detector.Detector
	resolver   *queue.Resolver
	maxWorkers int
	// accelerated enables concurrent claiming. Without an accelerator the
	// batch degenerates to sequential processing: CPU-bound contention
	// would not help throughput and can hurt it.
	accelerated bool
	log         *slog.Logger

	OnProgress ProgressFunc

	stopped atomic.Bool
}

// New creates a scheduler. maxWorkers is additionally capped by the input
// count and the package hard cap at run time.
func New(det detector.Detector, resolver *queue.Resolver, maxWorkers int, accelerated bool, log *slog.Logger) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = constants.MaxBatchWorkers
	}
	if resolver == nil {
		resolver = queue.NewResolver("", 0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		det:         det,
		resolver:    resolver,
		maxWorkers:  maxWorkers,
		accelerated: accelerated,
		log:         log,
	}
}

// Stop prevents workers from claiming further inputs. Items already being
// processed run to completion. Stopping is permanent: it also covers batches
// started after the call, so a race between Stop and ProcessBatch cannot
// erase the signal. A new run needs a new Scheduler.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
}

// ProcessBatch runs every input through the detector and returns a mapping
// from input path to detected faces. A failed input maps to an empty slice;
// failures never abort the batch. The call blocks until all workers exit.
func (s *Scheduler) ProcessBatch(ctx context.Context, paths []string) map[string][]detector.Face {
	results := make(map[string][]detector.Face, len(paths))
	if len(paths) == 0 {
		return results
	}

	total := len(paths)
	started := time.Now()

	if !s.accelerated {
		s.processSequential(ctx, paths, results)
	} else {
		s.processDynamic(ctx, paths, results)
	}

	elapsed := time.Since(started)
	throughput := float64(len(results)) / elapsed.Seconds()
	s.log.Info("batch completed",
		"processed", len(results),
		"total", total,
		"elapsed", elapsed,
		"images_per_sec", throughput,
	)
	return results
}

// processDynamic runs min(maxWorkers, inputs, hard cap) workers, each looping
// claim-or-exit over a shared index. No pre-partitioning: the next free
// worker takes the next unclaimed input, which keeps utilization high when
// per-image latency is uneven.
func (s *Scheduler) processDynamic(ctx context.Context, paths []string, results map[string][]detector.Face) {
	total := len(paths)
	workers := s.maxWorkers
	if total < workers {
		workers = total
	}
	if workers > constants.MaxBatchWorkers {
		workers = constants.MaxBatchWorkers
	}

	var (
		next      atomic.Int64
		mu        sync.Mutex
		completed int
		wg        sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if s.stopped.Load() || ctx.Err() != nil {
					return
				}

				idx := int(next.Add(1)) - 1
				if idx >= total {
					return
				}
				path := paths[idx]

				faces := s.processOne(ctx, path)

				mu.Lock()
				results[path] = faces
				completed++
				done := completed
				mu.Unlock()

				if done%constants.ProgressInterval == 0 || done == total {
					s.reportProgress(done, total)
				}
			}
		}()
	}

	wg.Wait()
}

// processSequential is the no-accelerator path: one input at a time, same
// bookkeeping and progress cadence.
func (s *Scheduler) processSequential(ctx context.Context, paths []string, results map[string][]detector.Face) {
	total := len(paths)
	for i, path := range paths {
		if s.stopped.Load() || ctx.Err() != nil {
			return
		}
		results[path] = s.processOne(ctx, path)
		if (i+1)%constants.ProgressInterval == 0 || i+1 == total {
			s.reportProgress(i+1, total)
		}
	}
}

// processOne resolves and detects a single input. Failures are logged and
// recorded as an empty result.
func (s *Scheduler) processOne(ctx context.Context, path string) []detector.Face {
	data, err := s.resolver.Resolve(ctx, queue.FileReference{Raw: path, Kind: queue.KindLocalPath})
	if err != nil {
		s.log.Warn("batch item failed", "path", path, "error", err)
		return []detector.Face{}
	}

	faces, err := s.det.DetectFaces(ctx, data)
	if err != nil {
		s.log.Warn("batch item failed", "path", path, "error", err)
		return []detector.Face{}
	}
	if faces == nil {
		faces = []detector.Face{}
	}
	return faces
}

func (s *Scheduler) reportProgress(completed, total int) {
	if s.OnProgress != nil {
		s.OnProgress(completed, total)
	}
}
