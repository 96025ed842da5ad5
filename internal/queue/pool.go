package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-service/internal/constants"
	"github.com/kozaktomas/face-service/internal/detector"
)

// Config parameterizes a Pool. Zero values fall back to the shared defaults.
type Config struct {
	Workers        int
	Capacity       int
	SoftLimit      int
	EnqueueTimeout time.Duration
	Detector       detector.Detector
	Resolver       *Resolver
	Logger         *slog.Logger
}

// Pool is a bounded FIFO of inference jobs consumed by a fixed set of
// workers. Workers start once, on first enqueue, and run until Stop.
type Pool struct {
	workers        int
	softLimit      int
	enqueueTimeout time.Duration
	det            detector.Detector
	resolver       *Resolver
	log            *slog.Logger

	jobs     chan *Job
	stop     chan struct{}
	start    sync.Once
	stopOnce sync.Once

	queued    atomic.Int64
	inFlight  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	startedAt time.Time
}

// Stats is a snapshot of pool state for the status endpoint.
type Stats struct {
	Workers       int     `json:"workers"`
	QueueCapacity int     `json:"queue_capacity"`
	SoftLimit     int     `json:"soft_limit"`
	Queued        int64   `json:"queued"`
	InFlight      int64   `json:"in_flight"`
	Processed     int64   `json:"processed"`
	Failed        int64   `json:"failed"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// New creates a pool. Workers are not started until the first enqueue.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = constants.WorkerPoolSize
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = constants.QueueCapacity
	}
	if cfg.SoftLimit <= 0 {
		cfg.SoftLimit = constants.QueueSoftLimit
	}
	// The soft limit must stay strictly below the hard capacity for the
	// overload signal to fire before the buffer fills.
	if cfg.SoftLimit >= cfg.Capacity {
		cfg.SoftLimit = cfg.Capacity * 3 / 4
		if cfg.SoftLimit < 1 {
			cfg.SoftLimit = 1
		}
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = constants.EnqueueTimeout
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewResolver("", 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pool{
		workers:        cfg.Workers,
		softLimit:      cfg.SoftLimit,
		enqueueTimeout: cfg.EnqueueTimeout,
		det:            cfg.Detector,
		resolver:       cfg.Resolver,
		log:            cfg.Logger,
		jobs:           make(chan *Job, cfg.Capacity),
		stop:           make(chan struct{}),
		startedAt:      time.Now(),
	}
}

// Enqueue places a job on the queue and returns its handle. It rejects with
// ErrOverloaded when the queued-job count already exceeds the soft limit, and
// again when the buffer stays full through the enqueue timeout. The depth
// check runs before any channel operation so overloaded callers get a fast,
// explicit signal instead of blocking.
func (p *Pool) Enqueue(ref FileReference) (*Job, error) {
	select {
	case <-p.stop:
		return nil, fmt.Errorf("%w: pool stopped", ErrOverloaded)
	default:
	}

	p.start.Do(p.startWorkers)

	if depth := p.queued.Load(); depth > int64(p.softLimit) {
		return nil, fmt.Errorf("%w: %d jobs waiting", ErrOverloaded, depth)
	}

	job := newJob(ref)
	select {
	case p.jobs <- job:
		p.queued.Add(1)
		return job, nil
	case <-time.After(p.enqueueTimeout):
		return nil, fmt.Errorf("%w: queue full for %s", ErrOverloaded, p.enqueueTimeout)
	case <-p.stop:
		return nil, fmt.Errorf("%w: pool stopped", ErrOverloaded)
	}
}

// Await blocks until the job's result arrives or the timeout elapses. On
// timeout the worker is not cancelled; the result lands in the job's buffer
// and is discarded with it.
func (p *Pool) Await(job *Job, timeout time.Duration) (Result, error) {
	select {
	case res := <-job.result:
		return res, nil
	case <-time.After(timeout):
		return Result{}, fmt.Errorf("%w after %s for job %s", ErrResultTimeout, timeout, job.ID)
	}
}

// Stop makes all workers exit once they finish their current job. Queued jobs
// that no worker claims before exiting are abandoned; their callers time out.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:       p.workers,
		QueueCapacity: cap(p.jobs),
		SoftLimit:     p.softLimit,
		Queued:        p.queued.Load(),
		InFlight:      p.inFlight.Load(),
		Processed:     p.processed.Load(),
		Failed:        p.failed.Load(),
		UptimeSeconds: time.Since(p.startedAt).Seconds(),
	}
}

func (p *Pool) startWorkers() {
	p.log.Info("starting worker pool", "workers", p.workers, "capacity", cap(p.jobs))
	for i := 0; i < p.workers; i++ {
		go p.workerLoop(i)
	}
}

// workerLoop claims jobs until the pool stops. A job failure becomes an error
// result; it never terminates the worker.
func (p *Pool) workerLoop(id int) {
	for {
		select {
		case <-p.stop:
			return
		case job := <-p.jobs:
			p.queued.Add(-1)
			p.inFlight.Add(1)

			started := time.Now()
			res := p.process(job)
			if res.Err != nil {
				p.failed.Add(1)
				p.log.Warn("job failed",
					"worker", id,
					"job", job.ID,
					"error", res.Err,
				)
			} else {
				p.log.Debug("job processed",
					"worker", id,
					"job", job.ID,
					"faces", len(res.Faces),
					"duration", time.Since(started),
				)
			}

			// Exactly one result per job; the buffer guarantees the send
			// cannot block on an absent caller.
			job.result <- res

			p.inFlight.Add(-1)
			p.processed.Add(1)
		}
	}
}

// process resolves and detects one job. Panics from the detector are turned
// into error results so a misbehaving collaborator cannot kill a worker.
func (p *Pool) process(job *Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("processing panicked: %v", r)}
		}
	}()

	ctx := context.Background()

	data, err := p.resolver.Resolve(ctx, job.Ref)
	if err != nil {
		return Result{Err: err}
	}

	faces, err := p.det.DetectFaces(ctx, data)
	if err != nil {
		return Result{Err: fmt.Errorf("face detection failed: %w", err)}
	}
	if faces == nil {
		faces = []detector.Face{}
	}
	return Result{Faces: faces}
}
