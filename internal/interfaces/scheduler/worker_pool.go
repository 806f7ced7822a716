package scheduler

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("finhealth/scheduler")
	jobMeter           = otel.Meter("finhealth/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

var (
	ErrQueueFull  = errors.New("job queue full")
	ErrPoolClosed = errors.New("worker pool is shut down")
)

const defaultJobTimeout = 2 * time.Minute

// WorkerPool runs submitted jobs on a fixed number of goroutines. Each
// worker owns a queue and a job always lands on the queue picked by its
// Key, so jobs sharing a key run one at a time in submission order.
type WorkerPool struct {
	workerCount int
	jobTimeout  time.Duration
	shards      []chan Job
	log         zerolog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func NewWorkerPool(workerCount, queueSize int, log zerolog.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	perShard := queueSize / workerCount
	if perShard < 1 {
		perShard = 1
	}
	shards := make([]chan Job, workerCount)
	for i := range shards {
		shards[i] = make(chan Job, perShard)
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobTimeout:  defaultJobTimeout,
		shards:      shards,
		log:         log.With().Str("component", "worker_pool").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (wp *WorkerPool) Start() {
	wp.log.Info().Int("workers", wp.workerCount).Msg("Starting worker pool")

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i, wp.shards[i-1])
	}
}

func (wp *WorkerPool) worker(id int, jobs <-chan Job) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			wp.processJob(id, job)
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.key", job.Key()),
		),
	)
	defer span.End()

	log := wp.log.With().Int("worker_id", workerID).Str("job", job.Description()).Str("key", job.Key()).Logger()
	start := time.Now()

	if err := job.Execute(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		jobDuration.Record(ctx, time.Since(start).Seconds())
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Job failed")
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	jobDuration.Record(ctx, time.Since(start).Seconds())
	log.Debug().Dur("elapsed", time.Since(start)).Msg("Job completed")
}

func (wp *WorkerPool) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(wp.workerCount))
}

// Submit enqueues job on its key's queue without blocking. A full queue
// drops the job and returns ErrQueueFull.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.shards[wp.shardFor(job.Key())] <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		wp.log.Warn().Str("key", job.Key()).Str("job", job.Description()).Msg("Job queue full, dropping job")
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits up to timeout for queued jobs to
// drain before cancelling the ones still running.
func (wp *WorkerPool) Shutdown(timeout time.Duration) {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	for _, jobs := range wp.shards {
		close(jobs)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info().Msg("Worker pool drained")
	case <-time.After(timeout):
		wp.log.Warn().Dur("timeout", timeout).Msg("Worker pool shutdown timed out, cancelling jobs")
		wp.cancel()
		<-done
	}
	wp.cancel()
}
