// Package pipeline runs the bounded worker pool that turns enqueued
// extraction Jobs into persisted Fingerprints, checking every cache tier
// before falling back to analysis and retrying transient failures with
// backoff before dead-lettering a job.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matiaszanolli/auralis/internal/cache"
	apierrors "github.com/matiaszanolli/auralis/internal/errors"
	"github.com/matiaszanolli/auralis/internal/features"
	"github.com/matiaszanolli/auralis/internal/logger"
	"github.com/matiaszanolli/auralis/internal/metrics"
	"github.com/matiaszanolli/auralis/internal/models"
	"github.com/matiaszanolli/auralis/internal/sidecar"
	"go.uber.org/zap"
)

// Defaults for the control surface; config.Config carries the actual
// values read from the environment.
const (
	DefaultWorkers        = 12
	DefaultQueueCapacity  = 25
	DefaultEnqueueTimeout = 30 * time.Second
	DefaultJobDeadline    = 60 * time.Second

	baseBackoff = 1 * time.Second
	maxBackoff  = 4 * time.Second
)

// localAnalyzer is the subset of *analyzer.Analyzer the pipeline needs -
// narrowed to an interface so tests can substitute a fake instead of
// shelling out to ffmpeg.
type localAnalyzer interface {
	Analyze(ctx context.Context, path string) (models.Fingerprint, error)
}

// remoteAnalyzer is the subset of *analysisclient.Client the pipeline
// needs.
type remoteAnalyzer interface {
	Analyze(ctx context.Context, trackID uint64, filepath string) (models.Fingerprint, error)
	Healthy(ctx context.Context) bool
}

// fingerprintRepository is the subset of *repository.FingerprintRepository
// the pipeline needs.
type fingerprintRepository interface {
	Upsert(trackID uint64, fp models.Fingerprint) error
}

// Dependencies are the collaborators a Pool needs to carry a job from
// enqueue to a terminal state. RemoteClient is optional: nil means
// local-only analysis.
type Dependencies struct {
	Analyzer       localAnalyzer
	RemoteClient   remoteAnalyzer
	Repository     fingerprintRepository
	Memory         *cache.Memory
	Persistent     *cache.Persistent
	SidecarEnabled bool
}

// Pool is a bounded MPMC worker pool over extraction Jobs.
type Pool struct {
	deps Dependencies

	jobs     chan models.Job
	inFlight map[uint64]struct{}
	mu       sync.Mutex
	wg       sync.WaitGroup

	enqueueTimeout time.Duration
	jobDeadline    time.Duration
	numWorkers     int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool builds a Pool. Call Start to spawn workers and Shutdown to
// drain and stop them.
func NewPool(deps Dependencies, numWorkers, queueCapacity int, enqueueTimeout, jobDeadline time.Duration) *Pool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	if enqueueTimeout <= 0 {
		enqueueTimeout = DefaultEnqueueTimeout
	}
	if jobDeadline <= 0 {
		jobDeadline = DefaultJobDeadline
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		deps:           deps,
		jobs:           make(chan models.Job, queueCapacity),
		inFlight:       make(map[uint64]struct{}),
		enqueueTimeout: enqueueTimeout,
		jobDeadline:    jobDeadline,
		numWorkers:     numWorkers,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start spawns the worker goroutines.
func (p *Pool) Start() {
	metrics.Get().WorkerCount.Set(float64(p.numWorkers))
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Shutdown cancels outstanding work and waits for in-flight jobs to
// reach a terminal state, up to ctx's deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return apierrors.Timeout("pipeline shutdown")
	}
}

// Enqueue blocks up to enqueueTimeout trying to add job to the queue.
// Returns a validation error if a job for the same track_id is already
// in flight - the caller should treat that as "already being handled",
// not as a failure to schedule.
func (p *Pool) Enqueue(ctx context.Context, job models.Job) error {
	p.mu.Lock()
	if _, exists := p.inFlight[job.TrackID]; exists {
		p.mu.Unlock()
		return apierrors.ValidationError("track_id", fmt.Sprintf("job for track %d is already in flight", job.TrackID))
	}
	p.inFlight[job.TrackID] = struct{}{}
	p.mu.Unlock()

	enqueueCtx, cancel := context.WithTimeout(ctx, p.enqueueTimeout)
	defer cancel()

	select {
	case p.jobs <- job:
		metrics.Get().QueueDepth.Set(float64(len(p.jobs)))
		return nil
	case <-enqueueCtx.Done():
		p.release(job.TrackID)
		return apierrors.Timeout(fmt.Sprintf("enqueue job for track %d", job.TrackID))
	}
}

func (p *Pool) release(trackID uint64) {
	p.mu.Lock()
	delete(p.inFlight, trackID)
	p.mu.Unlock()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			metrics.Get().QueueDepth.Set(float64(len(p.jobs)))
			metrics.Get().InFlightJobs.Inc()
			p.process(job)
			metrics.Get().InFlightJobs.Dec()
		}
	}
}

// process runs one job through decode/cache/analyze/persist, retrying
// transient failures with backoff up to job.MaxRetries before
// dead-lettering.
func (p *Pool) process(job models.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), p.jobDeadline)
	defer cancel()

	outcome, err := p.runOnce(ctx, job)
	metrics.Get().JobDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err == nil {
		p.release(job.TrackID)
		return
	}

	apiErr, ok := err.(*apierrors.APIError)
	retryable := ok && apiErr.Kind() != apierrors.KindPermanent && apiErr.Kind() != apierrors.KindInvariant

	if retryable && job.CanRetry() {
		job.RetryCount++
		logger.Log.Warn("job failed, retrying",
			logger.WithTrackID(job.TrackID), logger.WithJobID(job.JobID), zap.Uint8("retry_count", job.RetryCount), zap.Error(err))
		go p.retryAfterBackoff(job)
		return
	}

	if retryable {
		metrics.Get().FailedRetriesExceeded.Inc()
	} else {
		metrics.Get().FailedPermanent.Inc()
	}
	logger.Log.Error("job dead-lettered", logger.WithTrackID(job.TrackID), logger.WithJobID(job.JobID), zap.Error(err))
	p.release(job.TrackID)
}

func (p *Pool) retryAfterBackoff(job models.Job) {
	backoff := baseBackoff << (job.RetryCount - 1)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	select {
	case <-time.After(backoff):
	case <-p.ctx.Done():
		p.release(job.TrackID)
		return
	}

	select {
	case p.jobs <- job:
	case <-p.ctx.Done():
		p.release(job.TrackID)
	}
}

// runOnce executes the cache-then-analyze-then-persist sequence once,
// without retrying. Returns the outcome label used for JobDuration and
// any error that occurred.
func (p *Pool) runOnce(ctx context.Context, job models.Job) (outcome string, err error) {
	identity, err := sidecar.IdentityFromFile(job.Filepath)
	if err != nil {
		return "failed_permanent", apierrors.IO(err.Error())
	}

	fp, source, err := p.resolve(ctx, job, identity)
	if err != nil {
		return "failed_permanent", err
	}

	features.Sanitize(&fp)

	p.backfillCaches(job.Filepath, identity, fp, source)

	if err := p.deps.Repository.Upsert(job.TrackID, fp); err != nil {
		return "failed_retry", err
	}

	return source, nil
}

// resolve returns a Fingerprint for job, checking sidecar -> memory ->
// persistent -> remote analyzer -> local analyzer, in that order, and
// reports which tier served it (for metrics and cache backfill).
func (p *Pool) resolve(ctx context.Context, job models.Job, identity sidecar.Identity) (models.Fingerprint, string, error) {
	if p.deps.SidecarEnabled {
		if rec, err := sidecar.Read(job.Filepath); err == nil && rec != nil {
			if valid, _ := sidecar.IsValid(rec, job.Filepath); valid {
				metrics.Get().SidecarHits.Inc()
				return rec.Fingerprint, "sidecar_hit", nil
			}
		}
	}

	memKey := cache.MemoryKey{Size: identity.Size, ModTimeNanos: identity.ModTimeNanos}
	if p.deps.Memory != nil {
		if fp, ok := p.deps.Memory.Get(memKey); ok {
			metrics.Get().MemoryCacheHits.Inc()
			return fp, "memory_hit", nil
		}
	}

	persKey := cache.PersistentKey{Size: identity.Size, ModTimeNanos: identity.ModTimeNanos}
	if p.deps.Persistent != nil {
		if fp, ok := p.deps.Persistent.Get(persKey); ok {
			metrics.Get().PersistentCacheHits.Inc()
			return fp, "persistent_hit", nil
		}
	}

	if p.deps.RemoteClient != nil && p.deps.RemoteClient.Healthy(ctx) {
		fp, err := p.deps.RemoteClient.Analyze(ctx, job.TrackID, job.Filepath)
		if err == nil {
			metrics.Get().ExtractedRemote.Inc()
			return fp, "extracted_remote", nil
		}
		logger.Log.Warn("remote analyzer failed, falling back to local",
			logger.WithTrackID(job.TrackID), logger.WithJobID(job.JobID), zap.Error(err))
	}

	fp, err := p.deps.Analyzer.Analyze(ctx, job.Filepath)
	if err != nil {
		return models.Fingerprint{}, "", err
	}
	metrics.Get().ExtractedLocal.Inc()
	return fp, "extracted_local", nil
}

// backfillCaches writes fp into every faster tier than the one that
// served it, so the next lookup for the same file is cheaper than this
// one. Cache write failures are soft: logged, never fail the job.
func (p *Pool) backfillCaches(path string, identity sidecar.Identity, fp models.Fingerprint, source string) {
	if source == "sidecar_hit" {
		return
	}

	if p.deps.SidecarEnabled {
		if err := sidecar.Write(path, identity, fp); err != nil {
			logger.Log.Warn("failed to write sidecar", zap.String("path", path), zap.Error(err))
		}
	}

	if source == "memory_hit" {
		return
	}

	if p.deps.Memory != nil {
		p.deps.Memory.Put(cache.MemoryKey{Size: identity.Size, ModTimeNanos: identity.ModTimeNanos}, fp)
	}

	if source == "persistent_hit" {
		return
	}

	if p.deps.Persistent != nil {
		if err := p.deps.Persistent.Put(cache.PersistentKey{Size: identity.Size, ModTimeNanos: identity.ModTimeNanos}, fp); err != nil {
			logger.Log.Warn("failed to write persistent cache", zap.String("path", path), zap.Error(err))
		}
	}
}
