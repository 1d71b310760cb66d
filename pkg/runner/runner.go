package runner

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nineking424/nificdc-sub002/pkg/connector"
	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/events"
	"github.com/nineking424/nificdc-sub002/pkg/log"
	"github.com/nineking424/nificdc-sub002/pkg/mapping"
	"github.com/nineking424/nificdc-sub002/pkg/metrics"
	"github.com/nineking424/nificdc-sub002/pkg/security"
	"github.com/nineking424/nificdc-sub002/pkg/storage"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Config tunes the runner. Zero values fall back to defaults.
type Config struct {
	PoolSize    int
	GracePeriod time.Duration
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 5 * time.Second
	}
	return c
}

// run tracks one admitted execution.
type run struct {
	ex     *types.JobExecution
	cancel context.CancelFunc

	mu          sync.Mutex
	opCancelled bool
}

func (r *run) markCancelled() {
	r.mu.Lock()
	r.opCancelled = true
	cancel := r.cancel
	r.mu.Unlock()
	cancel()
}

func (r *run) setCancel(cancel context.CancelFunc) {
	r.mu.Lock()
	wasCancelled := r.opCancelled
	r.cancel = cancel
	r.mu.Unlock()
	// Cancel may have raced in before the context existed.
	if wasCancelled {
		cancel()
	}
}

func (r *run) cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opCancelled
}

// Runner owns the bounded worker pool and the priority queue feeding
// it. At most one execution per job runs at a time.
type Runner struct {
	store    storage.Store
	broker   *events.Broker
	registry *connector.Registry
	cipher   *security.Cipher
	engine   *mapping.Engine
	cfg      Config
	logger   zerolog.Logger

	mu          sync.Mutex
	queue       execQueue
	running     map[string]*run // by execution_id
	runningJobs map[string]bool
	timers      map[string]*time.Timer

	notify  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup
	nowFn   func() time.Time
}

// New builds a runner. The broker and cipher may be nil.
func New(store storage.Store, broker *events.Broker, registry *connector.Registry, cipher *security.Cipher, engine *mapping.Engine, cfg Config) *Runner {
	return &Runner{
		store:       store,
		broker:      broker,
		registry:    registry,
		cipher:      cipher,
		engine:      engine,
		cfg:         cfg.withDefaults(),
		logger:      log.WithComponent("runner"),
		running:     make(map[string]*run),
		runningJobs: make(map[string]bool),
		timers:      make(map[string]*time.Timer),
		notify:      make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		nowFn:       time.Now,
	}
}

// Start reconciles executions left behind by a previous process, then
// launches the admission loop.
func (r *Runner) Start() {
	r.recover()
	go func() {
		defer close(r.doneCh)
		for {
			select {
			case <-r.notify:
				r.admit()
			case <-r.stopCh:
				return
			}
		}
	}()
}

// recover reconciles persisted executions after a restart: queued ones
// go back on the admission queue, ones stranded in running are failed.
func (r *Runner) recover() {
	queued, err := r.store.ListExecutions(storage.ExecutionFilter{Status: types.ExecQueued})
	if err != nil {
		r.logger.Error().Err(err).Msg("startup recovery: listing queued executions failed")
		return
	}
	r.mu.Lock()
	for _, ex := range queued {
		// Executions enqueued before Start are already on the heap.
		if r.queue.has(ex.ExecutionID) {
			continue
		}
		heap.Push(&r.queue, &item{ex: ex, priority: ex.Priority})
	}
	recovered := r.queue.Len()
	metrics.QueueDepth.Set(float64(recovered))
	r.mu.Unlock()

	stranded, err := r.store.ListExecutions(storage.ExecutionFilter{Status: types.ExecRunning})
	if err != nil {
		r.logger.Error().Err(err).Msg("startup recovery: listing running executions failed")
		return
	}
	for _, ex := range stranded {
		now := r.nowFn().UTC()
		ex.Status = types.ExecFailed
		ex.CompletedAt = &now
		ex.Error = &types.ExecutionError{Message: "interrupted by restart"}
		if err := r.store.UpdateExecution(ex); err != nil {
			r.logger.Error().Err(err).Str("execution_id", ex.ExecutionID).Msg("startup recovery: failed to mark execution")
			continue
		}
		metrics.ExecutionsTotal.WithLabelValues(string(types.ExecFailed), string(ex.Trigger)).Inc()
		r.publish(events.EventExecutionFailed, ex)

		if job, err := r.store.GetJob(ex.JobID); err == nil && job.Status == types.JobRunning {
			r.markJobStatus(job, types.JobFailed)
		}
		r.logger.Warn().
			Str("execution_id", ex.ExecutionID).
			Str("job_id", ex.JobID).
			Msg("execution interrupted by restart")
	}

	if recovered > 0 {
		r.poke()
	}
}

// Stop halts admission, cancels pending retry timers, and waits for
// running executions to drain.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
	r.wg.Wait()
}

// RunningCount reports the number of executions currently running.
func (r *Runner) RunningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// QueueLen reports the number of queued executions.
func (r *Runner) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Len()
}

// Enqueue persists a new execution and adds it to the priority queue.
// Missing identity and timing fields are filled in.
func (r *Runner) Enqueue(ex *types.JobExecution) error {
	job, err := r.store.GetJob(ex.JobID)
	if err != nil {
		return err
	}
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.ExecutionID == "" {
		ex.ExecutionID = uuid.NewString()
	}
	ex.Status = types.ExecQueued
	ex.QueuedAt = r.nowFn().UTC()
	ex.Priority = job.Priority

	if err := r.withStorageRetry(func() error { return r.store.CreateExecution(ex) }); err != nil {
		return err
	}

	r.mu.Lock()
	heap.Push(&r.queue, &item{ex: ex, priority: job.Priority})
	metrics.QueueDepth.Set(float64(r.queue.Len()))
	r.mu.Unlock()

	r.publish(events.EventExecutionQueued, ex)
	r.poke()
	return nil
}

// Cancel removes a queued execution or signals a running one. Queued
// executions go straight to cancelled; running ones drain through the
// same path as a timeout and finish cancelled.
func (r *Runner) Cancel(executionID string) error {
	r.mu.Lock()
	if active, ok := r.running[executionID]; ok {
		r.mu.Unlock()
		active.markCancelled()
		return nil
	}
	it := r.queue.remove(executionID)
	if it != nil {
		metrics.QueueDepth.Set(float64(r.queue.Len()))
	}
	r.mu.Unlock()

	if it == nil {
		return errdefs.NotFound("execution", executionID)
	}

	now := r.nowFn().UTC()
	it.ex.Status = types.ExecCancelled
	it.ex.CompletedAt = &now
	if err := r.withStorageRetry(func() error { return r.store.UpdateExecution(it.ex) }); err != nil {
		return err
	}
	metrics.ExecutionsTotal.WithLabelValues(string(types.ExecCancelled), string(it.ex.Trigger)).Inc()
	r.publish(events.EventExecutionCancelled, it.ex)
	return nil
}

// DependenciesMet reports whether every dependency job's most recent
// terminal execution completed.
func (r *Runner) DependenciesMet(job *types.Job) (bool, error) {
	for _, dep := range job.Dependencies {
		execs, err := r.store.ListExecutionsByJob(dep)
		if err != nil {
			return false, err
		}
		var latest *types.JobExecution
		for _, ex := range execs {
			if !ex.Status.Terminal() {
				continue
			}
			if latest == nil || ex.QueuedAt.After(latest.QueuedAt) {
				latest = ex
			}
		}
		if latest == nil || latest.Status != types.ExecCompleted {
			return false, nil
		}
	}
	return true, nil
}

func (r *Runner) poke() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// admit pops queue heads into the pool while capacity allows, skipping
// jobs that already have a running execution.
func (r *Runner) admit() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deferred []*item
	for len(r.running) < r.cfg.PoolSize && r.queue.Len() > 0 {
		it := heap.Pop(&r.queue).(*item)
		if r.runningJobs[it.ex.JobID] {
			deferred = append(deferred, it)
			continue
		}
		active := &run{ex: it.ex, cancel: func() {}}
		r.running[it.ex.ExecutionID] = active
		r.runningJobs[it.ex.JobID] = true
		r.wg.Add(1)
		go r.execute(active)
	}
	for _, it := range deferred {
		heap.Push(&r.queue, it)
	}
	metrics.QueueDepth.Set(float64(r.queue.Len()))
}

func (r *Runner) release(active *run) {
	r.mu.Lock()
	delete(r.running, active.ex.ExecutionID)
	delete(r.runningJobs, active.ex.JobID)
	r.mu.Unlock()
	r.poke()
}

// execute drives one admitted execution end to end.
func (r *Runner) execute(active *run) {
	defer r.wg.Done()
	defer r.release(active)

	ex := active.ex
	started := r.nowFn().UTC()
	ex.Status = types.ExecRunning
	ex.StartedAt = &started
	if err := r.withStorageRetry(func() error { return r.store.UpdateExecution(ex) }); err != nil {
		r.logger.Error().Err(err).Str("execution_id", ex.ExecutionID).Msg("failed to mark execution running")
		return
	}
	metrics.RunningExecutions.Inc()
	defer metrics.RunningExecutions.Dec()
	r.publish(events.EventExecutionStarted, ex)

	job, err := r.store.GetJob(ex.JobID)
	if err != nil {
		r.finish(active, nil, errdefs.Wrap(errdefs.KindInternal, err, "load job %s", ex.JobID))
		return
	}
	r.markJobStatus(job, types.JobRunning)

	ctx := context.Background()
	cancel := func() {}
	var deadline time.Time
	if job.Config.TimeoutSeconds != nil {
		deadline = started.Add(time.Duration(*job.Config.TimeoutSeconds) * time.Second)
		ctx, cancel = context.WithDeadline(ctx, deadline)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	active.setCancel(cancel)

	err = r.pipeline(ctx, active, job)
	r.finish(active, job, err)
}

// pipeline loads the mapping, streams source batches through the
// engine into the target sink, and commits.
func (r *Runner) pipeline(ctx context.Context, active *run, job *types.Job) error {
	ex := active.ex

	m, err := r.store.GetMapping(job.MappingID)
	if err != nil {
		return err
	}
	if pinned, ok := ex.Parameters["mapping_version"]; ok {
		if v, isNum := pinned.(float64); isNum && int(v) != m.MappingVersion {
			ex.Warnings = append(ex.Warnings,
				fmt.Sprintf("mapping version drifted from %d to %d since parent execution", int(v), m.MappingVersion))
		}
	} else {
		if ex.Parameters == nil {
			ex.Parameters = make(map[string]any)
		}
		ex.Parameters["mapping_version"] = float64(m.MappingVersion)
	}

	sourceSchema, err := r.store.GetSchema(m.SourceSchemaID)
	if err != nil {
		return err
	}
	targetSchema, err := r.store.GetSchema(m.TargetSchemaID)
	if err != nil {
		return err
	}
	r.checkpoint(ex, "mapping_loaded", fmt.Sprintf("mapping %s v%d", m.ID, m.MappingVersion), nil)

	source, err := r.openConnector(m.SourceSystemID)
	if err != nil {
		return err
	}
	target, err := r.openConnector(m.TargetSystemID)
	if err != nil {
		return err
	}

	it, err := source.OpenRead(ctx, sourceSchema)
	if err != nil {
		return err
	}
	defer it.Close()
	sink, err := target.OpenWrite(ctx, targetSchema)
	if err != nil {
		return err
	}
	r.checkpoint(ex, "source_opened", "", nil)

	opts := mapping.Options{ContinueOnError: job.Config.ContinueOnError}
	batchNo := 0
	for {
		batch, err := it.Next(ctx)
		if err != nil {
			r.abort(sink)
			return err
		}
		if batch == nil {
			break
		}
		batchNo++
		ex.SourceRecords += int64(len(batch))

		result, err := r.engine.Apply(ctx, m, batch, opts)
		if err != nil {
			r.abort(sink)
			return err
		}
		ex.TargetRecords += int64(len(result.Records))
		ex.ErrorRecords += int64(len(result.Errors))
		for _, w := range result.Warnings {
			ex.Warnings = append(ex.Warnings, w.Message)
		}
		metrics.RecordsProcessed.Add(float64(len(result.Records)))
		metrics.RecordErrors.Add(float64(len(result.Errors)))

		if err := sink.Write(ctx, result.Records); err != nil {
			r.abort(sink)
			return err
		}
		r.checkpoint(ex, fmt.Sprintf("batch_%d_processed", batchNo), "", map[string]any{
			"records": len(result.Records),
			"errors":  len(result.Errors),
		})
	}

	if err := sink.Commit(ctx); err != nil {
		r.abort(sink)
		return err
	}
	r.checkpoint(ex, "sink_committed", "", nil)
	return nil
}

// abort discards the sink's written batches within the grace period.
func (r *Runner) abort(sink connector.Sink) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.GracePeriod)
	defer cancel()
	if err := sink.Abort(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("sink abort failed")
	}
}

// finish writes the terminal record, updates the job state machine, and
// schedules a retry when one is due.
func (r *Runner) finish(active *run, job *types.Job, runErr error) {
	ex := active.ex
	now := r.nowFn().UTC()
	ex.CompletedAt = &now
	if ex.StartedAt != nil {
		ex.DurationMS = now.Sub(*ex.StartedAt).Milliseconds()
	}

	status := types.ExecCompleted
	if runErr != nil {
		switch {
		case active.cancelled():
			status = types.ExecCancelled
		case job != nil && job.Config.TimeoutSeconds != nil && ex.StartedAt != nil &&
			!now.Before(ex.StartedAt.Add(time.Duration(*job.Config.TimeoutSeconds)*time.Second)):
			status = types.ExecTimeout
		default:
			status = types.ExecFailed
		}
		ex.Error = &types.ExecutionError{Message: runErr.Error()}
		r.checkpoint(ex, "failed", runErr.Error(), nil)
		r.logger.Error().Err(runErr).
			Str("execution_id", ex.ExecutionID).
			Str("job_id", ex.JobID).
			Str("status", string(status)).
			Msg("execution finished with error")
	}
	ex.Status = status

	if err := r.withStorageRetry(func() error { return r.store.UpdateExecution(ex) }); err != nil {
		r.logger.Error().Err(err).Str("execution_id", ex.ExecutionID).Msg("failed to persist terminal execution")
	}
	metrics.ExecutionsTotal.WithLabelValues(string(status), string(ex.Trigger)).Inc()
	if ex.StartedAt != nil {
		metrics.ExecutionDuration.WithLabelValues(string(status)).Observe(now.Sub(*ex.StartedAt).Seconds())
	}

	switch status {
	case types.ExecCompleted:
		r.publish(events.EventExecutionCompleted, ex)
	case types.ExecCancelled:
		r.publish(events.EventExecutionCancelled, ex)
	default:
		r.publish(events.EventExecutionFailed, ex)
	}

	if job == nil {
		return
	}
	r.updateMappingStats(job.MappingID, ex, status)

	retryDue := status == types.ExecFailed && ex.RetryCount < job.Config.MaxRetries
	switch {
	case retryDue:
		// Job stays running until the retry chain resolves.
		r.scheduleRetry(ex, job)
	case status == types.ExecCompleted:
		switch job.Schedule.Kind {
		case types.ScheduleRecurring, types.ScheduleCron:
			r.markJobStatus(job, types.JobScheduled)
		default:
			r.markJobStatus(job, types.JobCompleted)
		}
	case status == types.ExecCancelled:
		r.markJobStatus(job, types.JobScheduled)
	default:
		r.markJobStatus(job, types.JobFailed)
	}
}

// updateMappingStats folds a terminal execution into the owning
// mapping's aggregate history, retrying once on a version conflict.
func (r *Runner) updateMappingStats(mappingID string, ex *types.JobExecution, status types.ExecutionStatus) {
	for attempt := 0; attempt < 2; attempt++ {
		m, err := r.store.GetMapping(mappingID)
		if err != nil {
			r.logger.Warn().Err(err).Str("mapping_id", mappingID).Msg("mapping stats update skipped")
			return
		}
		st := &m.Stats
		prev := float64(st.TotalExecutions)
		successes := st.SuccessRate * prev / 100
		if status == types.ExecCompleted {
			successes++
		}
		st.TotalExecutions++
		st.TotalRecords += ex.TargetRecords
		st.TotalErrors += ex.ErrorRecords
		st.AvgDurationMS = (st.AvgDurationMS*prev + float64(ex.DurationMS)) / float64(st.TotalExecutions)
		st.SuccessRate = 100 * successes / float64(st.TotalExecutions)
		now := r.nowFn().UTC()
		st.LastExecutedAt = &now
		if ex.Error != nil {
			st.LastErrorMessage = ex.Error.Message
		}

		err = r.store.UpdateMapping(m)
		if err == nil {
			return
		}
		if !errdefs.IsConflict(err) {
			r.logger.Warn().Err(err).Str("mapping_id", mappingID).Msg("mapping stats update failed")
			return
		}
	}
}

func (r *Runner) scheduleRetry(parent *types.JobExecution, job *types.Job) {
	delay := time.Duration(job.Config.RetryDelaySeconds) * time.Second
	retry := &types.JobExecution{
		JobID:             parent.JobID,
		Trigger:           types.TriggerRetry,
		TriggeredBy:       parent.TriggeredBy,
		ParentExecutionID: parent.ExecutionID,
		RetryCount:        parent.RetryCount + 1,
		Parameters:        parent.Parameters,
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	timerID := retryTimerID(parent.ExecutionID)
	r.timers[timerID] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, timerID)
		stopped := r.stopped
		r.mu.Unlock()
		if stopped {
			return
		}
		if err := r.Enqueue(retry); err != nil {
			r.logger.Error().Err(err).
				Str("job_id", retry.JobID).
				Str("parent_execution_id", retry.ParentExecutionID).
				Msg("failed to enqueue retry")
		}
	})
	r.mu.Unlock()

	r.logger.Info().
		Str("job_id", job.ID).
		Str("parent_execution_id", parent.ExecutionID).
		Int("retry_count", retry.RetryCount).
		Dur("delay", delay).
		Msg("retry scheduled")
}

func retryTimerID(parentExecutionID string) string {
	return "retry:" + parentExecutionID
}

// markJobStatus re-reads the job and writes the new status, retrying
// once on a version conflict.
func (r *Runner) markJobStatus(job *types.Job, status types.JobStatus) {
	for attempt := 0; attempt < 2; attempt++ {
		fresh, err := r.store.GetJob(job.ID)
		if err != nil {
			r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("job status transition skipped")
			return
		}
		if fresh.Status == status {
			return
		}
		fresh.Status = status
		err = r.store.UpdateJob(fresh)
		if err == nil {
			return
		}
		if !errdefs.IsConflict(err) {
			r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("job status update failed")
			return
		}
	}
}

func (r *Runner) checkpoint(ex *types.JobExecution, ctype, msg string, payload map[string]any) {
	ex.Checkpoints = append(ex.Checkpoints, types.Checkpoint{
		Type:    ctype,
		Message: msg,
		TS:      r.nowFn().UTC(),
		Payload: payload,
	})
	if err := r.withStorageRetry(func() error { return r.store.UpdateExecution(ex) }); err != nil {
		r.logger.Warn().Err(err).
			Str("execution_id", ex.ExecutionID).
			Str("checkpoint", ctype).
			Msg("checkpoint not persisted")
	}
}

// openConnector resolves a system, decrypts its connection info, and
// builds the connector through the registry.
func (r *Runner) openConnector(systemID string) (connector.Connector, error) {
	sys, err := r.store.GetSystem(systemID)
	if err != nil {
		return nil, err
	}
	info := map[string]any{}
	if len(sys.ConnectionInfo) > 0 {
		plain := sys.ConnectionInfo
		if r.cipher != nil {
			plain, err = r.cipher.Decrypt(sys.ConnectionInfo)
			if err != nil {
				return nil, errdefs.Wrap(errdefs.KindInternal, err, "decrypt connection info for system %s", sys.ID)
			}
		}
		if err := json.Unmarshal(plain, &info); err != nil {
			return nil, errdefs.Wrap(errdefs.KindInternal, err, "decode connection info for system %s", sys.ID)
		}
	}
	return r.registry.Open(sys, info)
}

// withStorageRetry retries transient storage failures with exponential
// backoff.
func (r *Runner) withStorageRetry(op func() error) error {
	delay := 100 * time.Millisecond
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = op()
		if err == nil || !errdefs.IsKind(err, errdefs.KindStorageUnavailable) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func (r *Runner) publish(t events.EventType, ex *types.JobExecution) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		Channel: events.ChannelJobs,
		Type:    t,
		Data:    ex,
	})
}
