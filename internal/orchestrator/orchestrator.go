// Package orchestrator fans identity sync work out across registered
// modules with per-module timeouts, partial-failure reporting, and a
// retry path for the failed subset.
package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/metrics"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #endregion

// #region orchestrator-struct

// Orchestrator coordinates module fan-out for one store.
type Orchestrator struct {
	store    *state.Store
	registry *Registry
	jobs     *JobLog
}

// New creates a fully wired orchestrator. jobs may be nil to skip the
// persistent job log.
func New(store *state.Store, registry *Registry, jobs *JobLog) *Orchestrator {
	return &Orchestrator{store: store, registry: registry, jobs: jobs}
}

// #endregion

// #region execute

// ExecuteModuleSync runs the selected modules concurrently for the user
// and waits for every one to settle. A failed or timed-out module never
// aborts its siblings; the job reports per-module results and fails only
// if at least one module failed.
func (o *Orchestrator) ExecuteModuleSync(ctx context.Context, userID string, opts Options) (SyncJob, error) {
	st, err := o.store.GetByUser(userID)
	if err != nil {
		return SyncJob{}, err
	}

	job := SyncJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		StateID:   st.ID,
		Status:    JobInProgress,
		Results:   make(map[string]ModuleResult),
		StartedAt: time.Now().UTC(),
	}
	runnable := o.plan(&job, opts)

	if err := o.store.SetSyncStatus(st.ID, identity.SyncInProgress); err != nil {
		return SyncJob{}, err
	}
	if o.jobs != nil {
		if err := o.jobs.RecordStart(job); err != nil {
			log.Printf("[SYNC] job=%s record start failed: %v", job.ID, err)
		}
	}
	log.Printf("[SYNC] job=%s user=%s modules=%d", job.ID, userID, len(runnable))

	o.run(ctx, &job, st, runnable, opts)
	return o.finalize(&job, opts)
}

// plan resolves the module selection into job.Results. Skip-listed names
// leave the working set entirely; only unrecognized names settle as
// skipped results.
func (o *Orchestrator) plan(job *SyncJob, opts Options) []Module {
	selection := opts.Modules
	if len(selection) == 0 {
		selection = o.registry.Names()
	}
	skip := make(map[string]bool, len(opts.SkipModules))
	for _, name := range opts.SkipModules {
		skip[name] = true
	}

	var runnable []Module
	seen := make(map[string]bool, len(selection))
	for _, name := range selection {
		if seen[name] || skip[name] {
			continue
		}
		seen[name] = true
		m, ok := o.registry.Get(name)
		if !ok {
			job.Results[name] = ModuleResult{
				Module: name,
				Status: ModuleSkipped,
				Error:  fmt.Sprintf("unknown module %q", name),
			}
			continue
		}
		job.Results[name] = ModuleResult{Module: name, Status: ModulePending}
		runnable = append(runnable, m)
	}
	return runnable
}

// run fans the runnable modules out and blocks until all settle.
func (o *Orchestrator) run(ctx context.Context, job *SyncJob, st identity.IdentityState, runnable []Module, opts Options) {
	var mu sync.Mutex // guards job.Results and serializes progress callbacks
	emit := func(current string) {
		if opts.OnProgress == nil {
			return
		}
		opts.OnProgress(snapshotProgress(job, current))
	}

	mu.Lock()
	emit("")
	mu.Unlock()

	sc := SyncContext{State: st, Store: o.store}
	var wg sync.WaitGroup
	for _, m := range runnable {
		wg.Add(1)
		go func(m Module) {
			defer wg.Done()
			name := m.Name()

			started := time.Now().UTC()
			mu.Lock()
			res := job.Results[name]
			res.Status = ModuleInProgress
			res.StartedAt = &started
			job.Results[name] = res
			emit(name)
			mu.Unlock()

			out, err := runModule(ctx, m, job.UserID, sc, opts.timeout())

			completed := time.Now().UTC()
			mu.Lock()
			res = job.Results[name]
			res.CompletedAt = &completed
			if err != nil {
				res.Status = ModuleFailed
				res.Error = err.Error()
			} else {
				res.Status = ModuleCompleted
				res.ItemsProcessed = out.ItemsProcessed
				res.Details = out.Details
			}
			job.Results[name] = res
			emit(name)
			mu.Unlock()

			metrics.ModuleOutcomes.WithLabelValues(name, string(res.Status)).Inc()
			metrics.ModuleDuration.WithLabelValues(name).Observe(completed.Sub(started).Seconds())
			if err != nil {
				log.Printf("[SYNC] job=%s module=%s failed: %v", job.ID, name, err)
			}
		}(m)
	}
	wg.Wait()

	mu.Lock()
	emit("")
	mu.Unlock()
}

// runModule bounds one module run. The select abandons a module that
// ignores its deadline rather than blocking the job on it.
func runModule(ctx context.Context, m Module, userID string, sc SyncContext, timeout time.Duration) (Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		out Output
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := m.Run(runCtx, userID, sc)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return Output{}, fmt.Errorf("sync cancelled: %w", ctx.Err())
		}
		return Output{}, fmt.Errorf("module %s timed out after %s", m.Name(), timeout)
	}
}

// finalize settles the job status, flips the state row, and persists the
// job record.
func (o *Orchestrator) finalize(job *SyncJob, opts Options) (SyncJob, error) {
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.Status = JobCompleted
	syncStatus := identity.SyncCompleted
	if len(job.FailedModules()) > 0 {
		job.Status = JobFailed
		syncStatus = identity.SyncFailed
	}

	if err := o.store.SetSyncStatus(job.StateID, syncStatus); err != nil {
		return SyncJob{}, err
	}
	if o.jobs != nil {
		if err := o.jobs.RecordFinish(*job); err != nil {
			log.Printf("[SYNC] job=%s record finish failed: %v", job.ID, err)
		}
	}
	metrics.SyncRuns.WithLabelValues(string(job.Status)).Inc()
	log.Printf("[SYNC] job=%s status=%s failed=%d", job.ID, job.Status, len(job.FailedModules()))
	return *job, nil
}

func snapshotProgress(job *SyncJob, current string) Progress {
	results := make(map[string]ModuleResult, len(job.Results))
	completed := 0
	for name, res := range job.Results {
		results[name] = res
		if res.Status.terminal() {
			completed++
		}
	}
	return Progress{
		JobID:         job.ID,
		CurrentModule: current,
		Completed:     completed,
		Total:         len(job.Results),
		Results:       results,
	}
}

// #endregion

// #region retry

// RetryFailedModules re-runs only the failed modules of a finished job
// and merges the fresh results over the old ones. A job with nothing
// failed is returned unchanged.
func (o *Orchestrator) RetryFailedModules(ctx context.Context, job SyncJob, opts Options) (SyncJob, error) {
	failed := job.FailedModules()
	if len(failed) == 0 {
		return job, nil
	}

	opts.Modules = failed
	opts.SkipModules = nil
	log.Printf("[SYNC] job=%s retrying %d modules", job.ID, len(failed))

	rerun, err := o.ExecuteModuleSync(ctx, job.UserID, opts)
	if err != nil {
		return SyncJob{}, err
	}

	merged := SyncJob{
		ID:          job.ID,
		UserID:      job.UserID,
		StateID:     job.StateID,
		Status:      rerun.Status,
		Results:     make(map[string]ModuleResult, len(job.Results)),
		StartedAt:   job.StartedAt,
		CompletedAt: rerun.CompletedAt,
	}
	for name, res := range job.Results {
		merged.Results[name] = res
	}
	for name, res := range rerun.Results {
		merged.Results[name] = res
	}
	// Earlier failures outside the retried subset keep the job failed.
	merged.Status = JobCompleted
	if len(merged.FailedModules()) > 0 {
		merged.Status = JobFailed
	}

	if o.jobs != nil {
		if err := o.jobs.RecordFinish(merged); err != nil {
			log.Printf("[SYNC] job=%s record retry failed: %v", merged.ID, err)
		}
	}
	return merged, nil
}

// #endregion
