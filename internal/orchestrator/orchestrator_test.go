package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

func tempStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeModule is a scriptable module for fan-out tests.
type fakeModule struct {
	name     string
	delay    time.Duration
	out      Output
	err      error
	hang     bool // ignore everything until the deadline fires
	failures int32
	runs     atomic.Int32
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) Run(ctx context.Context, userID string, sc SyncContext) (Output, error) {
	run := m.runs.Add(1)
	if m.hang {
		<-ctx.Done()
		return Output{}, ctx.Err()
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Output{}, ctx.Err()
		}
	}
	if m.failures > 0 && run <= m.failures {
		return Output{}, errors.New("upstream unavailable")
	}
	if m.err != nil {
		return Output{}, m.err
	}
	return m.out, nil
}

func newTestOrchestrator(t *testing.T, modules ...Module) (*Orchestrator, *state.Store, identity.IdentityState) {
	t.Helper()
	s := tempStore(t)
	st, err := s.Create("user-1", state.CreateInput{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	reg := NewRegistry()
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	jobs, err := NewJobLog(s.DB())
	if err != nil {
		t.Fatalf("NewJobLog: %v", err)
	}
	return New(s, reg, jobs), s, st
}

func TestExecuteModuleSyncAllComplete(t *testing.T) {
	bio := &fakeModule{name: "bio", out: Output{ItemsProcessed: 3}}
	career := &fakeModule{name: "career", out: Output{ItemsProcessed: 1}}
	o, s, st := newTestOrchestrator(t, bio, career)

	job, err := o.ExecuteModuleSync(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("ExecuteModuleSync: %v", err)
	}
	if job.Status != JobCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if len(job.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(job.Results))
	}
	for name, res := range job.Results {
		if res.Status != ModuleCompleted {
			t.Fatalf("module %s not completed: %+v", name, res)
		}
		if res.StartedAt == nil || res.CompletedAt == nil {
			t.Fatalf("module %s missing timestamps", name)
		}
	}
	if job.Results["bio"].ItemsProcessed != 3 {
		t.Fatalf("bio items = %d", job.Results["bio"].ItemsProcessed)
	}

	got, _ := s.Get(st.ID)
	if got.SyncStatus != identity.SyncCompleted {
		t.Fatalf("state row sync status = %s", got.SyncStatus)
	}
}

func TestExecuteModuleSyncUnknownUser(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &fakeModule{name: "bio"})
	if _, err := o.ExecuteModuleSync(context.Background(), "nobody", Options{}); !fault.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestPartialFailureKeepsSiblings(t *testing.T) {
	good := &fakeModule{name: "bio", out: Output{ItemsProcessed: 1}}
	bad := &fakeModule{name: "photo", err: errors.New("provider rejected batch")}
	o, s, st := newTestOrchestrator(t, good, bad)

	job, err := o.ExecuteModuleSync(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("ExecuteModuleSync: %v", err)
	}
	if job.Status != JobFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}
	if job.Results["bio"].Status != ModuleCompleted {
		t.Fatalf("sibling should complete: %+v", job.Results["bio"])
	}
	if job.Results["photo"].Status != ModuleFailed {
		t.Fatalf("expected photo failed: %+v", job.Results["photo"])
	}
	if job.Results["photo"].Error == "" {
		t.Fatal("failed module must carry its error")
	}

	got, _ := s.Get(st.ID)
	if got.SyncStatus != identity.SyncFailed {
		t.Fatalf("state row sync status = %s", got.SyncStatus)
	}
}

func TestModuleTimeout(t *testing.T) {
	hung := &fakeModule{name: "photo", hang: true}
	quick := &fakeModule{name: "bio"}
	o, _, _ := newTestOrchestrator(t, hung, quick)

	start := time.Now()
	job, err := o.ExecuteModuleSync(context.Background(), "user-1", Options{Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("ExecuteModuleSync: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("job blocked on hung module for %s", elapsed)
	}
	res := job.Results["photo"]
	if res.Status != ModuleFailed {
		t.Fatalf("expected timeout failure, got %+v", res)
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Fatalf("timeout error should say so, got %q", res.Error)
	}
	if job.Results["bio"].Status != ModuleCompleted {
		t.Fatalf("sibling should complete: %+v", job.Results["bio"])
	}
}

func TestModuleSelectionAndSkips(t *testing.T) {
	bio := &fakeModule{name: "bio"}
	career := &fakeModule{name: "career"}
	o, _, _ := newTestOrchestrator(t, bio, career)

	job, err := o.ExecuteModuleSync(context.Background(), "user-1", Options{
		Modules:     []string{"bio", "career", "ghost"},
		SkipModules: []string{"career"},
	})
	if err != nil {
		t.Fatalf("ExecuteModuleSync: %v", err)
	}
	if job.Results["bio"].Status != ModuleCompleted {
		t.Fatalf("bio: %+v", job.Results["bio"])
	}
	// Skip-listed modules leave the working set: no result row at all.
	if _, ok := job.Results["career"]; ok {
		t.Fatalf("skip-listed module must not appear in results: %+v", job.Results["career"])
	}
	if len(job.Results) != 2 {
		t.Fatalf("expected 2 results, got %v", job.Results)
	}
	if job.Results["ghost"].Status != ModuleSkipped || job.Results["ghost"].Error == "" {
		t.Fatalf("unknown module should skip with reason: %+v", job.Results["ghost"])
	}
	if career.runs.Load() != 0 {
		t.Fatal("skip-listed module must not run")
	}
	// Skipped modules never fail the job.
	if job.Status != JobCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
}

func TestProgressSnapshots(t *testing.T) {
	bio := &fakeModule{name: "bio"}
	o, _, _ := newTestOrchestrator(t, bio)

	var snaps []Progress
	job, err := o.ExecuteModuleSync(context.Background(), "user-1", Options{
		OnProgress: func(p Progress) { snaps = append(snaps, p) },
	})
	if err != nil {
		t.Fatalf("ExecuteModuleSync: %v", err)
	}

	// initial + in_progress + terminal + final
	if len(snaps) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(snaps))
	}
	if snaps[0].CurrentModule != "" || snaps[0].Results["bio"].Status != ModulePending {
		t.Fatalf("initial snapshot wrong: %+v", snaps[0])
	}
	if snaps[1].CurrentModule != "bio" || snaps[1].Results["bio"].Status != ModuleInProgress {
		t.Fatalf("in_progress snapshot wrong: %+v", snaps[1])
	}
	if snaps[2].CurrentModule != "bio" || snaps[2].Results["bio"].Status != ModuleCompleted {
		t.Fatalf("terminal snapshot wrong: %+v", snaps[2])
	}
	last := snaps[3]
	if last.CurrentModule != "" || last.Completed != last.Total || last.Completed != 1 {
		t.Fatalf("final snapshot wrong: %+v", last)
	}
	if job.Status != JobCompleted {
		t.Fatalf("job status = %s", job.Status)
	}
}

func TestRetryFailedModules(t *testing.T) {
	flaky := &fakeModule{name: "photo", failures: 1, out: Output{ItemsProcessed: 2}}
	steady := &fakeModule{name: "bio", out: Output{ItemsProcessed: 1}}
	o, _, _ := newTestOrchestrator(t, flaky, steady)

	job, err := o.ExecuteModuleSync(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("ExecuteModuleSync: %v", err)
	}
	if job.Status != JobFailed {
		t.Fatalf("expected first run to fail, got %s", job.Status)
	}

	retried, err := o.RetryFailedModules(context.Background(), job, Options{})
	if err != nil {
		t.Fatalf("RetryFailedModules: %v", err)
	}
	if retried.ID != job.ID {
		t.Fatalf("retry must keep the job id: %s vs %s", retried.ID, job.ID)
	}
	if retried.Status != JobCompleted {
		t.Fatalf("expected completed after retry, got %s", retried.Status)
	}
	if retried.Results["photo"].Status != ModuleCompleted || retried.Results["photo"].ItemsProcessed != 2 {
		t.Fatalf("retried module wrong: %+v", retried.Results["photo"])
	}
	// Only the failed subset re-runs.
	if steady.runs.Load() != 1 {
		t.Fatalf("steady module ran %d times", steady.runs.Load())
	}
	if flaky.runs.Load() != 2 {
		t.Fatalf("flaky module ran %d times", flaky.runs.Load())
	}
}

func TestRetryWithNothingFailedIsIdentity(t *testing.T) {
	bio := &fakeModule{name: "bio"}
	o, _, _ := newTestOrchestrator(t, bio)

	job, err := o.ExecuteModuleSync(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("ExecuteModuleSync: %v", err)
	}
	retried, err := o.RetryFailedModules(context.Background(), job, Options{})
	if err != nil {
		t.Fatalf("RetryFailedModules: %v", err)
	}
	if retried.ID != job.ID || retried.Status != job.Status {
		t.Fatalf("expected unchanged job, got %+v", retried)
	}
	if bio.runs.Load() != 1 {
		t.Fatalf("module re-ran %d times", bio.runs.Load())
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&fakeModule{name: "bio"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(&fakeModule{name: "bio"}); !fault.IsAlreadyExists(err) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestJobLogRoundTrip(t *testing.T) {
	s := tempStore(t)
	jobs, err := NewJobLog(s.DB())
	if err != nil {
		t.Fatalf("NewJobLog: %v", err)
	}

	started := time.Now().UTC().Truncate(time.Millisecond)
	job := SyncJob{
		ID:        "job-1",
		UserID:    "user-1",
		StateID:   "state-1",
		Status:    JobInProgress,
		Results:   map[string]ModuleResult{"bio": {Module: "bio", Status: ModulePending}},
		StartedAt: started,
	}
	if err := jobs.RecordStart(job); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	completed := started.Add(time.Second)
	job.Status = JobCompleted
	job.CompletedAt = &completed
	job.Results["bio"] = ModuleResult{Module: "bio", Status: ModuleCompleted, ItemsProcessed: 7}
	if err := jobs.RecordFinish(job); err != nil {
		t.Fatalf("RecordFinish: %v", err)
	}

	got, err := jobs.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobCompleted || got.CompletedAt == nil {
		t.Fatalf("unexpected job: %+v", got)
	}
	if got.Results["bio"].ItemsProcessed != 7 {
		t.Fatalf("results not persisted: %+v", got.Results)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("started_at drifted: %v vs %v", got.StartedAt, started)
	}

	recent, err := jobs.ListRecent("user-1", 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "job-1" {
		t.Fatalf("unexpected recent jobs: %+v", recent)
	}

	if _, err := jobs.GetJob("missing"); !fault.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if err := jobs.RecordFinish(SyncJob{ID: "missing", Results: map[string]ModuleResult{}}); !fault.IsNotFound(err) {
		t.Fatalf("expected NotFound on finish, got %v", err)
	}
}
