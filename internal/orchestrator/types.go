package orchestrator

// #region imports
import (
	"time"

	"github.com/danielpatrickdp/identity-engine/internal/identity"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #endregion

// #region job-status

// JobStatus is the lifecycle state of a whole sync job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// #endregion

// #region module-status

// ModuleStatus is the lifecycle state of one module within a job.
type ModuleStatus string

const (
	ModulePending    ModuleStatus = "pending"
	ModuleInProgress ModuleStatus = "in_progress"
	ModuleCompleted  ModuleStatus = "completed"
	ModuleFailed     ModuleStatus = "failed"
	ModuleSkipped    ModuleStatus = "skipped"
)

// terminal reports whether a module status is final.
func (s ModuleStatus) terminal() bool {
	return s == ModuleCompleted || s == ModuleFailed || s == ModuleSkipped
}

// #endregion

// #region module-result

// ModuleResult records the outcome of one module run within a job.
type ModuleResult struct {
	Module         string         `json:"module"`
	Status         ModuleStatus   `json:"status"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	ItemsProcessed int            `json:"itemsProcessed"`
	Error          string         `json:"error,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// #endregion

// #region sync-job

// SyncJob is one fan-out run over the registered modules for a user.
type SyncJob struct {
	ID          string                  `json:"id"`
	UserID      string                  `json:"userId"`
	StateID     string                  `json:"stateId"`
	Status      JobStatus               `json:"status"`
	Results     map[string]ModuleResult `json:"results"`
	StartedAt   time.Time               `json:"startedAt"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
}

// FailedModules returns the names of modules that failed, sorted order
// is not guaranteed.
func (j SyncJob) FailedModules() []string {
	var failed []string
	for name, res := range j.Results {
		if res.Status == ModuleFailed {
			failed = append(failed, name)
		}
	}
	return failed
}

// #endregion

// #region options

// DefaultModuleTimeout bounds each module run unless overridden.
const DefaultModuleTimeout = 30 * time.Second

// Options select and constrain the modules for one sync run.
type Options struct {
	// Modules restricts the run to these names. Empty means all registered.
	Modules []string
	// SkipModules removes names from the selection.
	SkipModules []string
	// Timeout bounds each module individually. Zero means DefaultModuleTimeout.
	Timeout time.Duration
	// OnProgress, when set, receives a snapshot after every status change.
	OnProgress ProgressFunc
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultModuleTimeout
	}
	return o.Timeout
}

// #endregion

// #region sync-context

// SyncContext is the shared view modules receive: the identity document
// at job start plus the store for writing their section back.
type SyncContext struct {
	State identity.IdentityState
	Store *state.Store
}

// #endregion

// #region progress

// Progress is a point-in-time snapshot of a running job. CurrentModule
// names the module whose transition triggered the callback; it is empty
// on the initial and final snapshots.
type Progress struct {
	JobID         string
	CurrentModule string
	Completed     int
	Total         int
	Results       map[string]ModuleResult
}

// ProgressFunc receives progress snapshots. Calls are serialized; the
// Results map is a copy the callback may keep.
type ProgressFunc func(Progress)

// #endregion
