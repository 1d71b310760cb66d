package storage

import (
	"time"

	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// ExecutionFilter narrows ListExecutions.
type ExecutionFilter struct {
	JobID  string
	Status types.ExecutionStatus
	Limit  int
	Offset int
}

// AuditFilter narrows ListAuditEvents. Results are newest-first.
type AuditFilter struct {
	EventType string
	UserID    string
	Resource  string
	Severity  types.Severity
	Start     time.Time
	End       time.Time
	Limit     int
	Offset    int
}

// Hooks are invoked by the gateway on create/update to recompute derived
// fields. They are wired at startup to avoid package cycles: mapping
// validation lives in pkg/mapping, schedule math in pkg/schedule.
type Hooks struct {
	// ValidateMapping runs the static mapping checks before a mapping is
	// persisted.
	ValidateMapping func(m *types.Mapping) error

	// NextExecutionAt recomputes a job's next firing time whenever its
	// schedule or active flag changes.
	NextExecutionAt func(job *types.Job, now time.Time) (*time.Time, error)
}

// Store is the durable home of all core entities. It is the sole writer
// of persistent state; every mutating call carries the caller's expected
// Version and fails with a conflict on mismatch.
type Store interface {
	// Systems
	CreateSystem(sys *types.System) error
	GetSystem(id string) (*types.System, error)
	GetSystemByName(name string) (*types.System, error)
	ListSystems() ([]*types.System, error)
	UpdateSystem(sys *types.System) error
	DeleteSystem(id string) error

	// Schemas
	CreateSchema(schema *types.Schema) error
	GetSchema(id string) (*types.Schema, error)
	ListSchemas() ([]*types.Schema, error)
	ListSchemasBySystem(systemID string) ([]*types.Schema, error)
	UpdateSchema(schema *types.Schema) error
	DeleteSchema(id string) error

	// Mappings
	CreateMapping(m *types.Mapping) error
	GetMapping(id string) (*types.Mapping, error)
	ListMappings() ([]*types.Mapping, error)
	UpdateMapping(m *types.Mapping) error
	DeleteMapping(id string) error

	// Jobs
	CreateJob(job *types.Job) error
	GetJob(id string) (*types.Job, error)
	ListJobs() ([]*types.Job, error)
	UpdateJob(job *types.Job) error
	DeleteJob(id string) error

	// ListExecutableJobs returns active jobs with status=scheduled and
	// next_execution_at <= now, ordered by priority desc then
	// next_execution_at asc. This is the scheduler's hot query.
	ListExecutableJobs(now time.Time) ([]*types.Job, error)

	// Executions
	CreateExecution(ex *types.JobExecution) error
	GetExecution(id string) (*types.JobExecution, error)
	GetExecutionByExecutionID(executionID string) (*types.JobExecution, error)
	ListExecutions(filter ExecutionFilter) ([]*types.JobExecution, error)
	ListExecutionsByJob(jobID string) ([]*types.JobExecution, error)
	LatestExecutionByJob(jobID string) (*types.JobExecution, error)
	UpdateExecution(ex *types.JobExecution) error

	// Audit (append-only)
	AppendAuditEvents(events []*types.AuditEvent) error
	ListAuditEvents(filter AuditFilter) ([]*types.AuditEvent, error)

	// Alert rules
	CreateAlertRule(rule *types.AlertRule) error
	GetAlertRule(id string) (*types.AlertRule, error)
	ListAlertRules() ([]*types.AlertRule, error)
	UpdateAlertRule(rule *types.AlertRule) error
	DeleteAlertRule(id string) error

	// Utility
	SetHooks(hooks Hooks)
	Close() error
}
