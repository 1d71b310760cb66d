package types

import (
	"time"
)

// SystemType identifies the kind of external endpoint a System represents.
type SystemType string

const (
	SystemPostgres      SystemType = "postgresql"
	SystemMySQL         SystemType = "mysql"
	SystemOracle        SystemType = "oracle"
	SystemSQLServer     SystemType = "sqlserver"
	SystemDocument      SystemType = "document"
	SystemKeyValue      SystemType = "keyvalue"
	SystemSearch        SystemType = "search"
	SystemQueue         SystemType = "queue"
	SystemObjectStore   SystemType = "objectstore"
	SystemFileTransfer  SystemType = "filetransfer"
	SystemHTTP          SystemType = "http"
)

// System represents an external endpoint records are read from or written to.
// ConnectionInfo is encrypted at rest by pkg/security before it reaches storage.
type System struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           SystemType `json:"type"`
	ConnectionInfo []byte     `json:"connection_info,omitempty"`
	Active         bool       `json:"active"`
	CreatedBy      string     `json:"created_by,omitempty"`
	UpdatedBy      string     `json:"updated_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastProbeAt    *time.Time `json:"last_probe_at,omitempty"`
	LastProbeOK    bool       `json:"last_probe_ok"`
	Version        int        `json:"version"`
}

// SchemaFormat describes the shape family a schema belongs to.
type SchemaFormat string

const (
	FormatRelational SchemaFormat = "relational"
	FormatDocument   SchemaFormat = "document"
	FormatKeyValue   SchemaFormat = "keyvalue"
	FormatColumnar   SchemaFormat = "columnar"
	FormatStream     SchemaFormat = "stream"
	FormatObject     SchemaFormat = "object"
	FormatGraph      SchemaFormat = "graph"
)

// Column describes a single field of a schema.
type Column struct {
	Name          string `json:"name"`
	NativeType    string `json:"native_data_type"`
	UniversalType string `json:"universal_type"`
	Nullable      bool   `json:"nullable"`
	PrimaryKey    bool   `json:"primary_key"`
	Default       any    `json:"default_value,omitempty"`
	MaxLength     int    `json:"max_length,omitempty"`
	Precision     int    `json:"precision,omitempty"`
	Scale         int    `json:"scale,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// Index describes a secondary index on a schema.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// Constraint describes a declarative constraint on a schema.
type Constraint struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Columns    []string `json:"columns"`
	Expression string   `json:"expression,omitempty"`
}

// Relationship links a schema to another schema by key columns.
type Relationship struct {
	Name          string   `json:"name"`
	TargetSchema  string   `json:"target_schema"`
	SourceColumns []string `json:"source_columns"`
	TargetColumns []string `json:"target_columns"`
}

// ChangeEntry records one entry of a schema change log.
type ChangeEntry struct {
	At   time.Time `json:"at"`
	By   string    `json:"by,omitempty"`
	Note string    `json:"note"`
}

// Schema describes the shape exposed by a System. SchemaVersion increases
// monotonically and is unique per (system_id, name).
type Schema struct {
	ID            string         `json:"id"`
	SystemID      string         `json:"system_id"`
	Name          string         `json:"name"`
	SchemaVersion int            `json:"schema_version"`
	Format        SchemaFormat   `json:"schema_format"`
	Columns       []Column       `json:"columns"`
	Indexes       []Index        `json:"indexes,omitempty"`
	Constraints   []Constraint   `json:"constraints,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Discovered    bool           `json:"discovered"`
	ChangeLog     []ChangeEntry  `json:"change_log,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Version       int            `json:"version"`
}

// Column returns the named column, or nil.
func (s *Schema) Column(name string) *Column {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// RuleKind enumerates mapping rule kinds.
type RuleKind string

const (
	RuleDirect      RuleKind = "direct"
	RuleTransform   RuleKind = "transform"
	RuleConcat      RuleKind = "concat"
	RuleSplit       RuleKind = "split"
	RuleLookup      RuleKind = "lookup"
	RuleFormula     RuleKind = "formula"
	RuleConditional RuleKind = "conditional"
	RuleAggregate   RuleKind = "aggregate"
)

// Aggregation enumerates group aggregation functions for N:1 mappings.
type Aggregation string

const (
	AggSum    Aggregation = "sum"
	AggAvg    Aggregation = "avg"
	AggCount  Aggregation = "count"
	AggMin    Aggregation = "min"
	AggMax    Aggregation = "max"
	AggFirst  Aggregation = "first"
	AggLast   Aggregation = "last"
	AggConcat Aggregation = "concat"
)

// MappingRule is one transformation step. SourceField and TargetField are
// dotted paths into the source and target record trees.
type MappingRule struct {
	SourceField  string         `json:"source_field,omitempty"`
	SourceFields []string       `json:"source_fields,omitempty"`
	TargetField  string         `json:"target_field"`
	Kind         RuleKind       `json:"kind"`
	Params       map[string]any `json:"params,omitempty"`
	Predicate    string         `json:"predicate,omitempty"`
	DefaultValue any            `json:"default_value,omitempty"`
	Required     bool           `json:"required"`
	Aggregation  Aggregation    `json:"aggregation,omitempty"`
	ExpandField  string         `json:"expand_field,omitempty"`
}

// Cardinality is the arity relationship between source and target records.
type Cardinality string

const (
	OneToOne   Cardinality = "1:1"
	OneToMany  Cardinality = "1:N"
	ManyToOne  Cardinality = "N:1"
	ManyToMany Cardinality = "N:N"
)

// ValidationRule declares a per-field constraint checked by the mapping
// validator and at preview time.
type ValidationRule struct {
	Required  bool     `json:"required,omitempty"`
	Type      string   `json:"type,omitempty"`
	Format    string   `json:"format,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
}

// ExecutionStats aggregates the outcome history of a mapping.
type ExecutionStats struct {
	TotalExecutions  int64      `json:"total_executions"`
	TotalRecords     int64      `json:"total_records"`
	TotalErrors      int64      `json:"total_errors"`
	AvgDurationMS    float64    `json:"avg_duration_ms"`
	SuccessRate      float64    `json:"success_rate"`
	LastExecutedAt   *time.Time `json:"last_executed_at,omitempty"`
	LastErrorMessage string     `json:"last_error_message,omitempty"`
}

// Mapping defines how records of a source schema become records of a
// target schema.
type Mapping struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	SourceSystemID  string                    `json:"source_system_id"`
	TargetSystemID  string                    `json:"target_system_id"`
	SourceSchemaID  string                    `json:"source_schema_id"`
	TargetSchemaID  string                    `json:"target_schema_id"`
	Cardinality     Cardinality               `json:"cardinality"`
	Rules           []MappingRule             `json:"rules"`
	Expression      string                    `json:"expression,omitempty"`
	ValidationRules map[string]ValidationRule `json:"validation_rules,omitempty"`
	MappingVersion  int                       `json:"mapping_version"`
	ParentID        string                    `json:"parent_id,omitempty"`
	Active          bool                      `json:"active"`
	Stats           ExecutionStats            `json:"execution_stats"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
	Version         int                       `json:"version"`
}

// ScheduleKind enumerates schedule variants.
type ScheduleKind string

const (
	ScheduleManual    ScheduleKind = "manual"
	ScheduleImmediate ScheduleKind = "immediate"
	ScheduleOnce      ScheduleKind = "once"
	ScheduleRecurring ScheduleKind = "recurring"
	ScheduleCron      ScheduleKind = "cron"
)

// IntervalUnit is the unit of a recurring schedule interval.
type IntervalUnit string

const (
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
	UnitDays    IntervalUnit = "days"
	UnitWeeks   IntervalUnit = "weeks"
	UnitMonths  IntervalUnit = "months"
)

// Schedule is the tagged union embedded in Job. Only the fields of the
// active Kind are meaningful.
type Schedule struct {
	Kind          ScheduleKind `json:"kind"`
	FireAt        *time.Time   `json:"fire_at,omitempty"`
	Start         *time.Time   `json:"start,omitempty"`
	IntervalCount int          `json:"interval_count,omitempty"`
	IntervalUnit  IntervalUnit `json:"interval_unit,omitempty"`
	CronExpr      string       `json:"cron_expr,omitempty"`
	Timezone      string       `json:"timezone,omitempty"`
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobInactive  JobStatus = "inactive"
	JobScheduled JobStatus = "scheduled"
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobConfig carries retry/timeout knobs for a job.
type JobConfig struct {
	TimeoutSeconds    *int `json:"timeout_seconds,omitempty"`
	MaxRetries        int  `json:"max_retries"`
	RetryDelaySeconds int  `json:"retry_delay_seconds"`
	ContinueOnError   bool `json:"continue_on_error"`
}

// Job binds a mapping to a schedule under priority and dependency
// constraints. Priority is in [1..10], higher admitted first.
type Job struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	MappingID       string     `json:"mapping_id"`
	Schedule        Schedule   `json:"schedule"`
	Priority        int        `json:"priority"`
	Active          bool       `json:"active"`
	Status          JobStatus  `json:"status"`
	Config          JobConfig  `json:"configuration"`
	Tags            []string   `json:"tags,omitempty"`
	Dependencies    []string   `json:"dependencies,omitempty"`
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Version         int        `json:"version"`
}

// ExecutionStatus enumerates execution states. The last four are terminal.
type ExecutionStatus string

const (
	ExecQueued    ExecutionStatus = "queued"
	ExecRunning   ExecutionStatus = "running"
	ExecCompleted ExecutionStatus = "completed"
	ExecFailed    ExecutionStatus = "failed"
	ExecCancelled ExecutionStatus = "cancelled"
	ExecTimeout   ExecutionStatus = "timeout"
)

// Terminal reports whether s is a terminal execution status.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecCompleted, ExecFailed, ExecCancelled, ExecTimeout:
		return true
	}
	return false
}

// Trigger enumerates how an execution came to be enqueued.
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerScheduled  Trigger = "scheduled"
	TriggerDependency Trigger = "dependency"
	TriggerRetry      Trigger = "retry"
)

// Checkpoint is a tagged event appended to an execution trace at phase
// boundaries.
type Checkpoint struct {
	Type    string         `json:"type"`
	Message string         `json:"message,omitempty"`
	TS      time.Time      `json:"ts"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ExecutionError captures the terminal error of a failed execution.
type ExecutionError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// JobExecution records a single run of a job. Once terminal the record is
// immutable.
type JobExecution struct {
	ID                string             `json:"id"`
	ExecutionID       string             `json:"execution_id"`
	JobID             string             `json:"job_id"`
	Status            ExecutionStatus    `json:"status"`
	Trigger           Trigger            `json:"trigger"`
	TriggeredBy       string             `json:"triggered_by,omitempty"`
	ScheduledAt       *time.Time         `json:"scheduled_at,omitempty"`
	QueuedAt          time.Time          `json:"queued_at"`
	StartedAt         *time.Time         `json:"started_at,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	DurationMS        int64              `json:"duration_ms"`
	Parameters        map[string]any     `json:"parameters,omitempty"`
	SourceRecords     int64              `json:"source_records"`
	TargetRecords     int64              `json:"target_records"`
	ErrorRecords      int64              `json:"error_records"`
	RetryCount        int                `json:"retry_count"`
	ParentExecutionID string             `json:"parent_execution_id,omitempty"`
	Priority          int                `json:"priority"`
	Metrics           map[string]float64 `json:"metrics,omitempty"`
	Error             *ExecutionError    `json:"error,omitempty"`
	Checkpoints       []Checkpoint       `json:"checkpoints,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
	Version           int                `json:"version"`
}

// Severity levels for audit events and alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AuditResult enumerates outcomes of audited actions.
type AuditResult string

const (
	ResultSuccess AuditResult = "success"
	ResultFailure AuditResult = "failure"
	ResultBlocked AuditResult = "blocked"
	ResultAlert   AuditResult = "alert"
)

// Actor identifies who performed an audited action.
type Actor struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Resource identifies what an audited action touched.
type Resource struct {
	Kind string `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`
}

// AuditEvent is an immutable structured record of an action. Seq breaks
// wall-clock ties to preserve causal order per actor.
type AuditEvent struct {
	ID        string         `json:"id"`
	TS        time.Time      `json:"ts"`
	Seq       uint64         `json:"seq"`
	EventType string         `json:"event_type"`
	Actor     Actor          `json:"actor"`
	Action    string         `json:"action,omitempty"`
	Resource  Resource       `json:"resource"`
	Result    AuditResult    `json:"result"`
	Severity  Severity       `json:"severity"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AlertCondition filters events and declares the firing threshold.
type AlertCondition struct {
	EventTypes   []string `json:"event_types,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	Actions      []string `json:"actions,omitempty"`
	ResourceKind string   `json:"resource_kind,omitempty"`
	Severities   []string `json:"severities,omitempty"`
	Threshold    int      `json:"threshold"`
	TimeWindowMS int64    `json:"time_window_ms"`
	GroupBy      []string `json:"group_by,omitempty"`
}

// AlertAction names a dispatch sink for a fired alert.
type AlertAction struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
}

// AlertRule drives the audit manager's alerting.
type AlertRule struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Severity           Severity       `json:"severity"`
	Condition          AlertCondition `json:"condition"`
	Actions            []AlertAction  `json:"actions,omitempty"`
	Enabled            bool           `json:"enabled"`
	MaxAlertsPerWindow int            `json:"max_alerts_per_window,omitempty"`
	CooldownMS         int64          `json:"cooldown_ms,omitempty"`
}

// Alert is materialised when a rule fires for a group key.
type Alert struct {
	ID          string     `json:"id"`
	RuleID      string     `json:"rule_id"`
	RuleName    string     `json:"rule_name,omitempty"`
	Severity    Severity   `json:"severity"`
	GroupKey    string     `json:"group_key"`
	Count       int        `json:"count"`
	TriggeredAt time.Time  `json:"triggered_at"`
	Event       AuditEvent `json:"originating_event"`
}
