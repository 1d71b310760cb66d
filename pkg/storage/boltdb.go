package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSystems      = []byte("systems")
	bucketSchemas      = []byte("schemas")
	bucketMappings     = []byte("mappings")
	bucketJobs         = []byte("jobs")
	bucketExecutions   = []byte("executions")
	bucketExecIndex    = []byte("execution_ids") // execution_id → id, uniqueness index
	bucketAudit        = []byte("audit_events")  // big-endian sequence → event
	bucketAlertRules   = []byte("alert_rules")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db    *bolt.DB
	hooks Hooks
}

// NewBoltStore creates a BoltDB-backed store at <dataDir>/nificdc.db.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "nificdc.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorageUnavailable, err, "failed to open database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketSystems,
			bucketSchemas,
			bucketMappings,
			bucketJobs,
			bucketExecutions,
			bucketExecIndex,
			bucketAudit,
			bucketAlertRules,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errdefs.Wrap(errdefs.KindStorageUnavailable, err, "failed to initialise buckets")
	}

	return &BoltStore{db: db}, nil
}

// SetHooks wires the derived-field hooks. Must be called before the
// scheduler starts mutating jobs.
func (s *BoltStore) SetHooks(hooks Hooks) {
	s.hooks = hooks
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// update runs a write transaction, classifying low-level bolt failures as
// storage_unavailable while passing typed errors through untouched.
func (s *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	err := s.db.Update(fn)
	return classify(err)
}

func (s *BoltStore) view(fn func(tx *bolt.Tx) error) error {
	err := s.db.View(fn)
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var typed *errdefs.Error
	if errors.As(err, &typed) {
		return err
	}
	return errdefs.Wrap(errdefs.KindStorageUnavailable, err, "storage operation failed")
}

func put(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

// --- Systems ---

func (s *BoltStore) CreateSystem(sys *types.System) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSystems)
		if b.Get([]byte(sys.ID)) != nil {
			return errdefs.Validation("system already exists: %s", sys.ID)
		}
		if existing, _ := findSystemByName(b, sys.Name); existing != nil {
			return errdefs.Validation("system name already in use: %s", sys.Name)
		}
		now := time.Now().UTC()
		sys.CreatedAt = now
		sys.UpdatedAt = now
		sys.Version = 1
		return put(b, sys.ID, sys)
	})
}

func (s *BoltStore) GetSystem(id string) (*types.System, error) {
	var sys types.System
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSystems).Get([]byte(id))
		if data == nil {
			return errdefs.NotFound("system", id)
		}
		return json.Unmarshal(data, &sys)
	})
	if err != nil {
		return nil, err
	}
	return &sys, nil
}

func (s *BoltStore) GetSystemByName(name string) (*types.System, error) {
	var found *types.System
	err := s.view(func(tx *bolt.Tx) error {
		var err error
		found, err = findSystemByName(tx.Bucket(bucketSystems), name)
		if err != nil {
			return err
		}
		if found == nil {
			return errdefs.NotFound("system", name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func findSystemByName(b *bolt.Bucket, name string) (*types.System, error) {
	var found *types.System
	err := b.ForEach(func(k, v []byte) error {
		var sys types.System
		if err := json.Unmarshal(v, &sys); err != nil {
			return err
		}
		if sys.Name == name {
			found = &sys
		}
		return nil
	})
	return found, err
}

func (s *BoltStore) ListSystems() ([]*types.System, error) {
	var systems []*types.System
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSystems).ForEach(func(k, v []byte) error {
			var sys types.System
			if err := json.Unmarshal(v, &sys); err != nil {
				return err
			}
			systems = append(systems, &sys)
			return nil
		})
	})
	return systems, err
}

func (s *BoltStore) UpdateSystem(sys *types.System) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSystems)
		current, err := loadSystem(b, sys.ID)
		if err != nil {
			return err
		}
		if current.Version != sys.Version {
			return errdefs.Conflict("system", sys.ID, sys.Version, current.Version)
		}
		sys.CreatedAt = current.CreatedAt
		sys.UpdatedAt = time.Now().UTC()
		sys.Version = current.Version + 1
		return put(b, sys.ID, sys)
	})
}

func (s *BoltStore) DeleteSystem(id string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSystems)
		if b.Get([]byte(id)) == nil {
			return errdefs.NotFound("system", id)
		}
		// Referential integrity: schemas must be removed first.
		var referenced bool
		err := tx.Bucket(bucketSchemas).ForEach(func(k, v []byte) error {
			var sc types.Schema
			if err := json.Unmarshal(v, &sc); err != nil {
				return err
			}
			if sc.SystemID == id {
				referenced = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if referenced {
			return errdefs.Validation("system %s still has schemas", id)
		}
		return b.Delete([]byte(id))
	})
}

func loadSystem(b *bolt.Bucket, id string) (*types.System, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, errdefs.NotFound("system", id)
	}
	var sys types.System
	if err := json.Unmarshal(data, &sys); err != nil {
		return nil, err
	}
	return &sys, nil
}

// --- Schemas ---

func (s *BoltStore) CreateSchema(schema *types.Schema) error {
	return s.update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketSystems).Get([]byte(schema.SystemID)) == nil {
			return errdefs.NotFound("system", schema.SystemID)
		}
		b := tx.Bucket(bucketSchemas)
		if b.Get([]byte(schema.ID)) != nil {
			return errdefs.Validation("schema already exists: %s", schema.ID)
		}
		// Uniqueness of (system_id, name, schema_version).
		var dup bool
		err := b.ForEach(func(k, v []byte) error {
			var sc types.Schema
			if err := json.Unmarshal(v, &sc); err != nil {
				return err
			}
			if sc.SystemID == schema.SystemID && sc.Name == schema.Name && sc.SchemaVersion == schema.SchemaVersion {
				dup = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if dup {
			return errdefs.Validation("schema %s version %d already exists for system %s",
				schema.Name, schema.SchemaVersion, schema.SystemID)
		}
		if err := validateColumns(schema); err != nil {
			return err
		}
		now := time.Now().UTC()
		schema.CreatedAt = now
		schema.UpdatedAt = now
		schema.Version = 1
		return put(b, schema.ID, schema)
	})
}

func validateColumns(schema *types.Schema) error {
	seen := make(map[string]bool, len(schema.Columns))
	for _, col := range schema.Columns {
		if seen[col.Name] {
			return errdefs.Validation("duplicate column name: %s", col.Name)
		}
		seen[col.Name] = true
		if reservedWords[col.Name] {
			return errdefs.Validation("column name is a reserved word: %s", col.Name)
		}
	}
	return nil
}

// reservedWords are SQL keywords rejected as column names.
var reservedWords = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"from": true, "where": true, "table": true, "drop": true,
	"create": true, "alter": true, "index": true, "join": true,
	"union": true, "group": true, "order": true, "having": true,
}

func (s *BoltStore) GetSchema(id string) (*types.Schema, error) {
	var schema types.Schema
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSchemas).Get([]byte(id))
		if data == nil {
			return errdefs.NotFound("schema", id)
		}
		return json.Unmarshal(data, &schema)
	})
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

func (s *BoltStore) ListSchemas() ([]*types.Schema, error) {
	var schemas []*types.Schema
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSchemas).ForEach(func(k, v []byte) error {
			var sc types.Schema
			if err := json.Unmarshal(v, &sc); err != nil {
				return err
			}
			schemas = append(schemas, &sc)
			return nil
		})
	})
	return schemas, err
}

func (s *BoltStore) ListSchemasBySystem(systemID string) ([]*types.Schema, error) {
	all, err := s.ListSchemas()
	if err != nil {
		return nil, err
	}
	var filtered []*types.Schema
	for _, sc := range all {
		if sc.SystemID == systemID {
			filtered = append(filtered, sc)
		}
	}
	return filtered, nil
}

func (s *BoltStore) UpdateSchema(schema *types.Schema) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSchemas)
		data := b.Get([]byte(schema.ID))
		if data == nil {
			return errdefs.NotFound("schema", schema.ID)
		}
		var current types.Schema
		if err := json.Unmarshal(data, &current); err != nil {
			return err
		}
		if current.Version != schema.Version {
			return errdefs.Conflict("schema", schema.ID, schema.Version, current.Version)
		}
		if err := validateColumns(schema); err != nil {
			return err
		}
		schema.CreatedAt = current.CreatedAt
		schema.UpdatedAt = time.Now().UTC()
		schema.Version = current.Version + 1
		return put(b, schema.ID, schema)
	})
}

func (s *BoltStore) DeleteSchema(id string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSchemas)
		if b.Get([]byte(id)) == nil {
			return errdefs.NotFound("schema", id)
		}
		return b.Delete([]byte(id))
	})
}

// --- Mappings ---

func (s *BoltStore) CreateMapping(m *types.Mapping) error {
	if s.hooks.ValidateMapping != nil {
		if err := s.hooks.ValidateMapping(m); err != nil {
			return err
		}
	}
	return s.update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketSchemas).Get([]byte(m.SourceSchemaID)) == nil {
			return errdefs.NotFound("schema", m.SourceSchemaID)
		}
		if tx.Bucket(bucketSchemas).Get([]byte(m.TargetSchemaID)) == nil {
			return errdefs.NotFound("schema", m.TargetSchemaID)
		}
		b := tx.Bucket(bucketMappings)
		if b.Get([]byte(m.ID)) != nil {
			return errdefs.Validation("mapping already exists: %s", m.ID)
		}
		now := time.Now().UTC()
		m.CreatedAt = now
		m.UpdatedAt = now
		m.Version = 1
		return put(b, m.ID, m)
	})
}

func (s *BoltStore) GetMapping(id string) (*types.Mapping, error) {
	var m types.Mapping
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMappings).Get([]byte(id))
		if data == nil {
			return errdefs.NotFound("mapping", id)
		}
		return json.Unmarshal(data, &m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *BoltStore) ListMappings() ([]*types.Mapping, error) {
	var mappings []*types.Mapping
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMappings).ForEach(func(k, v []byte) error {
			var m types.Mapping
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			mappings = append(mappings, &m)
			return nil
		})
	})
	return mappings, err
}

func (s *BoltStore) UpdateMapping(m *types.Mapping) error {
	if s.hooks.ValidateMapping != nil {
		if err := s.hooks.ValidateMapping(m); err != nil {
			return err
		}
	}
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMappings)
		data := b.Get([]byte(m.ID))
		if data == nil {
			return errdefs.NotFound("mapping", m.ID)
		}
		var current types.Mapping
		if err := json.Unmarshal(data, &current); err != nil {
			return err
		}
		if current.Version != m.Version {
			return errdefs.Conflict("mapping", m.ID, m.Version, current.Version)
		}
		m.CreatedAt = current.CreatedAt
		m.UpdatedAt = time.Now().UTC()
		m.Version = current.Version + 1
		return put(b, m.ID, m)
	})
}

func (s *BoltStore) DeleteMapping(id string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMappings)
		if b.Get([]byte(id)) == nil {
			return errdefs.NotFound("mapping", id)
		}
		var referenced bool
		err := tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			if job.MappingID == id {
				referenced = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if referenced {
			return errdefs.Validation("mapping %s still has jobs", id)
		}
		return b.Delete([]byte(id))
	})
}

// --- Jobs ---

func (s *BoltStore) CreateJob(job *types.Job) error {
	if err := validateJob(job); err != nil {
		return err
	}
	if s.hooks.NextExecutionAt != nil {
		next, err := s.hooks.NextExecutionAt(job, time.Now().UTC())
		if err != nil {
			return err
		}
		job.NextExecutionAt = next
	}
	return s.update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketMappings).Get([]byte(job.MappingID)) == nil {
			return errdefs.NotFound("mapping", job.MappingID)
		}
		b := tx.Bucket(bucketJobs)
		if b.Get([]byte(job.ID)) != nil {
			return errdefs.Validation("job already exists: %s", job.ID)
		}
		now := time.Now().UTC()
		job.CreatedAt = now
		job.UpdatedAt = now
		job.Version = 1
		return put(b, job.ID, job)
	})
}

func validateJob(job *types.Job) error {
	if job.Priority < 1 || job.Priority > 10 {
		return errdefs.Validation("job priority must be in [1..10], got %d", job.Priority)
	}
	if job.Config.MaxRetries < 0 {
		return errdefs.Validation("max_retries cannot be negative")
	}
	return nil
}

func (s *BoltStore) GetJob(id string) (*types.Job, error) {
	var job types.Job
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketJobs).Get([]byte(id))
		if data == nil {
			return errdefs.NotFound("job", id)
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *BoltStore) ListJobs() ([]*types.Job, error) {
	var jobs []*types.Job
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	return jobs, err
}

func (s *BoltStore) UpdateJob(job *types.Job) error {
	if err := validateJob(job); err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(job.ID))
		if data == nil {
			return errdefs.NotFound("job", job.ID)
		}
		var current types.Job
		if err := json.Unmarshal(data, &current); err != nil {
			return err
		}
		if current.Version != job.Version {
			return errdefs.Conflict("job", job.ID, job.Version, current.Version)
		}
		scheduleChanged := current.Active != job.Active ||
			!scheduleEqual(current.Schedule, job.Schedule)
		if scheduleChanged && s.hooks.NextExecutionAt != nil {
			next, err := s.hooks.NextExecutionAt(job, time.Now().UTC())
			if err != nil {
				return err
			}
			job.NextExecutionAt = next
		}
		job.CreatedAt = current.CreatedAt
		job.UpdatedAt = time.Now().UTC()
		job.Version = current.Version + 1
		return put(b, job.ID, job)
	})
}

func scheduleEqual(a, b types.Schedule) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

func (s *BoltStore) DeleteJob(id string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		if b.Get([]byte(id)) == nil {
			return errdefs.NotFound("job", id)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) ListExecutableJobs(now time.Time) ([]*types.Job, error) {
	jobs, err := s.ListJobs()
	if err != nil {
		return nil, err
	}
	var ready []*types.Job
	for _, job := range jobs {
		if !job.Active || job.Status != types.JobScheduled {
			continue
		}
		if job.NextExecutionAt == nil || job.NextExecutionAt.After(now) {
			continue
		}
		ready = append(ready, job)
	}
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].NextExecutionAt.Before(*ready[j].NextExecutionAt)
	})
	return ready, nil
}

// --- Executions ---

func (s *BoltStore) CreateExecution(ex *types.JobExecution) error {
	return s.update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketJobs).Get([]byte(ex.JobID)) == nil {
			return errdefs.NotFound("job", ex.JobID)
		}
		idx := tx.Bucket(bucketExecIndex)
		if idx.Get([]byte(ex.ExecutionID)) != nil {
			return errdefs.Validation("execution_id already exists: %s", ex.ExecutionID)
		}
		b := tx.Bucket(bucketExecutions)
		if b.Get([]byte(ex.ID)) != nil {
			return errdefs.Validation("execution already exists: %s", ex.ID)
		}
		ex.Version = 1
		if err := put(b, ex.ID, ex); err != nil {
			return err
		}
		return idx.Put([]byte(ex.ExecutionID), []byte(ex.ID))
	})
}

func (s *BoltStore) GetExecution(id string) (*types.JobExecution, error) {
	var ex types.JobExecution
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketExecutions).Get([]byte(id))
		if data == nil {
			return errdefs.NotFound("execution", id)
		}
		return json.Unmarshal(data, &ex)
	})
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (s *BoltStore) GetExecutionByExecutionID(executionID string) (*types.JobExecution, error) {
	var id string
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketExecIndex).Get([]byte(executionID))
		if data == nil {
			return errdefs.NotFound("execution", executionID)
		}
		id = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetExecution(id)
}

func (s *BoltStore) ListExecutions(filter ExecutionFilter) ([]*types.JobExecution, error) {
	var all []*types.JobExecution
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExecutions).ForEach(func(k, v []byte) error {
			var ex types.JobExecution
			if err := json.Unmarshal(v, &ex); err != nil {
				return err
			}
			if filter.JobID != "" && ex.JobID != filter.JobID {
				return nil
			}
			if filter.Status != "" && ex.Status != filter.Status {
				return nil
			}
			all = append(all, &ex)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].QueuedAt.After(all[j].QueuedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return nil, nil
		}
		all = all[filter.Offset:]
	}
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (s *BoltStore) ListExecutionsByJob(jobID string) ([]*types.JobExecution, error) {
	return s.ListExecutions(ExecutionFilter{JobID: jobID})
}

func (s *BoltStore) LatestExecutionByJob(jobID string) (*types.JobExecution, error) {
	execs, err := s.ListExecutionsByJob(jobID)
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, errdefs.NotFound("execution for job", jobID)
	}
	return execs[0], nil
}

func (s *BoltStore) UpdateExecution(ex *types.JobExecution) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExecutions)
		data := b.Get([]byte(ex.ID))
		if data == nil {
			return errdefs.NotFound("execution", ex.ID)
		}
		var current types.JobExecution
		if err := json.Unmarshal(data, &current); err != nil {
			return err
		}
		if current.Status.Terminal() {
			return errdefs.Validation("execution %s is terminal and immutable", ex.ID)
		}
		if current.Version != ex.Version {
			return errdefs.Conflict("execution", ex.ID, ex.Version, current.Version)
		}
		ex.Version = current.Version + 1
		return put(b, ex.ID, ex)
	})
}

// --- Audit ---

func (s *BoltStore) AppendAuditEvents(events []*types.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		for _, ev := range events {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) ListAuditEvents(filter AuditFilter) ([]*types.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var events []*types.AuditEvent
	skipped := 0
	err := s.view(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		// Newest first: sequence keys are insertion-ordered.
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var ev types.AuditEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			if !matchesAudit(&ev, filter) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			events = append(events, &ev)
			if len(events) >= limit {
				return nil
			}
		}
		return nil
	})
	return events, err
}

func matchesAudit(ev *types.AuditEvent, f AuditFilter) bool {
	if f.EventType != "" && ev.EventType != f.EventType {
		return false
	}
	if f.UserID != "" && ev.Actor.UserID != f.UserID {
		return false
	}
	if f.Resource != "" && ev.Resource.Kind != f.Resource {
		return false
	}
	if f.Severity != "" && ev.Severity != f.Severity {
		return false
	}
	if !f.Start.IsZero() && ev.TS.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && ev.TS.After(f.End) {
		return false
	}
	return true
}

// --- Alert rules ---

func (s *BoltStore) CreateAlertRule(rule *types.AlertRule) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAlertRules)
		if b.Get([]byte(rule.ID)) != nil {
			return errdefs.Validation("alert rule already exists: %s", rule.ID)
		}
		return put(b, rule.ID, rule)
	})
}

func (s *BoltStore) GetAlertRule(id string) (*types.AlertRule, error) {
	var rule types.AlertRule
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAlertRules).Get([]byte(id))
		if data == nil {
			return errdefs.NotFound("alert rule", id)
		}
		return json.Unmarshal(data, &rule)
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *BoltStore) ListAlertRules() ([]*types.AlertRule, error) {
	var rules []*types.AlertRule
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAlertRules).ForEach(func(k, v []byte) error {
			var rule types.AlertRule
			if err := json.Unmarshal(v, &rule); err != nil {
				return err
			}
			rules = append(rules, &rule)
			return nil
		})
	})
	return rules, err
}

func (s *BoltStore) UpdateAlertRule(rule *types.AlertRule) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAlertRules)
		if b.Get([]byte(rule.ID)) == nil {
			return errdefs.NotFound("alert rule", rule.ID)
		}
		return put(b, rule.ID, rule)
	})
}

func (s *BoltStore) DeleteAlertRule(id string) error {
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAlertRules).Delete([]byte(id))
	})
}
