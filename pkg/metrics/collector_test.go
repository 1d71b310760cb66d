package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nineking424/nificdc-sub002/pkg/storage"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

func TestCollectorOwnsJobStatusGauge(t *testing.T) {
	st, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.CreateSystem(&types.System{ID: "sys-1", Name: "sys", Type: types.SystemPostgres, Active: true}))
	require.NoError(t, st.CreateSchema(&types.Schema{ID: "sch-1", SystemID: "sys-1", Name: "s", SchemaVersion: 1}))
	require.NoError(t, st.CreateMapping(&types.Mapping{
		ID: "map-1", Name: "m",
		SourceSystemID: "sys-1", TargetSystemID: "sys-1",
		SourceSchemaID: "sch-1", TargetSchemaID: "sch-1",
		Cardinality: types.OneToOne,
		Rules:       []types.MappingRule{{SourceField: "x", TargetField: "x", Kind: types.RuleDirect}},
	}))

	addJob := func(id string, status types.JobStatus) {
		require.NoError(t, st.CreateJob(&types.Job{
			ID: id, Name: id, MappingID: "map-1",
			Schedule: types.Schedule{Kind: types.ScheduleManual},
			Priority: 5, Active: true, Status: status,
		}))
	}
	addJob("j1", types.JobScheduled)
	addJob("j2", types.JobScheduled)
	addJob("j3", types.JobFailed)

	c := NewCollector(st)
	c.collect()

	assert.Equal(t, 2.0, testutil.ToFloat64(JobsTotal.WithLabelValues("scheduled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(JobsTotal.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(JobsTotal.WithLabelValues("running")))

	// A count that drops to zero resets instead of going stale.
	require.NoError(t, st.DeleteJob("j3"))
	c.collect()
	assert.Equal(t, 0.0, testutil.ToFloat64(JobsTotal.WithLabelValues("failed")))
}
