package metrics

import (
	"time"

	"github.com/nineking424/nificdc-sub002/pkg/storage"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Collector periodically samples gauge-style metrics from the store.
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// jobStatuses lists every status the gauge reports, so counts that
// drop to zero reset instead of going stale.
var jobStatuses = []types.JobStatus{
	types.JobInactive,
	types.JobScheduled,
	types.JobRunning,
	types.JobPaused,
	types.JobCompleted,
	types.JobFailed,
}

func (c *Collector) collect() {
	jobs, err := c.store.ListJobs()
	if err != nil {
		return
	}

	counts := make(map[types.JobStatus]int)
	for _, job := range jobs {
		counts[job.Status]++
	}
	for _, status := range jobStatuses {
		JobsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
