package runner

import (
	"container/heap"

	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// item pairs a queued execution with the priority of its job at enqueue
// time. index is maintained by the heap for mid-queue removal.
type item struct {
	ex       *types.JobExecution
	priority int
	index    int
}

// execQueue orders executions by priority desc, then queued_at asc.
type execQueue []*item

func (q execQueue) Len() int { return len(q) }

func (q execQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].ex.QueuedAt.Before(q[j].ex.QueuedAt)
}

func (q execQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *execQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *execQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// has reports whether an execution is already queued.
func (q execQueue) has(executionID string) bool {
	for _, it := range q {
		if it.ex.ExecutionID == executionID {
			return true
		}
	}
	return false
}

// remove takes the item for the given execution ID out of the queue.
func (q *execQueue) remove(executionID string) *item {
	for _, it := range *q {
		if it.ex.ExecutionID == executionID {
			heap.Remove(q, it.index)
			return it
		}
	}
	return nil
}
