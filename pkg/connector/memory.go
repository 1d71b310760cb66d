package connector

import (
	"context"
	"sync"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Memory is an in-process connector backed by slices. It serves unit
// and integration tests and doubles as the adapter for ad-hoc preview
// runs, where the source batch arrives in the request body.
//
// FailConnect, FailRead and FailWrite inject errors; FailCount bounds
// how many calls fail before the connector recovers, with 0 meaning
// always.
type Memory struct {
	mu      sync.Mutex
	Batches [][]record.Record
	Schema  *types.Schema

	FailConnect error
	FailRead    error
	FailWrite   error
	FailCount   int

	failures  int
	committed [][]record.Record
	aborted   bool
}

var _ Connector = (*Memory)(nil)

// NewMemory creates a memory connector serving the given batches.
func NewMemory(batches ...[]record.Record) *Memory {
	return &Memory{Batches: batches}
}

func (m *Memory) fail(inject error) error {
	if inject == nil {
		return nil
	}
	if m.FailCount > 0 && m.failures >= m.FailCount {
		return nil
	}
	m.failures++
	return inject
}

func (m *Memory) TestConnection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail(m.FailConnect)
}

func (m *Memory) DiscoverSchema(ctx context.Context, name string) (*types.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(m.FailConnect); err != nil {
		return nil, err
	}
	if m.Schema != nil {
		return m.Schema, nil
	}
	return nil, errdefs.New(errdefs.KindConnectorSchema, "schema %q not found", name)
}

func (m *Memory) OpenRead(ctx context.Context, schema *types.Schema) (Iterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(m.FailRead); err != nil {
		return nil, err
	}
	return &memoryIterator{parent: m, batches: m.Batches}, nil
}

func (m *Memory) OpenWrite(ctx context.Context, schema *types.Schema) (Sink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(m.FailWrite); err != nil {
		return nil, err
	}
	return &memorySink{parent: m}, nil
}

// Committed returns every batch committed through sinks of this
// connector.
func (m *Memory) Committed() [][]record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]record.Record, len(m.committed))
	copy(out, m.committed)
	return out
}

// Aborted reports whether any sink of this connector was aborted.
func (m *Memory) Aborted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted
}

type memoryIterator struct {
	parent  *Memory
	batches [][]record.Record
	pos     int
}

func (it *memoryIterator) Next(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errdefs.Wrap(errdefs.KindCancelled, err, "read cancelled")
	}
	it.parent.mu.Lock()
	err := it.parent.fail(it.parent.FailRead)
	it.parent.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if it.pos >= len(it.batches) {
		return nil, nil
	}
	batch := it.batches[it.pos]
	it.pos++
	return batch, nil
}

func (it *memoryIterator) Close() error { return nil }

type memorySink struct {
	parent  *Memory
	pending [][]record.Record
	closed  bool
}

func (s *memorySink) Write(ctx context.Context, batch []record.Record) error {
	if s.closed {
		return errdefs.New(errdefs.KindConnectorIO, "write on closed sink")
	}
	s.parent.mu.Lock()
	err := s.parent.fail(s.parent.FailWrite)
	s.parent.mu.Unlock()
	if err != nil {
		return err
	}
	s.pending = append(s.pending, batch)
	return nil
}

func (s *memorySink) Commit(ctx context.Context) error {
	if s.closed {
		return errdefs.New(errdefs.KindConnectorIO, "commit on closed sink")
	}
	s.closed = true
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.parent.committed = append(s.parent.committed, s.pending...)
	return nil
}

func (s *memorySink) Abort(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = nil
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.parent.aborted = true
	return nil
}
