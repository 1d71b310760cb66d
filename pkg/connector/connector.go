package connector

import (
	"context"
	"sync"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Iterator yields source record batches. A nil batch with a nil error
// signals exhaustion.
type Iterator interface {
	Next(ctx context.Context) ([]record.Record, error)
	Close() error
}

// Sink receives target record batches. Commit makes everything written
// so far durable; Abort discards it. After either call the sink is
// closed.
type Sink interface {
	Write(ctx context.Context, batch []record.Record) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Connector is the capability set every endpoint adapter implements.
type Connector interface {
	TestConnection(ctx context.Context) error
	DiscoverSchema(ctx context.Context, name string) (*types.Schema, error)
	OpenRead(ctx context.Context, schema *types.Schema) (Iterator, error)
	OpenWrite(ctx context.Context, schema *types.Schema) (Sink, error)
}

// Factory builds a connector for a system. The connection info map is
// the decrypted form of System.ConnectionInfo.
type Factory func(system *types.System, connInfo map[string]any) (Connector, error)

// Registry maps system types to connector factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[types.SystemType]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[types.SystemType]Factory)}
}

// Register installs a factory for a system type, replacing any
// previous one.
func (r *Registry) Register(t types.SystemType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// Open builds a connector for the system, or a validation error when
// no factory covers its type.
func (r *Registry) Open(system *types.System, connInfo map[string]any) (Connector, error) {
	r.mu.RLock()
	f, ok := r.factories[system.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, errdefs.Validation("no connector registered for system type %q", system.Type)
	}
	return f(system, connInfo)
}

// Types lists the registered system types.
func (r *Registry) Types() []types.SystemType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.SystemType, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	return out
}
