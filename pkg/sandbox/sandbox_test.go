package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSimpleExpression(t *testing.T) {
	e := New(Limits{})
	v, err := e.Evaluate(context.Background(), `price * quantity`, map[string]any{
		"price":    10.5,
		"quantity": 3,
	})
	require.NoError(t, err)
	assert.InDelta(t, 31.5, v, 0.001)
}

func TestEvaluateStringOps(t *testing.T) {
	e := New(Limits{})
	v, err := e.Evaluate(context.Background(), `upper(first) + " " + upper(last)`, map[string]any{
		"first": "ada",
		"last":  "lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, "ADA LOVELACE", v)
}

func TestDeniedPatterns(t *testing.T) {
	e := New(Limits{})
	denied := []string{
		`os.remove("x")`,
		`eval("1+1")`,
		`require("fs")`,
		`import("net")`,
		`process.env`,
		`while(true) {}`,
		`for(;;) {}`,
		`http.get("a")`,
	}
	for _, src := range denied {
		err := e.Check(src)
		assert.Equal(t, errdefs.KindSandboxDenied, errdefs.KindOf(err), "expected denial for %q", src)
	}
}

func TestSyntaxError(t *testing.T) {
	e := New(Limits{})
	err := e.Check(`a +* b`)
	assert.Equal(t, errdefs.KindSandboxSyntax, errdefs.KindOf(err))

	err = e.Check("")
	assert.Equal(t, errdefs.KindSandboxSyntax, errdefs.KindOf(err))
}

func TestComplexityCeilingBoundary(t *testing.T) {
	e := New(Limits{MaxComplexity: 2})

	// Two conditional nodes: exactly at the ceiling, accepted.
	atCeiling := `true ? 1 : (false ? 2 : 3)`
	assert.NoError(t, e.Check(atCeiling))

	// Three conditional nodes: ceiling+1, rejected.
	overCeiling := `true ? 1 : (false ? 2 : (true ? 3 : 4))`
	err := e.Check(overCeiling)
	assert.Equal(t, errdefs.KindSandboxComplexity, errdefs.KindOf(err))
}

func TestBindingMissIsRuntimeError(t *testing.T) {
	e := New(Limits{})
	_, err := e.Evaluate(context.Background(), `missing + 1`, map[string]any{"present": 1})
	assert.Equal(t, errdefs.KindSandboxRuntime, errdefs.KindOf(err))
}

func TestBindingsAreImmutable(t *testing.T) {
	e := New(Limits{})
	rec := map[string]any{"items": []any{int64(1), int64(2)}}

	// map() builds new values; the original binding must be untouched.
	v, err := e.Evaluate(context.Background(), `map(items, # * 2)`, rec)
	require.NoError(t, err)
	assert.Equal(t, []any{2, 4}, toIntSlice(v))
	assert.Equal(t, []any{int64(1), int64(2)}, rec["items"])
}

func toIntSlice(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]any, len(arr))
	for i, e := range arr {
		switch t := e.(type) {
		case int:
			out[i] = t
		case int64:
			out[i] = int(t)
		case float64:
			out[i] = int(t)
		default:
			out[i] = e
		}
	}
	return out
}

func TestFrozenNowBinding(t *testing.T) {
	e := New(Limits{})
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	v, err := e.Evaluate(context.Background(), `now`, map[string]any{"now": frozen})
	require.NoError(t, err)
	assert.Equal(t, frozen, v)
}

func TestCancellation(t *testing.T) {
	e := New(Limits{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Evaluate(ctx, `1 + 1`, nil)
	assert.Equal(t, errdefs.KindCancelled, errdefs.KindOf(err))
}

func TestTimeoutStopsEvaluation(t *testing.T) {
	e := New(Limits{MaxDuration: 50 * time.Millisecond})
	start := time.Now()
	_, err := e.Evaluate(context.Background(), `len(filter(1..5000000, # % 3 == 0))`, nil)
	assert.Equal(t, errdefs.KindSandboxTimeout, errdefs.KindOf(err))
	// The VM observes the deadline between operations, so the call
	// returns near the budget instead of after the full scan.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMemoryBudget(t *testing.T) {
	e := New(Limits{MaxMemory: 64})
	_, err := e.Evaluate(context.Background(), `repeat("x", 1000)`, nil)
	// repeat produces a 1000-byte string against a 64-byte budget.
	assert.Equal(t, errdefs.KindSandboxMemory, errdefs.KindOf(err))
}

func TestEvaluatePredicate(t *testing.T) {
	e := New(Limits{})
	tests := []struct {
		src      string
		bindings map[string]any
		want     bool
	}{
		{`age >= 18`, map[string]any{"age": 21}, true},
		{`age >= 18`, map[string]any{"age": 12}, false},
		{`name`, map[string]any{"name": "x"}, true},
		{`name`, map[string]any{"name": ""}, false},
		{`count`, map[string]any{"count": 0}, false},
		{`count`, map[string]any{"count": 5}, true},
	}
	for _, tt := range tests {
		got, err := e.EvaluatePredicate(context.Background(), tt.src, tt.bindings)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}
}
