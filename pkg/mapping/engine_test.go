package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
	"github.com/nineking424/nificdc-sub002/pkg/sandbox"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

func newTestEngine() *Engine {
	return NewEngine(sandbox.New(sandbox.Limits{}))
}

func apply(t *testing.T, m *types.Mapping, batch []record.Record) *Result {
	t.Helper()
	res, err := newTestEngine().Apply(context.Background(), m, batch, Options{})
	require.NoError(t, err)
	return res
}

func TestDirectOneToOne(t *testing.T) {
	m := &types.Mapping{
		Cardinality: types.OneToOne,
		Rules: []types.MappingRule{
			{Kind: types.RuleDirect, SourceField: "a", TargetField: "out.x"},
			{Kind: types.RuleTransform, SourceField: "b", TargetField: "out.y",
				Params: map[string]any{"function": "number.round", "args": []any{0}}},
		},
	}
	res := apply(t, m, []record.Record{{"a": "X", "b": 3.2}})

	require.Len(t, res.Records, 1)
	out := res.Records[0]["out"].(map[string]any)
	assert.Equal(t, "X", out["x"])
	assert.Equal(t, 3.0, out["y"])
	assert.Empty(t, res.Errors)
}

func TestOneToManyExpand(t *testing.T) {
	m := &types.Mapping{
		Cardinality: types.OneToMany,
		Rules: []types.MappingRule{
			{Kind: types.RuleDirect, SourceField: "tag", TargetField: "tag", ExpandField: "items"},
			{Kind: types.RuleDirect, SourceField: "items", TargetField: "value"},
		},
	}
	res := apply(t, m, []record.Record{{"items": []any{1, 2, 3}, "tag": "t"}})

	require.Len(t, res.Records, 3)
	for i, want := range []any{1, 2, 3} {
		assert.Equal(t, "t", res.Records[i]["tag"])
		assert.Equal(t, want, res.Records[i]["value"])
	}
}

func TestManyToOneAggregations(t *testing.T) {
	m := &types.Mapping{
		Cardinality: types.ManyToOne,
		Rules: []types.MappingRule{
			{Kind: types.RuleDirect, SourceField: "n", TargetField: "total", Aggregation: types.AggSum},
			{Kind: types.RuleDirect, SourceField: "n", TargetField: "mean", Aggregation: types.AggAvg},
			{Kind: types.RuleDirect, SourceField: "n", TargetField: "count", Aggregation: types.AggCount},
			{Kind: types.RuleDirect, SourceField: "n", TargetField: "lo", Aggregation: types.AggMin},
			{Kind: types.RuleDirect, SourceField: "n", TargetField: "hi", Aggregation: types.AggMax},
			{Kind: types.RuleDirect, SourceField: "name", TargetField: "names",
				Aggregation: types.AggConcat, Params: map[string]any{"separator": ","}},
			{Kind: types.RuleDirect, SourceField: "name", TargetField: "head"},
		},
	}
	batch := []record.Record{
		{"n": 1, "name": "a"},
		{"n": 2, "name": "b"},
		{"n": 3, "name": "c"},
	}
	res := apply(t, m, batch)

	require.Len(t, res.Records, 1)
	out := res.Records[0]
	assert.Equal(t, 6.0, out["total"])
	assert.Equal(t, 2.0, out["mean"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, 1, out["lo"])
	assert.Equal(t, 3, out["hi"])
	assert.Equal(t, "a,b,c", out["names"])
	assert.Equal(t, "a", out["head"])
}

func TestEmptyBatch(t *testing.T) {
	m := &types.Mapping{
		Cardinality: types.ManyToOne,
		Rules: []types.MappingRule{
			{Kind: types.RuleDirect, SourceField: "n", TargetField: "total", Aggregation: types.AggSum},
		},
	}
	res := apply(t, m, nil)
	assert.Empty(t, res.Records)
	assert.Empty(t, res.Errors)
}

func TestRuleKinds(t *testing.T) {
	tests := []struct {
		name string
		rule types.MappingRule
		rec  record.Record
		want any
	}{
		{"concat skips nulls", types.MappingRule{
			Kind: types.RuleConcat, SourceFields: []string{"a", "b", "c"},
			TargetField: "out", Params: map[string]any{"separator": "-"},
		}, record.Record{"a": "x", "c": "z"}, "x-z"},
		{"split picks index", types.MappingRule{
			Kind: types.RuleSplit, SourceField: "s", TargetField: "out",
			Params: map[string]any{"delimiter": ",", "index": 1},
		}, record.Record{"s": "a,b,c"}, "b"},
		{"split out of range is null", types.MappingRule{
			Kind: types.RuleSplit, SourceField: "s", TargetField: "out",
			Params: map[string]any{"delimiter": ",", "index": 9},
		}, record.Record{"s": "a,b"}, nil},
		{"lookup hit", types.MappingRule{
			Kind: types.RuleLookup, SourceField: "code", TargetField: "out",
			Params: map[string]any{"lookup_table": map[string]any{"1": "one"}},
		}, record.Record{"code": 1}, "one"},
		{"lookup miss uses default", types.MappingRule{
			Kind: types.RuleLookup, SourceField: "code", TargetField: "out",
			Params:       map[string]any{"lookup_table": map[string]any{"1": "one"}},
			DefaultValue: "unknown",
		}, record.Record{"code": 7}, "unknown"},
		{"formula", types.MappingRule{
			Kind: types.RuleFormula, TargetField: "out",
			Params: map[string]any{"formula": "price * qty"},
		}, record.Record{"price": 2.5, "qty": 4}, 10.0},
		{"predicate false uses default", types.MappingRule{
			Kind: types.RuleDirect, SourceField: "v", TargetField: "out",
			Predicate: "v > 10", DefaultValue: "small",
		}, record.Record{"v": 3}, "small"},
		{"direct missing source uses default", types.MappingRule{
			Kind: types.RuleDirect, SourceField: "nope", TargetField: "out",
			DefaultValue: "d",
		}, record.Record{"v": 3}, "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &types.Mapping{Cardinality: types.OneToOne, Rules: []types.MappingRule{tt.rule}}
			res := apply(t, m, []record.Record{tt.rec})
			require.Len(t, res.Records, 1)
			assert.Equal(t, tt.want, res.Records[0]["out"])
		})
	}
}

func TestRequiredNullAbortsBatch(t *testing.T) {
	m := &types.Mapping{
		Cardinality: types.OneToOne,
		Rules: []types.MappingRule{
			{Kind: types.RuleDirect, SourceField: "missing", TargetField: "out", Required: true},
		},
	}
	_, err := newTestEngine().Apply(context.Background(), m, []record.Record{{"a": 1}}, Options{})
	assert.True(t, errdefs.IsValidation(err))
}

func TestContinueOnErrorSkipsRecord(t *testing.T) {
	m := &types.Mapping{
		Cardinality: types.OneToOne,
		Rules: []types.MappingRule{
			{Kind: types.RuleDirect, SourceField: "v", TargetField: "out", Required: true},
		},
	}
	batch := []record.Record{{"v": 1}, {"x": 2}, {"v": 3}}
	res, err := newTestEngine().Apply(context.Background(), m, batch, Options{ContinueOnError: true})
	require.NoError(t, err)

	assert.Len(t, res.Records, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
}

func TestNonRequiredFailureIsWarning(t *testing.T) {
	m := &types.Mapping{
		Cardinality: types.OneToOne,
		Rules: []types.MappingRule{
			{Kind: types.RuleTransform, SourceField: "v", TargetField: "out",
				Params:       map[string]any{"function": "number.parseInt"},
				DefaultValue: -1},
		},
	}
	res := apply(t, m, []record.Record{{"v": "not a number"}})

	require.Len(t, res.Records, 1)
	assert.Equal(t, -1, res.Records[0]["out"])
	assert.Len(t, res.Warnings, 1)
	assert.Empty(t, res.Errors)
}

func TestWholeMappingExpression(t *testing.T) {
	m := &types.Mapping{
		Cardinality: types.OneToOne,
		Expression:  `{"x": x, "double": x * 2}`,
		Rules: []types.MappingRule{
			{Kind: types.RuleDirect, SourceField: "a", TargetField: "x"},
		},
	}
	res := apply(t, m, []record.Record{{"a": 21}})

	require.Len(t, res.Records, 1)
	assert.Equal(t, 42, res.Records[0]["double"])
}

func TestDeterministicOutput(t *testing.T) {
	m := &types.Mapping{
		Cardinality: types.OneToOne,
		Rules: []types.MappingRule{
			{Kind: types.RuleDirect, SourceField: "a", TargetField: "x"},
			{Kind: types.RuleFormula, TargetField: "y",
				Params: map[string]any{"formula": "a * 10"}},
		},
	}
	batch := []record.Record{{"a": 1}, {"a": 2}}
	first := apply(t, m, batch)
	second := apply(t, m, batch)
	assert.Equal(t, first.Records, second.Records)
}
