package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nineking424/nificdc-sub002/pkg/sandbox"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

func newTestValidator() *Validator {
	return NewValidator(sandbox.New(sandbox.Limits{}))
}

func testSchemas() (*types.Schema, *types.Schema) {
	source := &types.Schema{
		Name: "customers",
		Columns: []types.Column{
			{Name: "id", UniversalType: "long", Nullable: false},
			{Name: "full_name", UniversalType: "string", Nullable: true},
			{Name: "email_addr", UniversalType: "string", Nullable: true},
			{Name: "balance", UniversalType: "double", Nullable: true},
			{Name: "notes", UniversalType: "text", Nullable: true},
		},
	}
	target := &types.Schema{
		Name: "users",
		Columns: []types.Column{
			{Name: "id", UniversalType: "long", Nullable: false},
			{Name: "name", UniversalType: "string", Nullable: true},
			{Name: "email", UniversalType: "string", Nullable: false},
			{Name: "score", UniversalType: "integer", Nullable: true},
		},
	}
	return source, target
}

func baseMapping() *types.Mapping {
	return &types.Mapping{
		SourceSchemaID: "src-1",
		TargetSchemaID: "tgt-1",
		Cardinality:    types.OneToOne,
		Rules: []types.MappingRule{
			{Kind: types.RuleDirect, SourceField: "id", TargetField: "id"},
			{Kind: types.RuleDirect, SourceField: "full_name", TargetField: "name"},
			{Kind: types.RuleDirect, SourceField: "email_addr", TargetField: "email"},
		},
	}
}

func hasIssue(issues []Issue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func TestValidMapping(t *testing.T) {
	source, target := testSchemas()
	report := newTestValidator().Validate(baseMapping(), source, target)

	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.InDelta(t, 60.0, report.Coverage.SourcePct, 0.01)
	assert.InDelta(t, 75.0, report.Coverage.TargetPct, 0.01)
	assert.InDelta(t, 100.0, report.Coverage.RequiredPct, 0.01)
}

func TestStructuralChecks(t *testing.T) {
	source, target := testSchemas()

	m := baseMapping()
	m.SourceSchemaID = ""
	report := newTestValidator().Validate(m, source, target)
	assert.True(t, hasIssue(report.Errors, "missing_schema"))

	m = baseMapping()
	m.Rules = nil
	report = newTestValidator().Validate(m, source, target)
	assert.True(t, hasIssue(report.Errors, "no_rules"))

	m = baseMapping()
	m.Cardinality = "2:3"
	report = newTestValidator().Validate(m, source, target)
	assert.True(t, hasIssue(report.Errors, "bad_cardinality"))
}

func TestReferenceChecks(t *testing.T) {
	source, target := testSchemas()
	m := baseMapping()
	m.Rules = append(m.Rules,
		types.MappingRule{Kind: types.RuleDirect, SourceField: "ghost", TargetField: "score"})
	report := newTestValidator().Validate(m, source, target)

	assert.False(t, report.Valid)
	assert.True(t, hasIssue(report.Errors, "unknown_source_field"))
}

func TestRequiredClosure(t *testing.T) {
	source, target := testSchemas()

	// Dropping the email rule leaves a non-nullable target uncovered.
	m := baseMapping()
	m.Rules = m.Rules[:2]
	report := newTestValidator().Validate(m, source, target)
	assert.True(t, hasIssue(report.Errors, "required_uncovered"))

	// A rule guarded by a predicate does not satisfy the closure.
	m = baseMapping()
	m.Rules[2].Predicate = "id > 0"
	report = newTestValidator().Validate(m, source, target)
	assert.True(t, hasIssue(report.Errors, "required_uncovered"))
}

func TestDuplicateTarget(t *testing.T) {
	source, target := testSchemas()
	m := baseMapping()
	m.Rules = append(m.Rules,
		types.MappingRule{Kind: types.RuleDirect, SourceField: "full_name", TargetField: "id"})
	report := newTestValidator().Validate(m, source, target)
	assert.True(t, hasIssue(report.Errors, "duplicate_target"))
}

func TestPerRuleChecks(t *testing.T) {
	source, target := testSchemas()

	tests := []struct {
		name string
		rule types.MappingRule
		code string
	}{
		{"split without delimiter", types.MappingRule{
			Kind: types.RuleSplit, SourceField: "full_name", TargetField: "name",
		}, "split_missing_delimiter"},
		{"split negative index", types.MappingRule{
			Kind: types.RuleSplit, SourceField: "full_name", TargetField: "name",
			Params: map[string]any{"delimiter": " ", "index": -1},
		}, "split_bad_index"},
		{"lookup without table", types.MappingRule{
			Kind: types.RuleLookup, SourceField: "id", TargetField: "name",
		}, "lookup_missing_table"},
		{"formula fails static pass", types.MappingRule{
			Kind: types.RuleFormula, TargetField: "name",
			Params: map[string]any{"formula": "1 +"},
		}, "formula_invalid"},
		{"conditional without predicate", types.MappingRule{
			Kind: types.RuleConditional, SourceField: "id", TargetField: "name",
		}, "conditional_missing_predicate"},
		{"unknown transform", types.MappingRule{
			Kind: types.RuleTransform, SourceField: "id", TargetField: "name",
			Params: map[string]any{"function": "string.nope"},
		}, "unknown_transform"},
		{"transform over-supplied", types.MappingRule{
			Kind: types.RuleTransform, SourceField: "full_name", TargetField: "name",
			Params: map[string]any{"function": "string.upper", "args": []any{"x"}},
		}, "transform_bad_arity"},
		{"bad predicate", types.MappingRule{
			Kind: types.RuleDirect, SourceField: "id", TargetField: "name",
			Predicate: "id >",
		}, "predicate_invalid"},
		{"aggregate without function", types.MappingRule{
			Kind: types.RuleAggregate, SourceField: "id", TargetField: "name",
		}, "aggregate_missing_function"},
		{"aggregate with unknown function", types.MappingRule{
			Kind: types.RuleAggregate, SourceField: "id", TargetField: "name",
			Aggregation: types.Aggregation("median"),
		}, "unknown_aggregation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &types.Mapping{
				SourceSchemaID: "s", TargetSchemaID: "t",
				Cardinality: types.OneToOne,
				Rules: append([]types.MappingRule{
					{Kind: types.RuleDirect, SourceField: "id", TargetField: "id"},
					{Kind: types.RuleDirect, SourceField: "email_addr", TargetField: "email"},
				}, tt.rule),
			}
			report := newTestValidator().Validate(m, source, target)
			assert.True(t, hasIssue(report.Errors, tt.code), "expected %s in %+v", tt.code, report.Errors)
		})
	}
}

func TestTypeCompatibility(t *testing.T) {
	source, target := testSchemas()

	// string -> integer is incompatible.
	m := baseMapping()
	m.Rules = append(m.Rules,
		types.MappingRule{Kind: types.RuleDirect, SourceField: "full_name", TargetField: "score"})
	report := newTestValidator().Validate(m, source, target)
	assert.True(t, hasIssue(report.Errors, "incompatible_types"))

	// double -> integer narrows: compatible but lossy.
	m = baseMapping()
	m.Rules = append(m.Rules,
		types.MappingRule{Kind: types.RuleDirect, SourceField: "balance", TargetField: "score"})
	report = newTestValidator().Validate(m, source, target)
	assert.True(t, report.Valid)
	assert.True(t, hasIssue(report.Warnings, "lossy_conversion"))
}

func TestExpressionCheck(t *testing.T) {
	source, target := testSchemas()
	m := baseMapping()
	m.Expression = "a +"
	report := newTestValidator().Validate(m, source, target)
	assert.True(t, hasIssue(report.Errors, "expression_invalid"))
}

func TestSuggestions(t *testing.T) {
	source, target := testSchemas()

	m := baseMapping()
	m.Rules = m.Rules[:2] // email left unmapped
	report := newTestValidator().Validate(m, source, target)

	var found *Suggestion
	for i := range report.Suggestions {
		if report.Suggestions[i].Kind == "map_required" && report.Suggestions[i].TargetField == "email" {
			found = &report.Suggestions[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "email_addr", found.SourceField)
	assert.Greater(t, found.Score, 0.5)

	var unused []string
	for _, s := range report.Suggestions {
		if s.Kind == "unused_source" {
			unused = append(unused, s.SourceField)
		}
	}
	assert.Contains(t, unused, "balance")
	assert.Contains(t, unused, "notes")
}
