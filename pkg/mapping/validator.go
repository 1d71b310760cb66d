package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nineking424/nificdc-sub002/pkg/record"
	"github.com/nineking424/nificdc-sub002/pkg/sandbox"
	"github.com/nineking424/nificdc-sub002/pkg/transform"
	"github.com/nineking424/nificdc-sub002/pkg/typereg"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Issue is one finding of the static pass.
type Issue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Coverage summarizes how much of the two schemas the rule set touches.
type Coverage struct {
	SourcePct   float64 `json:"source_pct"`
	TargetPct   float64 `json:"target_pct"`
	RequiredPct float64 `json:"required_pct"`
}

// Suggestion proposes an improvement the operator may apply.
type Suggestion struct {
	Kind        string  `json:"kind"`
	TargetField string  `json:"target_field,omitempty"`
	SourceField string  `json:"source_field,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Message     string  `json:"message"`
}

// Report is the full validator output.
type Report struct {
	Valid       bool         `json:"valid"`
	Errors      []Issue      `json:"errors,omitempty"`
	Warnings    []Issue      `json:"warnings,omitempty"`
	Coverage    Coverage     `json:"coverage"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Validator runs the pre-save and pre-preview static pass over a
// mapping and its two schemas.
type Validator struct {
	sandbox *sandbox.Evaluator
}

func NewValidator(sb *sandbox.Evaluator) *Validator {
	return &Validator{sandbox: sb}
}

// Validate runs all static checks in order and never returns an error:
// findings land in the report.
func (v *Validator) Validate(m *types.Mapping, source, target *types.Schema) *Report {
	r := &Report{}

	v.checkStructural(m, r)
	v.checkReferences(m, source, target, r)
	v.checkRequiredClosure(m, target, r)
	v.checkTargetUniqueness(m, r)
	v.checkRules(m, r)
	v.checkTypeCompatibility(m, source, target, r)
	if m.Expression != "" {
		if err := v.sandbox.Check(m.Expression); err != nil {
			r.Errors = append(r.Errors, Issue{
				Code: "expression_invalid", Message: err.Error(),
			})
		}
	}

	v.computeCoverage(m, source, target, r)
	v.suggest(m, source, target, r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (v *Validator) checkStructural(m *types.Mapping, r *Report) {
	if m.SourceSchemaID == "" || m.TargetSchemaID == "" {
		r.Errors = append(r.Errors, Issue{
			Code: "missing_schema", Message: "mapping must reference a source and a target schema",
		})
	}
	if len(m.Rules) == 0 {
		r.Errors = append(r.Errors, Issue{
			Code: "no_rules", Message: "mapping has no rules",
		})
	}
	switch m.Cardinality {
	case types.OneToOne, types.OneToMany, types.ManyToOne, types.ManyToMany, "":
	default:
		r.Errors = append(r.Errors, Issue{
			Code: "bad_cardinality", Message: fmt.Sprintf("unknown cardinality %q", m.Cardinality),
		})
	}
}

func (v *Validator) checkReferences(m *types.Mapping, source, target *types.Schema, r *Report) {
	if source == nil || target == nil {
		return
	}
	for _, rule := range m.Rules {
		for _, f := range sourceFieldsOf(rule) {
			if resolveColumn(source, f) == nil {
				r.Errors = append(r.Errors, Issue{
					Code: "unknown_source_field", Field: f,
					Message: fmt.Sprintf("source field %q not found in schema %q", f, source.Name),
				})
			}
		}
		if rule.TargetField != "" && resolveColumn(target, rule.TargetField) == nil {
			r.Errors = append(r.Errors, Issue{
				Code: "unknown_target_field", Field: rule.TargetField,
				Message: fmt.Sprintf("target field %q not found in schema %q", rule.TargetField, target.Name),
			})
		}
	}
}

func (v *Validator) checkRequiredClosure(m *types.Mapping, target *types.Schema, r *Report) {
	if target == nil {
		return
	}
	for _, col := range target.Columns {
		if col.Nullable || col.Default != nil {
			continue
		}
		covered := false
		for _, rule := range m.Rules {
			if rootField(rule.TargetField) == col.Name && rule.Predicate == "" {
				covered = true
				break
			}
		}
		if !covered {
			r.Errors = append(r.Errors, Issue{
				Code: "required_uncovered", Field: col.Name,
				Message: fmt.Sprintf("non-nullable target column %q has no unconditional rule", col.Name),
			})
		}
	}
}

func (v *Validator) checkTargetUniqueness(m *types.Mapping, r *Report) {
	seen := map[string]bool{}
	for _, rule := range m.Rules {
		if seen[rule.TargetField] {
			r.Errors = append(r.Errors, Issue{
				Code: "duplicate_target", Field: rule.TargetField,
				Message: fmt.Sprintf("target field %q mapped more than once", rule.TargetField),
			})
		}
		seen[rule.TargetField] = true
	}
}

func (v *Validator) checkRules(m *types.Mapping, r *Report) {
	for _, rule := range m.Rules {
		field := rule.TargetField
		switch rule.Kind {
		case types.RuleSplit:
			if d, _ := rule.Params["delimiter"].(string); d == "" {
				r.Errors = append(r.Errors, Issue{
					Code: "split_missing_delimiter", Field: field,
					Message: "split rule requires params.delimiter",
				})
			}
			if idx, ok := rule.Params["index"]; ok {
				if f, ok := record.ToFloat(idx); !ok || f < 0 {
					r.Errors = append(r.Errors, Issue{
						Code: "split_bad_index", Field: field,
						Message: "split rule requires a non-negative params.index",
					})
				}
			}
		case types.RuleLookup:
			if _, ok := rule.Params["lookup_table"].(map[string]any); !ok {
				r.Errors = append(r.Errors, Issue{
					Code: "lookup_missing_table", Field: field,
					Message: "lookup rule requires an object params.lookup_table",
				})
			}
		case types.RuleFormula:
			formula, _ := rule.Params["formula"].(string)
			if err := v.sandbox.Check(formula); err != nil {
				r.Errors = append(r.Errors, Issue{
					Code: "formula_invalid", Field: field, Message: err.Error(),
				})
			}
		case types.RuleAggregate:
			switch rule.Aggregation {
			case types.AggSum, types.AggAvg, types.AggCount, types.AggMin,
				types.AggMax, types.AggFirst, types.AggLast, types.AggConcat:
			case "":
				r.Errors = append(r.Errors, Issue{
					Code: "aggregate_missing_function", Field: field,
					Message: "aggregate rule requires an aggregation function",
				})
			default:
				r.Errors = append(r.Errors, Issue{
					Code: "unknown_aggregation", Field: field,
					Message: fmt.Sprintf("unknown aggregation %q", rule.Aggregation),
				})
			}
		case types.RuleConditional:
			if rule.Predicate == "" {
				r.Errors = append(r.Errors, Issue{
					Code: "conditional_missing_predicate", Field: field,
					Message: "conditional rule requires a predicate",
				})
			}
		case types.RuleTransform:
			name, _ := rule.Params["function"].(string)
			fn, err := transform.Lookup(name)
			if err != nil {
				r.Errors = append(r.Errors, Issue{
					Code: "unknown_transform", Field: field,
					Message: fmt.Sprintf("unknown transform function %q", name),
				})
				break
			}
			args, _ := rule.Params["args"].([]any)
			if len(args) < fn.MinArgs || (fn.MaxArgs >= 0 && len(args) > fn.MaxArgs) {
				r.Errors = append(r.Errors, Issue{
					Code: "transform_bad_arity", Field: field,
					Message: fmt.Sprintf("%s expects %d..%d args, got %d",
						name, fn.MinArgs, fn.MaxArgs, len(args)),
				})
			}
		}
		if rule.Predicate != "" {
			if err := v.sandbox.Check(rule.Predicate); err != nil {
				r.Errors = append(r.Errors, Issue{
					Code: "predicate_invalid", Field: field, Message: err.Error(),
				})
			}
		}
	}
}

func (v *Validator) checkTypeCompatibility(m *types.Mapping, source, target *types.Schema, r *Report) {
	if source == nil || target == nil {
		return
	}
	for _, rule := range m.Rules {
		if rule.Kind != types.RuleDirect {
			continue
		}
		sc := resolveColumn(source, rule.SourceField)
		tc := resolveColumn(target, rule.TargetField)
		if sc == nil || tc == nil {
			continue
		}
		from := typereg.UniversalType(sc.UniversalType)
		to := typereg.UniversalType(tc.UniversalType)
		if !typereg.Valid(from) || !typereg.Valid(to) {
			continue
		}
		if !typereg.IsCompatible(from, to) {
			r.Errors = append(r.Errors, Issue{
				Code: "incompatible_types", Field: rule.TargetField,
				Message: fmt.Sprintf("direct mapping %s (%s) -> %s (%s) is incompatible",
					rule.SourceField, from, rule.TargetField, to),
			})
		} else if typereg.IsLossy(from, to) {
			r.Warnings = append(r.Warnings, Issue{
				Code: "lossy_conversion", Field: rule.TargetField,
				Message: fmt.Sprintf("direct mapping %s (%s) -> %s (%s) may lose precision",
					rule.SourceField, from, rule.TargetField, to),
			})
		}
	}
}

func (v *Validator) computeCoverage(m *types.Mapping, source, target *types.Schema, r *Report) {
	if source == nil || target == nil {
		return
	}
	mappedSource := map[string]bool{}
	mappedTarget := map[string]bool{}
	unconditional := map[string]bool{}
	for _, rule := range m.Rules {
		for _, f := range sourceFieldsOf(rule) {
			mappedSource[rootField(f)] = true
		}
		mappedTarget[rootField(rule.TargetField)] = true
		if rule.Predicate == "" {
			unconditional[rootField(rule.TargetField)] = true
		}
	}

	r.Coverage.SourcePct = pct(countCovered(source, mappedSource), len(source.Columns))
	r.Coverage.TargetPct = pct(countCovered(target, mappedTarget), len(target.Columns))

	required, requiredCovered := 0, 0
	for _, col := range target.Columns {
		if col.Nullable || col.Default != nil {
			continue
		}
		required++
		if unconditional[col.Name] {
			requiredCovered++
		}
	}
	r.Coverage.RequiredPct = pct(requiredCovered, required)
}

func (v *Validator) suggest(m *types.Mapping, source, target *types.Schema, r *Report) {
	if source == nil || target == nil {
		return
	}
	mappedSource := map[string]bool{}
	mappedTarget := map[string]bool{}
	for _, rule := range m.Rules {
		for _, f := range sourceFieldsOf(rule) {
			mappedSource[rootField(f)] = true
		}
		mappedTarget[rootField(rule.TargetField)] = true
	}

	// Propose the closest source column for each unmapped required target.
	for _, col := range target.Columns {
		if col.Nullable || col.Default != nil || mappedTarget[col.Name] {
			continue
		}
		bestName, bestScore := "", 0.0
		for _, sc := range source.Columns {
			if score := typereg.Similarity(sc.Name, col.Name); score > bestScore {
				bestName, bestScore = sc.Name, score
			}
		}
		if bestName != "" {
			r.Suggestions = append(r.Suggestions, Suggestion{
				Kind: "map_required", TargetField: col.Name,
				SourceField: bestName, Score: bestScore,
				Message: fmt.Sprintf("required target %q is unmapped; closest source column is %q", col.Name, bestName),
			})
		}
	}

	// Flag unused source columns, capped at 5.
	var unused []string
	for _, col := range source.Columns {
		if !mappedSource[col.Name] {
			unused = append(unused, col.Name)
		}
	}
	sort.Strings(unused)
	if len(unused) > 5 {
		unused = unused[:5]
	}
	for _, name := range unused {
		r.Suggestions = append(r.Suggestions, Suggestion{
			Kind: "unused_source", SourceField: name,
			Message: fmt.Sprintf("source column %q is not referenced by any rule", name),
		})
	}

	for _, w := range r.Warnings {
		if w.Code == "lossy_conversion" {
			r.Suggestions = append(r.Suggestions, Suggestion{
				Kind: "lossy_conversion", TargetField: w.Field, Message: w.Message,
			})
		}
	}
}

func sourceFieldsOf(rule types.MappingRule) []string {
	var out []string
	if rule.SourceField != "" {
		out = append(out, rule.SourceField)
	}
	out = append(out, rule.SourceFields...)
	if rule.ExpandField != "" {
		out = append(out, rule.ExpandField)
	}
	return out
}

// resolveColumn matches a dotted path against a schema by exact name
// first, then by the path's root segment.
func resolveColumn(s *types.Schema, field string) *types.Column {
	if c := s.Column(field); c != nil {
		return c
	}
	return s.Column(rootField(field))
}

func rootField(field string) string {
	if i := strings.IndexByte(field, '.'); i >= 0 {
		return field[:i]
	}
	return field
}

func countCovered(s *types.Schema, mapped map[string]bool) int {
	n := 0
	for _, col := range s.Columns {
		if mapped[col.Name] {
			n++
		}
	}
	return n
}

func pct(covered, total int) float64 {
	if total == 0 {
		return 100
	}
	return 100 * float64(covered) / float64(total)
}
