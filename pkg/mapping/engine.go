package mapping

import (
	"context"
	"fmt"
	"strings"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
	"github.com/nineking424/nificdc-sub002/pkg/sandbox"
	"github.com/nineking424/nificdc-sub002/pkg/transform"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Options tune one engine application. ContinueOnError turns
// batch-aborting record failures into recorded-and-skipped records.
type Options struct {
	ContinueOnError bool
}

// RecordError pins a failure to a source record and the rule that
// raised it.
type RecordError struct {
	Index       int    `json:"index"`
	TargetField string `json:"target_field,omitempty"`
	Message     string `json:"message"`
}

// Result is the outcome of applying a mapping to a batch. Records
// preserves source order; expanded elements of a 1:N mapping appear
// contiguously.
type Result struct {
	Records  []record.Record `json:"records"`
	Errors   []RecordError   `json:"errors,omitempty"`
	Warnings []RecordError   `json:"warnings,omitempty"`
}

// Engine applies mappings to record batches. It is pure over
// (mapping, batch, clock): no persistence and no external calls, so
// identical inputs produce identical outputs.
type Engine struct {
	sandbox *sandbox.Evaluator
}

// NewEngine wires the engine to the expression sandbox used for
// predicates, formulas and whole-mapping expressions.
func NewEngine(sb *sandbox.Evaluator) *Engine {
	return &Engine{sandbox: sb}
}

// Apply transforms batch according to m. Record-level failures abort
// the batch unless opts.ContinueOnError is set, in which case they are
// recorded and the offending record is skipped.
func (e *Engine) Apply(ctx context.Context, m *types.Mapping, batch []record.Record, opts Options) (*Result, error) {
	res := &Result{Records: []record.Record{}}
	if len(batch) == 0 {
		return res, nil
	}

	switch m.Cardinality {
	case types.OneToOne, "":
		for i, rec := range batch {
			if err := e.applyOne(ctx, m, rec, []record.Record{rec}, i, opts, res); err != nil {
				return nil, err
			}
		}
	case types.OneToMany:
		for i, rec := range batch {
			if err := e.applyExpanded(ctx, m, rec, []record.Record{rec}, i, opts, res); err != nil {
				return nil, err
			}
		}
	case types.ManyToOne:
		if err := e.applyOne(ctx, m, batch[0], batch, 0, opts, res); err != nil {
			return nil, err
		}
	case types.ManyToMany:
		if err := e.applyExpanded(ctx, m, batch[0], batch, 0, opts, res); err != nil {
			return nil, err
		}
	default:
		return nil, errdefs.Validation("unknown cardinality %q", m.Cardinality)
	}
	return res, nil
}

// applyExpanded handles the 1:N side: when a rule declares
// expand_field, the rule list is re-applied once per element of that
// array with the element substituted in place of the array.
func (e *Engine) applyExpanded(ctx context.Context, m *types.Mapping, rec record.Record, group []record.Record, idx int, opts Options, res *Result) error {
	expandField := ""
	for _, r := range m.Rules {
		if r.ExpandField != "" {
			expandField = r.ExpandField
			break
		}
	}
	if expandField == "" {
		return e.applyOne(ctx, m, rec, group, idx, opts, res)
	}
	raw, _ := record.GetPath(rec, expandField)
	items, ok := raw.([]any)
	if !ok {
		// A scalar expand source degrades to a single application.
		return e.applyOne(ctx, m, rec, group, idx, opts, res)
	}
	for _, item := range items {
		elem := record.Clone(rec)
		if err := record.SetPath(elem, expandField, item); err != nil {
			return errdefs.Validation("expand field %q: %v", expandField, err)
		}
		if err := e.applyOne(ctx, m, elem, group, idx, opts, res); err != nil {
			return err
		}
	}
	return nil
}

// applyOne produces one target record from bindings, running every rule
// and then the whole-mapping expression.
func (e *Engine) applyOne(ctx context.Context, m *types.Mapping, bindings record.Record, group []record.Record, idx int, opts Options, res *Result) error {
	target := record.Record{}

	for ri := range m.Rules {
		rule := &m.Rules[ri]
		value, err := e.applyRule(ctx, rule, bindings, group)
		if err != nil {
			if !rule.Required {
				// Non-required failures are warnings; the record passes
				// through with the rule's default.
				res.Warnings = append(res.Warnings, RecordError{
					Index: idx, TargetField: rule.TargetField, Message: err.Error(),
				})
				value = rule.DefaultValue
			} else {
				recErr := RecordError{Index: idx, TargetField: rule.TargetField, Message: err.Error()}
				if opts.ContinueOnError {
					res.Errors = append(res.Errors, recErr)
					return nil
				}
				return errdefs.Wrap(errdefs.KindOf(err), err,
					"record %d, rule %q", idx, rule.TargetField)
			}
		}
		if value == nil && rule.Required {
			recErr := RecordError{
				Index: idx, TargetField: rule.TargetField,
				Message: fmt.Sprintf("required field %q is null", rule.TargetField),
			}
			if opts.ContinueOnError {
				res.Errors = append(res.Errors, recErr)
				return nil
			}
			return errdefs.Validation("record %d: %s", idx, recErr.Message)
		}
		if err := record.SetPath(target, rule.TargetField, value); err != nil {
			return errdefs.Validation("record %d, rule %q: %v", idx, rule.TargetField, err)
		}
	}

	if m.Expression != "" {
		out, err := e.sandbox.Evaluate(ctx, m.Expression, target)
		if err != nil {
			recErr := RecordError{Index: idx, TargetField: "$expression", Message: err.Error()}
			if opts.ContinueOnError {
				res.Errors = append(res.Errors, recErr)
				return nil
			}
			return err
		}
		if mutated, ok := out.(map[string]any); ok {
			target = mutated
		}
	}

	res.Records = append(res.Records, target)
	return nil
}

// applyRule dispatches on rule kind. A nil return with nil error means
// the rule produced null (predicate false, missing source, etc).
func (e *Engine) applyRule(ctx context.Context, rule *types.MappingRule, bindings record.Record, group []record.Record) (any, error) {
	if rule.Predicate != "" {
		ok, err := e.sandbox.EvaluatePredicate(ctx, rule.Predicate, bindings)
		if err != nil {
			return nil, err
		}
		if !ok {
			return rule.DefaultValue, nil
		}
	}

	if rule.Aggregation != "" {
		return aggregate(rule, group)
	}

	switch rule.Kind {
	case types.RuleDirect, types.RuleConditional:
		v, _ := record.GetPath(bindings, rule.SourceField)
		if v == nil {
			return rule.DefaultValue, nil
		}
		return v, nil

	case types.RuleTransform:
		fn, _ := rule.Params["function"].(string)
		args, _ := rule.Params["args"].([]any)
		v, _ := record.GetPath(bindings, rule.SourceField)
		return transform.Call(fn, v, args)

	case types.RuleConcat:
		sep, _ := rule.Params["separator"].(string)
		parts := make([]string, 0, len(rule.SourceFields))
		for _, f := range rule.SourceFields {
			if v, ok := record.GetPath(bindings, f); ok && v != nil {
				parts = append(parts, record.ToString(v))
			}
		}
		return strings.Join(parts, sep), nil

	case types.RuleSplit:
		delim, _ := rule.Params["delimiter"].(string)
		if delim == "" {
			return nil, errdefs.Validation("split rule requires params.delimiter")
		}
		index := 0
		if f, ok := record.ToFloat(rule.Params["index"]); ok {
			index = int(f)
		}
		v, _ := record.GetPath(bindings, rule.SourceField)
		if v == nil {
			return rule.DefaultValue, nil
		}
		parts := strings.Split(record.ToString(v), delim)
		if index < 0 || index >= len(parts) {
			return nil, nil
		}
		return parts[index], nil

	case types.RuleLookup:
		table, ok := rule.Params["lookup_table"].(map[string]any)
		if !ok {
			return nil, errdefs.Validation("lookup rule requires an object params.lookup_table")
		}
		v, _ := record.GetPath(bindings, rule.SourceField)
		if out, ok := table[record.ToString(v)]; ok {
			return out, nil
		}
		return rule.DefaultValue, nil

	case types.RuleFormula:
		formula, _ := rule.Params["formula"].(string)
		return e.sandbox.Evaluate(ctx, formula, bindings)

	case types.RuleAggregate:
		// Rules with an aggregation set never reach this switch.
		return nil, errdefs.Validation("aggregate rule %q has no aggregation function", rule.TargetField)

	default:
		return nil, errdefs.Validation("unknown rule kind %q", rule.Kind)
	}
}

// aggregate computes an N:1 aggregation for rule across the group.
func aggregate(rule *types.MappingRule, group []record.Record) (any, error) {
	values := make([]any, 0, len(group))
	for _, rec := range group {
		if v, ok := record.GetPath(rec, rule.SourceField); ok && v != nil {
			values = append(values, v)
		}
	}

	switch rule.Aggregation {
	case types.AggCount:
		return len(values), nil
	case types.AggSum:
		sum := 0.0
		for _, v := range values {
			if f, ok := record.ToFloat(v); ok {
				sum += f
			}
		}
		return sum, nil
	case types.AggAvg:
		if len(values) == 0 {
			return nil, nil
		}
		sum, n := 0.0, 0
		for _, v := range values {
			if f, ok := record.ToFloat(v); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return nil, nil
		}
		return sum / float64(n), nil
	case types.AggMin, types.AggMax:
		var best any
		var bestF float64
		for _, v := range values {
			f, ok := record.ToFloat(v)
			if !ok {
				continue
			}
			if best == nil ||
				(rule.Aggregation == types.AggMin && f < bestF) ||
				(rule.Aggregation == types.AggMax && f > bestF) {
				best, bestF = v, f
			}
		}
		return best, nil
	case types.AggFirst:
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	case types.AggLast:
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	case types.AggConcat:
		sep, _ := rule.Params["separator"].(string)
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = record.ToString(v)
		}
		return strings.Join(parts, sep), nil
	default:
		return nil, errdefs.Validation("unknown aggregation %q", rule.Aggregation)
	}
}
