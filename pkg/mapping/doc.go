// Package mapping turns batches of source records into batches of
// target records, and statically validates mapping definitions before
// they are saved or previewed.
//
// # Engine
//
// The engine is pure over (mapping, batch, clock): no persistence, no
// network, identical inputs produce identical outputs. Each rule is
// applied in order: predicate first (false substitutes the rule's
// default and skips), then dispatch by kind (direct, transform,
// concat, split, lookup, formula, conditional), then the required-null
// check, then a dotted-path assignment into the target tree.
//
// Cardinality selects how the batch is traversed:
//
//	1:1  rule list applied per source record
//	1:N  a rule's expand_field array is unrolled; the rule list runs
//	     once per element with the element substituted in place
//	N:1  the whole batch is one group; rules with an aggregation
//	     compute across it, other rules read the first element
//	N:N  the 1:N expansion applied to the N:1 group
//
// Output order matches source order; 1:N expansions are contiguous.
//
// A failing rule that is not required downgrades to a warning and the
// record passes through with the rule's default. A failing required
// rule aborts the batch unless ContinueOnError is set, in which case
// the record is recorded in Result.Errors and skipped. Sandbox errors
// are never swallowed.
//
// After all rules, an optional whole-mapping expression runs with the
// assembled target record as its bindings; an object result replaces
// the target record.
//
// # Validator
//
// Validate runs seven ordered check groups: structure, field
// references, required-column closure, target uniqueness, per-rule
// parameter checks, direct-rule type compatibility (errors for
// incompatible universal types, warnings for lossy ones) and the
// whole-mapping expression static pass. It also reports source,
// target and required coverage percentages plus suggestions: the
// highest-similarity source column for each unmapped required target,
// up to five unused source columns, and lossy direct conversions.
package mapping
