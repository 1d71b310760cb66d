package sandbox

import (
	"context"
	"regexp"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
)

// Limits caps one evaluation. Zero fields fall back to the defaults.
type Limits struct {
	MaxDuration   time.Duration
	MaxMemory     int64
	MaxComplexity int
}

const (
	DefaultMaxDuration   = 5 * time.Second
	DefaultMaxMemory     = 50 * 1024 * 1024
	DefaultMaxComplexity = 100
)

func (l Limits) withDefaults() Limits {
	if l.MaxDuration <= 0 {
		l.MaxDuration = DefaultMaxDuration
	}
	if l.MaxMemory <= 0 {
		l.MaxMemory = DefaultMaxMemory
	}
	if l.MaxComplexity <= 0 {
		l.MaxComplexity = DefaultMaxComplexity
	}
	return l
}

// Evaluator runs transformation expressions and rule predicates under
// static checks and runtime budgets. It holds no state besides limits and
// is safe for concurrent use.
type Evaluator struct {
	limits Limits
}

// New creates an evaluator with the given default limits.
func New(limits Limits) *Evaluator {
	return &Evaluator{limits: limits.withDefaults()}
}

// deniedPattern rejects references to host facilities before parsing:
// filesystem, process and network modules, dynamic code constructs and
// unbounded loop idioms.
var deniedPattern = regexp.MustCompile(`(?i)\b(os|fs|net|http|https|syscall|exec|spawn|process|child_process|require|import|eval|function|globalthis|global|window|__proto__|constructor|prototype)\b|while\s*\(\s*true|for\s*\(\s*;\s*;`)

// Check runs the pre-execution static pass: denylist, syntactic
// well-formedness and the complexity ceiling.
func (e *Evaluator) Check(src string) error {
	return e.CheckWithLimits(src, e.limits)
}

// CheckWithLimits is Check with per-call limits.
func (e *Evaluator) CheckWithLimits(src string, limits Limits) error {
	limits = limits.withDefaults()
	if src == "" {
		return errdefs.New(errdefs.KindSandboxSyntax, "empty expression")
	}
	if m := deniedPattern.FindString(src); m != "" {
		return errdefs.New(errdefs.KindSandboxDenied, "denied token %q", m)
	}
	tree, err := parser.Parse(src)
	if err != nil {
		return errdefs.Wrap(errdefs.KindSandboxSyntax, err, "parse failed")
	}
	c := &complexityVisitor{}
	ast.Walk(&tree.Node, c)
	if c.denied != "" {
		return errdefs.New(errdefs.KindSandboxDenied, "denied identifier %q", c.denied)
	}
	if c.count > limits.MaxComplexity {
		return errdefs.New(errdefs.KindSandboxComplexity,
			"expression complexity %d exceeds ceiling %d", c.count, limits.MaxComplexity)
	}
	return nil
}

// complexityVisitor counts control-flow and function nodes, and catches
// denied identifiers the token scan could not see through string building.
type complexityVisitor struct {
	count  int
	denied string
}

var deniedIdentifiers = map[string]bool{
	"os": true, "fs": true, "net": true, "http": true, "syscall": true,
	"exec": true, "process": true, "require": true, "import": true,
	"eval": true, "global": true, "globalThis": true, "window": true,
}

func (v *complexityVisitor) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.CallNode, *ast.BuiltinNode, *ast.ConditionalNode, *ast.PredicateNode:
		v.count++
	case *ast.IdentifierNode:
		if deniedIdentifiers[n.Value] {
			v.denied = n.Value
		}
	}
}

// Evaluate runs an expression against read-only bindings. The bindings
// are deep-copied first so the host's records can never be mutated, and a
// frozen "now" is the only clock the expression sees. Returns a pure
// value graph.
func (e *Evaluator) Evaluate(ctx context.Context, src string, bindings map[string]any) (any, error) {
	return e.EvaluateWithLimits(ctx, src, bindings, e.limits)
}

// EvaluateWithLimits is Evaluate with per-call limits.
func (e *Evaluator) EvaluateWithLimits(ctx context.Context, src string, bindings map[string]any, limits Limits) (any, error) {
	limits = limits.withDefaults()
	if err := e.CheckWithLimits(src, limits); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, limits.MaxDuration)
	defer cancel()

	env := record.Clone(bindings)
	if env == nil {
		env = map[string]any{}
	}
	if _, ok := env["now"]; !ok {
		env["now"] = time.Now().UTC()
	}
	// The VM checks this context between operations, so a timed-out
	// expression stops instead of running to completion with its result
	// discarded.
	env["ctx"] = runCtx

	program, err := expr.Compile(src, expr.Env(env), expr.WithContext("ctx"))
	if err != nil {
		// Compile failures past the parse stage are binding misses or
		// type mismatches.
		return nil, errdefs.Wrap(errdefs.KindSandboxRuntime, err, "compile failed")
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := expr.Run(program, env)
		done <- outcome{value: v, err: err}
	}()

	select {
	case <-runCtx.Done():
		return nil, budgetErr(ctx, limits)
	case out := <-done:
		if runCtx.Err() != nil {
			return nil, budgetErr(ctx, limits)
		}
		if out.err != nil {
			return nil, errdefs.Wrap(errdefs.KindSandboxRuntime, out.err, "evaluation failed")
		}
		if size := record.SizeOf(out.value); size > limits.MaxMemory {
			return nil, errdefs.New(errdefs.KindSandboxMemory,
				"result size %d exceeds %d byte budget", size, limits.MaxMemory)
		}
		return out.value, nil
	}
}

func budgetErr(ctx context.Context, limits Limits) error {
	if ctx.Err() != nil {
		return errdefs.Wrap(errdefs.KindCancelled, ctx.Err(), "evaluation cancelled")
	}
	return errdefs.New(errdefs.KindSandboxTimeout,
		"evaluation exceeded %s budget", limits.MaxDuration)
}

// EvaluatePredicate evaluates an expression and coerces the result to a
// boolean: nil and empty values are false, non-zero numbers and non-empty
// strings are true.
func (e *Evaluator) EvaluatePredicate(ctx context.Context, src string, bindings map[string]any) (bool, error) {
	v, err := e.Evaluate(ctx, src, bindings)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case nil:
		return false, nil
	case string:
		return t != "", nil
	default:
		if f, ok := record.ToFloat(v); ok {
			return f != 0, nil
		}
		return !record.IsEmpty(v), nil
	}
}
