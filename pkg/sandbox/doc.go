/*
Package sandbox evaluates transformation expressions and rule predicates
under strict isolation.

Expressions are written in the expr language and can reach nothing but
their bindings: no I/O, no filesystem, no network, no process inspection,
and no clock beyond the frozen "now" binding injected per evaluation.
Bindings are deep-copied before evaluation so host records cannot be
mutated from inside an expression.

# Static pass

Check runs before any evaluation and rejects, in order:

  - denied token patterns (filesystem/process/network modules, dynamic
    code constructs, unbounded loop idioms)
  - syntactically malformed expressions
  - expressions whose count of control-flow and function nodes exceeds
    the complexity ceiling (default 100)

The mapping validator runs the same pass at save time so a mapping that
stores a hostile formula is rejected before it can ever execute.

# Runtime budgets

Each evaluation carries a wall-clock budget (default 5s) and a result
size budget (default 50MB). The evaluation runs in its own goroutine and
is abandoned on budget exhaustion; callers receive sandbox_timeout or
sandbox_memory_exceeded errors from pkg/errdefs. Expression failures
never propagate as panics into core tasks — every outcome is an explicit
error kind (syntax, denied, complexity, timeout, memory, runtime).
*/
package sandbox
