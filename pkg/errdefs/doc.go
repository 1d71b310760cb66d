/*
Package errdefs defines the closed error taxonomy shared by all nificdc
components.

Every error that crosses a component boundary carries a Kind from the closed
set (validation, conflict, not_found, rate_limited, the sandbox family, the
connector family, execution_timeout, cancelled, storage_unavailable,
internal). Callers branch on kinds with the Is* predicates rather than
string matching, and the audit manager derives event severity from the kind
via Severity.

Errors are created with the constructors (New, Wrap, NotFound, Conflict,
Validation, RateLimited) and inspected with KindOf. Wrapping preserves the
cause chain so errors.Is and errors.As continue to work through this
package.
*/
package errdefs
