/*
Package record models source and target records as a tree of
JSON-compatible values with dotted-path access.

Mapping rules reference fields by dotted paths over heterogeneous records,
so the tree is navigated with GetPath and mutated with SetPath (which
creates intermediate objects on demand) rather than reflection. Clone
produces the deep copies the sandbox needs for immutable bindings, and the
coercion helpers (ToString, ToFloat, IsEmpty) centralize the loose typing
rules the mapping engine applies to heterogeneous inputs.
*/
package record
