// Package transform provides the built-in function catalog used by
// mapping rules of kind "transform" and by several other rule kinds
// that chain catalog functions over field values.
//
// Functions are addressed by "category.name" (for example
// "string.upper" or "date.format") and grouped into nine categories:
//
//	string       casing, trimming, regex replace, slugs and Korean
//	             jamo decomposition
//	number       parsing, rounding, formatting, clamping
//	date         token-pattern parse/format (YYYY-MM-DD HH:mm:ss) and
//	             arithmetic
//	array        set operations, sorting, chunking, aggregation
//	object       key/value projection, deep merge, path access
//	conditional  null/empty fallbacks, branching, membership
//	encoding     base64, URL escaping, JSON
//	hash         md5, sha1, sha256 hex digests
//	validator    format checks returning booleans (email, url, uuid,
//	             Luhn credit card, IPv4/IPv6, postal codes)
//
// Contract
//
// Every function is pure: no I/O, no shared state, deterministic for a
// given input. Null inputs flow through as null (validators return
// false instead), so a missing source field never aborts a batch on
// its own. Arity is declared per function and enforced both at
// mapping-validation time (Lookup plus MinArgs/MaxArgs) and at call
// time (Call).
//
// Failures are reported as validation errors carrying the catalog
// address, e.g. "number.parseInt: \"abc\" is not an integer". The
// mapping engine decides whether such an error fails the record or the
// whole batch.
package transform
