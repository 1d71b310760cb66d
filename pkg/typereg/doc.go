/*
Package typereg defines the universal type taxonomy shared by all
connectors and the conversions in and out of it.

The taxonomy is a closed set of eighteen universal types bucketed into six
categories (text, numeric, datetime, boolean, binary, complex). For each
connector kind the package holds two pure lookup tables: native→universal
(ToUniversal) and universal→native (FromUniversal).

Compatibility rules used by the mapping validator:

  - identical types are compatible
  - numeric widening is compatible, narrowing is lossy
  - string ↔ text are compatible (text→string is lossy)
  - datetime-family types are mutually compatible
  - anything is compatible with json (it can always be serialized)

Name similarity (Similarity) drives the auto-mapper: normalised
Levenshtein distance with containment and prefix/suffix bonuses, scoring
in [0,1].
*/
package typereg
