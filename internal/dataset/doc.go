// Package dataset loads the raw real-estate sales CSV into the
// canonical in-memory table used by the rest of the application.
//
// Loading is a one-shot operation at startup. Individual rows that
// fail type coercion or the record invariant are dropped and counted,
// never mutated in place; only a missing file or a header schema
// mismatch is fatal. The resulting Table is immutable and safe to
// share read-only across requests.
package dataset
