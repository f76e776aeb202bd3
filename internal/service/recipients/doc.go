// Package recipients turns a message's targeting configuration into
// the deduplicated set of recipients a bulk run should reach.
//
// The result is a pure function of stored state at call time: consent
// and dedup rules are applied in application code over explicit sets,
// and the output is sorted, so no behavior depends on store iteration
// order.
package recipients
