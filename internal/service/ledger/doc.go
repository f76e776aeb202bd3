// Package ledger tracks which (message, recipient) pairs have already
// been delivered. The ledger is the sole durability marker for a
// delivery: a row means sent, no row means pending. Rows are
// append-only during a run and purged only after the message completes,
// since the message's snapshot counters preserve the historical totals.
package ledger
