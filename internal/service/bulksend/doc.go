// Package bulksend runs one message's delivery pass: resolve the
// recipients, subtract what the ledger already records, send to the
// rest, and mark the message complete once nothing is outstanding.
//
// A pass is re-entrant. Interrupting it at any point loses nothing,
// because every per-recipient step is durable before the next send;
// the following pass simply continues from the ledger. Concurrent
// passes over the same message are excluded by a per-message lock.
package bulksend
