// Package engine implements the transaction executor.
//
// Every mutation is one Plan executed in three store round trips:
//
// Apply:
// One update request carrying the transaction's audit node, the intended
// graph changes and any grant triples, gated by the guard form of the
// plan's condition group. If any condition fails the WHERE clause matches
// nothing and the store silently applies nothing. The transport status of
// this call says nothing about whether it had an effect.
//
// Verify:
// One CONSTRUCT, always run after apply, that returns the audit node (if it
// was written), the post-mutation state of the affected resources and the
// diagnostic form of the condition group.
//
// Cleanup:
// A best-effort delete of the audit node, run on a context detached from
// the caller's cancellation. Failures are logged, never returned.
//
// OUTCOME:
// Committed iff the audit node is present in the verify graph and the
// plan's Committed predicate (if any) holds. Otherwise the first condition
// that did not pass, in declaration order, names the error. If every
// condition passed, the target changed between apply and verify and the
// outcome is a Conflict.
//
// There is no in-process locking. Exclusion comes from the store applying
// each update atomically and from guards written so two conflicting
// requests cannot both see their preconditions hold.
//
// SIDE CHANNELS:
// Each decided transaction is journaled, counted in metrics and, when
// committed, published as an event. None of these can change an outcome.
package engine
