// Package store persists the single in-flight workout session so it can be
// recovered after a restart, a suspension, or a crash.
//
// The store keeps two slots, keyed by purpose: a small timer checkpoint
// written every few seconds and a full session checkpoint written when the
// session payload changes. Every read re-validates ownership and age and
// deletes whatever it rejects, so an abandoned or foreign session can never be
// resurrected and nothing stale lingers.
//
// Persistence here is an optimisation for recovery, not part of the live
// session's correctness: write failures are logged and swallowed.
package store
