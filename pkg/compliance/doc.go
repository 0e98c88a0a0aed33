// Package compliance implements the license-compliance state machine.
//
// On every evaluation the Controller asks a Verifier about the configured license,
// folds the answer into a persisted State (valid, invalid or unlicensed), derives a
// restriction Level from the calendar days elapsed since that state last changed,
// and fires at most one email and one in-product notice per state/level pair.
//
// The level is never persisted; it is recomputed from the state, the date of the
// last change and today's date in the installation's time zone, so repeated
// evaluations are idempotent. Returning to a valid, activated license deletes all
// persisted compliance state.
package compliance
