package compliance

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Transition describes what Classify did to the persisted state.
type Transition struct {
	From State `json:"from"`
	To   State `json:"to"`

	// Changed is true when the state-change procedure ran.
	Changed bool `json:"changed"`

	// Reset is true when all compliance state was deleted after recovering to valid.
	Reset bool `json:"reset,omitempty"`

	// FailOpen is true when an unknown verifier status forced valid for this
	// evaluation only.
	FailOpen bool `json:"fail_open,omitempty"`
}

// Classifier maps verifier results onto the persisted license state.
type Classifier struct {
	store *StateStore
	clock Clock
}

func NewClassifier(store *StateStore, clock Clock) *Classifier {
	return &Classifier{store: store, clock: clock}
}

// Classify applies the transition rules in order and returns the effective state.
// The store is only written when a transition happens. Write errors are returned
// alongside the effective state; the next classification retries the transition.
func (c *Classifier) Classify(ctx context.Context, result VerifierResult) (State, Transition, error) {
	prior := c.store.CurrentState(ctx)
	t := Transition{From: prior, To: prior}

	// A verifier that cannot answer must never look like a lapsed license.
	if !result.Status.Known() {
		t.To = StateValid
		t.FailOpen = true
		return StateValid, t, nil
	}

	switch {
	case prior != StateValid && result.Status == StatusValid && result.SiteActivated:
		t.To = StateValid
		t.Changed = true
		t.Reset = true
		err := c.changeState(ctx, StateValid)
		if cleanupErr := c.store.DeleteAll(ctx); cleanupErr != nil {
			err = errors.Join(err, fmt.Errorf("reset compliance state: %w", cleanupErr))
		}
		return StateValid, t, err

	case prior != StateUnlicensed && unlicensedStatus(result):
		t.To = StateUnlicensed
		t.Changed = true
		return StateUnlicensed, t, c.changeState(ctx, StateUnlicensed)

	case prior != StateInvalid && result.Status == StatusExpired:
		t.To = StateInvalid
		t.Changed = true
		return StateInvalid, t, c.changeState(ctx, StateInvalid)
	}

	return prior, t, nil
}

// unlicensedStatus covers a key that was never supplied or is not bound to this site.
func unlicensedStatus(result VerifierResult) bool {
	switch result.Status {
	case StatusInvalid, StatusPending:
		return true
	case StatusValid:
		return !result.SiteActivated
	default:
		return false
	}
}

// changeState persists the new state and resets the notification history so the
// new condition gets fresh escalation messaging. Every step is attempted.
func (c *Classifier) changeState(ctx context.Context, to State) error {
	today := c.clock.Today()
	var errs []error
	if err := c.store.SetCurrentState(ctx, to); err != nil {
		errs = append(errs, fmt.Errorf("persist license state: %w", err))
	}
	if err := c.store.SetLastChangedAt(ctx, today); err != nil {
		errs = append(errs, fmt.Errorf("persist state change date: %w", err))
	}
	if err := c.store.ClearLedger(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear notification ledger: %w", err))
	}
	if err := c.store.ClearNoticeSuppression(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear notice suppression: %w", err))
	}

	log.Info().
		Str("state", string(to)).
		Str("changed_at", today.String()).
		Msg("License compliance state changed")

	return errors.Join(errs...)
}
