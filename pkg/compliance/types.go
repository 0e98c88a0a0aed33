package compliance

import (
	"context"
	"fmt"
)

// State is the durable classification of the installation's license standing.
type State string

const (
	StateValid      State = "valid"
	StateInvalid    State = "invalid"    // was bound and valid, now lapsed
	StateUnlicensed State = "unlicensed" // never supplied, or not bound to this site
)

// ParseState returns the State for s, or false if s is not one of the known states.
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StateValid, StateInvalid, StateUnlicensed:
		return State(s), true
	default:
		return "", false
	}
}

// Level is the escalation tier derived from a State and the days elapsed since the
// state last changed. It is recomputed on every evaluation and never persisted.
type Level string

const (
	LevelActive    Level = "active"
	LevelInitiated Level = "initiated"
	LevelLow       Level = "low_level"
	LevelMedium    Level = "med_level"
	LevelLocked    Level = "locked"
)

// Severity orders levels from least to most restrictive.
func (l Level) Severity() int {
	switch l {
	case LevelActive:
		return 0
	case LevelInitiated:
		return 1
	case LevelLow:
		return 2
	case LevelMedium:
		return 3
	case LevelLocked:
		return 4
	default:
		return -1
	}
}

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelInProduct Channel = "in_product"
	ChannelEmail     Channel = "email"
)

// Channels lists the channels in the order the controller fires them.
var Channels = []Channel{ChannelInProduct, ChannelEmail}

// Status is the raw answer from a license verifier.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusPending Status = "pending"
	StatusExpired Status = "expired"
	StatusUnknown Status = "unknown"
)

// Known reports whether the verifier gave a definitive answer.
func (s Status) Known() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusPending, StatusExpired:
		return true
	default:
		return false
	}
}

// VerifierResult is what a Verifier reports for a license key.
type VerifierResult struct {
	Status        Status `json:"status"`
	SiteActivated bool   `json:"site_activated"`
}

// UnknownResult is the result callers must use when the verifier could not answer.
var UnknownResult = VerifierResult{Status: StatusUnknown}

// TemplateKey identifies the message a host application should render for a
// state/level pair. It is also the notification ledger key.
func TemplateKey(state State, level Level) string {
	return fmt.Sprintf("%s_%s", state, level)
}

// Verifier checks the configured license key. Implementations map transport and
// decoding failures to UnknownResult; a non-nil error is informational only.
type Verifier interface {
	Check(ctx context.Context) (VerifierResult, error)
}

// KVStore is the persistent key-value store the compliance state lives in.
// Get reports ok=false for an absent key. Values written with durable=false may be
// discarded by the backend when the process restarts.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, durable bool) error
	Delete(ctx context.Context, key string) error
}

// Dispatcher delivers notifications. Content is the host application's
// responsibility; the compliance core only supplies the template key.
type Dispatcher interface {
	SendEmail(ctx context.Context, templateKey string) error
	PostInProductNotice(ctx context.Context, templateKey string) error
}

// Resetter is implemented by dispatchers that keep their own notification
// history. Reset is called when the license returns to good standing and on
// Cleanup.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Observer receives evaluation events, typically for metrics.
type Observer interface {
	ObserveEvaluation(state State, level Level)
	ObserveTransition(from, to State)
	ObserveNotification(channel Channel, templateKey string, err error)
	ObserveVerifierFailure(err error)
}

type nopObserver struct{}

func (nopObserver) ObserveEvaluation(State, Level)             {}
func (nopObserver) ObserveTransition(State, State)             {}
func (nopObserver) ObserveNotification(Channel, string, error) {}
func (nopObserver) ObserveVerifierFailure(error)               {}
