package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultNoticeSnooze is how long a dismissed in-product notice stays hidden.
const DefaultNoticeSnooze = 24 * time.Hour

// Result is the outcome of one evaluation.
type Result struct {
	State       State      `json:"state"`
	Level       Level      `json:"level"`
	DaysElapsed int        `json:"days_elapsed"`
	Transition  Transition `json:"transition"`

	// Notified lists the channels dispatched during this evaluation.
	Notified []Channel `json:"notified,omitempty"`
}

// Behavior returns the host-facing behavior for the result's level.
func (r Result) Behavior() LevelBehavior {
	return Behavior(r.Level)
}

// Snapshot is the persisted compliance view, computed without calling the verifier.
type Snapshot struct {
	State                 State      `json:"state"`
	Level                 Level      `json:"level"`
	DaysElapsed           int        `json:"days_elapsed"`
	LastChangedAt         *Date      `json:"last_changed_at,omitempty"`
	Ledger                Ledger     `json:"notification_ledger"`
	NoticeSuppressedUntil *time.Time `json:"notice_suppressed_until,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithKeyPrefix namespaces the persisted keys.
func WithKeyPrefix(prefix string) Option {
	return func(c *Controller) { c.prefix = prefix }
}

// WithLadder overrides the escalation thresholds.
func WithLadder(l Ladder) Option {
	return func(c *Controller) { c.ladder = l }
}

// WithInProductNotices enables or disables the in-product channel.
func WithInProductNotices(enabled bool) Option {
	return func(c *Controller) { c.inProductEnabled = enabled }
}

// WithEmail enables or disables the email channel.
func WithEmail(enabled bool) Option {
	return func(c *Controller) { c.emailEnabled = enabled }
}

// WithNoticeSnooze sets how long DismissNotice hides in-product notices.
func WithNoticeSnooze(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.noticeSnooze = d
		}
	}
}

// WithObserver installs an evaluation observer, e.g. for metrics.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// Controller runs the classify, level and notify sequence once per invocation.
// It holds no mutable state of its own; everything lives in the KVStore.
type Controller struct {
	verifier   Verifier
	dispatcher Dispatcher
	clock      Clock

	store      *StateStore
	classifier *Classifier
	gate       *NotificationGate

	prefix           string
	ladder           Ladder
	inProductEnabled bool
	emailEnabled     bool
	noticeSnooze     time.Duration
	observer         Observer
}

// NewController wires a controller from its collaborators.
func NewController(verifier Verifier, kv KVStore, dispatcher Dispatcher, clock Clock, opts ...Option) (*Controller, error) {
	var missing []string
	if verifier == nil {
		missing = append(missing, "verifier")
	}
	if kv == nil {
		missing = append(missing, "store")
	}
	if dispatcher == nil {
		missing = append(missing, "dispatcher")
	}
	if clock == nil {
		missing = append(missing, "clock")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("compliance controller missing dependencies: %v", missing)
	}

	c := &Controller{
		verifier:         verifier,
		dispatcher:       dispatcher,
		clock:            clock,
		ladder:           DefaultLadder,
		inProductEnabled: true,
		emailEnabled:     true,
		noticeSnooze:     DefaultNoticeSnooze,
		observer:         nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.store = NewStateStore(kv, c.prefix)
	c.classifier = NewClassifier(c.store, clock)
	c.gate = NewNotificationGate(c.store, clock)
	return c, nil
}

// Store exposes the typed state store, mainly for diagnostics.
func (c *Controller) Store() *StateStore {
	return c.store
}

// Evaluate classifies the current license, computes the restriction level and
// fires any notifications that are due. It always returns a usable result.
func (c *Controller) Evaluate(ctx context.Context) Result {
	result, err := c.verifier.Check(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("License verification failed; treating status as unknown")
		c.observer.ObserveVerifierFailure(err)
		result = UnknownResult
	}

	state, transition, err := c.classifier.Classify(ctx, result)
	if err != nil {
		log.Error().Err(err).
			Str("from", string(transition.From)).
			Str("to", string(transition.To)).
			Msg("Failed to persist license state transition; will retry on next evaluation")
	}
	if transition.Changed {
		c.observer.ObserveTransition(transition.From, transition.To)
	}
	if transition.Reset {
		c.resetDispatcher(ctx)
	}

	days := c.daysElapsed(ctx)
	if transition.FailOpen {
		days = 0
	}
	level := c.ladder.Level(state, days)

	out := Result{
		State:       state,
		Level:       level,
		DaysElapsed: days,
		Transition:  transition,
	}
	if level != LevelActive {
		out.Notified = c.notify(ctx, state, level)
	}

	c.observer.ObserveEvaluation(state, level)
	log.Debug().
		Str("state", string(state)).
		Str("level", string(level)).
		Int("days_elapsed", days).
		Bool("changed", transition.Changed).
		Bool("fail_open", transition.FailOpen).
		Msg("License compliance evaluated")
	return out
}

func (c *Controller) daysElapsed(ctx context.Context) int {
	changed, ok := c.store.LastChangedAt(ctx)
	if !ok {
		return 0
	}
	days := c.clock.Today().DaysSince(changed)
	if days < 0 {
		return 0
	}
	return days
}

func (c *Controller) notify(ctx context.Context, state State, level Level) []Channel {
	key := TemplateKey(state, level)
	var sent []Channel
	for _, channel := range Channels {
		if !c.channelAllowed(ctx, channel) {
			continue
		}
		if !c.gate.ShouldNotify(ctx, state, level, channel) {
			continue
		}

		err := c.dispatch(ctx, channel, key)
		c.observer.ObserveNotification(channel, key, err)
		if err != nil {
			// Left unrecorded so the next evaluation retries.
			log.Warn().Err(err).
				Str("channel", string(channel)).
				Str("template_key", key).
				Msg("License notification dispatch failed")
			continue
		}

		if err := c.gate.RecordSent(ctx, state, level, channel); err != nil {
			log.Error().Err(err).
				Str("channel", string(channel)).
				Str("template_key", key).
				Msg("Failed to record license notification; it may be sent again")
		}
		sent = append(sent, channel)
	}
	return sent
}

func (c *Controller) channelAllowed(ctx context.Context, channel Channel) bool {
	switch channel {
	case ChannelInProduct:
		return c.inProductEnabled && !c.NoticeSuppressed(ctx)
	case ChannelEmail:
		return c.emailEnabled
	default:
		return false
	}
}

func (c *Controller) dispatch(ctx context.Context, channel Channel, key string) error {
	switch channel {
	case ChannelInProduct:
		return c.dispatcher.PostInProductNotice(ctx, key)
	case ChannelEmail:
		return c.dispatcher.SendEmail(ctx, key)
	default:
		return fmt.Errorf("unknown notification channel %q", channel)
	}
}

func (c *Controller) resetDispatcher(ctx context.Context) {
	r, ok := c.dispatcher.(Resetter)
	if !ok {
		return
	}
	if err := r.Reset(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to clear delivered license notices")
	}
}

// DismissNotice hides in-product notices for the configured snooze window.
func (c *Controller) DismissNotice(ctx context.Context) (time.Time, error) {
	until := c.clock.Now().Add(c.noticeSnooze)
	if err := c.store.SetNoticeSuppressedUntil(ctx, until); err != nil {
		return time.Time{}, fmt.Errorf("dismiss license notice: %w", err)
	}
	return until, nil
}

// NoticeSuppressed reports whether a dismissal window is in effect. An expired
// window is removed.
func (c *Controller) NoticeSuppressed(ctx context.Context) bool {
	until, ok := c.store.NoticeSuppressedUntil(ctx)
	if !ok {
		return false
	}
	if c.clock.Now().Before(until) {
		return true
	}
	if err := c.store.ClearNoticeSuppression(ctx); err != nil {
		log.Debug().Err(err).Msg("Failed to clear expired notice suppression")
	}
	return false
}

// Snapshot reads the persisted state without calling the verifier.
func (c *Controller) Snapshot(ctx context.Context) Snapshot {
	state := c.store.CurrentState(ctx)
	days := c.daysElapsed(ctx)
	snap := Snapshot{
		State:       state,
		Level:       c.ladder.Level(state, days),
		DaysElapsed: days,
		Ledger:      c.store.Ledger(ctx),
	}
	if changed, ok := c.store.LastChangedAt(ctx); ok {
		snap.LastChangedAt = &changed
	}
	if until, ok := c.store.NoticeSuppressedUntil(ctx); ok {
		snap.NoticeSuppressedUntil = &until
	}
	return snap
}

// Cleanup deletes all persisted compliance state. It is safe to call from an
// uninstall routine.
func (c *Controller) Cleanup(ctx context.Context) error {
	if err := c.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("cleanup compliance state: %w", err)
	}
	if r, ok := c.dispatcher.(Resetter); ok {
		if err := r.Reset(ctx); err != nil {
			return fmt.Errorf("cleanup delivered notices: %w", err)
		}
	}
	log.Info().Msg("License compliance state cleared")
	return nil
}
