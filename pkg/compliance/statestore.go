package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultKeyPrefix namespaces the compliance keys inside a shared store.
const DefaultKeyPrefix = "pulse_compliance_"

const (
	keyState            = "license_state"
	keyChangedAt        = "license_state_changed_at"
	keyLedger           = "notification_ledger"
	keyNoticeSuppressed = "notice_suppressed_until"
)

// NotificationRecord tracks which channels have fired for one state/level pair.
type NotificationRecord struct {
	InProductSentAt *Date `json:"in_product_sent_at,omitempty"`
	EmailSentAt     *Date `json:"email_sent_at,omitempty"`
}

// SentAt returns the timestamp recorded for channel, or nil.
func (r NotificationRecord) SentAt(channel Channel) *Date {
	switch channel {
	case ChannelInProduct:
		return r.InProductSentAt
	case ChannelEmail:
		return r.EmailSentAt
	default:
		return nil
	}
}

func (r *NotificationRecord) markSent(channel Channel, on Date) {
	d := on
	switch channel {
	case ChannelInProduct:
		r.InProductSentAt = &d
	case ChannelEmail:
		r.EmailSentAt = &d
	}
}

// Ledger maps TemplateKey(state, level) to the channels already notified.
type Ledger map[string]NotificationRecord

// StateStore is a typed view over the four persisted compliance keys. Reads never
// fail: an absent or undecodable value yields the documented default.
type StateStore struct {
	kv     KVStore
	prefix string
}

// NewStateStore wraps kv. An empty prefix uses DefaultKeyPrefix.
func NewStateStore(kv KVStore, prefix string) *StateStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &StateStore{kv: kv, prefix: prefix}
}

// Keys returns the fully-qualified keys owned by the store.
func (s *StateStore) Keys() []string {
	return []string{
		s.key(keyState),
		s.key(keyChangedAt),
		s.key(keyLedger),
		s.key(keyNoticeSuppressed),
	}
}

func (s *StateStore) key(name string) string {
	return s.prefix + name
}

func (s *StateStore) read(ctx context.Context, name string) (string, bool) {
	value, ok, err := s.kv.Get(ctx, s.key(name))
	if err != nil {
		log.Warn().Err(err).Str("key", s.key(name)).Msg("Compliance store read failed; using default")
		return "", false
	}
	return value, ok
}

// CurrentState returns the persisted state, defaulting to StateValid.
func (s *StateStore) CurrentState(ctx context.Context) State {
	raw, ok := s.read(ctx, keyState)
	if !ok {
		return StateValid
	}
	state, known := ParseState(raw)
	if !known {
		log.Warn().Str("value", raw).Msg("Unrecognized persisted license state; using valid")
		return StateValid
	}
	return state
}

func (s *StateStore) SetCurrentState(ctx context.Context, state State) error {
	if _, ok := ParseState(string(state)); !ok {
		return fmt.Errorf("refusing to persist unknown license state %q", state)
	}
	return s.kv.Set(ctx, s.key(keyState), string(state), true)
}

// LastChangedAt returns the date of the last state transition, if any.
func (s *StateStore) LastChangedAt(ctx context.Context) (Date, bool) {
	raw, ok := s.read(ctx, keyChangedAt)
	if !ok || raw == "" {
		return Date{}, false
	}
	d, err := ParseDate(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Undecodable license state timestamp; treating as never changed")
		return Date{}, false
	}
	return d, true
}

func (s *StateStore) SetLastChangedAt(ctx context.Context, d Date) error {
	return s.kv.Set(ctx, s.key(keyChangedAt), d.String(), true)
}

// Ledger returns the notification ledger, empty when absent or undecodable.
func (s *StateStore) Ledger(ctx context.Context) Ledger {
	raw, ok := s.read(ctx, keyLedger)
	if !ok || raw == "" {
		return Ledger{}
	}
	var ledger Ledger
	if err := json.Unmarshal([]byte(raw), &ledger); err != nil {
		log.Warn().Err(err).Msg("Undecodable notification ledger; treating as empty")
		return Ledger{}
	}
	if ledger == nil {
		return Ledger{}
	}
	return ledger
}

func (s *StateStore) SetLedger(ctx context.Context, ledger Ledger) error {
	data, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode notification ledger: %w", err)
	}
	return s.kv.Set(ctx, s.key(keyLedger), string(data), true)
}

func (s *StateStore) ClearLedger(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key(keyLedger))
}

// NoticeSuppressedUntil returns the end of the current dismissal window, if any.
func (s *StateStore) NoticeSuppressedUntil(ctx context.Context) (time.Time, bool) {
	raw, ok := s.read(ctx, keyNoticeSuppressed)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	until, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		log.Warn().Err(err).Msg("Undecodable notice suppression instant; ignoring")
		return time.Time{}, false
	}
	return until, true
}

// SetNoticeSuppressedUntil is stored non-durable: losing it on restart only
// re-shows a dismissed notice.
func (s *StateStore) SetNoticeSuppressedUntil(ctx context.Context, until time.Time) error {
	return s.kv.Set(ctx, s.key(keyNoticeSuppressed), until.UTC().Format(time.RFC3339), false)
}

func (s *StateStore) ClearNoticeSuppression(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key(keyNoticeSuppressed))
}

// DeleteAll removes every compliance key. All deletes are attempted.
func (s *StateStore) DeleteAll(ctx context.Context) error {
	var errs []error
	for _, key := range s.Keys() {
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
