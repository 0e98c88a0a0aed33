package compliance

import (
	"context"
	"fmt"
)

// NotificationGate deduplicates notifications per state/level/channel. Keying by
// the state as well as the level means that a customer moving from unlicensed to
// invalid at the same tier is still told about it.
//
// ShouldNotify followed by RecordSent is not atomic across the store. Concurrent
// evaluations can both pass the check and send twice; hosts that need exactly-once
// delivery must deduplicate at the dispatcher.
type NotificationGate struct {
	store *StateStore
	clock Clock
}

func NewNotificationGate(store *StateStore, clock Clock) *NotificationGate {
	return &NotificationGate{store: store, clock: clock}
}

// ShouldNotify reports whether channel has not yet fired for state/level.
// Compliant installations are never notified.
func (g *NotificationGate) ShouldNotify(ctx context.Context, state State, level Level, channel Channel) bool {
	if level == LevelActive {
		return false
	}
	record, ok := g.store.Ledger(ctx)[TemplateKey(state, level)]
	if !ok {
		return true
	}
	return record.SentAt(channel) == nil
}

// RecordSent marks channel as sent today, keeping the other channel's timestamp.
func (g *NotificationGate) RecordSent(ctx context.Context, state State, level Level, channel Channel) error {
	if channel != ChannelInProduct && channel != ChannelEmail {
		return fmt.Errorf("unknown notification channel %q", channel)
	}
	key := TemplateKey(state, level)
	ledger := g.store.Ledger(ctx)
	record := ledger[key]
	record.markSent(channel, g.clock.Today())
	ledger[key] = record
	if err := g.store.SetLedger(ctx, ledger); err != nil {
		return fmt.Errorf("record %s notification for %s: %w", channel, key, err)
	}
	return nil
}
