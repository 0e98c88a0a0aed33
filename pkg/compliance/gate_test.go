package compliance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationGate_ActiveNeverNotifies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, state := range []State{StateValid, StateInvalid, StateUnlicensed} {
		for _, ch := range Channels {
			assert.False(t, h.ctrl.gate.ShouldNotify(ctx, state, LevelActive, ch))
		}
	}
}

func TestNotificationGate_OncePerTriple(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	gate := h.ctrl.gate

	require.True(t, gate.ShouldNotify(ctx, StateUnlicensed, LevelLow, ChannelEmail))
	require.NoError(t, gate.RecordSent(ctx, StateUnlicensed, LevelLow, ChannelEmail))

	for i := 0; i < 5; i++ {
		assert.False(t, gate.ShouldNotify(ctx, StateUnlicensed, LevelLow, ChannelEmail))
	}
	assert.True(t, gate.ShouldNotify(ctx, StateUnlicensed, LevelLow, ChannelInProduct), "other channel unaffected")
	assert.True(t, gate.ShouldNotify(ctx, StateInvalid, LevelLow, ChannelEmail), "same level, different state is a new key")
	assert.True(t, gate.ShouldNotify(ctx, StateUnlicensed, LevelMedium, ChannelEmail), "escalated level is a new key")
}

func TestNotificationGate_RecordMergesChannels(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	gate := h.ctrl.gate

	require.NoError(t, gate.RecordSent(ctx, StateInvalid, LevelMedium, ChannelInProduct))
	h.advanceDays(1)
	require.NoError(t, gate.RecordSent(ctx, StateInvalid, LevelMedium, ChannelEmail))

	record := h.ctrl.store.Ledger(ctx)["invalid_med_level"]
	require.NotNil(t, record.InProductSentAt)
	require.NotNil(t, record.EmailSentAt)
	assert.Equal(t, 1, record.EmailSentAt.DaysSince(*record.InProductSentAt))
}

func TestNotificationGate_RejectsUnknownChannel(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.ctrl.gate.RecordSent(context.Background(), StateInvalid, LevelMedium, Channel("sms")))
}

func TestTemplateKey(t *testing.T) {
	assert.Equal(t, "unlicensed_low_level", TemplateKey(StateUnlicensed, LevelLow))
	assert.Equal(t, "invalid_locked", TemplateKey(StateInvalid, LevelLocked))
}
