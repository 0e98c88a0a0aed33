package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

// maxNotices caps the stored notice list; the oldest are dropped first.
const maxNotices = 50

// Notice is an in-product message for the host UI to display.
type Notice struct {
	ID          string    `json:"id"`
	TemplateKey string    `json:"template_key"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body,omitempty"`
	PostedAt    time.Time `json:"posted_at"`
}

// NoticeBoard keeps in-product notices in the compliance key-value store.
type NoticeBoard struct {
	kv  compliance.KVStore
	key string
	now func() time.Time

	mu sync.Mutex
}

// NewNoticeBoard stores notices under prefix+"notices".
func NewNoticeBoard(kv compliance.KVStore, prefix string) *NoticeBoard {
	if prefix == "" {
		prefix = compliance.DefaultKeyPrefix
	}
	return &NoticeBoard{kv: kv, key: prefix + "notices", now: time.Now}
}

// Key returns the storage key holding the notice list.
func (b *NoticeBoard) Key() string {
	return b.key
}

// Post appends a notice and returns it with its assigned ID.
func (b *NoticeBoard) Post(ctx context.Context, templateKey, subject, body string) (Notice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	notices, err := b.load(ctx)
	if err != nil {
		return Notice{}, err
	}

	now := b.now().UTC()
	notice := Notice{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		TemplateKey: templateKey,
		Subject:     subject,
		Body:        body,
		PostedAt:    now,
	}
	notices = append(notices, notice)
	if len(notices) > maxNotices {
		notices = notices[len(notices)-maxNotices:]
	}
	if err := b.save(ctx, notices); err != nil {
		return Notice{}, err
	}
	return notice, nil
}

// List returns stored notices, oldest first.
func (b *NoticeBoard) List(ctx context.Context) ([]Notice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

// Clear removes all notices.
func (b *NoticeBoard) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kv.Delete(ctx, b.key)
}

func (b *NoticeBoard) load(ctx context.Context) ([]Notice, error) {
	raw, ok, err := b.kv.Get(ctx, b.key)
	if err != nil {
		return nil, fmt.Errorf("load notices: %w", err)
	}
	if !ok || raw == "" {
		return []Notice{}, nil
	}
	var notices []Notice
	if err := json.Unmarshal([]byte(raw), &notices); err != nil {
		return nil, fmt.Errorf("decode notices: %w", err)
	}
	return notices, nil
}

func (b *NoticeBoard) save(ctx context.Context, notices []Notice) error {
	data, err := json.Marshal(notices)
	if err != nil {
		return fmt.Errorf("encode notices: %w", err)
	}
	return b.kv.Set(ctx, b.key, string(data), true)
}
