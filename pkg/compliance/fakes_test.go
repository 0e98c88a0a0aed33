package compliance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var errInjected = errors.New("injected failure")

type fakeKV struct {
	mu       sync.Mutex
	data     map[string]string
	durable  map[string]bool
	failGet  bool
	failSet  bool
	setCalls int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, durable: map[string]bool{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return "", false, errInjected
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, durable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.failSet {
		return errInjected
	}
	f.data[key] = value
	f.durable[key] = durable
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errInjected
	}
	delete(f.data, key)
	delete(f.durable, key)
	return nil
}

func (f *fakeKV) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeKV) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls
}

type fakeVerifier struct {
	result VerifierResult
	err    error
}

func (v *fakeVerifier) Check(context.Context) (VerifierResult, error) {
	if v.err != nil {
		return UnknownResult, v.err
	}
	return v.result, nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	emails     []string
	notices    []string
	failEmail  bool
	failNotice bool
	resets     int
}

func (d *fakeDispatcher) SendEmail(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failEmail {
		return errInjected
	}
	d.emails = append(d.emails, key)
	return nil
}

func (d *fakeDispatcher) PostInProductNotice(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNotice {
		return errInjected
	}
	d.notices = append(d.notices, key)
	return nil
}

func (d *fakeDispatcher) Reset(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	d.notices = nil
	return nil
}

type recordingObserver struct {
	evaluations int
	transitions []Transition
	sent        int
	failed      int
	verifyFails int
}

func (o *recordingObserver) ObserveEvaluation(State, Level) { o.evaluations++ }
func (o *recordingObserver) ObserveTransition(from, to State) {
	o.transitions = append(o.transitions, Transition{From: from, To: to})
}
func (o *recordingObserver) ObserveNotification(_ Channel, _ string, err error) {
	if err != nil {
		o.failed++
		return
	}
	o.sent++
}
func (o *recordingObserver) ObserveVerifierFailure(error) { o.verifyFails++ }

// testStart is mid-day so that day arithmetic is not accidentally aligned to midnight.
var testStart = time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)

func newFakeClock() (clockwork.FakeClock, *ZoneClock) {
	fc := clockwork.NewFakeClockAt(testStart)
	return fc, NewZoneClockWith(fc, time.UTC)
}

type harness struct {
	kv         *fakeKV
	verifier   *fakeVerifier
	dispatcher *fakeDispatcher
	fake       clockwork.FakeClock
	clock      *ZoneClock
	observer   *recordingObserver
	ctrl       *Controller
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	fc, zc := newFakeClock()
	h := &harness{
		kv:         newFakeKV(),
		verifier:   &fakeVerifier{result: VerifierResult{Status: StatusValid, SiteActivated: true}},
		dispatcher: &fakeDispatcher{},
		fake:       fc,
		clock:      zc,
		observer:   &recordingObserver{},
	}
	opts = append([]Option{WithObserver(h.observer)}, opts...)
	ctrl, err := NewController(h.verifier, h.kv, h.dispatcher, h.clock, opts...)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	h.ctrl = ctrl
	return h
}

func (h *harness) advanceDays(n int) {
	h.fake.Advance(time.Duration(n) * 24 * time.Hour)
}
