package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazarhussain/contact-gate/internal/contact"
	"github.com/nazarhussain/contact-gate/internal/store"
)

type fakeRelay struct {
	mu     sync.Mutex
	calls  []contact.RelayRequest
	result Result
	err    error
	block  chan struct{} // when set, Send waits on it
}

func (f *fakeRelay) Send(ctx context.Context, req contact.RelayRequest) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.result, f.err
}

func (f *fakeRelay) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func at(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func validForm() *contact.Form {
	return &contact.Form{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Subject: "Collaboration",
		Message: "Let's build something.",
	}
}

func newTestGate(t *testing.T, initial State) (*Gate, *store.Memory, *fakeRelay) {
	t.Helper()
	kv := store.NewMemory()
	require.NoError(t, SaveState(context.Background(), kv, initial))
	relay := &fakeRelay{result: Success()}
	g := New(kv, relay,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClient("contact-test/1.0", "https://example.com/#contact"),
	)
	return g, kv, relay
}

func persisted(t *testing.T, kv Store) State {
	t.Helper()
	st, err := LoadState(context.Background(), kv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return st
}

func TestFirstSubmission(t *testing.T) {
	g, kv, relay := newTestGate(t, State{})
	form := validForm()

	d, err := g.Attempt(context.Background(), form, at(1000))
	require.NoError(t, err)

	assert.Equal(t, Accepted, d.Outcome)
	assert.True(t, d.Succeeded())
	assert.Equal(t, 1, relay.callCount())
	assert.Equal(t, contact.Form{}, *form, "form is cleared after success")

	st := persisted(t, kv)
	assert.Equal(t, int64(1000), st.LastSubmitTime)
	assert.Equal(t, 1, st.HourlyCount)
}

func TestCooldownRejects(t *testing.T) {
	g, _, relay := newTestGate(t, State{})
	ctx := context.Background()

	_, err := g.Attempt(ctx, validForm(), at(1000))
	require.NoError(t, err)

	// 30 seconds after the accepted submission.
	d, err := g.Attempt(ctx, validForm(), at(31_000))
	require.NoError(t, err)
	assert.Equal(t, Rejected, d.Outcome)
	assert.Equal(t, ReasonRateLimited, d.Reason)
	assert.Equal(t, 30, d.RetryAfterSeconds)
	assert.False(t, d.QuotaExceeded)
	assert.Contains(t, d.Message, "30")
	assert.Equal(t, 1, relay.callCount())

	secs, err := g.RemainingCooldownSeconds(ctx, at(31_000))
	require.NoError(t, err)
	assert.Equal(t, 30, secs)

	// Partial seconds round up.
	secs, err = g.RemainingCooldownSeconds(ctx, at(30_500))
	require.NoError(t, err)
	assert.Equal(t, 31, secs)
}

func TestQuotaWithinWindow(t *testing.T) {
	g, kv, relay := newTestGate(t, State{HourlyCount: 3, HourlyWindowStart: 0})
	before := persisted(t, kv)

	d, err := g.Attempt(context.Background(), validForm(), at(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, Rejected, d.Outcome)
	assert.True(t, d.QuotaExceeded)
	assert.Zero(t, relay.callCount())
	assert.Equal(t, before, persisted(t, kv))
}

func TestWindowRollsOver(t *testing.T) {
	g, kv, relay := newTestGate(t, State{HourlyCount: 3, HourlyWindowStart: 0})
	ctx := context.Background()

	st, err := g.State(ctx, at(3_700_000))
	require.NoError(t, err)
	assert.Equal(t, int64(3_700_000), st.HourlyWindowStart)
	assert.Equal(t, 0, st.HourlyCount)

	ok, err := g.CanSubmit(ctx, at(3_700_000))
	require.NoError(t, err)
	assert.True(t, ok)

	d, err := g.Attempt(ctx, validForm(), at(3_700_000))
	require.NoError(t, err)
	assert.Equal(t, Accepted, d.Outcome)
	assert.Equal(t, 1, relay.callCount())
	assert.Equal(t, State{LastSubmitTime: 3_700_000, HourlyWindowStart: 3_700_000, HourlyCount: 1}, persisted(t, kv))
}

func TestHoneypot(t *testing.T) {
	g, kv, relay := newTestGate(t, State{LastSubmitTime: 5000, HourlyWindowStart: 100, HourlyCount: 1})
	before := persisted(t, kv)
	form := validForm()
	form.Honeypot = "x"

	d, err := g.Attempt(context.Background(), form, at(6000))
	require.NoError(t, err)
	assert.Equal(t, SilentAccept, d.Outcome)
	assert.True(t, d.Succeeded())
	assert.Equal(t, MsgSent, d.Message)
	assert.Zero(t, relay.callCount())
	assert.Equal(t, before, persisted(t, kv))
}

func TestHoneypotWinsOverMissingFields(t *testing.T) {
	g, _, relay := newTestGate(t, State{})

	d, err := g.Attempt(context.Background(), &contact.Form{Honeypot: "bot"}, at(1000))
	require.NoError(t, err)
	assert.Equal(t, SilentAccept, d.Outcome)
	assert.Zero(t, relay.callCount())
}

func TestCooldownBoundary(t *testing.T) {
	g, _, _ := newTestGate(t, State{})
	ctx := context.Background()
	t1 := int64(1_000_000)

	_, err := g.Attempt(ctx, validForm(), at(t1))
	require.NoError(t, err)

	for _, now := range []int64{t1 + 1, t1 + 30_000, t1 + 59_999} {
		ok, err := g.CanSubmit(ctx, at(now))
		require.NoError(t, err)
		assert.False(t, ok, "now=%d", now)
	}

	ok, err := g.CanSubmit(ctx, at(t1+60_000))
	require.NoError(t, err)
	assert.True(t, ok)

	secs, err := g.RemainingCooldownSeconds(ctx, at(t1+60_000))
	require.NoError(t, err)
	assert.Zero(t, secs)
}

func TestQuotaBoundary(t *testing.T) {
	g, kv, relay := newTestGate(t, State{})
	ctx := context.Background()
	start := int64(10_000_000)

	for i := 0; i < 3; i++ {
		d, err := g.Attempt(ctx, validForm(), at(start+int64(i)*60_000))
		require.NoError(t, err)
		require.Equal(t, Accepted, d.Outcome, "submission %d", i+1)
	}
	assert.Equal(t, 3, persisted(t, kv).HourlyCount)

	// Cooldown has long elapsed but the window is still open.
	d, err := g.Attempt(ctx, validForm(), at(start+30*60_000))
	require.NoError(t, err)
	assert.Equal(t, Rejected, d.Outcome)
	assert.True(t, d.QuotaExceeded)
	assert.Equal(t, 3, relay.callCount())

	// Quota wins even while cooling down.
	d, err = g.Attempt(ctx, validForm(), at(start+2*60_000+1000))
	require.NoError(t, err)
	assert.True(t, d.QuotaExceeded)

	// Window started at the first submission; it expires strictly after an hour.
	d, err = g.Attempt(ctx, validForm(), at(start+3_600_000))
	require.NoError(t, err)
	assert.True(t, d.QuotaExceeded)

	d, err = g.Attempt(ctx, validForm(), at(start+3_600_001))
	require.NoError(t, err)
	assert.Equal(t, Accepted, d.Outcome)
	assert.Equal(t, State{
		LastSubmitTime:    start + 3_600_001,
		HourlyWindowStart: start + 3_600_001,
		HourlyCount:       1,
	}, persisted(t, kv))
}

func TestRelayFailureLeavesStateUntouched(t *testing.T) {
	initial := State{LastSubmitTime: 1000, HourlyWindowStart: 500, HourlyCount: 2}

	cases := map[string]*fakeRelay{
		"refused":   {result: Failure("provider exploded")},
		"transport": {err: errors.Join(ErrTransport, errors.New("connection refused"))},
	}
	for name, relay := range cases {
		t.Run(name, func(t *testing.T) {
			g, kv, _ := newTestGate(t, initial)
			g.relay = relay
			before := kv.Snapshot()
			form := validForm()

			d, err := g.Attempt(context.Background(), form, at(120_000))
			require.NoError(t, err)
			assert.Equal(t, Rejected, d.Outcome)
			assert.Equal(t, MsgSendFailed, d.Message)
			assert.NotContains(t, d.Message, "exploded")
			assert.NotEmpty(t, d.Reason)
			assert.Equal(t, before, kv.Snapshot())
			assert.Equal(t, *validForm(), *form, "form is retained for retry")
		})
	}
}

func TestFailureAfterExpiredWindowDoesNotPersistRoll(t *testing.T) {
	g, kv, relay := newTestGate(t, State{HourlyWindowStart: 0, HourlyCount: 3})
	relay.result = Failure("nope")
	before := kv.Snapshot()

	d, err := g.Attempt(context.Background(), validForm(), at(3_700_000))
	require.NoError(t, err)
	assert.Equal(t, Rejected, d.Outcome)
	assert.Equal(t, before, kv.Snapshot())
}

func TestMissingFieldsNeverReachRelay(t *testing.T) {
	fields := []string{"name", "email", "subject", "message"}
	for mask := 1; mask < 1<<len(fields); mask++ {
		form := validForm()
		var empty []string
		for i, f := range fields {
			if mask&(1<<i) == 0 {
				continue
			}
			empty = append(empty, f)
			switch f {
			case "name":
				form.Name = ""
			case "email":
				form.Email = ""
			case "subject":
				form.Subject = ""
			case "message":
				form.Message = ""
			}
		}
		t.Run(strconv.Itoa(mask), func(t *testing.T) {
			g, kv, relay := newTestGate(t, State{})
			before := kv.Snapshot()
			kept := *form

			d, err := g.Attempt(context.Background(), form, at(1000))
			require.NoError(t, err)
			assert.Equal(t, Rejected, d.Outcome)
			assert.Equal(t, ReasonMissingFields, d.Reason)
			assert.Equal(t, MsgMissingFields, d.Message)
			assert.Equal(t, empty, d.Missing)
			assert.Zero(t, relay.callCount())
			assert.Equal(t, before, kv.Snapshot())
			assert.Equal(t, kept, *form)
		})
	}
}

func TestRequestCarriesMeta(t *testing.T) {
	g, _, relay := newTestGate(t, State{})

	_, err := g.Attempt(context.Background(), validForm(), time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, relay.callCount())

	req := relay.calls[0]
	assert.Equal(t, "Ada Lovelace", req.Name)
	assert.Equal(t, "ada@example.com", req.Email)
	assert.Empty(t, req.Honeypot)
	require.NotNil(t, req.Meta)
	assert.Equal(t, "2026-03-04T05:06:07.890Z", req.Meta.SentAt)
	assert.Equal(t, "contact-test/1.0", req.Meta.UserAgent)
	assert.Equal(t, "https://example.com/#contact", req.Meta.Page)
}

func TestConcurrentAttemptIsRefused(t *testing.T) {
	g, kv, relay := newTestGate(t, State{})
	relay.block = make(chan struct{})
	ctx := context.Background()

	done := make(chan Decision)
	go func() {
		d, _ := g.Attempt(ctx, validForm(), at(1000))
		done <- d
	}()

	require.Eventually(t, func() bool { return relay.callCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, g.Submitting())

	_, err := g.Attempt(ctx, validForm(), at(1001))
	assert.ErrorIs(t, err, ErrInProgress)

	close(relay.block)
	d := <-done
	assert.Equal(t, Accepted, d.Outcome)
	assert.False(t, g.Submitting())
	assert.Equal(t, 1, relay.callCount())
	assert.Equal(t, 1, persisted(t, kv).HourlyCount)
}

func TestRecordRereadsStoredState(t *testing.T) {
	g, kv, relay := newTestGate(t, State{HourlyWindowStart: 1, HourlyCount: 1})
	relay.block = make(chan struct{})
	ctx := context.Background()

	done := make(chan error)
	go func() {
		_, err := g.Attempt(ctx, validForm(), at(200_000))
		done <- err
	}()
	require.Eventually(t, func() bool { return relay.callCount() == 1 }, time.Second, time.Millisecond)

	// Another writer bumps the counter while the relay call is in flight.
	require.NoError(t, kv.Set(ctx, KeyHourlyCount, "2"))
	close(relay.block)
	require.NoError(t, <-done)

	assert.Equal(t, 3, persisted(t, kv).HourlyCount)
}

func TestUnreadableValuesReadAsZero(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, KeyLastSubmitTime, "yesterday"))
	require.NoError(t, kv.Set(ctx, KeyHourlyCount, "-4"))

	st, err := LoadState(ctx, kv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

func TestReset(t *testing.T) {
	g, kv, _ := newTestGate(t, State{LastSubmitTime: 9, HourlyWindowStart: 8, HourlyCount: 3})
	require.NoError(t, g.Reset(context.Background()))
	assert.Equal(t, State{}, persisted(t, kv))
}

type failingStore struct{ store.Memory }

func (f *failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func TestStoreErrorsSurface(t *testing.T) {
	g := New(&failingStore{}, &fakeRelay{result: Success()},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := g.Attempt(context.Background(), validForm(), at(1000))
	assert.ErrorContains(t, err, "disk on fire")

	_, err = g.CanSubmit(context.Background(), at(1000))
	assert.Error(t, err)
}
