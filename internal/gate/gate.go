// Package gate decides whether a contact form submission may be sent and
// keeps the client's cooldown and hourly-quota bookkeeping in a Store.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nazarhussain/contact-gate/internal/contact"
)

// ErrInProgress is returned when an attempt is made while another is in flight.
var ErrInProgress = errors.New("submission already in progress")

// Outcome tags a Decision.
type Outcome int

const (
	Accepted Outcome = iota + 1
	SilentAccept
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case SilentAccept:
		return "silent_accept"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

const (
	ReasonMissingFields = "missing fields"
	ReasonRateLimited   = "rate limited"
)

const (
	MsgSent          = "Message sent. Thanks for reaching out!"
	MsgMissingFields = "Please complete all fields."
	MsgSendFailed    = "Could not send your message. Please try again."
)

// Decision is the outcome of one submission attempt. Reason is for logs and
// callers; Message is safe to show to the person filling in the form.
type Decision struct {
	Outcome           Outcome
	Reason            string
	Message           string
	RetryAfterSeconds int
	QuotaExceeded     bool
	Missing           []string
}

// Succeeded reports whether the attempt should look successful to the user.
func (d Decision) Succeeded() bool {
	return d.Outcome == Accepted || d.Outcome == SilentAccept
}

type Option func(*Gate)

func WithPolicy(p Policy) Option {
	return func(g *Gate) { g.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithClient sets the user agent and page reported in the request meta.
func WithClient(userAgent, page string) Option {
	return func(g *Gate) {
		g.userAgent = userAgent
		g.page = page
	}
}

// Gate admits or rejects submissions for one client.
type Gate struct {
	store     Store
	relay     Relay
	policy    Policy
	userAgent string
	page      string
	log       *slog.Logger

	// mu serialises read-modify-write of the persisted state.
	mu         sync.Mutex
	submitting atomic.Bool
}

func New(store Store, relay Relay, opts ...Option) *Gate {
	g := &Gate{
		store:  store,
		relay:  relay,
		policy: DefaultPolicy(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Policy() Policy {
	return g.policy
}

// Submitting reports whether an attempt is currently waiting on the relay.
func (g *Gate) Submitting() bool {
	return g.submitting.Load()
}

// State returns the persisted state as it applies at now, i.e. with an
// expired window already rolled over. Nothing is written.
func (g *Gate) State(ctx context.Context, now time.Time) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := LoadState(ctx, g.store, g.log)
	if err != nil {
		return State{}, err
	}
	return st.Roll(now.UnixMilli(), g.policy), nil
}

func (g *Gate) CanSubmit(ctx context.Context, now time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := LoadState(ctx, g.store, g.log)
	if err != nil {
		return false, err
	}
	return st.Admit(now.UnixMilli(), g.policy) == Allowed, nil
}

func (g *Gate) RemainingCooldownSeconds(ctx context.Context, now time.Time) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := LoadState(ctx, g.store, g.log)
	if err != nil {
		return 0, err
	}
	return ceilSeconds(st.CooldownLeft(now.UnixMilli(), g.policy)), nil
}

// Reset forgets all recorded submissions.
func (g *Gate) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return SaveState(ctx, g.store, State{})
}

// Attempt runs the admission checks for form at now and, if they pass, sends
// it through the relay. State changes only after the relay confirms delivery,
// at which point the form is cleared. On any rejection the form is untouched.
//
// A non-nil error is returned only for storage failures and ErrInProgress.
// If delivery succeeded but recording it failed, the Accepted decision is
// returned together with the error.
func (g *Gate) Attempt(ctx context.Context, form *contact.Form, now time.Time) (Decision, error) {
	if form.IsBot() {
		g.log.Debug("honeypot filled, pretending success")
		return Decision{Outcome: SilentAccept, Message: MsgSent}, nil
	}

	if missing := form.Missing(); len(missing) > 0 {
		return Decision{
			Outcome: Rejected,
			Reason:  ReasonMissingFields,
			Message: MsgMissingFields,
			Missing: missing,
		}, nil
	}

	if !g.submitting.CompareAndSwap(false, true) {
		return Decision{}, ErrInProgress
	}
	defer g.submitting.Store(false)

	ms := now.UnixMilli()

	g.mu.Lock()
	st, err := LoadState(ctx, g.store, g.log)
	g.mu.Unlock()
	if err != nil {
		return Decision{}, err
	}
	if d, ok := g.admit(st, ms); !ok {
		g.log.Debug("submission rate limited",
			"retry_after_s", d.RetryAfterSeconds,
			"quota_exceeded", d.QuotaExceeded,
		)
		return d, nil
	}

	res, err := g.relay.Send(ctx, contact.NewRelayRequest(form, g.meta(now)))
	if err != nil {
		g.log.Warn("relay call failed", "err", err)
		return Decision{Outcome: Rejected, Reason: err.Error(), Message: MsgSendFailed}, nil
	}
	if !res.OK {
		g.log.Warn("relay refused submission", "reason", res.Reason)
		return Decision{Outcome: Rejected, Reason: res.Reason, Message: MsgSendFailed}, nil
	}

	form.Clear()
	accepted := Decision{Outcome: Accepted, Message: MsgSent}

	g.mu.Lock()
	defer g.mu.Unlock()
	// Re-read so a write that happened while the relay call was in flight
	// is not lost.
	st, err = LoadState(ctx, g.store, g.log)
	if err != nil {
		return accepted, fmt.Errorf("record submission: %w", err)
	}
	if err := SaveState(ctx, g.store, st.Record(ms, g.policy)); err != nil {
		return accepted, fmt.Errorf("record submission: %w", err)
	}
	return accepted, nil
}

func (g *Gate) admit(st State, now int64) (Decision, bool) {
	switch st.Admit(now, g.policy) {
	case QuotaExceeded:
		return Decision{
			Outcome:       Rejected,
			Reason:        ReasonRateLimited,
			Message:       fmt.Sprintf("Limit of %d messages per hour reached. Try again later.", g.policy.HourlyQuota),
			QuotaExceeded: true,
		}, false
	case CoolingDown:
		secs := ceilSeconds(st.CooldownLeft(now, g.policy))
		return Decision{
			Outcome:           Rejected,
			Reason:            ReasonRateLimited,
			Message:           fmt.Sprintf("Too fast. Please wait %d more seconds.", secs),
			RetryAfterSeconds: secs,
		}, false
	default:
		return Decision{}, true
	}
}

func (g *Gate) meta(now time.Time) contact.Meta {
	return contact.Meta{
		SentAt:    now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		UserAgent: g.userAgent,
		Page:      g.page,
	}
}
