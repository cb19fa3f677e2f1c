package gate

import "time"

const (
	DefaultCooldown    = time.Minute
	DefaultHourlyQuota = 3
	DefaultWindow      = time.Hour
)

// Policy holds the admission limits.
type Policy struct {
	Cooldown    time.Duration // minimum gap between accepted submissions
	HourlyQuota int           // accepted submissions per window
	Window      time.Duration // quota window length
}

func DefaultPolicy() Policy {
	return Policy{
		Cooldown:    DefaultCooldown,
		HourlyQuota: DefaultHourlyQuota,
		Window:      DefaultWindow,
	}
}

// State is the persisted rate-limit bookkeeping. Times are Unix milliseconds
// so they round-trip through string storage without precision loss.
type State struct {
	LastSubmitTime    int64 // 0 when nothing was accepted yet
	HourlyWindowStart int64
	HourlyCount       int
}

// Verdict is the result of checking a State against a Policy.
type Verdict int

const (
	Allowed Verdict = iota
	QuotaExceeded
	CoolingDown
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case QuotaExceeded:
		return "quota_exceeded"
	case CoolingDown:
		return "cooling_down"
	default:
		return "unknown"
	}
}

// Roll restarts the counting window at now when the current one has expired.
func (s State) Roll(now int64, p Policy) State {
	if now-s.HourlyWindowStart > p.Window.Milliseconds() {
		s.HourlyWindowStart = now
		s.HourlyCount = 0
	}
	return s
}

// CooldownLeft is the time until the cooldown elapses, never negative.
func (s State) CooldownLeft(now int64, p Policy) time.Duration {
	if s.LastSubmitTime == 0 {
		return 0
	}
	left := p.Cooldown.Milliseconds() - (now - s.LastSubmitTime)
	if left < 0 {
		return 0
	}
	return time.Duration(left) * time.Millisecond
}

// Admit decides whether a submission at now is within limits. The quota is
// checked first so an exhausted window always reports the quota.
func (s State) Admit(now int64, p Policy) Verdict {
	if s.Roll(now, p).HourlyCount >= p.HourlyQuota {
		return QuotaExceeded
	}
	if s.CooldownLeft(now, p) > 0 {
		return CoolingDown
	}
	return Allowed
}

// Record returns the state after a confirmed submission at now.
func (s State) Record(now int64, p Policy) State {
	s = s.Roll(now, p)
	s.LastSubmitTime = now
	s.HourlyCount++
	return s
}

// ceilSeconds rounds a duration up to whole seconds.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
