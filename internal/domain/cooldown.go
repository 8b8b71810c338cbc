package domain

import "time"

// DefaultCooldownWindow is the minimum gap between two gated actions of a free user.
const DefaultCooldownWindow = 5 * time.Minute

// Cooldown is the fixed-window rule shared by reading creation and chat messages.
type Cooldown struct {
	Window time.Duration
}

// Remaining returns how long the caller still has to wait after an action taken at last.
// A nil last means the action was never taken.
func (c Cooldown) Remaining(now time.Time, last *time.Time) time.Duration {
	if last == nil {
		return 0
	}
	left := c.Window - now.Sub(*last)
	if left <= 0 {
		return 0
	}
	return left
}

// Check evaluates the rule for a session. Premium sessions are never limited.
func (c Cooldown) Check(s *Session, now time.Time, last *time.Time) LimitStatus {
	if s != nil && s.PremiumAt(now) {
		return LimitStatus{Allowed: true}
	}
	left := c.Remaining(now, last)
	return LimitStatus{Allowed: left == 0, TimeLeft: left}
}

// LimitStatus is the verdict for one gated action.
type LimitStatus struct {
	Allowed  bool          `json:"allowed"`
	TimeLeft time.Duration `json:"-"`
}

// TimeLeftMs is the remaining wait in whole milliseconds, as clients expect it.
func (l LimitStatus) TimeLeftMs() int64 {
	return l.TimeLeft.Milliseconds()
}

// LimitView is the JSON shape returned by GET /api/limits.
type LimitView struct {
	Allowed  bool  `json:"allowed"`
	TimeLeft int64 `json:"timeLeft"`
}

// LimitsResponse lets the client render countdowns from the server window.
type LimitsResponse struct {
	WindowMs  int64      `json:"windowMs"`
	IsPremium bool       `json:"isPremium"`
	Reading   LimitView  `json:"reading"`
	Message   *LimitView `json:"message,omitempty"`
}

// View converts a status into its JSON shape.
func (l LimitStatus) View() LimitView {
	return LimitView{Allowed: l.Allowed, TimeLeft: l.TimeLeftMs()}
}
