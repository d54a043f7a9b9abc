// Package ratelimit enforces per-user sliding-window limits with
// violation tracking, temporary blocking, and VIP exemption.
package ratelimit

import (
	"sync"
	"time"
)

// Verdict is the outcome of an admission check.
type Verdict struct {
	Allowed      bool
	Remaining    int
	ResetAt      time.Time
	BlockedUntil time.Time
	Reason       string
}

// Blocked reports whether the verdict carries a temporary block.
func (v Verdict) Blocked() bool {
	return !v.BlockedUntil.IsZero()
}

// Rejection reasons.
const (
	ReasonBlocked   = "temporarily blocked"
	ReasonExhausted = "window exhausted"
)

type windowKey struct {
	userID int64
	kind   ActionKind
}

type window struct {
	count        int
	resetAt      time.Time
	blockedUntil time.Time
	violations   int
}

// Limiter tracks rate windows per (user, action kind). All state is
// in-process; a single mutex guards every map since checks are cheap
// data mutations.
type Limiter struct {
	mu      sync.Mutex
	rules   map[ActionKind]Rule
	vips    map[int64]struct{}
	windows map[windowKey]*window

	// Clock is injectable for deterministic window tests.
	clock func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New builds a limiter from the given rules. Nil rules fall back to
// DefaultRules.
func New(rules map[ActionKind]Rule, opts ...Option) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	l := &Limiter{
		rules:   rules,
		vips:    make(map[int64]struct{}),
		windows: make(map[windowKey]*window),
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check admits or rejects one action for a user, mutating the user's
// window. VIP users are always admitted and leave no state behind.
func (l *Limiter) Check(userID int64, kind ActionKind) Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	rule := l.ruleFor(kind)

	if _, vip := l.vips[userID]; vip {
		return Verdict{Allowed: true, Remaining: rule.MaxRequests, ResetAt: now.Add(rule.Window)}
	}

	key := windowKey{userID: userID, kind: kind}
	w := l.windows[key]

	if w != nil && now.Before(w.blockedUntil) {
		// Already blocked; report the existing block without recording
		// another violation.
		return Verdict{Remaining: 0, ResetAt: w.resetAt, BlockedUntil: w.blockedUntil, Reason: ReasonBlocked}
	}

	if w == nil || !now.Before(w.resetAt) {
		violations := 0
		if w != nil {
			violations = w.violations
		}
		w = &window{resetAt: now.Add(rule.Window), violations: violations}
		l.windows[key] = w
	}

	if w.count >= rule.MaxRequests {
		w.violations++
		verdict := Verdict{Remaining: 0, ResetAt: w.resetAt, Reason: ReasonExhausted}
		if rule.BlockDuration > 0 {
			w.blockedUntil = now.Add(rule.BlockDuration)
			verdict.BlockedUntil = w.blockedUntil
			verdict.Reason = ReasonBlocked
		}
		return verdict
	}

	w.count++
	return Verdict{Allowed: true, Remaining: rule.MaxRequests - w.count, ResetAt: w.resetAt}
}

// AddVIP exempts a user from all rules.
func (l *Limiter) AddVIP(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vips[userID] = struct{}{}
}

// RemoveVIP revokes a user's exemption.
func (l *Limiter) RemoveVIP(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.vips, userID)
}

// IsVIP reports whether a user is exempt.
func (l *Limiter) IsVIP(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.vips[userID]
	return ok
}

// VIPs returns the current exemption list.
func (l *Limiter) VIPs() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int64, 0, len(l.vips))
	for id := range l.vips {
		ids = append(ids, id)
	}
	return ids
}

// Reset clears one user's window for a single kind, or for every kind
// when kind is empty. It returns the number of windows removed.
func (l *Limiter) Reset(userID int64, kind ActionKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if kind != "" {
		key := windowKey{userID: userID, kind: kind}
		if _, ok := l.windows[key]; !ok {
			return 0
		}
		delete(l.windows, key)
		return 1
	}

	removed := 0
	for key := range l.windows {
		if key.userID == userID {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// ResetAll drops every tracked window.
func (l *Limiter) ResetAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := len(l.windows)
	l.windows = make(map[windowKey]*window)
	return removed
}

// ReplaceRule swaps the definition for one kind. Replacement rather
// than mutation keeps in-flight reads of the old value coherent.
func (l *Limiter) ReplaceRule(kind ActionKind, rule Rule) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make(map[ActionKind]Rule, len(l.rules)+1)
	for k, r := range l.rules {
		next[k] = r
	}
	next[kind] = rule
	l.rules = next
}

// Sweep removes fully expired, non-blocked windows to bound memory and
// returns how many were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) && !now.Before(w.blockedUntil) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// WindowInfo is a read-only snapshot row for the admin surface.
type WindowInfo struct {
	UserID       int64      `json:"user_id"`
	Kind         ActionKind `json:"kind"`
	Count        int        `json:"count"`
	ResetAt      time.Time  `json:"reset_at"`
	BlockedUntil time.Time  `json:"blocked_until,omitempty"`
	Violations   int        `json:"violations"`
}

// Snapshot lists every tracked window.
func (l *Limiter) Snapshot() []WindowInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	infos := make([]WindowInfo, 0, len(l.windows))
	for key, w := range l.windows {
		infos = append(infos, WindowInfo{
			UserID:       key.userID,
			Kind:         key.kind,
			Count:        w.count,
			ResetAt:      w.resetAt,
			BlockedUntil: w.blockedUntil,
			Violations:   w.violations,
		})
	}
	return infos
}

func (l *Limiter) ruleFor(kind ActionKind) Rule {
	if rule, ok := l.rules[kind]; ok {
		return rule
	}
	if rule, ok := l.rules[ActionGlobal]; ok {
		return rule
	}
	return Rule{MaxRequests: 30, Window: time.Minute}
}
