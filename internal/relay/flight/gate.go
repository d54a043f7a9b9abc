// Package flight implements the per-user single-flight admission gate:
// at most one heavy request (text completion or image analysis) may be
// in flight for a user at any time.
package flight

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSafetyTimeout bounds how long an acquisition can outlive its
// caller before the gate force-clears it.
const DefaultSafetyTimeout = 3 * time.Minute

// ActivityProbe reports heavy activity tracked outside the gate, such
// as a queued image job. A user counts as busy when any probe says so.
type ActivityProbe func(userID int64) bool

type entry struct {
	gen        uint64
	timer      *time.Timer
	acquiredAt time.Time
}

// Gate is the shared active-request registry. The busy check and the
// flag set happen under one lock so there is no window between them.
type Gate struct {
	mu            sync.Mutex
	active        map[int64]*entry
	probes        []ActivityProbe
	gen           uint64
	safetyTimeout time.Duration
	logger        *zap.Logger
}

// New builds a gate. A non-positive safetyTimeout uses the default.
func New(safetyTimeout time.Duration, logger *zap.Logger) *Gate {
	if safetyTimeout <= 0 {
		safetyTimeout = DefaultSafetyTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		active:        make(map[int64]*entry),
		safetyTimeout: safetyTimeout,
		logger:        logger,
	}
}

// RegisterProbe adds an external busy signal. Probes must not call back
// into the gate.
func (g *Gate) RegisterProbe(probe ActivityProbe) {
	if probe == nil {
		return
	}
	g.mu.Lock()
	g.probes = append(g.probes, probe)
	g.mu.Unlock()
}

// TryAcquire is the admission test-and-set. On success the active flag
// is set before returning, and a safety timer is armed that clears the
// flag if Release never arrives.
func (g *Gate) TryAcquire(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[userID]; busy {
		return false
	}
	for _, probe := range g.probes {
		if probe(userID) {
			return false
		}
	}

	g.gen++
	e := &entry{gen: g.gen, acquiredAt: time.Now()}
	e.timer = time.AfterFunc(g.safetyTimeout, func() {
		g.forceRelease(userID, e.gen)
	})
	g.active[userID] = e
	return true
}

// Release clears the user's flag and cancels the safety timer. It is
// safe to call for users that are not active.
func (g *Gate) Release(userID int64) {
	g.mu.Lock()
	e, ok := g.active[userID]
	if ok {
		delete(g.active, userID)
	}
	g.mu.Unlock()

	if ok && e.timer != nil {
		e.timer.Stop()
	}
}

// IsActive reports whether the user holds the slot or any probe sees
// activity for them.
func (g *Gate) IsActive(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[userID]; busy {
		return true
	}
	for _, probe := range g.probes {
		if probe(userID) {
			return true
		}
	}
	return false
}

// ActiveCount reports how many users hold the slot.
func (g *Gate) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// Close cancels all outstanding safety timers and clears the registry.
func (g *Gate) Close() {
	g.mu.Lock()
	entries := g.active
	g.active = make(map[int64]*entry)
	g.mu.Unlock()

	for _, e := range entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

// forceRelease clears a stuck acquisition. The generation check keeps a
// stale timer from releasing a newer acquisition by the same user.
func (g *Gate) forceRelease(userID int64, gen uint64) {
	g.mu.Lock()
	e, ok := g.active[userID]
	if !ok || e.gen != gen {
		g.mu.Unlock()
		return
	}
	held := time.Since(e.acquiredAt)
	delete(g.active, userID)
	g.mu.Unlock()

	g.logger.Warn("force-released stuck single-flight slot",
		zap.Int64("user_id", userID),
		zap.Duration("held", held))
}
