// Per-key cooldown tracking. One mechanism serves both direct-interaction
// cooldowns and threshold-alert cooldowns; there is deliberately no separate
// code path per caller.
package pet

import "time"

// CooldownGate maps action/rule keys to their last trigger time. Entries are
// created lazily on first Record and live for the gate's lifetime. The gate
// is owned by one coordinator and guarded by its lock; it does no locking of
// its own.
type CooldownGate struct {
	last map[string]time.Time
}

// NewCooldownGate returns an empty gate.
func NewCooldownGate() *CooldownGate {
	return &CooldownGate{last: make(map[string]time.Time)}
}

// Ready reports whether the key is allowed to fire: either it has never
// fired, or at least cooldown has passed since it last did.
func (g *CooldownGate) Ready(key string, now time.Time, cooldown time.Duration) bool {
	at, ok := g.last[key]
	if !ok {
		return true
	}
	return now.Sub(at) >= cooldown
}

// Remaining returns how long until the key is allowed again; zero when ready.
func (g *CooldownGate) Remaining(key string, now time.Time, cooldown time.Duration) time.Duration {
	at, ok := g.last[key]
	if !ok {
		return 0
	}
	left := cooldown - now.Sub(at)
	if left < 0 {
		return 0
	}
	return left
}

// Record marks the key as having fired at now.
func (g *CooldownGate) Record(key string, now time.Time) {
	g.last[key] = now
}

// Reset forgets one key, re-arming it immediately.
func (g *CooldownGate) Reset(key string) {
	delete(g.last, key)
}

// ResetAll forgets every key.
func (g *CooldownGate) ResetAll() {
	g.last = make(map[string]time.Time)
}
