package engine

// MissionClock is a host-driven countdown. Expired flips false->true at most
// once; RemainingMs never increases while running.
type MissionClock struct {
	DurationMs     int64 `json:"duration_ms"`
	RemainingMs    int64 `json:"remaining_ms"`
	LowThresholdMs int64 `json:"low_threshold_ms"`
	Running        bool  `json:"running"`
	Expired        bool  `json:"expired"`
}

// NewMissionClock creates a stopped clock with the given low-time threshold
func NewMissionClock(lowThresholdMs int64) *MissionClock {
	return &MissionClock{LowThresholdMs: lowThresholdMs}
}

// Start sets the remaining time and starts the countdown. An expired clock
// stays expired.
func (c *MissionClock) Start(durationMs int64) {
	if c.Expired {
		return
	}
	c.DurationMs = durationMs
	c.RemainingMs = durationMs
	c.Running = durationMs > 0
}

// Tick decrements the remaining time and reports whether this tick expired
// the clock. Ticks on a stopped or expired clock are no-ops.
func (c *MissionClock) Tick(deltaMs int64) bool {
	if !c.Running || c.Expired || deltaMs <= 0 {
		return false
	}

	c.RemainingMs -= deltaMs
	if c.RemainingMs <= 0 {
		c.RemainingMs = 0
		c.Running = false
		c.Expired = true
		return true
	}
	return false
}

// Stop halts the countdown; calling it again has no effect
func (c *MissionClock) Stop() {
	c.Running = false
}

// LowTime reports whether the remaining time is below the low-time threshold
func (c *MissionClock) LowTime() bool {
	if c.DurationMs <= 0 {
		return false
	}
	return c.RemainingMs < c.LowThresholdMs
}
