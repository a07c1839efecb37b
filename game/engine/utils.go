package engine

import (
	"fmt"
	"math"
)

// RoundHalfUp rounds to the nearest integer with ties rounding up
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// StepsToObjective counts the adjustment commands needed to move from to
// target with the given step sizes. It returns -1 when a field cannot be
// reached exactly.
func StepsToObjective(from, target Objective, frequencyStep, powerStep int) int {
	df := abs(target.Frequency - from.Frequency)
	dp := abs(target.Power - from.Power)
	if frequencyStep <= 0 || powerStep <= 0 || df%frequencyStep != 0 || dp%powerStep != 0 {
		return -1
	}
	return df/frequencyStep + dp/powerStep
}

// NextAdjustment returns the adjustment command that moves from one step
// closer to target, or false when from already matches
func NextAdjustment(from, target Objective, frequencyStep, powerStep int) (Command, bool) {
	switch {
	case from.Frequency < target.Frequency:
		return Command{Type: CmdAdjustFrequency, Delta: frequencyStep}, true
	case from.Frequency > target.Frequency:
		return Command{Type: CmdAdjustFrequency, Delta: -frequencyStep}, true
	case from.Power < target.Power:
		return Command{Type: CmdAdjustPower, Delta: powerStep}, true
	case from.Power > target.Power:
		return Command{Type: CmdAdjustPower, Delta: -powerStep}, true
	}
	return Command{}, false
}

// AnalyzeTimeRisk assesses how close the countdown is to expiring
func AnalyzeTimeRisk(clock MissionClock, cautionThresholdMs int64) string {
	switch {
	case clock.Expired:
		return "EXPIRED: Time is up!"
	case clock.DurationMs <= 0:
		return "SAFE: No time limit"
	case clock.LowTime():
		return fmt.Sprintf("CRITICAL: %ds left, apply configurations now", clock.RemainingMs/1000)
	case clock.RemainingMs <= cautionThresholdMs:
		return fmt.Sprintf("CAUTION: %ds left", clock.RemainingMs/1000)
	}
	return "SAFE: Time sufficient"
}

// FormatRemaining renders milliseconds as m:ss
func FormatRemaining(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%d:%02d", ms/60000, (ms%60000)/1000)
}
