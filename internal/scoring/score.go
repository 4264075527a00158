// Package scoring turns a finished run into the score posted to the backend.
package scoring

import "math"

// Mode is the game mode a session was played in.
type Mode string

const (
	ModeStandard        Mode = "standard"
	ModeDoubleOrNothing Mode = "double_or_nothing"
)

// MilestoneStage is the stage a double-or-nothing run must reach to pay out.
const MilestoneStage = 5

// FinalScore applies the mode rule to the raw in-session score.
// Double-or-nothing pays double on reaching the milestone and nothing otherwise.
func FinalScore(mode Mode, raw float64, milestoneReached bool) int64 {
	if raw < 0 || math.IsNaN(raw) {
		return 0
	}
	base := int64(math.Floor(raw))

	switch mode {
	case ModeDoubleOrNothing:
		if !milestoneReached {
			return 0
		}
		return base * 2
	default:
		return base
	}
}

// ReachedMilestone reports whether the stage counts for double-or-nothing.
func ReachedMilestone(stage int) bool {
	return stage >= MilestoneStage
}
