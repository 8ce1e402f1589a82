package lobby

import "math"

const (
	// BaseScore is the point ceiling for an instant correct answer.
	BaseScore = 60
	// MaxMultiplier caps the combo multiplier.
	MaxMultiplier = 5
)

// Score computes the points for one answered question. A wrong answer is
// worth nothing; a correct one decays linearly with elapsed time and is
// amplified by the player's multiplier as it stood before this question.
func Score(correct bool, elapsedSeconds float64, multiplier int) int {
	if !correct {
		return 0
	}
	remaining := math.Max(0, BaseScore-elapsedSeconds)
	return int(math.Round(remaining * float64(multiplier)))
}

// NextMultiplier returns the multiplier to carry into the next question.
// Consecutive correct answers climb to MaxMultiplier; a miss or an
// unanswered question drops back to 1.
func NextMultiplier(correct bool, current int) int {
	if !correct {
		return 1
	}
	if current < 1 {
		current = 1
	}
	if current >= MaxMultiplier {
		return MaxMultiplier
	}
	return current + 1
}
