package score

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	basePoints      = 100
	minPoints       = 10
	timeBonusPerSec = 2
	streakBonusEach = 10
	hintPenaltyEach = 25
	xpPerLevel      = 1000
)

// Input describes one answered puzzle.
type Input struct {
	// Elapsed is the time spent on the puzzle, in seconds.
	Elapsed float64
	// TimeLimit is the time allowed for the puzzle, in seconds.
	TimeLimit int
	Correct   bool
	Streak    int
	HintsUsed int
}

// Compute returns the points earned for an answer. Incorrect answers earn nothing,
// correct answers always earn at least 10 points.
func Compute(in Input) int {
	if !in.Correct {
		return 0
	}

	timeBonus := int(math.Floor((float64(in.TimeLimit) - in.Elapsed) * timeBonusPerSec))
	timeBonus = max(0, timeBonus)

	points := basePoints + timeBonus + in.Streak*streakBonusEach - in.HintsUsed*hintPenaltyEach
	return max(minPoints, points)
}

// XPFromScore converts a score to experience points with a difficulty multiplier.
func XPFromScore(score int, multiplier decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(score)).Mul(multiplier).Floor().IntPart())
}

func LevelFromXP(xp int) int {
	return xp/xpPerLevel + 1
}

// XPForNextLevel returns how much experience is missing to reach the next level.
func XPForNextLevel(xp int) int {
	return xpPerLevel - xp%xpPerLevel
}
