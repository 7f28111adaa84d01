package domain

import "time"

const defaultUsername = "Player"

type UserStats struct {
	BestStreak         int     `json:"bestStreak"`
	TotalPuzzlesSolved int     `json:"totalPuzzlesSolved"`
	HintsUsed          int     `json:"hintsUsed"`
	AverageSolveTime   float64 `json:"averageSolveTime"`
}

// User is the profile document stored under users/{id}.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Avatar      string    `json:"avatar"`
	XP          int       `json:"xp"`
	Level       int       `json:"level"`
	GamesPlayed int       `json:"gamesPlayed"`
	GamesWon    int       `json:"gamesWon"`
	TotalScore  int       `json:"totalScore"`
	Stats       UserStats `json:"stats"`
	CreatedAt   time.Time `json:"createdAt"`
	LastActive  time.Time `json:"lastActive"`
}

// NewUser builds a fresh profile. Username defaults to "Player", level to 1.
func NewUser(id, username, email string, now time.Time) User {
	if username == "" {
		username = defaultUsername
	}

	return User{
		ID:         id,
		Username:   username,
		Email:      email,
		Level:      1,
		CreatedAt:  now,
		LastActive: now,
	}
}

// RecommendedDifficulty picks a difficulty from the average solve time in seconds.
func (u User) RecommendedDifficulty() Difficulty {
	avg := u.Stats.AverageSolveTime
	switch {
	case avg == 0:
		return DifficultyNormal
	case avg < 25:
		return DifficultyInsane
	case avg < 40:
		return DifficultyHard
	case avg < 60:
		return DifficultyNormal
	case avg < 90:
		return DifficultyEasy
	default:
		return DifficultyPractice
	}
}
