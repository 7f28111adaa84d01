package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxLives = 3
	MaxHints = 3
)

type Mode string

const (
	ModeSolo        Mode = "SOLO"
	ModeMultiplayer Mode = "MULTIPLAYER"
)

// State is the lifecycle state of a session or a room.
type State string

const (
	StateWaiting  State = "WAITING"
	StatePlaying  State = "PLAYING"
	StatePaused   State = "PAUSED"
	StateFinished State = "FINISHED"
)

type Difficulty string

const (
	DifficultyPractice Difficulty = "PRACTICE"
	DifficultyEasy     Difficulty = "EASY"
	DifficultyNormal   Difficulty = "NORMAL"
	DifficultyHard     Difficulty = "HARD"
	DifficultyInsane   Difficulty = "INSANE"
)

type DifficultySettings struct {
	TimeLimitSeconds int
	Multiplier       decimal.Decimal
}

var difficulties = map[Difficulty]DifficultySettings{
	DifficultyPractice: {TimeLimitSeconds: 120, Multiplier: decimal.RequireFromString("0.5")},
	DifficultyEasy:     {TimeLimitSeconds: 90, Multiplier: decimal.RequireFromString("1.0")},
	DifficultyNormal:   {TimeLimitSeconds: 60, Multiplier: decimal.RequireFromString("1.5")},
	DifficultyHard:     {TimeLimitSeconds: 40, Multiplier: decimal.RequireFromString("2.0")},
	DifficultyInsane:   {TimeLimitSeconds: 25, Multiplier: decimal.RequireFromString("3.0")},
}

// ParseDifficulty falls back to NORMAL for unknown values.
func ParseDifficulty(s string) Difficulty {
	d := Difficulty(s)
	if _, ok := difficulties[d]; !ok {
		return DifficultyNormal
	}
	return d
}

func (d Difficulty) Settings() DifficultySettings {
	if s, ok := difficulties[d]; ok {
		return s
	}
	return difficulties[DifficultyNormal]
}

func (d Difficulty) TimeLimit() time.Duration {
	return time.Duration(d.Settings().TimeLimitSeconds) * time.Second
}

// Puzzle is immutable once fetched. Question is an image URL, Solution a digit 1-9.
type Puzzle struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Solution int    `json:"solution"`
}

// Session is the state of one play-through, solo or multiplayer.
type Session struct {
	ID            string
	UserID        string
	Mode          Mode
	State         State
	Score         int
	Lives         int
	HintsUsed     int
	Streak        int
	BestStreak    int
	Difficulty    Difficulty
	CurrentPuzzle *Puzzle
	StartedAt     time.Time
	RoomID        string
	Players       []RoomPlayer
}

type RoomPlayer struct {
	ID     string `json:"id"`
	Score  int    `json:"score"`
	Lives  int    `json:"lives"`
	Streak int    `json:"streak"`
}

type RoomSettings struct {
	MaxPlayers       int `json:"maxPlayers"`
	TimeLimitSeconds int `json:"timeLimit"`
	Lives            int `json:"lives"`
}

// DefaultRoomSettings is used for every setting left at zero by the host.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		MaxPlayers:       2,
		TimeLimitSeconds: 60,
		Lives:            MaxLives,
	}
}

// Room is the shared document coordinating a two-player match.
type Room struct {
	ID            string       `json:"id"`
	HostID        string       `json:"hostId"`
	Players       []RoomPlayer `json:"players"`
	PlayerIDs     []string     `json:"playerIds"`
	Settings      RoomSettings `json:"settings"`
	CurrentPuzzle *Puzzle      `json:"currentPuzzle"`
	State         State        `json:"state"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// GameSessionRecord is the append-only summary written when a session ends.
type GameSessionRecord struct {
	ID         string
	UserID     string
	Mode       Mode
	Difficulty Difficulty
	Score      int
	Streak     int
	HintsUsed  int
	CreatedAt  time.Time
	EndTime    time.Time
}

// ScoreEntry is one leaderboard contribution.
type ScoreEntry struct {
	ID         string
	UserID     string
	Score      int
	Mode       Mode
	Year       int
	Week       int
	CreateTime time.Time
}

// Leaderboard represents a list of users and their best scores.
// The list is sorted by score in descending order.
type Leaderboard struct {
	Mode    Mode
	Period  string
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID string
	Score  float64
}
