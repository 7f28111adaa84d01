package api

import (
	"time"

	"github.com/samber/lo"

	"github.com/victornm/bananaquiz/internal/domain"
)

type (
	// Puzzle never carries the solution, hints reveal it through UseHint.
	Puzzle struct {
		ID       string `json:"id"`
		Question string `json:"question"`
	}

	Player struct {
		ID     string `json:"id"`
		Score  int    `json:"score"`
		Lives  int    `json:"lives"`
		Streak int    `json:"streak"`
	}

	Session struct {
		ID               string    `json:"id"`
		UserID           string    `json:"userId"`
		Mode             string    `json:"mode"`
		State            string    `json:"state"`
		Score            int       `json:"score"`
		Lives            int       `json:"lives"`
		HintsUsed        int       `json:"hintsUsed"`
		HintsRemaining   int       `json:"hintsRemaining"`
		Streak           int       `json:"streak"`
		BestStreak       int       `json:"bestStreak"`
		Difficulty       string    `json:"difficulty"`
		TimeLimitSeconds int       `json:"timeLimit"`
		CurrentPuzzle    *Puzzle   `json:"currentPuzzle,omitempty"`
		StartedAt        time.Time `json:"startedAt"`
		RoomID           string    `json:"roomId,omitempty"`
		Players          []Player  `json:"players,omitempty"`
	}

	RoomSettings struct {
		MaxPlayers       int `json:"maxPlayers"`
		TimeLimitSeconds int `json:"timeLimit"`
		Lives            int `json:"lives"`
	}

	Room struct {
		ID            string       `json:"id"`
		HostID        string       `json:"hostId"`
		Players       []Player     `json:"players"`
		Settings      RoomSettings `json:"settings"`
		CurrentPuzzle *Puzzle      `json:"currentPuzzle,omitempty"`
		State         string       `json:"state"`
		CreatedAt     time.Time    `json:"createdAt"`
	}

	Leaderboard struct {
		Mode    string             `json:"mode"`
		Period  string             `json:"period"`
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Rank   int     `json:"rank"`
		UserID string  `json:"userId"`
		Score  float64 `json:"score"`
	}

	SessionRecord struct {
		ID         string    `json:"id"`
		Mode       string    `json:"mode"`
		Difficulty string    `json:"difficulty"`
		Score      int       `json:"score"`
		Streak     int       `json:"streak"`
		HintsUsed  int       `json:"hintsUsed"`
		CreatedAt  time.Time `json:"createdAt"`
		EndTime    time.Time `json:"endTime"`
	}
)

type (
	StartSessionRequest struct {
		Mode string `json:"mode"`
		// Difficulty is optional, the profile's recommended difficulty is used when empty.
		Difficulty string `json:"difficulty"`
		RoomID     string `json:"roomId"`
	}

	StartSessionResponse struct {
		Session Session  `json:"session"`
		Notices []string `json:"notices,omitempty"`
	}

	SubmitAnswerRequest struct {
		Answer string `json:"answer"`
		// Elapsed is the time spent on the puzzle in seconds.
		Elapsed float64 `json:"elapsed"`
	}

	TimeUpRequest struct{}

	AnswerResponse struct {
		Correct bool     `json:"correct"`
		Points  int      `json:"points"`
		Session Session  `json:"session"`
		Notices []string `json:"notices,omitempty"`
	}

	UseHintRequest struct{}

	UseHintResponse struct {
		Solution       int     `json:"solution"`
		HintsRemaining int     `json:"hintsRemaining"`
		Session        Session `json:"session"`
	}

	PauseSessionRequest  struct{}
	ResumeSessionRequest struct{}
	ResetSessionRequest  struct{}
	GetSessionRequest    struct{}

	SessionResponse struct {
		Session Session `json:"session"`
	}

	CreateRoomRequest struct {
		Settings RoomSettings `json:"settings"`
	}

	JoinRoomRequest struct {
		RoomID string `json:"roomId"`
	}

	RoomResponse struct {
		Room Room `json:"room"`
	}

	LeaveRoomRequest struct {
		RoomID string `json:"roomId"`
	}

	LeaveRoomResponse struct{}

	GetLeaderboardRequest struct {
		Mode   string `json:"mode"`
		Period string `json:"period"`
		Limit  int    `json:"limit"`
	}

	GetLeaderboardResponse struct {
		Leaderboard Leaderboard `json:"leaderboard"`
		// UserRank is the caller's all time rank, 0 when they have no score yet.
		UserRank int `json:"userRank"`
	}

	RecentSessionsRequest struct {
		Limit int `json:"limit"`
	}

	RecentSessionsResponse struct {
		Sessions []SessionRecord `json:"sessions"`
	}
)

func toPuzzle(p *domain.Puzzle) *Puzzle {
	if p == nil {
		return nil
	}

	return &Puzzle{
		ID:       p.ID,
		Question: p.Question,
	}
}

func toPlayers(players []domain.RoomPlayer) []Player {
	return lo.Map(players, func(p domain.RoomPlayer, _ int) Player {
		return Player{
			ID:     p.ID,
			Score:  p.Score,
			Lives:  p.Lives,
			Streak: p.Streak,
		}
	})
}

func toSession(s domain.Session) Session {
	return Session{
		ID:               s.ID,
		UserID:           s.UserID,
		Mode:             string(s.Mode),
		State:            string(s.State),
		Score:            s.Score,
		Lives:            s.Lives,
		HintsUsed:        s.HintsUsed,
		HintsRemaining:   max(0, domain.MaxHints-s.HintsUsed),
		Streak:           s.Streak,
		BestStreak:       s.BestStreak,
		Difficulty:       string(s.Difficulty),
		TimeLimitSeconds: s.Difficulty.Settings().TimeLimitSeconds,
		CurrentPuzzle:    toPuzzle(s.CurrentPuzzle),
		StartedAt:        s.StartedAt,
		RoomID:           s.RoomID,
		Players:          toPlayers(s.Players),
	}
}

func toRoom(r domain.Room) Room {
	return Room{
		ID:            r.ID,
		HostID:        r.HostID,
		Players:       toPlayers(r.Players),
		Settings:      RoomSettings(r.Settings),
		CurrentPuzzle: toPuzzle(r.CurrentPuzzle),
		State:         string(r.State),
		CreatedAt:     r.CreatedAt,
	}
}

func toLeaderboard(l domain.Leaderboard) Leaderboard {
	return Leaderboard{
		Mode:   string(l.Mode),
		Period: l.Period,
		Entries: lo.Map(l.Entries, func(e domain.LeaderboardEntry, i int) LeaderboardEntry {
			return LeaderboardEntry{
				Rank:   i + 1,
				UserID: e.UserID,
				Score:  e.Score,
			}
		}),
	}
}

func toSessionRecord(r domain.GameSessionRecord) SessionRecord {
	return SessionRecord{
		ID:         r.ID,
		Mode:       string(r.Mode),
		Difficulty: string(r.Difficulty),
		Score:      r.Score,
		Streak:     r.Streak,
		HintsUsed:  r.HintsUsed,
		CreatedAt:  r.CreatedAt,
		EndTime:    r.EndTime,
	}
}
