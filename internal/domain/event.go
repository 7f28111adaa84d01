package domain

const (
	EventNameSessionUpdated     = "session.updated"
	EventNameSessionFinished    = "session.finished"
	EventNameRoomUpdated        = "room.updated"
	EventNameScoreRecorded      = "score.recorded"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventSessionUpdated is published when a session changes outside of a request,
// e.g. the next puzzle arrived or the countdown expired.
type EventSessionUpdated struct {
	Session Session
}

func (EventSessionUpdated) Name() string { return EventNameSessionUpdated }

type EventSessionFinished struct {
	Record GameSessionRecord
	Guest  bool
	// Won is set for a solo game with a positive score, or a multiplayer game the player leads.
	Won bool
	// Solved is the number of correctly answered puzzles.
	Solved int
	// SolveSeconds is the total time spent on correctly answered puzzles.
	SolveSeconds float64
}

func (EventSessionFinished) Name() string { return EventNameSessionFinished }

type EventRoomUpdated struct {
	Room Room
}

func (EventRoomUpdated) Name() string { return EventNameRoomUpdated }

type EventScoreRecorded struct {
	Entry ScoreEntry
}

func (EventScoreRecorded) Name() string { return EventNameScoreRecorded }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
