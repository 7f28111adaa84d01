package game

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/event"
	"github.com/victornm/bananaquiz/internal/room"
	"github.com/victornm/bananaquiz/internal/score"
	"github.com/victornm/bananaquiz/internal/telemetry"
)

const (
	noticeSessionNotSaved    = "Your game could not be saved."
	noticeBestStreakNotSaved = "Your best streak could not be updated."
)

// PuzzleSource hands out solo puzzles. It never fails.
type PuzzleSource interface {
	NextPuzzle(ctx context.Context) domain.Puzzle
}

type Rooms interface {
	Get(ctx context.Context, roomID string) (domain.Room, error)
	Create(ctx context.Context, hostID string, settings domain.RoomSettings) (domain.Room, error)
	Join(ctx context.Context, roomID, playerID string) (domain.Room, error)
	Puzzle(ctx context.Context, roomID string) domain.Puzzle
	SubmitAnswer(ctx context.Context, req room.SubmitAnswerRequest) (room.AnswerResult, error)
	StartIfReady(ctx context.Context, roomID string) (domain.Room, bool, error)
	AdvancePuzzle(ctx context.Context, roomID, solvedPuzzleID string) (domain.Room, bool, error)
	Listen(ctx context.Context, roomID, listenerID string) (<-chan domain.Room, error)
	Leave(ctx context.Context, roomID, playerID string)
	Forfeit(ctx context.Context, roomID, playerID string) (domain.Room, error)
}

type Recorder interface {
	SaveSession(ctx context.Context, r domain.GameSessionRecord) error
}

type Profiles interface {
	Ensure(ctx context.Context, userID string) (domain.User, error)
	ReconcileBestStreak(ctx context.Context, userID string, sessionBest int) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

type SessionConfig struct {
	UserID    string
	Guest     bool
	Puzzles   PuzzleSource
	Rooms     Rooms
	Recorder  Recorder
	Profiles  Profiles
	Publisher Publisher
	// FeedbackDelay is the pause between a correct answer and the next puzzle.
	// Zero loads the next puzzle before SubmitAnswer returns.
	FeedbackDelay time.Duration
	// EnforceTimeLimit arms a countdown per puzzle which calls TimeUp on expiry.
	EnforceTimeLimit bool
	AfterFunc        AfterFunc
	Now              func() time.Time
	// OnChange receives the session after changes that did not come from a call,
	// like a delayed puzzle, an expired countdown or a room update.
	OnChange func(domain.Session)
}

// Session is the state machine of one player's game.
// All methods are safe for concurrent use; calls are applied one at a time.
type Session struct {
	c         SessionConfig
	countdown *Countdown

	mu            sync.Mutex
	s             domain.Session
	round         uint64
	finished      bool
	lastSolvedID  string
	pendingArm    bool
	roomTimeLimit int
	solved        int
	solveSeconds  float64
}

func NewSession(c SessionConfig) *Session {
	if c.AfterFunc == nil {
		c.AfterFunc = realAfterFunc
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	g := &Session{
		c:         c,
		countdown: NewCountdown(c.AfterFunc, c.Now),
	}
	g.resetLocked()

	return g
}

type AnswerResult struct {
	Correct bool
	Points  int
	Session domain.Session
	// Notices describe bookkeeping that failed when the session finished. The game result stands regardless.
	Notices []string
}

type HintResult struct {
	Solution       int
	HintsRemaining int
	Session        domain.Session
}

// Start begins a new session in WAITING, without a puzzle.
func (g *Session) Start(mode domain.Mode, difficulty domain.Difficulty, roomID string) domain.Session {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetLocked()
	g.s.ID = uuid.Must(uuid.NewV7()).String()
	g.s.Mode = mode
	g.s.Difficulty = domain.ParseDifficulty(string(difficulty))
	g.s.StartedAt = g.c.Now()
	if mode == domain.ModeMultiplayer {
		g.s.RoomID = roomID
	}

	return g.snapshotLocked()
}

// LoadPuzzle requests a puzzle for a waiting session and starts playing. The puzzle comes from
// the room in multiplayer. Fetch failures degrade to cached and fallback puzzles.
func (g *Session) LoadPuzzle(ctx context.Context) (domain.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.s.State {
	case domain.StateFinished:
		return domain.Session{}, errors.From(errors.ErrSessionFinished)
	case domain.StatePaused:
		return domain.Session{}, errors.From(errors.ErrSessionPaused)
	}

	if g.s.CurrentPuzzle == nil {
		g.setPuzzleLocked(g.requestPuzzle(ctx))
	}

	return g.snapshotLocked(), nil
}

// SubmitAnswer checks the answer against the active puzzle. A correct answer scores and moves
// on to the next puzzle, a wrong one costs a life. The session finishes when no life is left.
func (g *Session) SubmitAnswer(ctx context.Context, answer string, elapsed float64) (AnswerResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkActiveLocked(); err != nil {
		return AnswerResult{}, err
	}

	p := *g.s.CurrentPuzzle
	res := AnswerResult{}

	if g.s.Mode == domain.ModeMultiplayer {
		rr, err := g.c.Rooms.SubmitAnswer(ctx, room.SubmitAnswerRequest{
			RoomID:    g.s.RoomID,
			PlayerID:  g.c.UserID,
			PuzzleID:  p.ID,
			Answer:    answer,
			Elapsed:   elapsed,
			HintsUsed: g.s.HintsUsed,
		})
		if err != nil {
			return AnswerResult{}, err
		}

		res.Correct = rr.Correct
		res.Points = rr.Points
		g.s.Players = slices.Clone(rr.Room.Players)
		g.s.Lives = rr.Player.Lives
	} else {
		res.Correct = p.Check(answer)
	}

	telemetry.AnswersSubmitted.WithLabelValues(string(g.s.Mode), strconv.FormatBool(res.Correct)).Inc()

	if res.Correct {
		g.s.Streak++
		g.s.BestStreak = max(g.s.BestStreak, g.s.Streak)
		if g.s.Mode != domain.ModeMultiplayer {
			res.Points = score.Compute(score.Input{
				Elapsed:   elapsed,
				TimeLimit: g.timeLimitSecondsLocked(),
				Correct:   true,
				Streak:    g.s.Streak,
				HintsUsed: g.s.HintsUsed,
			})
		}
		g.s.Score += res.Points
		g.solved++
		g.solveSeconds += elapsed

		g.clearPuzzleLocked(p.ID)
		g.scheduleNextLocked(ctx, p.ID)
	} else {
		g.s.Streak = 0
		if g.s.Mode != domain.ModeMultiplayer {
			g.s.Lives = max(0, g.s.Lives-1)
		}
	}

	if g.s.Lives == 0 {
		res.Notices = g.finishLocked(ctx)
	}

	res.Session = g.snapshotLocked()
	return res, nil
}

// UseHint reveals the solution of the active puzzle. At most domain.MaxHints hints are granted per session.
func (g *Session) UseHint() (HintResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkActiveLocked(); err != nil {
		return HintResult{}, err
	}

	if g.s.HintsUsed >= domain.MaxHints {
		return HintResult{}, errors.From(errors.ErrHintsExhausted)
	}

	g.s.HintsUsed++
	return HintResult{
		Solution:       g.s.CurrentPuzzle.Solution,
		HintsRemaining: domain.MaxHints - g.s.HintsUsed,
		Session:        g.snapshotLocked(),
	}, nil
}

// TimeUp counts as a wrong answer that ends the game.
func (g *Session) TimeUp(ctx context.Context) (AnswerResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkActiveLocked(); err != nil {
		return AnswerResult{}, err
	}

	return g.timeUpLocked(ctx), nil
}

// Pause stops the countdown without firing it.
func (g *Session) Pause() (domain.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.s.State {
	case domain.StatePlaying:
		g.countdown.Pause()
		g.s.State = domain.StatePaused
	case domain.StatePaused:
	case domain.StateFinished:
		return domain.Session{}, errors.From(errors.ErrSessionFinished)
	default:
		return domain.Session{}, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("session is not playing"))
	}

	return g.snapshotLocked(), nil
}

// Resume continues a paused session with the time that was left.
func (g *Session) Resume() (domain.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.s.State {
	case domain.StatePaused:
		g.s.State = domain.StatePlaying
		if g.pendingArm {
			g.pendingArm = false
			g.armLocked()
		} else {
			g.countdown.Resume()
		}
	case domain.StatePlaying:
	case domain.StateFinished:
		return domain.Session{}, errors.From(errors.ErrSessionFinished)
	default:
		return domain.Session{}, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("session is not paused"))
	}

	return g.snapshotLocked(), nil
}

// Reset drops the session and goes back to a blank WAITING state.
func (g *Session) Reset() domain.Session {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetLocked()
	return g.snapshotLocked()
}

// ApplyRoom merges a room update into a multiplayer session: the players, the lives of the
// session's own player entry, and the room puzzle when it is a new one.
func (g *Session) ApplyRoom(r domain.Room) {
	g.mu.Lock()

	if g.s.Mode != domain.ModeMultiplayer || g.s.RoomID != r.ID {
		g.mu.Unlock()
		return
	}

	g.s.Players = slices.Clone(r.Players)
	g.roomTimeLimit = r.Settings.TimeLimitSeconds

	if self, ok := lo.Find(r.Players, func(p domain.RoomPlayer) bool { return p.ID == g.c.UserID }); ok && g.s.State != domain.StateFinished {
		g.s.Lives = min(g.s.Lives, self.Lives)
		if g.s.Lives == 0 {
			g.finishLocked(context.Background())
		}
	}

	if g.s.State != domain.StateFinished && r.State == domain.StatePlaying && r.CurrentPuzzle != nil {
		id := r.CurrentPuzzle.ID
		fresh := id != g.lastSolvedID && (g.s.CurrentPuzzle == nil || g.s.CurrentPuzzle.ID != id)
		if fresh {
			g.setPuzzleLocked(*r.CurrentPuzzle)
		}
	}

	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.notify(snap)
}

func (g *Session) Snapshot() domain.Session {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.snapshotLocked()
}

func (g *Session) checkActiveLocked() error {
	switch {
	case g.s.State == domain.StateFinished:
		return errors.From(errors.ErrSessionFinished)
	case g.s.State == domain.StatePaused:
		return errors.From(errors.ErrSessionPaused)
	case g.s.State != domain.StatePlaying || g.s.CurrentPuzzle == nil:
		return errors.From(errors.ErrNoActivePuzzle)
	}
	return nil
}

func (g *Session) timeUpLocked(ctx context.Context) AnswerResult {
	telemetry.AnswersSubmitted.WithLabelValues(string(g.s.Mode), "false").Inc()

	g.s.Streak = 0
	g.s.Lives = 0
	if g.s.Mode == domain.ModeMultiplayer {
		r, err := g.c.Rooms.Forfeit(ctx, g.s.RoomID, g.c.UserID)
		if err != nil {
			slog.WarnContext(ctx, "game: forfeit room lives", "room", g.s.RoomID, "user", g.c.UserID, "error", err)
		} else {
			g.s.Players = slices.Clone(r.Players)
		}
	}
	notices := g.finishLocked(ctx)

	return AnswerResult{
		Session: g.snapshotLocked(),
		Notices: notices,
	}
}

// finishLocked moves to FINISHED. The bookkeeping runs only on the first call.
func (g *Session) finishLocked(ctx context.Context) []string {
	g.s.State = domain.StateFinished
	g.countdown.Stop()
	g.round++

	if g.finished {
		return nil
	}
	g.finished = true

	ctx = context.WithoutCancel(ctx)
	rec := domain.GameSessionRecord{
		ID:         g.s.ID,
		UserID:     g.c.UserID,
		Mode:       g.s.Mode,
		Difficulty: g.s.Difficulty,
		Score:      g.s.Score,
		Streak:     g.s.BestStreak,
		HintsUsed:  g.s.HintsUsed,
		CreatedAt:  g.s.StartedAt,
		EndTime:    g.c.Now(),
	}

	telemetry.SessionsFinished.WithLabelValues(string(g.s.Mode)).Inc()
	slog.InfoContext(ctx, "game: session finished", "session", rec.ID, "user", rec.UserID, "score", rec.Score)

	var notices []string
	if !g.c.Guest {
		if err := g.c.Recorder.SaveSession(ctx, rec); err != nil {
			notices = append(notices, noticeSessionNotSaved)
			persistenceFailed(ctx, "save_session", rec.ID, err)
		}

		if _, err := g.c.Profiles.ReconcileBestStreak(ctx, g.c.UserID, g.s.BestStreak); err != nil {
			notices = append(notices, noticeBestStreakNotSaved)
			persistenceFailed(ctx, "best_streak", rec.ID, err)
		}
	}

	g.c.Publisher.Publish(ctx, domain.EventSessionFinished{
		Record:       rec,
		Guest:        g.c.Guest,
		Won:          g.wonLocked(),
		Solved:       g.solved,
		SolveSeconds: g.solveSeconds,
	})

	return notices
}

func (g *Session) wonLocked() bool {
	if g.s.Score <= 0 {
		return false
	}
	if g.s.Mode != domain.ModeMultiplayer {
		return true
	}

	for _, p := range g.s.Players {
		if p.ID != g.c.UserID && p.Score > g.s.Score {
			return false
		}
	}
	return true
}

func (g *Session) requestPuzzle(ctx context.Context) domain.Puzzle {
	if g.s.Mode == domain.ModeMultiplayer {
		return g.c.Rooms.Puzzle(ctx, g.s.RoomID)
	}
	return g.c.Puzzles.NextPuzzle(ctx)
}

// nextPuzzle finds the puzzle following solvedID. In a room the first player to solve a
// puzzle replaces it, the other one picks up the replacement.
func (g *Session) nextPuzzle(ctx context.Context, mode domain.Mode, roomID, solvedID string) domain.Puzzle {
	if mode != domain.ModeMultiplayer {
		return g.c.Puzzles.NextPuzzle(ctx)
	}

	r, _, err := g.c.Rooms.AdvancePuzzle(ctx, roomID, solvedID)
	if err != nil || r.CurrentPuzzle == nil {
		slog.WarnContext(ctx, "game: advance room puzzle failed", "room", roomID, "error", err)
		return g.c.Rooms.Puzzle(ctx, roomID)
	}

	return *r.CurrentPuzzle
}

func (g *Session) scheduleNextLocked(ctx context.Context, solvedID string) {
	mode, roomID := g.s.Mode, g.s.RoomID

	if g.c.FeedbackDelay <= 0 {
		g.setPuzzleLocked(g.nextPuzzle(ctx, mode, roomID, solvedID))
		return
	}

	round := g.round
	ctx = context.WithoutCancel(ctx)
	g.c.AfterFunc(g.c.FeedbackDelay, func() {
		p := g.nextPuzzle(ctx, mode, roomID, solvedID)

		g.mu.Lock()
		if g.round != round || g.s.CurrentPuzzle != nil || g.s.State == domain.StateFinished || g.s.State == domain.StateWaiting {
			g.mu.Unlock()
			return
		}
		g.setPuzzleLocked(p)
		snap := g.snapshotLocked()
		g.mu.Unlock()

		g.notify(snap)
	})
}

func (g *Session) setPuzzleLocked(p domain.Puzzle) {
	g.round++
	g.s.CurrentPuzzle = &p

	if g.s.State == domain.StatePaused {
		g.countdown.Stop()
		g.pendingArm = true
		return
	}

	g.s.State = domain.StatePlaying
	g.armLocked()
}

func (g *Session) clearPuzzleLocked(solvedID string) {
	g.round++
	g.lastSolvedID = solvedID
	g.s.CurrentPuzzle = nil
	g.pendingArm = false
	g.countdown.Stop()
}

func (g *Session) armLocked() {
	if !g.c.EnforceTimeLimit {
		return
	}

	round := g.round
	limit := time.Duration(g.timeLimitSecondsLocked()) * time.Second
	g.countdown.Start(limit, func() { g.expire(round) })
}

func (g *Session) expire(round uint64) {
	g.mu.Lock()
	if g.round != round || g.s.State != domain.StatePlaying || g.s.CurrentPuzzle == nil {
		g.mu.Unlock()
		return
	}

	g.timeUpLocked(context.Background())
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.notify(snap)
}

func (g *Session) timeLimitSecondsLocked() int {
	if g.s.Mode == domain.ModeMultiplayer && g.roomTimeLimit > 0 {
		return g.roomTimeLimit
	}
	return g.s.Difficulty.Settings().TimeLimitSeconds
}

func (g *Session) resetLocked() {
	g.countdown.Stop()
	g.round++
	g.finished = false
	g.lastSolvedID = ""
	g.pendingArm = false
	g.roomTimeLimit = 0
	g.solved = 0
	g.solveSeconds = 0

	g.s = domain.Session{
		UserID:     g.c.UserID,
		Mode:       domain.ModeSolo,
		State:      domain.StateWaiting,
		Lives:      domain.MaxLives,
		Difficulty: domain.DifficultyNormal,
	}
}

func (g *Session) snapshotLocked() domain.Session {
	s := g.s
	s.Players = slices.Clone(g.s.Players)
	if g.s.CurrentPuzzle != nil {
		p := *g.s.CurrentPuzzle
		s.CurrentPuzzle = &p
	}
	return s
}

func (g *Session) notify(s domain.Session) {
	if g.c.OnChange != nil {
		g.c.OnChange(s)
	}
}

func persistenceFailed(ctx context.Context, op, sessionID string, err error) {
	telemetry.PersistenceFailures.WithLabelValues(op).Inc()
	slog.ErrorContext(ctx, "game: bookkeeping failed",
		"operation", op,
		"session", sessionID,
		"error", errors.From(errors.ErrPersistenceFailure, errors.WithCause(err)),
	)
}
