package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/errors"
)

type Config struct {
	EventBus         Publisher
	Puzzles          PuzzleSource
	Rooms            Rooms
	History          Recorder
	Profiles         Profiles
	FeedbackDelay    time.Duration
	EnforceTimeLimit bool
	AfterFunc        AfterFunc
	Now              func() time.Time
}

// Service holds the running session of every player and routes their intents to it.
type Service struct {
	c Config

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session *Session
	stop    func()
}

func NewService(c Config) *Service {
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		c:        c,
		sessions: make(map[string]*entry),
	}
}

type StartSessionRequest struct {
	UserID string
	Guest  bool
	Mode   domain.Mode
	// Difficulty defaults to the one recommended by the player's profile.
	Difficulty string
	RoomID     string
}

type StartSessionResult struct {
	Session domain.Session
	Notices []string
}

// StartSession replaces the player's session with a new one. A solo session gets its first
// puzzle right away, a multiplayer session follows its room and starts once two players joined.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (StartSessionResult, error) {
	if req.Mode == "" {
		req.Mode = domain.ModeSolo
	}
	if req.Mode != domain.ModeSolo && req.Mode != domain.ModeMultiplayer {
		return StartSessionResult{}, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown mode: %s", req.Mode))
	}
	if req.Mode == domain.ModeMultiplayer && req.RoomID == "" {
		return StartSessionResult{}, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("room id is required in multiplayer"))
	}

	var (
		res        StartSessionResult
		difficulty = domain.Difficulty(req.Difficulty)
	)

	if !req.Guest {
		u, err := s.c.Profiles.Ensure(ctx, req.UserID)
		if err != nil {
			slog.ErrorContext(ctx, "game: load profile failed", "user", req.UserID, "error", err)
			res.Notices = append(res.Notices, "Your profile could not be loaded.")
		} else if difficulty == "" {
			difficulty = u.RecommendedDifficulty()
		}
	}

	var r domain.Room
	if req.Mode == domain.ModeMultiplayer {
		var err error
		if r, err = s.c.Rooms.Get(ctx, req.RoomID); err != nil {
			return StartSessionResult{}, err
		}
		if !lo.Contains(r.PlayerIDs, req.UserID) {
			return StartSessionResult{}, errors.From(errors.ErrPlayerNotInRoom, errors.WithMessagef("player %s not in room %s", req.UserID, req.RoomID))
		}
	}

	g := NewSession(SessionConfig{
		UserID:           req.UserID,
		Guest:            req.Guest,
		Puzzles:          s.c.Puzzles,
		Rooms:            s.c.Rooms,
		Recorder:         s.c.History,
		Profiles:         s.c.Profiles,
		Publisher:        s.c.EventBus,
		FeedbackDelay:    s.c.FeedbackDelay,
		EnforceTimeLimit: s.c.EnforceTimeLimit,
		AfterFunc:        s.c.AfterFunc,
		Now:              s.c.Now,
		OnChange: func(sess domain.Session) {
			s.c.EventBus.Publish(context.Background(), domain.EventSessionUpdated{Session: sess})
		},
	})
	g.Start(req.Mode, difficulty, req.RoomID)

	e := &entry{session: g, stop: func() {}}
	if req.Mode == domain.ModeMultiplayer {
		g.ApplyRoom(r)
		if err := s.follow(e, req.UserID, req.RoomID); err != nil {
			return StartSessionResult{}, err
		}
	}
	s.replace(req.UserID, e)

	if req.Mode == domain.ModeSolo {
		sess, err := g.LoadPuzzle(ctx)
		if err != nil {
			return StartSessionResult{}, err
		}

		res.Session = sess
		return res, nil
	}

	rr, _, err := s.c.Rooms.StartIfReady(ctx, req.RoomID)
	if err != nil {
		slog.WarnContext(ctx, "game: start room failed", "room", req.RoomID, "error", err)
	} else if rr.State == domain.StatePlaying {
		g.ApplyRoom(rr)
		if rr.CurrentPuzzle == nil {
			if _, err := g.LoadPuzzle(ctx); err != nil {
				return StartSessionResult{}, err
			}
		}
	}

	res.Session = g.Snapshot()
	return res, nil
}

// follow feeds the room updates to the session until the entry is stopped.
// Stopping cancels only this subscription, a newer one of the same player keeps running.
func (s *Service) follow(e *entry, userID, roomID string) error {
	ctx, cancel := context.WithCancel(context.Background())

	c, err := s.c.Rooms.Listen(ctx, roomID, userID)
	if err != nil {
		cancel()
		return err
	}
	e.stop = cancel

	go func() {
		for r := range c {
			e.session.ApplyRoom(r)

			if r.State == domain.StateWaiting && len(r.Players) >= 2 {
				if _, _, err := s.c.Rooms.StartIfReady(ctx, roomID); err != nil {
					slog.WarnContext(ctx, "game: start room failed", "room", roomID, "error", err)
				}
			}
		}
	}()

	return nil
}

type SubmitAnswerRequest struct {
	UserID string
	Answer string
	// Elapsed is the time spent on the puzzle, in seconds.
	Elapsed float64
}

func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (AnswerResult, error) {
	g, err := s.session(req.UserID)
	if err != nil {
		return AnswerResult{}, err
	}

	return g.SubmitAnswer(ctx, req.Answer, req.Elapsed)
}

func (s *Service) UseHint(_ context.Context, userID string) (HintResult, error) {
	g, err := s.session(userID)
	if err != nil {
		return HintResult{}, err
	}

	return g.UseHint()
}

func (s *Service) TimeUp(ctx context.Context, userID string) (AnswerResult, error) {
	g, err := s.session(userID)
	if err != nil {
		return AnswerResult{}, err
	}

	return g.TimeUp(ctx)
}

func (s *Service) Pause(_ context.Context, userID string) (domain.Session, error) {
	g, err := s.session(userID)
	if err != nil {
		return domain.Session{}, err
	}

	return g.Pause()
}

func (s *Service) Resume(_ context.Context, userID string) (domain.Session, error) {
	g, err := s.session(userID)
	if err != nil {
		return domain.Session{}, err
	}

	return g.Resume()
}

// Reset drops the player's session. It is a no-op when there is none.
func (s *Service) Reset(_ context.Context, userID string) domain.Session {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if !ok {
		return domain.Session{
			UserID:     userID,
			Mode:       domain.ModeSolo,
			State:      domain.StateWaiting,
			Lives:      domain.MaxLives,
			Difficulty: domain.DifficultyNormal,
		}
	}

	e.stop()
	return e.session.Reset()
}

func (s *Service) GetSession(_ context.Context, userID string) (domain.Session, error) {
	g, err := s.session(userID)
	if err != nil {
		return domain.Session{}, err
	}

	return g.Snapshot(), nil
}

func (s *Service) CreateRoom(ctx context.Context, hostID string, settings domain.RoomSettings) (domain.Room, error) {
	r, err := s.c.Rooms.Create(ctx, hostID, settings)
	if err != nil {
		return domain.Room{}, err
	}

	s.c.EventBus.Publish(ctx, domain.EventRoomUpdated{Room: r})
	return r, nil
}

func (s *Service) JoinRoom(ctx context.Context, roomID, playerID string) (domain.Room, error) {
	r, err := s.c.Rooms.Join(ctx, roomID, playerID)
	if err != nil {
		return domain.Room{}, err
	}

	s.c.EventBus.Publish(ctx, domain.EventRoomUpdated{Room: r})
	return r, nil
}

// LeaveRoom stops the room updates of the player and drops their session in that room.
func (s *Service) LeaveRoom(ctx context.Context, roomID, playerID string) {
	s.mu.Lock()
	e, ok := s.sessions[playerID]
	if ok && e.session.Snapshot().RoomID == roomID {
		delete(s.sessions, playerID)
	} else {
		ok = false
	}
	s.mu.Unlock()

	if ok {
		e.stop()
		e.session.Reset()
	}

	s.c.Rooms.Leave(ctx, roomID, playerID)
}

// Close stops every session.
func (s *Service) Close() {
	s.mu.Lock()
	entries := lo.Values(s.sessions)
	clear(s.sessions)
	s.mu.Unlock()

	for _, e := range entries {
		e.stop()
		e.session.Reset()
	}
}

func (s *Service) replace(userID string, e *entry) {
	s.mu.Lock()
	prev, ok := s.sessions[userID]
	s.sessions[userID] = e
	s.mu.Unlock()

	if ok {
		prev.stop()
		prev.session.Reset()
	}
}

func (s *Service) session(userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[userID]
	if !ok {
		return nil, errors.From(errors.ErrSessionNotFound, errors.WithMessagef("no session for user: %s", userID))
	}

	return e.session, nil
}
