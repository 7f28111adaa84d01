package room

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/victornm/bananaquiz/internal/docstore"
	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/score"
)

var base36 = []rune("0123456789abcdefghijklmnopqrstuvwxyz")

type Supplier interface {
	FetchPuzzle(ctx context.Context) domain.Puzzle
	GetCachedPuzzle(ctx context.Context) domain.Puzzle
}

type Config struct {
	Store    docstore.Store
	Supplier Supplier
	Now      func() time.Time
}

// Service keeps room documents in the document store. Every mutation runs in an
// optimistic transaction on the room document, so concurrent writers never lose updates.
type Service struct {
	store    docstore.Store
	supplier Supplier
	now      func() time.Time

	mu        sync.Mutex
	listeners map[listenerKey]*listener
}

type listenerKey struct {
	roomID   string
	listener string
}

type listener struct {
	sub  *docstore.Subscription
	done chan struct{}
	once sync.Once
}

func (l *listener) close() {
	l.once.Do(func() {
		close(l.done)
		_ = l.sub.Close()
	})
}

func NewService(c Config) *Service {
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		store:     c.Store,
		supplier:  c.Supplier,
		now:       c.Now,
		listeners: make(map[listenerKey]*listener),
	}
}

// Create writes a new room with the host as its only player. Settings left at zero get their defaults.
// A room is always a two-player match with 1 to domain.MaxLives lives per player.
func (s *Service) Create(ctx context.Context, hostID string, settings domain.RoomSettings) (domain.Room, error) {
	def := domain.DefaultRoomSettings()
	if settings.MaxPlayers == 0 {
		settings.MaxPlayers = def.MaxPlayers
	}
	if settings.TimeLimitSeconds == 0 {
		settings.TimeLimitSeconds = def.TimeLimitSeconds
	}
	if settings.Lives == 0 {
		settings.Lives = def.Lives
	}

	switch {
	case settings.MaxPlayers != def.MaxPlayers:
		return domain.Room{}, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("a room holds exactly %d players, got %d", def.MaxPlayers, settings.MaxPlayers))
	case settings.Lives < 1 || settings.Lives > domain.MaxLives:
		return domain.Room{}, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("lives must be between 1 and %d, got %d", domain.MaxLives, settings.Lives))
	case settings.TimeLimitSeconds < 0:
		return domain.Room{}, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("time limit must be positive, got %d", settings.TimeLimitSeconds))
	}

	now := s.now()
	r := domain.Room{
		ID:        fmt.Sprintf("room_%d_%s", now.UnixMilli(), lo.RandomString(9, base36)),
		HostID:    hostID,
		Players:   []domain.RoomPlayer{{ID: hostID, Lives: settings.Lives}},
		PlayerIDs: []string{hostID},
		Settings:  settings,
		State:     domain.StateWaiting,
		CreatedAt: now,
	}

	doc, err := docstore.Encode(r)
	if err != nil {
		return domain.Room{}, err
	}

	if err := s.store.Set(ctx, docstore.CollectionRooms, r.ID, doc); err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}

	slog.InfoContext(ctx, "room: created", "room", r.ID, "host", hostID)
	return r, nil
}

func (s *Service) Get(ctx context.Context, roomID string) (domain.Room, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionRooms, roomID)
	if err != nil {
		return domain.Room{}, roomErr(roomID, err)
	}

	var r domain.Room
	if err := docstore.Decode(doc, &r); err != nil {
		return domain.Room{}, err
	}

	return r, nil
}

// Join appends the player to the room. The player list is left untouched on failure.
func (s *Service) Join(ctx context.Context, roomID, playerID string) (domain.Room, error) {
	return s.transact(ctx, roomID, func(r *domain.Room) (bool, error) {
		if len(r.Players) >= r.Settings.MaxPlayers {
			return false, errors.From(errors.ErrRoomFull, errors.WithMessagef("room is full: %s", roomID))
		}

		if lo.Contains(r.PlayerIDs, playerID) {
			return false, errors.From(errors.ErrAlreadyJoined, errors.WithMessagef("already in room: %s", roomID))
		}

		r.Players = append(r.Players, domain.RoomPlayer{ID: playerID, Lives: r.Settings.Lives})
		r.PlayerIDs = append(r.PlayerIDs, playerID)
		return true, nil
	})
}

type SubmitAnswerRequest struct {
	RoomID   string
	PlayerID string
	// PuzzleID is the puzzle the player answered. When set and no longer the room's
	// current puzzle the answer is rejected.
	PuzzleID  string
	Answer    string
	Elapsed   float64
	HintsUsed int
}

type AnswerResult struct {
	Correct bool
	Points  int
	Player  domain.RoomPlayer
	Room    domain.Room
}

// SubmitAnswer checks the answer against the room's current puzzle and updates the player's
// score, lives and streak.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (AnswerResult, error) {
	var res AnswerResult

	r, err := s.transact(ctx, req.RoomID, func(r *domain.Room) (bool, error) {
		if r.CurrentPuzzle == nil {
			return false, errors.From(errors.ErrNoActivePuzzle, errors.WithMessagef("no active puzzle in room: %s", req.RoomID))
		}
		if req.PuzzleID != "" && r.CurrentPuzzle.ID != req.PuzzleID {
			return false, errors.From(errors.ErrNoActivePuzzle, errors.WithMessagef("puzzle already solved: %s", req.PuzzleID))
		}

		_, i, ok := lo.FindIndexOf(r.Players, func(p domain.RoomPlayer) bool { return p.ID == req.PlayerID })
		if !ok {
			return false, errors.From(errors.ErrPlayerNotInRoom, errors.WithMessagef("player %s not in room %s", req.PlayerID, req.RoomID))
		}

		p := &r.Players[i]
		res = AnswerResult{Correct: r.CurrentPuzzle.Check(req.Answer)}
		if res.Correct {
			p.Streak++
			res.Points = score.Compute(score.Input{
				Elapsed:   req.Elapsed,
				TimeLimit: r.Settings.TimeLimitSeconds,
				Correct:   true,
				Streak:    p.Streak,
				HintsUsed: req.HintsUsed,
			})
			p.Score += res.Points
		} else {
			p.Lives = max(0, p.Lives-1)
			p.Streak = 0
		}

		res.Player = *p
		return true, nil
	})
	if err != nil {
		return AnswerResult{}, err
	}

	res.Room = r
	return res, nil
}

// Forfeit takes every life of the player, e.g. when their time ran out.
func (s *Service) Forfeit(ctx context.Context, roomID, playerID string) (domain.Room, error) {
	return s.transact(ctx, roomID, func(r *domain.Room) (bool, error) {
		_, i, ok := lo.FindIndexOf(r.Players, func(p domain.RoomPlayer) bool { return p.ID == playerID })
		if !ok {
			return false, errors.From(errors.ErrPlayerNotInRoom, errors.WithMessagef("player %s not in room %s", playerID, roomID))
		}

		p := &r.Players[i]
		if p.Lives == 0 && p.Streak == 0 {
			return false, nil
		}

		p.Lives = 0
		p.Streak = 0
		return true, nil
	})
}

// StartIfReady moves a waiting room with at least two players to PLAYING and gives it a puzzle.
// When both players race, only the first write wins. It reports whether this call started the room.
func (s *Service) StartIfReady(ctx context.Context, roomID string) (domain.Room, bool, error) {
	r, err := s.Get(ctx, roomID)
	if err != nil {
		return domain.Room{}, false, err
	}
	if !ready(r) {
		return r, false, nil
	}

	p := s.supplier.FetchPuzzle(ctx)

	started := false
	r, err = s.transact(ctx, roomID, func(r *domain.Room) (bool, error) {
		started = ready(*r)
		if !started {
			return false, nil
		}

		r.State = domain.StatePlaying
		if r.CurrentPuzzle == nil {
			r.CurrentPuzzle = &p
		}
		return true, nil
	})
	if err != nil {
		return domain.Room{}, false, err
	}

	if started {
		slog.InfoContext(ctx, "room: started", "room", roomID, "players", r.PlayerIDs)
	}
	return r, started, nil
}

// AdvancePuzzle replaces the room puzzle with a new one, unless another player already replaced solvedPuzzleID.
func (s *Service) AdvancePuzzle(ctx context.Context, roomID, solvedPuzzleID string) (domain.Room, bool, error) {
	p := s.supplier.FetchPuzzle(ctx)

	advanced := false
	r, err := s.transact(ctx, roomID, func(r *domain.Room) (bool, error) {
		advanced = r.CurrentPuzzle != nil && r.CurrentPuzzle.ID == solvedPuzzleID
		if !advanced {
			return false, nil
		}

		r.CurrentPuzzle = &p
		r.State = domain.StatePlaying
		return true, nil
	})
	if err != nil {
		return domain.Room{}, false, err
	}

	return r, advanced, nil
}

// Puzzle returns the room's current puzzle, writing a new one when there is none.
// It never fails: any error yields a puzzle from the offline cache.
func (s *Service) Puzzle(ctx context.Context, roomID string) domain.Puzzle {
	r, err := s.Get(ctx, roomID)
	if err != nil {
		slog.WarnContext(ctx, "room: get puzzle failed, using offline cache", "room", roomID, "error", err)
		return s.supplier.GetCachedPuzzle(ctx)
	}
	if r.CurrentPuzzle != nil {
		return *r.CurrentPuzzle
	}

	p := s.supplier.FetchPuzzle(ctx)

	var out domain.Puzzle
	_, err = s.transact(ctx, roomID, func(r *domain.Room) (bool, error) {
		if r.CurrentPuzzle != nil {
			out = *r.CurrentPuzzle
			return false, nil
		}

		out = p
		r.CurrentPuzzle = &p
		return true, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "room: write puzzle failed, using offline cache", "room", roomID, "error", err)
		return s.supplier.GetCachedPuzzle(ctx)
	}

	return out
}

// Listen streams the room after every change, starting with its current content.
// A second Listen with the same room and listener replaces the first one, whose channel gets closed.
func (s *Service) Listen(ctx context.Context, roomID, listenerID string) (<-chan domain.Room, error) {
	sub, err := s.store.Subscribe(ctx, docstore.CollectionRooms, roomID)
	if err != nil {
		return nil, fmt.Errorf("listen room: %w", err)
	}

	first, err := s.Get(ctx, roomID)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	l := &listener{sub: sub, done: make(chan struct{})}
	key := listenerKey{roomID: roomID, listener: listenerID}

	s.mu.Lock()
	if prev, ok := s.listeners[key]; ok {
		prev.close()
	}
	s.listeners[key] = l
	s.mu.Unlock()

	out := make(chan domain.Room, 1)
	out <- first

	go func() {
		defer close(out)
		defer s.release(key, l)

		for {
			select {
			case doc, ok := <-sub.C:
				if !ok {
					return
				}

				var r domain.Room
				if err := docstore.Decode(doc, &r); err != nil {
					slog.WarnContext(ctx, "room: drop malformed room update", "room", roomID, "error", err)
					continue
				}

				select {
				case out <- r:
				case <-l.done:
					return
				case <-ctx.Done():
					return
				}
			case <-l.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// StopListening cancels the subscription of the listener. It is a no-op when there is none.
func (s *Service) StopListening(roomID, listenerID string) {
	key := listenerKey{roomID: roomID, listener: listenerID}

	s.mu.Lock()
	l, ok := s.listeners[key]
	delete(s.listeners, key)
	s.mu.Unlock()

	if ok {
		l.close()
	}
}

// Leave stops the room updates of the player.
func (s *Service) Leave(ctx context.Context, roomID, playerID string) {
	s.StopListening(roomID, playerID)
	slog.InfoContext(ctx, "room: player left", "room", roomID, "player", playerID)
}

// Close stops every listener.
func (s *Service) Close() {
	s.mu.Lock()
	ls := lo.Values(s.listeners)
	clear(s.listeners)
	s.mu.Unlock()

	for _, l := range ls {
		l.close()
	}
}

func (s *Service) release(key listenerKey, l *listener) {
	l.close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners[key] == l {
		delete(s.listeners, key)
	}
}

// transact decodes the room, applies fn and writes the room back when fn asks for it.
// It returns the room as fn left it.
func (s *Service) transact(ctx context.Context, roomID string, fn func(r *domain.Room) (bool, error)) (domain.Room, error) {
	var out domain.Room

	err := s.store.Transact(ctx, docstore.CollectionRooms, roomID, func(doc docstore.Document) (docstore.Document, error) {
		var r domain.Room
		if err := docstore.Decode(doc, &r); err != nil {
			return nil, err
		}

		write, err := fn(&r)
		if err != nil {
			return nil, err
		}

		out = r
		if !write {
			return nil, nil
		}

		return docstore.Encode(r)
	})
	if err != nil {
		return domain.Room{}, roomErr(roomID, err)
	}

	return out, nil
}

func ready(r domain.Room) bool {
	return r.State == domain.StateWaiting && len(r.Players) >= 2
}

func roomErr(roomID string, err error) error {
	if stderrors.Is(err, errors.ErrDocumentNotFound) {
		return errors.From(errors.ErrRoomNotFound, errors.WithMessagef("room not found: %s", roomID), errors.WithCause(err))
	}
	return err
}
