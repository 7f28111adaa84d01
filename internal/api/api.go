package api

import (
	"context"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/event"
	"github.com/victornm/bananaquiz/internal/game"
	"github.com/victornm/bananaquiz/internal/history"
	"github.com/victornm/bananaquiz/internal/identity"
	"github.com/victornm/bananaquiz/internal/leaderboard"
)

type Config struct {
	GRPC         grpc.ServiceRegistrar
	EventBus     *event.Bus
	Game         Game
	Leaderboard  LeaderboardService
	History      History
	Redis        Redis
	PubsubPrefix string
}

type Game interface {
	StartSession(ctx context.Context, req game.StartSessionRequest) (game.StartSessionResult, error)
	SubmitAnswer(ctx context.Context, req game.SubmitAnswerRequest) (game.AnswerResult, error)
	UseHint(ctx context.Context, userID string) (game.HintResult, error)
	TimeUp(ctx context.Context, userID string) (game.AnswerResult, error)
	Pause(ctx context.Context, userID string) (domain.Session, error)
	Resume(ctx context.Context, userID string) (domain.Session, error)
	Reset(ctx context.Context, userID string) domain.Session
	GetSession(ctx context.Context, userID string) (domain.Session, error)
	CreateRoom(ctx context.Context, hostID string, settings domain.RoomSettings) (domain.Room, error)
	JoinRoom(ctx context.Context, roomID, playerID string) (domain.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string)
}

type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, req leaderboard.GetLeaderboardRequest) (*domain.Leaderboard, error)
	UserRank(ctx context.Context, req leaderboard.UserRankRequest) (int, bool, error)
}

type History interface {
	RecentSessions(ctx context.Context, req history.RecentSessionsRequest) ([]domain.GameSessionRecord, error)
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// API serves bananaquiz.v1.GameService for the caller identified by the identity interceptor
// and pushes state changes to the players over Redis pub/sub.
type API struct {
	game Game
	ls   LeaderboardService
	hs   History

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		game:   c.Game,
		ls:     c.Leaderboard,
		hs:     c.History,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// gRPC APIs
	RegisterGameServiceServer(c.GRPC, a)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameSessionUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishSessionUpdated(ctx, e.(domain.EventSessionUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameRoomUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishRoomUpdated(ctx, e.(domain.EventRoomUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

func (a *API) StartSession(ctx context.Context, req *StartSessionRequest) (*StartSessionResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	res, err := a.game.StartSession(ctx, game.StartSessionRequest{
		UserID:     id.UserID,
		Guest:      id.Guest,
		Mode:       domain.Mode(req.Mode),
		Difficulty: req.Difficulty,
		RoomID:     req.RoomID,
	})
	if err != nil {
		return nil, err
	}

	return &StartSessionResponse{
		Session: toSession(res.Session),
		Notices: res.Notices,
	}, nil
}

func (a *API) SubmitAnswer(ctx context.Context, req *SubmitAnswerRequest) (*AnswerResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	res, err := a.game.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		UserID:  id.UserID,
		Answer:  req.Answer,
		Elapsed: req.Elapsed,
	})
	if err != nil {
		return nil, err
	}

	return toAnswerResponse(res), nil
}

func (a *API) UseHint(ctx context.Context, _ *UseHintRequest) (*UseHintResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	res, err := a.game.UseHint(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	return &UseHintResponse{
		Solution:       res.Solution,
		HintsRemaining: res.HintsRemaining,
		Session:        toSession(res.Session),
	}, nil
}

func (a *API) TimeUp(ctx context.Context, _ *TimeUpRequest) (*AnswerResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	res, err := a.game.TimeUp(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	return toAnswerResponse(res), nil
}

func (a *API) PauseSession(ctx context.Context, _ *PauseSessionRequest) (*SessionResponse, error) {
	return a.sessionCall(ctx, a.game.Pause)
}

func (a *API) ResumeSession(ctx context.Context, _ *ResumeSessionRequest) (*SessionResponse, error) {
	return a.sessionCall(ctx, a.game.Resume)
}

func (a *API) ResetSession(ctx context.Context, _ *ResetSessionRequest) (*SessionResponse, error) {
	return a.sessionCall(ctx, func(ctx context.Context, userID string) (domain.Session, error) {
		return a.game.Reset(ctx, userID), nil
	})
}

func (a *API) GetSession(ctx context.Context, _ *GetSessionRequest) (*SessionResponse, error) {
	return a.sessionCall(ctx, a.game.GetSession)
}

func (a *API) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*RoomResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	r, err := a.game.CreateRoom(ctx, id.UserID, domain.RoomSettings(req.Settings))
	if err != nil {
		return nil, err
	}

	return &RoomResponse{Room: toRoom(r)}, nil
}

func (a *API) JoinRoom(ctx context.Context, req *JoinRoomRequest) (*RoomResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.RoomID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("room id is required"))
	}

	r, err := a.game.JoinRoom(ctx, req.RoomID, id.UserID)
	if err != nil {
		return nil, err
	}

	return &RoomResponse{Room: toRoom(r)}, nil
}

func (a *API) LeaveRoom(ctx context.Context, req *LeaveRoomRequest) (*LeaveRoomResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	a.game.LeaveRoom(ctx, req.RoomID, id.UserID)
	return &LeaveRoomResponse{}, nil
}

func (a *API) GetLeaderboard(ctx context.Context, req *GetLeaderboardRequest) (*GetLeaderboardResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	l, err := a.ls.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		Mode:   domain.Mode(req.Mode),
		Period: req.Period,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, err
	}

	resp := &GetLeaderboardResponse{
		Leaderboard: toLeaderboard(*l),
	}

	if id.Guest {
		return resp, nil
	}

	rank, ok, err := a.ls.UserRank(ctx, leaderboard.UserRankRequest{
		Mode:   l.Mode,
		UserID: id.UserID,
	})
	if err != nil {
		return nil, err
	}
	if ok {
		resp.UserRank = rank
	}

	return resp, nil
}

// RecentSessions returns no sessions for guests, their games are not recorded.
func (a *API) RecentSessions(ctx context.Context, req *RecentSessionsRequest) (*RecentSessionsResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	resp := &RecentSessionsResponse{
		Sessions: []SessionRecord{},
	}

	if id.Guest {
		return resp, nil
	}

	records, err := a.hs.RecentSessions(ctx, history.RecentSessionsRequest{
		UserID: id.UserID,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		resp.Sessions = append(resp.Sessions, toSessionRecord(r))
	}

	return resp, nil
}

func (a *API) sessionCall(ctx context.Context, call func(ctx context.Context, userID string) (domain.Session, error)) (*SessionResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	s, err := call(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	return &SessionResponse{Session: toSession(s)}, nil
}

func toAnswerResponse(res game.AnswerResult) *AnswerResponse {
	return &AnswerResponse{
		Correct: res.Correct,
		Points:  res.Points,
		Session: toSession(res.Session),
		Notices: res.Notices,
	}
}

func caller(ctx context.Context) (identity.Identity, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return identity.Identity{}, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing identity"))
	}
	return id, nil
}
