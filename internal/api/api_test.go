package api_test

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/victornm/bananaquiz/internal/api"
	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/event"
	"github.com/victornm/bananaquiz/internal/game"
	"github.com/victornm/bananaquiz/internal/history"
	"github.com/victornm/bananaquiz/internal/identity"
	"github.com/victornm/bananaquiz/internal/leaderboard"
)

const secret = "s3cret"

func TestAPI_StartSession(t *testing.T) {
	f := newFixture(t)
	ctx := f.as(t, "u1")

	resp, err := f.client.StartSession(ctx, &api.StartSessionRequest{Mode: "SOLO", Difficulty: "HARD"})
	require.NoError(t, err)

	assert.Equal(t, game.StartSessionRequest{
		UserID:     "u1",
		Mode:       domain.ModeSolo,
		Difficulty: "HARD",
	}, f.game.lastStart)
	assert.Equal(t, "s1", resp.Session.ID)
	assert.Equal(t, 40, resp.Session.TimeLimitSeconds)
	assert.Equal(t, domain.MaxHints, resp.Session.HintsRemaining)
	require.NotNil(t, resp.Session.CurrentPuzzle)
	assert.Equal(t, api.Puzzle{ID: "p1", Question: "https://example.com/p1.png"}, *resp.Session.CurrentPuzzle)
}

func TestAPI_Guest(t *testing.T) {
	f := newFixture(t)

	var header metadata.MD
	_, err := f.client.GetSession(context.Background(), &api.GetSessionRequest{}, grpc.Header(&header))
	require.NoError(t, err)

	guestID := header.Get(identity.MetadataGuestID)
	require.Len(t, guestID, 1, "guest id is sent back to the client")
	assert.Equal(t, guestID[0], f.game.lastUser)

	ctx := metadata.AppendToOutgoingContext(context.Background(), identity.MetadataGuestID, guestID[0])
	recent, err := f.client.RecentSessions(ctx, &api.RecentSessionsRequest{})
	require.NoError(t, err)
	assert.Empty(t, recent.Sessions, "guests have no recorded sessions")

	l, err := f.client.GetLeaderboard(ctx, &api.GetLeaderboardRequest{})
	require.NoError(t, err)
	assert.Zero(t, l.UserRank)
}

func TestAPI_Errors(t *testing.T) {
	tests := map[string]struct {
		err  error
		code codes.Code
	}{
		"session not found": {
			err:  errors.From(errors.ErrSessionNotFound),
			code: codes.NotFound,
		},
		"hints exhausted": {
			err:  errors.From(errors.ErrHintsExhausted),
			code: codes.FailedPrecondition,
		},
		"room full": {
			err:  errors.From(errors.ErrRoomFull),
			code: codes.ResourceExhausted,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.game.err = tt.err

			_, err := f.client.UseHint(f.as(t, "u1"), &api.UseHintRequest{})
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}

	t.Run("invalid token", func(t *testing.T) {
		f := newFixture(t)
		ctx := metadata.AppendToOutgoingContext(context.Background(), identity.MetadataAuthorization, "Bearer nope")

		_, err := f.client.GetSession(ctx, &api.GetSessionRequest{})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

func TestAPI_LeaderboardAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := f.as(t, "u2")

	l, err := f.client.GetLeaderboard(ctx, &api.GetLeaderboardRequest{Period: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, api.Leaderboard{
		Mode:   "SOLO",
		Period: "weekly",
		Entries: []api.LeaderboardEntry{
			{Rank: 1, UserID: "u1", Score: 500},
			{Rank: 2, UserID: "u2", Score: 300},
		},
	}, l.Leaderboard)
	assert.Equal(t, 2, l.UserRank)

	recent, err := f.client.RecentSessions(ctx, &api.RecentSessionsRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, recent.Sessions, 1)
	assert.Equal(t, 300, recent.Sessions[0].Score)
	assert.Equal(t, history.RecentSessionsRequest{UserID: "u2", Limit: 5}, f.history.lastReq)
}

func TestAPI_Rooms(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.JoinRoom(f.as(t, "u2"), &api.JoinRoomRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err := f.client.JoinRoom(f.as(t, "u2"), &api.JoinRoomRequest{RoomID: "room_1"})
	require.NoError(t, err)
	assert.Equal(t, []api.Player{{ID: "u1", Lives: 3}, {ID: "u2", Lives: 3}}, resp.Room.Players)

	_, err = f.client.LeaveRoom(f.as(t, "u2"), &api.LeaveRoomRequest{RoomID: "room_1"})
	require.NoError(t, err)
	assert.Equal(t, "u2", f.game.lastUser)
}

func TestAPI_PublishRoomUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.redis.Subscribe(ctx, api.UserChannel("test", "u1"), api.UserChannel("test", "u2"))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	f.eb.Publish(ctx, domain.EventRoomUpdated{Room: f.game.room})
	f.eb.Stop()

	got := map[string]string{}
	for range 2 {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)

		var n struct {
			Event string   `json:"event"`
			Data  api.Room `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		assert.Equal(t, domain.EventNameRoomUpdated, n.Event)
		assert.NotContains(t, msg.Payload, "solution")
		got[msg.Channel] = n.Data.ID
	}

	assert.Equal(t, map[string]string{
		"test:user:u1": "room_1",
		"test:user:u2": "room_1",
	}, got)
}

type fixture struct {
	client   *api.GameServiceClient
	game     *fakeGame
	history  *fakeHistory
	eb       *event.Bus
	redis    redis.UniversalClient
	verifier *identity.Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
	t.Cleanup(func() { rc.Close() })

	f := &fixture{
		game:     newFakeGame(),
		history:  &fakeHistory{},
		eb:       event.NewBus(),
		redis:    rc,
		verifier: identity.NewVerifier(identity.Config{Secret: secret}),
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(f.verifier.UnaryServerInterceptor()))
	api.New(api.Config{
		GRPC:         srv,
		EventBus:     f.eb,
		Game:         f.game,
		Leaderboard:  fakeLeaderboard{},
		History:      f.history,
		Redis:        rc,
		PubsubPrefix: "test",
	})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f.client = api.NewGameServiceClient(conn)
	return f
}

func (f *fixture) as(t *testing.T, userID string) context.Context {
	token, err := f.verifier.Issue(userID, userID, time.Hour)
	require.NoError(t, err)

	return metadata.AppendToOutgoingContext(context.Background(), identity.MetadataAuthorization, "Bearer "+token)
}

type fakeGame struct {
	mu        sync.Mutex
	lastStart game.StartSessionRequest
	lastUser  string
	err       error
	session   domain.Session
	room      domain.Room
}

func newFakeGame() *fakeGame {
	p := &domain.Puzzle{ID: "p1", Question: "https://example.com/p1.png", Solution: 7}

	return &fakeGame{
		session: domain.Session{
			ID:            "s1",
			Mode:          domain.ModeSolo,
			State:         domain.StatePlaying,
			Lives:         domain.MaxLives,
			Difficulty:    domain.DifficultyHard,
			CurrentPuzzle: p,
		},
		room: domain.Room{
			ID:            "room_1",
			HostID:        "u1",
			Players:       []domain.RoomPlayer{{ID: "u1", Lives: 3}, {ID: "u2", Lives: 3}},
			PlayerIDs:     []string{"u1", "u2"},
			Settings:      domain.DefaultRoomSettings(),
			CurrentPuzzle: p,
			State:         domain.StatePlaying,
		},
	}
}

func (g *fakeGame) track(userID string) (domain.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastUser = userID
	s := g.session
	s.UserID = userID
	return s, g.err
}

func (g *fakeGame) StartSession(_ context.Context, req game.StartSessionRequest) (game.StartSessionResult, error) {
	g.mu.Lock()
	g.lastStart = req
	g.mu.Unlock()

	s, err := g.track(req.UserID)
	return game.StartSessionResult{Session: s}, err
}

func (g *fakeGame) SubmitAnswer(_ context.Context, req game.SubmitAnswerRequest) (game.AnswerResult, error) {
	s, err := g.track(req.UserID)
	return game.AnswerResult{Correct: req.Answer == "7", Session: s}, err
}

func (g *fakeGame) UseHint(_ context.Context, userID string) (game.HintResult, error) {
	s, err := g.track(userID)
	return game.HintResult{Solution: 7, HintsRemaining: 2, Session: s}, err
}

func (g *fakeGame) TimeUp(_ context.Context, userID string) (game.AnswerResult, error) {
	s, err := g.track(userID)
	return game.AnswerResult{Session: s}, err
}

func (g *fakeGame) Pause(_ context.Context, userID string) (domain.Session, error) {
	return g.track(userID)
}

func (g *fakeGame) Resume(_ context.Context, userID string) (domain.Session, error) {
	return g.track(userID)
}

func (g *fakeGame) Reset(_ context.Context, userID string) domain.Session {
	s, _ := g.track(userID)
	return s
}

func (g *fakeGame) GetSession(_ context.Context, userID string) (domain.Session, error) {
	return g.track(userID)
}

func (g *fakeGame) CreateRoom(_ context.Context, hostID string, _ domain.RoomSettings) (domain.Room, error) {
	_, err := g.track(hostID)
	return g.room, err
}

func (g *fakeGame) JoinRoom(_ context.Context, _, playerID string) (domain.Room, error) {
	_, err := g.track(playerID)
	return g.room, err
}

func (g *fakeGame) LeaveRoom(_ context.Context, _, playerID string) {
	_, _ = g.track(playerID)
}

type fakeLeaderboard struct{}

func (fakeLeaderboard) GetLeaderboard(_ context.Context, req leaderboard.GetLeaderboardRequest) (*domain.Leaderboard, error) {
	return &domain.Leaderboard{
		Mode:   domain.ModeSolo,
		Period: req.Period,
		Entries: []domain.LeaderboardEntry{
			{UserID: "u1", Score: 500},
			{UserID: "u2", Score: 300},
		},
	}, nil
}

func (fakeLeaderboard) UserRank(_ context.Context, req leaderboard.UserRankRequest) (int, bool, error) {
	switch req.UserID {
	case "u1":
		return 1, true, nil
	case "u2":
		return 2, true, nil
	}
	return 0, false, nil
}

type fakeHistory struct {
	lastReq history.RecentSessionsRequest
}

func (h *fakeHistory) RecentSessions(_ context.Context, req history.RecentSessionsRequest) ([]domain.GameSessionRecord, error) {
	h.lastReq = req
	return []domain.GameSessionRecord{{ID: "s0", UserID: req.UserID, Mode: domain.ModeSolo, Score: 300}}, nil
}
