package game_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/bananaquiz/internal/docstore"
	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/game"
	"github.com/victornm/bananaquiz/internal/room"
)

func TestService_StartSession_Solo(t *testing.T) {
	ctx := context.Background()
	s, d := makeService(t)
	d.profiles.user.Stats.AverageSolveTime = 30

	res, err := s.StartSession(ctx, game.StartSessionRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSolo, res.Session.Mode)
	assert.Equal(t, domain.StatePlaying, res.Session.State)
	assert.Equal(t, domain.DifficultyHard, res.Session.Difficulty, "difficulty follows the profile's solve time")
	require.NotNil(t, res.Session.CurrentPuzzle)

	got, err := s.GetSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, res.Session, got)

	guest, err := s.StartSession(ctx, game.StartSessionRequest{UserID: "guest_1", Guest: true})
	require.NoError(t, err)
	assert.Equal(t, domain.DifficultyNormal, guest.Session.Difficulty)

	ans, err := s.SubmitAnswer(ctx, game.SubmitAnswerRequest{UserID: "u1", Answer: "5", Elapsed: 1})
	require.NoError(t, err)
	assert.True(t, ans.Correct)

	hint, err := s.UseHint(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, hint.Solution)

	restarted, err := s.StartSession(ctx, game.StartSessionRequest{UserID: "u1", Difficulty: "EASY"})
	require.NoError(t, err)
	assert.NotEqual(t, res.Session.ID, restarted.Session.ID, "starting again replaces the session")
	assert.Zero(t, restarted.Session.Score)
}

func TestService_StartSession_ProfileFailure(t *testing.T) {
	s, d := makeService(t)
	d.profiles.err = assert.AnError

	res, err := s.StartSession(context.Background(), game.StartSessionRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, res.Notices, 1)
	assert.Equal(t, domain.DifficultyNormal, res.Session.Difficulty)
}

func TestService_StartSession_Invalid(t *testing.T) {
	ctx := context.Background()
	s, _ := makeService(t)

	_, err := s.StartSession(ctx, game.StartSessionRequest{UserID: "u1", Mode: domain.ModeMultiplayer})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidArgument, errors.Convert(err).Code)

	_, err = s.StartSession(ctx, game.StartSessionRequest{UserID: "u1", Mode: "TEAM"})
	require.Error(t, err)

	_, err = s.StartSession(ctx, game.StartSessionRequest{UserID: "u1", Mode: domain.ModeMultiplayer, RoomID: "room_nope"})
	require.ErrorIs(t, err, errors.ErrRoomNotFound)

	r, err := s.CreateRoom(ctx, "host", domain.RoomSettings{})
	require.NoError(t, err)

	_, err = s.StartSession(ctx, game.StartSessionRequest{UserID: "stranger", Mode: domain.ModeMultiplayer, RoomID: r.ID})
	require.ErrorIs(t, err, errors.ErrPlayerNotInRoom)
}

func TestService_NoSession(t *testing.T) {
	ctx := context.Background()
	s, _ := makeService(t)

	_, err := s.SubmitAnswer(ctx, game.SubmitAnswerRequest{UserID: "u1", Answer: "5"})
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	_, err = s.UseHint(ctx, "u1")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	_, err = s.Pause(ctx, "u1")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	sess := s.Reset(ctx, "u1")
	assert.Equal(t, domain.StateWaiting, sess.State)
	assert.Equal(t, 3, sess.Lives)
}

func TestService_Multiplayer(t *testing.T) {
	ctx := context.Background()
	s, d := makeService(t)

	r, err := s.CreateRoom(ctx, "host", domain.RoomSettings{})
	require.NoError(t, err)

	host, err := s.StartSession(ctx, game.StartSessionRequest{UserID: "host", Mode: domain.ModeMultiplayer, RoomID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaiting, host.Session.State, "a room needs two players")
	assert.Nil(t, host.Session.CurrentPuzzle)

	_, err = s.JoinRoom(ctx, r.ID, "guest")
	require.NoError(t, err)
	require.Len(t, d.publisher.rooms(), 2, "create and join are broadcast")

	guest, err := s.StartSession(ctx, game.StartSessionRequest{UserID: "guest", Mode: domain.ModeMultiplayer, RoomID: r.ID})
	require.NoError(t, err)
	require.Equal(t, domain.StatePlaying, guest.Session.State)
	require.NotNil(t, guest.Session.CurrentPuzzle)
	first := guest.Session.CurrentPuzzle.ID

	require.Eventually(t, func() bool {
		sess, err := s.GetSession(ctx, "host")
		return err == nil && sess.CurrentPuzzle != nil && sess.CurrentPuzzle.ID == first
	}, 5*time.Second, 10*time.Millisecond, "host should pick up the room puzzle")

	ans, err := s.SubmitAnswer(ctx, game.SubmitAnswerRequest{UserID: "host", Answer: "5", Elapsed: 10})
	require.NoError(t, err)
	assert.True(t, ans.Correct)
	assert.Equal(t, 210, ans.Points)
	require.NotNil(t, ans.Session.CurrentPuzzle)
	next := ans.Session.CurrentPuzzle.ID
	assert.NotEqual(t, first, next)

	require.Eventually(t, func() bool {
		sess, err := s.GetSession(ctx, "guest")
		if err != nil || sess.CurrentPuzzle == nil || sess.CurrentPuzzle.ID != next {
			return false
		}
		for _, p := range sess.Players {
			if p.ID == "host" {
				return p.Score == 210
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond, "guest should follow the advanced puzzle and the host's score")

	miss, err := s.SubmitAnswer(ctx, game.SubmitAnswerRequest{UserID: "guest", Answer: "1"})
	require.NoError(t, err)
	assert.False(t, miss.Correct)
	assert.Equal(t, 2, miss.Session.Lives)

	s.LeaveRoom(ctx, r.ID, "guest")
	_, err = s.GetSession(ctx, "guest")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestService_Multiplayer_RoomLives(t *testing.T) {
	ctx := context.Background()
	s, _ := makeService(t)

	_, err := s.CreateRoom(ctx, "host", domain.RoomSettings{MaxPlayers: 5})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidArgument, errors.Convert(err).Code)

	r, err := s.CreateRoom(ctx, "host", domain.RoomSettings{Lives: 2})
	require.NoError(t, err)

	host, err := s.StartSession(ctx, game.StartSessionRequest{UserID: "host", Mode: domain.ModeMultiplayer, RoomID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, host.Session.Lives, "lives come from the room settings")

	_, err = s.JoinRoom(ctx, r.ID, "guest")
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, r.ID, "third")
	require.ErrorIs(t, err, errors.ErrRoomFull)

	guest, err := s.StartSession(ctx, game.StartSessionRequest{UserID: "guest", Mode: domain.ModeMultiplayer, RoomID: r.ID})
	require.NoError(t, err)
	require.Equal(t, domain.StatePlaying, guest.Session.State)
	assert.Equal(t, 2, guest.Session.Lives)

	require.Eventually(t, func() bool {
		sess, err := s.GetSession(ctx, "host")
		return err == nil && sess.State == domain.StatePlaying && sess.CurrentPuzzle != nil
	}, 5*time.Second, 10*time.Millisecond, "host should pick up the room puzzle")

	miss, err := s.SubmitAnswer(ctx, game.SubmitAnswerRequest{UserID: "guest", Answer: "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, miss.Session.Lives)
	assert.Equal(t, domain.StatePlaying, miss.Session.State)

	miss, err = s.SubmitAnswer(ctx, game.SubmitAnswerRequest{UserID: "guest", Answer: "1"})
	require.NoError(t, err)
	assert.Zero(t, miss.Session.Lives)
	assert.Equal(t, domain.StateFinished, miss.Session.State, "the session ends with the room entry")

	require.Eventually(t, func() bool {
		sess, err := s.GetSession(ctx, "host")
		return err == nil && playerLives(sess, "guest") == 0
	}, 5*time.Second, 10*time.Millisecond, "host should see the guest out of lives")

	up, err := s.TimeUp(ctx, "host")
	require.NoError(t, err)
	assert.Zero(t, up.Session.Lives)
	assert.Equal(t, domain.StateFinished, up.Session.State)
	assert.Zero(t, playerLives(up.Session, "host"), "time up is written to the room")

	require.Eventually(t, func() bool {
		sess, err := s.GetSession(ctx, "guest")
		return err == nil && playerLives(sess, "host") == 0
	}, 5*time.Second, 10*time.Millisecond, "guest should see the host out of lives")
}

func playerLives(sess domain.Session, id string) int {
	for _, p := range sess.Players {
		if p.ID == id {
			return p.Lives
		}
	}
	return -1
}

func makeService(t *testing.T) (*game.Service, *deps) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	d := &deps{
		clock:     newFakeClock(),
		puzzles:   &fakePuzzles{},
		recorder:  &fakeRecorder{},
		profiles:  &fakeProfiles{},
		publisher: &fakePublisher{},
	}

	rooms := room.NewService(room.Config{
		Store:    docstore.NewRedis(docstore.Config{Redis: rc, Prefix: "test"}),
		Supplier: d.puzzles,
	})
	t.Cleanup(rooms.Close)

	s := game.NewService(game.Config{
		EventBus: d.publisher,
		Puzzles:  d.puzzles,
		Rooms:    rooms,
		History:  d.recorder,
		Profiles: d.profiles,
	})
	t.Cleanup(s.Close)

	return s, d
}
