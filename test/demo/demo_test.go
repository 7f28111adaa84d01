//go:build integration_test

package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/victornm/bananaquiz/internal/api"
	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/identity"
)

const (
	addr   = "localhost:8081"
	secret = "local-secret"
)

func TestMultiplayer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var (
		gc    = makeGameClient(t)
		wg    = new(sync.WaitGroup)
		users = []string{"u1-" + uuid.NewString()[:8], "u2-" + uuid.NewString()[:8]}
		ctxs  = make(map[string]context.Context)
	)

	for _, u := range users {
		ctxs[u] = asUser(t, ctx, u)
		subscribeAsUser(t, ctx, makeRedis(t), wg, u)
	}

	// Host creates the room, the other player joins
	var roomID string
	{
		resp, err := gc.CreateRoom(ctxs[users[0]], &api.CreateRoomRequest{})
		require.NoError(t, err)
		roomID = resp.Room.ID

		_, err = gc.JoinRoom(ctxs[users[1]], &api.JoinRoomRequest{RoomID: roomID})
		require.NoError(t, err)
	}

	for _, u := range users {
		_, err := gc.StartSession(ctxs[u], &api.StartSessionRequest{Mode: string(domain.ModeMultiplayer), RoomID: roomID})
		require.NoError(t, err)
	}

	// Each player peeks at the solution with a hint and answers, concurrently
	for round := range 3 {
		t.Logf("Starting round %d", round)

		var eg errgroup.Group
		for _, u := range users {
			eg.Go(func() error {
				hint, err := gc.UseHint(ctxs[u], &api.UseHintRequest{})
				if err != nil {
					return fmt.Errorf("user %q use hint: %w", u, err)
				}

				resp, err := gc.SubmitAnswer(ctxs[u], &api.SubmitAnswerRequest{
					Answer:  fmt.Sprint(hint.Solution),
					Elapsed: 5,
				})
				if err != nil {
					return fmt.Errorf("user %q submit answer: %w", u, err)
				}

				t.Logf("User %q answered: correct=%v, points=%d, score=%d", u, resp.Correct, resp.Points, resp.Session.Score)
				return nil
			})
		}

		require.NoError(t, eg.Wait())
		time.Sleep(2 * time.Second)
	}

	for _, u := range users {
		_, err := gc.LeaveRoom(ctxs[u], &api.LeaveRoomRequest{RoomID: roomID})
		require.NoError(t, err)
	}

	cancel()
	wg.Wait()
}

func makeGameClient(t *testing.T) *api.GameServiceClient {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return api.NewGameServiceClient(conn)
}

func asUser(t *testing.T, ctx context.Context, u string) context.Context {
	token, err := identity.NewVerifier(identity.Config{Secret: secret}).Issue(u, u, time.Hour)
	require.NoError(t, err)

	return metadata.AppendToOutgoingContext(ctx, identity.MetadataAuthorization, "Bearer "+token)
}

func subscribeAsUser(t *testing.T, ctx context.Context, rc redis.UniversalClient, wg *sync.WaitGroup, u string) {
	wg.Add(1)
	sub := subscribeRedis(t, ctx, rc, api.UserChannel("local:pubsub", u))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			switch n.Event {
			case domain.EventNameRoomUpdated:
				var r api.Room
				if err := json.Unmarshal(n.Data, &r); err != nil {
					t.Logf("unmarshal room: %v", err)
					continue
				}

				t.Logf("%s room %s:\n%s", u, r.State, formatPlayers(r.Players))
			case domain.EventNameLeaderboardUpdated:
				var l api.Leaderboard
				if err := json.Unmarshal(n.Data, &l); err != nil {
					t.Logf("unmarshal leaderboard: %v", err)
					continue
				}

				t.Logf("%s leaderboard:\n%s", u, formatLeaderboard(l))
			}
		}
	}()
}

// subscribeRedis delivers the channel's messages until ctx is done.
func subscribeRedis(t *testing.T, ctx context.Context, rc redis.UniversalClient, channel string) <-chan *redis.Message {
	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func formatPlayers(players []api.Player) string {
	var s string
	for _, p := range players {
		s += fmt.Sprintf("%s: score=%d lives=%d streak=%d\n", p.ID, p.Score, p.Lives, p.Streak)
	}
	return s
}

func formatLeaderboard(l api.Leaderboard) string {
	var s string
	for _, e := range l.Entries {
		s += fmt.Sprintf("%d. %s: %.0f\n", e.Rank, e.UserID, e.Score)
	}
	return s
}
