package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/bananaquiz/internal/domain"
)

const maxConcurrent = 100

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishSessionUpdated pushes the session to its player.
func (a *API) PublishSessionUpdated(ctx context.Context, e domain.EventSessionUpdated) error {
	return a.publishNotification(ctx, e.Session.UserID, e.Name(), toSession(e.Session))
}

// PublishRoomUpdated pushes the room to every player in it.
func (a *API) PublishRoomUpdated(ctx context.Context, e domain.EventRoomUpdated) error {
	return a.publishAll(ctx, e.Room.PlayerIDs, e.Name(), toRoom(e.Room))
}

// PublishLeaderboardUpdated pushes the leaderboard to every user on it.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboard(e.Leaderboard)

	users := make([]string, 0, len(data.Entries))
	for _, entry := range data.Entries {
		users = append(users, entry.UserID)
	}

	return a.publishAll(ctx, users, e.Name(), data)
}

func (a *API) publishAll(ctx context.Context, users []string, event string, data any) error {
	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, user := range users {
		eg.Go(func() error {
			return a.publishNotification(ctx, user, event, data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, user, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, UserChannel(a.prefix, user), b).Err()
}

// UserChannel is the Redis channel a player subscribes to for their notifications.
func UserChannel(prefix, user string) string {
	return fmt.Sprintf("%s:user:%s", prefix, user)
}
