package leaderboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/event"
)

const (
	PeriodGlobal = "global"
	PeriodWeekly = "weekly"

	defaultLimit    = 50
	publishInterval = 200 * time.Millisecond
	// weekly boards stay around for one more week after the week ends.
	weeklyTTL = 14 * 24 * time.Hour
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	Now      func() time.Time
}

// Service keeps the best score of every user per mode, all time and per ISO week, in sorted sets.
type Service struct {
	eb          *event.Bus
	redis       redis.UniversalClient
	prefix      string
	now         func() time.Time
	unsubscribe func()
}

func NewService(c Config) *Service {
	if c.Now == nil {
		c.Now = time.Now
	}

	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
		now:    c.Now,
	}

	s.unsubscribe = s.eb.Subscribe(domain.EventNameScoreRecorded, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreRecorded))
	})

	return s
}

// Close stops following recorded scores.
func (s *Service) Close() {
	s.unsubscribe()
}

type GetLeaderboardRequest struct {
	Mode domain.Mode
	// Period is PeriodGlobal or PeriodWeekly, the current week.
	Period string
	Limit  int
}

// GetLeaderboard returns the best score of each user, highest first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	if req.Mode == "" {
		req.Mode = domain.ModeSolo
	}
	if req.Period == "" {
		req.Period = PeriodGlobal
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}

	var key string
	switch req.Period {
	case PeriodGlobal:
		key = s.globalKey(req.Mode)
	case PeriodWeekly:
		year, week := s.now().ISOWeek()
		key = s.weeklyKey(req.Mode, year, week)
	default:
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown period: %s", req.Period))
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, key, 0, int64(req.Limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			UserID: z.Member.(string),
			Score:  z.Score,
		})
	}

	return &domain.Leaderboard{
		Mode:    req.Mode,
		Period:  req.Period,
		Entries: entries,
	}, nil
}

type UserRankRequest struct {
	Mode   domain.Mode
	UserID string
}

// UserRank returns the 1-based all time rank of the user. ok is false for users without a score.
func (s *Service) UserRank(ctx context.Context, req UserRankRequest) (rank int, ok bool, err error) {
	if req.Mode == "" {
		req.Mode = domain.ModeSolo
	}

	r, err := s.redis.ZRevRank(ctx, s.globalKey(req.Mode), req.UserID).Result()
	if stderrors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get rank: %w", err)
	}

	return int(r) + 1, true, nil
}

// UpdateLeaderboard keeps the entry's score when it beats the user's best.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreRecorded) error {
	en := e.Entry
	z := redis.Z{
		Score:  float64(en.Score),
		Member: en.UserID,
	}
	weekly := s.weeklyKey(en.Mode, en.Year, en.Week)

	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAddGT(ctx, s.globalKey(en.Mode), z)
		p.ZAddGT(ctx, weekly, z)
		p.Expire(ctx, weekly, weeklyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, en)
}

// schedulePublishLeaderboard publishes the leaderboard at most once per interval and mode.
// Many scores land in a short time at the end of rooms, this keeps the updates down.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, en domain.ScoreEntry) error {
	// Simple guard against several instances publishing the same change.
	ok, err := s.redis.SetNX(ctx, s.publishTimeKey(en.Mode), en.CreateTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, en.Mode)
}

func (s *Service) publishLeaderboard(ctx context.Context, mode domain.Mode) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		Mode:   mode,
		Period: PeriodGlobal,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: mode=%s: %w", mode, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) globalKey(mode domain.Mode) string {
	return fmt.Sprintf("%s:leaderboard:%s:global", s.prefix, mode)
}

func (s *Service) weeklyKey(mode domain.Mode, year, week int) string {
	return fmt.Sprintf("%s:leaderboard:%s:weekly:%d-W%02d", s.prefix, mode, year, week)
}

func (s *Service) publishTimeKey(mode domain.Mode) string {
	return fmt.Sprintf("%s:leaderboard:%s:time", s.prefix, mode)
}
