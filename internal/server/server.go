package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/bananaquiz/internal/api"
	"github.com/victornm/bananaquiz/internal/docstore"
	"github.com/victornm/bananaquiz/internal/event"
	"github.com/victornm/bananaquiz/internal/game"
	"github.com/victornm/bananaquiz/internal/history"
	"github.com/victornm/bananaquiz/internal/identity"
	"github.com/victornm/bananaquiz/internal/leaderboard"
	"github.com/victornm/bananaquiz/internal/offline"
	"github.com/victornm/bananaquiz/internal/profile"
	"github.com/victornm/bananaquiz/internal/proxy"
	"github.com/victornm/bananaquiz/internal/puzzle"
	"github.com/victornm/bananaquiz/internal/room"
	"github.com/victornm/bananaquiz/internal/score"
	"github.com/victornm/bananaquiz/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Docstore struct {
			Addrs      []string
			Pass       string
			Prefix     string
			MaxRetries int
		}

		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Session struct {
			Addr string
			User string
			Pass string
			Name string
		}

		Score struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Puzzle struct {
		URL     string
		Timeout time.Duration
		// CacheSize puzzles are kept in the offline store, refilled every CacheInterval.
		CacheSize     int
		CacheInterval time.Duration
		// RequestInterval paces the requests made while refilling the cache.
		RequestInterval time.Duration
		OfflineDBPath   string
	}

	Game struct {
		FeedbackDelay    time.Duration
		EnforceTimeLimit bool
	}

	Auth struct {
		JWTSecret string
	}

	// InviteURL is the link encoded in room invite QR codes, formatted with the room id.
	InviteURL string
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			docstore    redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			session *pgxpool.Pool
			score   *pgxpool.Pool
		}

		offline *offline.SQLite
	}

	service struct {
		source      *puzzle.Client
		puzzle      *puzzle.Supplier
		room        *room.Service
		profile     *profile.Service
		history     *history.Service
		score       *score.Service
		leaderboard *leaderboard.Service
		game        *game.Service
	}

	warmer struct {
		ctx  context.Context
		stop context.CancelFunc
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	s.warmer.ctx, s.warmer.stop = context.WithCancel(context.Background())

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	s.initOffline()
	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.docstore, err = connect("docstore", s.c.Redis.Docstore.Addrs, s.c.Redis.Docstore.Pass)
	if err != nil {
		return fmt.Errorf("docstore: %w", err)
	}

	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	s.infra.postgres.session, err = connect(s.c.Postgres.Session.Addr, s.c.Postgres.Session.User, s.c.Postgres.Session.Pass, s.c.Postgres.Session.Name)
	if err != nil {
		return fmt.Errorf("postgres: session: %w", err)
	}

	s.infra.postgres.score, err = connect(s.c.Postgres.Score.Addr, s.c.Postgres.Score.User, s.c.Postgres.Score.Pass, s.c.Postgres.Score.Name)
	if err != nil {
		return fmt.Errorf("postgres: score: %w", err)
	}

	return nil
}

// initOffline opens the offline puzzle cache. Without it the supplier serves fallback puzzles only.
func (s *Server) initOffline() {
	if s.c.Puzzle.OfflineDBPath == "" {
		return
	}

	db, err := offline.Open(s.c.Puzzle.OfflineDBPath)
	if err != nil {
		slog.Warn("server: offline puzzle cache disabled", "path", s.c.Puzzle.OfflineDBPath, "error", err)
		return
	}

	s.infra.offline = db
}

func (s *Server) initService() {
	store := docstore.NewRedis(docstore.Config{
		Redis:      s.infra.redis.docstore,
		Prefix:     s.c.Redis.Docstore.Prefix,
		MaxRetries: s.c.Redis.Docstore.MaxRetries,
	})

	s.service.source = puzzle.NewClient(puzzle.ClientConfig{
		URL:     s.c.Puzzle.URL,
		Timeout: s.c.Puzzle.Timeout,
	})

	pc := puzzle.Config{
		Fetcher:  s.service.source,
		Interval: s.c.Puzzle.RequestInterval,
	}
	if s.infra.offline != nil {
		pc.Store = s.infra.offline
	}
	s.service.puzzle = puzzle.NewSupplier(pc)

	s.service.room = room.NewService(room.Config{
		Store:    store,
		Supplier: s.service.puzzle,
	})

	s.service.profile = profile.NewService(profile.Config{
		EventBus: s.eb,
		Store:    store,
	})

	s.service.history = history.NewService(history.Config{
		DB: s.infra.postgres.session,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres.score,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	s.service.game = game.NewService(game.Config{
		EventBus:         s.eb,
		Puzzles:          s.service.puzzle,
		Rooms:            s.service.room,
		History:          s.service.history,
		Profiles:         s.service.profile,
		FeedbackDelay:    s.c.Game.FeedbackDelay,
		EnforceTimeLimit: s.c.Game.EnforceTimeLimit,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".png"}),
		ginGzip.WithExcludedPaths([]string{"/debug/pprof"})))

	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	pprof.Register(e, "/debug/pprof")

	proxy.NewHandler(proxy.Config{
		Fetcher:   s.service.source,
		Rooms:     s.service.room,
		InviteURL: s.c.InviteURL,
	}).Register(e)

	verifier := identity.NewVerifier(identity.Config{
		Secret: s.c.Auth.JWTSecret,
	})

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor(verifier.UnaryServerInterceptor()))

	api.New(api.Config{
		GRPC:         s.grpc,
		EventBus:     s.eb,
		Game:         s.service.game,
		Leaderboard:  s.service.leaderboard,
		History:      s.service.history,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		s.warmPuzzleCache(s.warmer.ctx)
		return nil
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

// warmPuzzleCache refills the offline puzzle cache until ctx is done.
func (s *Server) warmPuzzleCache(ctx context.Context) {
	if s.infra.offline == nil || s.c.Puzzle.CacheSize <= 0 {
		return
	}

	interval := s.c.Puzzle.CacheInterval
	if interval <= 0 {
		interval = time.Hour
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		n := s.service.puzzle.CachePuzzles(ctx, s.c.Puzzle.CacheSize)
		slog.InfoContext(ctx, "server: puzzle cache refilled", "cached", n)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.warmer.stop()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.game.Close()
	s.service.room.Close()
	s.service.score.Close()
	s.service.leaderboard.Close()
	s.service.profile.Close()
	s.eb.Stop()

	if s.infra.offline != nil {
		if err := s.infra.offline.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close offline cache failed", "error", err)
		}
	}
	s.infra.postgres.session.Close()
	s.infra.postgres.score.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
