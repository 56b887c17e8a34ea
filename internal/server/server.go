package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/quizbattle/internal/api"
	"github.com/victornm/quizbattle/internal/event"
	"github.com/victornm/quizbattle/internal/leaderboard"
	"github.com/victornm/quizbattle/internal/migrations"
	"github.com/victornm/quizbattle/internal/question"
	"github.com/victornm/quizbattle/internal/quiz"
	"github.com/victornm/quizbattle/internal/telemetry"
	"github.com/victornm/quizbattle/internal/user"
)

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			cache  redis.UniversalClient
			pubsub redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	service struct {
		user        *user.Service
		question    *question.Service
		leaderboard *leaderboard.Service
	}

	api  *api.API
	http *http.Server
	grpc *grpc.Server
}

func Init(ctx context.Context, c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if c.Migrate {
		if err := Migrate(ctx, c.Postgres); err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
	}

	if err := s.initInfra(ctx); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

// Migrate applies pending schema migrations.
func Migrate(ctx context.Context, c PostgresConfig) error {
	db := migrations.Open(c.DSN())
	defer db.Close()

	g, err := migrations.Up(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if g.IsZero() {
		slog.InfoContext(ctx, "server: no new migrations")
		return nil
	}

	slog.InfoContext(ctx, "server: migrations applied", "group", g.String())
	return nil
}

func (s *Server) initInfra(ctx context.Context) error {
	if err := s.initRedis(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis(ctx context.Context) error {
	var err error
	s.infra.redis.cache, err = ConnectRedis(ctx, s.c.Redis.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	s.infra.redis.pubsub, err = ConnectRedis(ctx, s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

// ConnectRedis returns an instrumented client that answered a ping.
func ConnectRedis(ctx context.Context, c RedisConfig) (redis.UniversalClient, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    c.Addrs,
		Password: c.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return nil, err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Server) initPostgres(ctx context.Context) (err error) {
	s.infra.postgres, err = ConnectPostgres(ctx, s.c.Postgres)
	return err
}

// ConnectPostgres returns a pool that answered a ping.
func ConnectPostgres(ctx context.Context, c PostgresConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (s *Server) initService() {
	s.service.user = user.NewService(user.Config{
		DB: s.infra.postgres,
	})

	s.service.question = question.NewService(question.Config{
		Store:  question.NewPostgresStore(s.infra.postgres),
		Redis:  s.infra.redis.cache,
		Prefix: s.c.Redis.Cache.Prefix,
		TTL:    s.c.Questions.CacheTTL,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus:        s.eb,
		Store:           leaderboard.NewPostgresStore(s.infra.postgres),
		Redis:           s.infra.redis.cache,
		Prefix:          s.c.Redis.Cache.Prefix,
		IndexSize:       s.c.Leaderboard.IndexSize,
		PublishInterval: s.c.Leaderboard.PublishInterval,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(telemetry.GinMiddleware(), gin.Recovery())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptors()...)

	s.api = api.New(api.Config{
		GRPC:           s.grpc,
		EventBus:       s.eb,
		Users:          s.service.user,
		Questions:      s.service.question,
		Leaderboard:    s.service.leaderboard,
		Shuffler:       quiz.NewShuffler(nil),
		Redis:          s.infra.redis.pubsub,
		PubsubPrefix:   s.c.Redis.Pubsub.Prefix,
		AllowedOrigins: s.c.HTTP.AllowedOrigins,
		Play: api.PlayConfig{
			TimeBudget:   s.c.Quiz.TimeBudget,
			TickInterval: s.c.Quiz.TickInterval,
			RevealDelay:  s.c.Quiz.RevealDelay,
		},
	})
	s.api.Register(e)

	s.http = &http.Server{
		Addr:              s.c.httpAddr(),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", s.c.grpcAddr())
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.api.SetServing(true)

	var eg errgroup.Group
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

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.api.Shutdown()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	s.infra.postgres.Close()
	for _, r := range []redis.UniversalClient{s.infra.redis.cache, s.infra.redis.pubsub} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
