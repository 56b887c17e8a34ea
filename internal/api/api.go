package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/event"
	"github.com/victornm/quizbattle/internal/question"
	"github.com/victornm/quizbattle/internal/quiz"
	"github.com/victornm/quizbattle/internal/user"
)

type Users interface {
	Register(ctx context.Context, req user.RegisterRequest) error
	Login(ctx context.Context, req user.LoginRequest) (*domain.User, error)
}

type Questions interface {
	ListQuestions(ctx context.Context, req question.ListQuestionsRequest) ([]domain.Question, error)
}

type Leaderboard interface {
	Submit(ctx context.Context, e domain.LeaderboardEntry) (*domain.LeaderboardEntry, error)
	Top(ctx context.Context, n int) (*domain.Leaderboard, error)
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// PlayConfig tunes the sessions run by the play endpoint.
type PlayConfig struct {
	TimeBudget   int
	TickInterval time.Duration
	RevealDelay  time.Duration
}

type Config struct {
	GRPC           *grpc.Server
	EventBus       *event.Bus
	Users          Users
	Questions      Questions
	Leaderboard    Leaderboard
	Shuffler       *quiz.Shuffler
	Redis          Redis
	PubsubPrefix   string
	AllowedOrigins []string
	Play           PlayConfig
}

type API struct {
	us Users
	qs Questions
	ls Leaderboard

	eb       *event.Bus
	shuffler *quiz.Shuffler
	origins  []string
	play     PlayConfig
	health   *health.Server

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		us:       c.Users,
		qs:       c.Questions,
		ls:       c.Leaderboard,
		eb:       c.EventBus,
		shuffler: c.Shuffler,
		origins:  c.AllowedOrigins,
		play:     c.Play,
		health:   health.NewServer(),
		redis:    c.Redis,
		prefix:   c.PubsubPrefix,
	}

	if a.shuffler == nil {
		a.shuffler = quiz.NewShuffler(nil)
	}

	// gRPC APIs
	if c.GRPC != nil {
		healthpb.RegisterHealthServer(c.GRPC, a.health)
	}

	// Register event handlers
	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

// Register mounts the HTTP routes on r.
func (a *API) Register(r gin.IRouter) {
	r.Use(a.cors())

	r.GET("/", a.Hello)
	r.GET("/healthz", a.Healthz)

	r.POST("/register", a.RegisterUser)
	r.POST("/login", a.Login)

	r.GET("/auth/google", a.GoogleAuth)
	r.GET("/auth/google/callback", a.GoogleAuthCallback)

	g := r.Group("/api")
	g.GET("/questions", a.ListQuestions)
	g.GET("/leaderboard", a.GetLeaderboard)
	g.POST("/leaderboard", a.SubmitScore)
	g.GET("/play", a.Play)
}

// SetServing flips the gRPC health status of the whole server.
func (a *API) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", st)
}

// Shutdown marks the server as not serving for good.
func (a *API) Shutdown() {
	a.health.Shutdown()
}
