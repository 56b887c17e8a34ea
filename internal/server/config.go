package server

import (
	"fmt"
	"net/url"
	"time"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
	// SSLMode is passed through as sslmode, e.g. disable or require.
	SSLMode string
}

// DSN is the connection URL understood by both pgx and the bun driver.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Pass),
		Host:   c.Addr,
		Path:   "/" + c.Name,
	}

	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}

	return u.String()
}

type Config struct {
	HTTP struct {
		Port           int32
		AllowedOrigins []string
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Cache  RedisConfig
		Pubsub RedisConfig
	}

	Postgres PostgresConfig

	// Migrate applies pending migrations before serving.
	Migrate bool

	Quiz struct {
		TimeBudget   int
		TickInterval time.Duration
		RevealDelay  time.Duration
	}

	Questions struct {
		CacheTTL time.Duration
	}

	Leaderboard struct {
		IndexSize       int
		PublishInterval time.Duration
	}
}

// DefaultConfig is the configuration of a local development setup.
func DefaultConfig() Config {
	var c Config

	c.HTTP.Port = 3001
	c.HTTP.AllowedOrigins = []string{"http://localhost:5173"}
	c.GRPC.Port = 3002

	c.Redis.Cache = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "quizbattle"}
	c.Redis.Pubsub = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "quizbattle"}

	c.Postgres = PostgresConfig{
		Addr:    "localhost:5432",
		User:    "postgres",
		Pass:    "postgres",
		Name:    "quizbattle",
		SSLMode: "disable",
	}

	c.Quiz.TimeBudget = 15
	c.Quiz.TickInterval = time.Second
	c.Quiz.RevealDelay = 900 * time.Millisecond

	c.Questions.CacheTTL = 10 * time.Minute

	c.Leaderboard.IndexSize = 100
	c.Leaderboard.PublishInterval = 200 * time.Millisecond

	return c
}

func (c Config) httpAddr() string { return fmt.Sprintf(":%d", c.HTTP.Port) }

func (c Config) grpcAddr() string { return fmt.Sprintf(":%d", c.GRPC.Port) }
