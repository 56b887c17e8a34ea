package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

func MonitorRedis(r redis.UniversalClient) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{})
	return nil
}

// redisLog logs dials at info and commands at debug, failures always at error.
type redisLog struct{}

func (redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := hook(ctx, network, addr)
		if err != nil {
			slog.ErrorContext(ctx, "redis: dial failed", "network", network, "addr", addr, "error", err)
			return nil, err
		}
		slog.InfoContext(ctx, "redis: dialed", "network", network, "addr", addr)
		return conn, nil
	}
}

func (redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		logCmd(ctx, cmd.Name(), time.Since(start), err)
		return err
	}
}

func (redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		logCmd(ctx, fmt.Sprintf("pipeline(%d)", len(cmds)), time.Since(start), err)
		return err
	}
}

func logCmd(ctx context.Context, name string, elapsed time.Duration, err error) {
	// redis.Nil is a cache miss, not a failure.
	if err != nil && err != redis.Nil {
		slog.ErrorContext(ctx, "redis: command failed", "cmd", name, "duration", elapsed, "error", err)
		return
	}
	slog.DebugContext(ctx, "redis: command", "cmd", name, "duration", elapsed)
}
