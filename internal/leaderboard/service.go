package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/errors"
	"github.com/victornm/quizbattle/internal/event"
	"github.com/victornm/quizbattle/internal/telemetry"
)

const (
	// DefaultTop is the number of entries shown on the public leaderboard.
	DefaultTop = 10

	defaultIndexSize       = 100
	defaultPublishInterval = 200 * time.Millisecond
)

var ErrInvalidEntry = errors.New(errors.CodeInvalidArgument,
	errors.WithMessagef("Invalid username or score"))

type Config struct {
	EventBus *event.Bus
	Store    Store
	Redis    redis.UniversalClient
	Prefix   string

	// IndexSize is the number of best entries kept in the Redis index.
	IndexSize       int
	PublishInterval time.Duration
	Now             func() time.Time
}

// Service records final scores in the Store and keeps the best of them in a
// Redis sorted set for fast reads.
type Service struct {
	eb              *event.Bus
	store           Store
	redis           redis.UniversalClient
	prefix          string
	indexSize       int
	publishInterval time.Duration
	now             func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:              c.EventBus,
		store:           c.Store,
		redis:           c.Redis,
		prefix:          c.Prefix,
		indexSize:       c.IndexSize,
		publishInterval: c.PublishInterval,
		now:             c.Now,
	}

	if s.indexSize <= 0 {
		s.indexSize = defaultIndexSize
	}
	if s.publishInterval <= 0 {
		s.publishInterval = defaultPublishInterval
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.eb.Subscribe(domain.EventNameSessionCompleted, func(ctx context.Context, e event.Event) error {
		_, err := s.Submit(ctx, e.(domain.EventSessionCompleted).Entry)
		return err
	})

	return s
}

// Submit stores a final score. Missing ID and date are filled in.
func (s *Service) Submit(ctx context.Context, e domain.LeaderboardEntry) (*domain.LeaderboardEntry, error) {
	if strings.TrimSpace(e.Username) == "" || e.Score < 0 {
		telemetry.LeaderboardSubmissions.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidEntry
	}

	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate entry ID: %w", err)
		}
		e.ID = id.String()
	}
	if e.Date.IsZero() {
		e.Date = s.now()
	}
	e.Date = e.Date.UTC()

	if err := s.store.InsertEntry(ctx, e); err != nil {
		telemetry.LeaderboardSubmissions.WithLabelValues("failed").Inc()
		return nil, err
	}
	telemetry.LeaderboardSubmissions.WithLabelValues("stored").Inc()

	if err := s.addToIndex(ctx, e); err != nil {
		// The index is rebuilt from the store on the next read.
		slog.ErrorContext(ctx, "leaderboard: index entry failed", "id", e.ID, "error", err)
		s.dropIndex(ctx)
	}

	if err := s.schedulePublishLeaderboard(ctx); err != nil {
		slog.ErrorContext(ctx, "leaderboard: publish failed", "error", err)
	}

	return &e, nil
}

// Top returns up to n entries by score descending, oldest first on ties.
func (s *Service) Top(ctx context.Context, n int) (*domain.Leaderboard, error) {
	if n <= 0 {
		n = DefaultTop
	}

	entries, err := s.readIndex(ctx)
	if err != nil {
		slog.WarnContext(ctx, "leaderboard: read index failed, falling back to store", "error", err)
		return s.topFromStore(ctx, n)
	}

	if len(entries) == 0 {
		if entries, err = s.warmIndex(ctx); err != nil {
			return nil, err
		}
	}

	if len(entries) > n {
		entries = entries[:n]
	}

	return &domain.Leaderboard{Entries: entries}, nil
}

func (s *Service) topFromStore(ctx context.Context, n int) (*domain.Leaderboard, error) {
	entries, err := s.store.TopEntries(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	return &domain.Leaderboard{Entries: entries}, nil
}

type indexedEntry struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Score    int64     `json:"score"`
	Date     time.Time `json:"date"`
}

// addToIndex indexes e. A cold index is first loaded from the store, which
// already holds e, so it never ranks e against an empty board.
func (s *Service) addToIndex(ctx context.Context, e domain.LeaderboardEntry) error {
	n, err := s.redis.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("zcard: %w", err)
	}

	if n > 0 {
		return s.index(ctx, e)
	}

	entries, err := s.store.TopEntries(ctx, s.indexSize)
	if err != nil {
		return fmt.Errorf("get leaderboard: %w", err)
	}
	return s.index(ctx, entries...)
}

func (s *Service) index(ctx context.Context, entries ...domain.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := s.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, e := range entries {
			b, err := json.Marshal(indexedEntry(e))
			if err != nil {
				return err
			}
			p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(e.Score), Member: e.ID})
			p.HSet(ctx, s.entriesKey(), e.ID, b)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("add to index: %w", err)
	}

	return s.trimIndex(ctx)
}

// trimIndex drops the entries ranked beyond the index size, using the same
// order as Top so that older entries win ties.
func (s *Service) trimIndex(ctx context.Context) error {
	n, err := s.redis.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("zcard: %w", err)
	}

	if n <= int64(s.indexSize) {
		return nil
	}

	entries, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	if len(entries) <= s.indexSize {
		return nil
	}

	var (
		members = make([]any, 0, len(entries)-s.indexSize)
		ids     = make([]string, 0, len(entries)-s.indexSize)
	)
	for _, e := range entries[s.indexSize:] {
		members = append(members, e.ID)
		ids = append(ids, e.ID)
	}

	_, err = s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, s.indexKey(), members...)
		p.HDel(ctx, s.entriesKey(), ids...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("trim index: %w", err)
	}

	return nil
}

func (s *Service) readIndex(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	ids, err := s.redis.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := s.redis.HMGet(ctx, s.entriesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("index entry %s missing", ids[i])
		}

		var e indexedEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode index entry %s: %w", ids[i], err)
		}
		entries = append(entries, domain.LeaderboardEntry(e))
	}

	sortEntries(entries)
	return entries, nil
}

func (s *Service) warmIndex(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	entries, err := s.store.TopEntries(ctx, s.indexSize)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if err := s.index(ctx, entries...); err != nil {
		slog.WarnContext(ctx, "leaderboard: warm index failed", "error", err)
	}

	return entries, nil
}

func (s *Service) dropIndex(ctx context.Context) {
	if err := s.redis.Del(ctx, s.indexKey(), s.entriesKey()).Err(); err != nil {
		slog.ErrorContext(ctx, "leaderboard: drop index failed", "error", err)
	}
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated event per
// publish interval. Completions tend to arrive in bursts and subscribers only
// need the latest ranking.
func (s *Service) schedulePublishLeaderboard(ctx context.Context) error {
	// SETNX also keeps several instances of the service from publishing the same change.
	ok, err := s.redis.SetNX(ctx, s.publishKey(), s.now().UnixMilli(), s.publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.Top(ctx, DefaultTop)
	if err != nil {
		return fmt.Errorf("get leaderboard: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) indexKey() string {
	return fmt.Sprintf("%s:leaderboard:top", s.prefix)
}

func (s *Service) entriesKey() string {
	return fmt.Sprintf("%s:leaderboard:entries", s.prefix)
}

func (s *Service) publishKey() string {
	return fmt.Sprintf("%s:leaderboard:time", s.prefix)
}

func sortEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Date.Before(entries[j].Date)
	})
}
