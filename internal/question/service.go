package question

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/telemetry"
)

const defaultCacheTTL = 10 * time.Minute

type Config struct {
	Store  Store
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

// Service reads questions through a Redis cache in front of the Store.
type Service struct {
	store  Store
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	sf     singleflight.Group
}

func NewService(c Config) *Service {
	s := &Service{
		store:  c.Store,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}

	if s.ttl <= 0 {
		s.ttl = defaultCacheTTL
	}

	return s
}

type ListQuestionsRequest struct {
	Category   string
	Difficulty string
}

// ListQuestions returns the questions of a category and difficulty ordered by ID.
// Empty fields fall back to domain.DefaultCategory and domain.DefaultDifficulty.
func (s *Service) ListQuestions(ctx context.Context, req ListQuestionsRequest) ([]domain.Question, error) {
	if req.Category == "" {
		req.Category = domain.DefaultCategory
	}
	if req.Difficulty == "" {
		req.Difficulty = domain.DefaultDifficulty
	}

	key := s.cacheKey(req.Category, req.Difficulty)

	if qs, ok := s.getCached(ctx, key); ok {
		return qs, nil
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		// Another caller may have filled the cache while this one waited.
		if qs, ok := s.getCached(ctx, key); ok {
			return qs, nil
		}

		qs, err := s.store.ListQuestions(ctx, req.Category, req.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("list questions: category=%s difficulty=%s: %w", req.Category, req.Difficulty, err)
		}

		if len(qs) > 0 {
			s.setCached(ctx, key, qs)
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]domain.Question), nil
}

// ReplaceQuestions swaps the whole question set and drops every cached list.
func (s *Service) ReplaceQuestions(ctx context.Context, qs []domain.Question) (int64, error) {
	n, err := s.store.ReplaceQuestions(ctx, qs)
	if err != nil {
		return 0, fmt.Errorf("replace questions: %w", err)
	}

	if err := s.invalidate(ctx); err != nil {
		return n, fmt.Errorf("invalidate question cache: %w", err)
	}

	return n, nil
}

type cachedQuestion struct {
	ID          int64    `json:"id"`
	Category    string   `json:"category_id"`
	Difficulty  string   `json:"difficulty"`
	Text        string   `json:"question"`
	Correct     string   `json:"correct_answer"`
	Distractors []string `json:"incorrect_answers"`
}

func (s *Service) getCached(ctx context.Context, key string) ([]domain.Question, bool) {
	if s.redis == nil {
		return nil, false
	}

	b, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		telemetry.QuestionCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		telemetry.QuestionCacheLookups.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "question: cache get failed", "key", key, "error", err)
		return nil, false
	}

	var cached []cachedQuestion
	if err := json.Unmarshal(b, &cached); err != nil {
		telemetry.QuestionCacheLookups.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "question: cache entry malformed", "key", key, "error", err)
		return nil, false
	}

	telemetry.QuestionCacheLookups.WithLabelValues("hit").Inc()

	qs := make([]domain.Question, 0, len(cached))
	for _, c := range cached {
		qs = append(qs, domain.Question(c))
	}
	return qs, true
}

func (s *Service) setCached(ctx context.Context, key string, qs []domain.Question) {
	if s.redis == nil {
		return
	}

	cached := make([]cachedQuestion, 0, len(qs))
	for _, q := range qs {
		cached = append(cached, cachedQuestion(q))
	}

	b, err := json.Marshal(cached)
	if err != nil {
		slog.WarnContext(ctx, "question: marshal cache entry failed", "key", key, "error", err)
		return
	}

	if err := s.redis.Set(ctx, key, b, s.ttlWithJitter()).Err(); err != nil {
		slog.WarnContext(ctx, "question: cache set failed", "key", key, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}

	iter := s.redis.Scan(ctx, 0, s.cacheKey("*", "*"), 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}
	return s.redis.Del(ctx, keys...).Err()
}

func (s *Service) cacheKey(category, difficulty string) string {
	return fmt.Sprintf("%s:questions:%s:%s", s.prefix, category, difficulty)
}

// ttlWithJitter adds a random 0-10% to the TTL.
func (s *Service) ttlWithJitter() time.Duration {
	jitter := int64(s.ttl) / 10
	return s.ttl + time.Duration(rand.Int63n(jitter+1))
}
