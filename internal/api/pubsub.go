package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizbattle/internal/domain"
)

const maxConcurrent = 100

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishLeaderboardUpdated broadcasts the new ranking on <prefix>:leaderboard and
// notifies every ranked user on <prefix>:user:<username>.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboardEntries(e.Leaderboard.Entries)

	if err := a.publishNotification(ctx, fmt.Sprintf("%s:leaderboard", a.prefix), e.Name(), data); err != nil {
		return err
	}

	users := make(map[string]struct{}, len(data))

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data {
		if _, ok := users[entry.Username]; ok {
			continue
		}
		users[entry.Username] = struct{}{}

		eg.Go(func() error {
			return a.publishNotification(ctx, fmt.Sprintf("%s:user:%s", a.prefix, entry.Username), e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
