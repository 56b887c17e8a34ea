package api_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizbattle/internal/api"
	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/event"
)

func TestAPI_PublishLeaderboardUpdated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})

	sub := rc.Subscribe(ctx, "qb:leaderboard", "qb:user:alice")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	eb := event.NewBus()
	api.New(api.Config{
		EventBus:     eb,
		Redis:        rc,
		PubsubPrefix: "qb",
	})

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: domain.Leaderboard{Entries: []domain.LeaderboardEntry{
			{ID: "1", Username: "alice", Score: 3, Date: at},
			{ID: "2", Username: "alice", Score: 2, Date: at},
		}},
	})
	eb.Stop()

	channels := map[string]bool{}
	for i := 0; i < 2; i++ {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)
		channels[msg.Channel] = true

		var n struct {
			Event string                 `json:"event"`
			Data  []api.LeaderboardEntry `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		assert.Equal(t, domain.EventNameLeaderboardUpdated, n.Event)
		assert.Len(t, n.Data, 2)
	}

	assert.Equal(t, map[string]bool{"qb:leaderboard": true, "qb:user:alice": true}, channels)
}
