package domain

const (
	EventNameSessionCompleted   = "session.completed"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventSessionCompleted is published once per completed quiz session.
type EventSessionCompleted struct {
	SessionID string
	Entry     LeaderboardEntry
	Total     int
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
