package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizbattle/internal/migrations"
)

func TestMigrations_Registered(t *testing.T) {
	ms := migrations.Migrations.Sorted()
	require.Len(t, ms, 3)

	names := make([]string, 0, len(ms))
	for _, m := range ms {
		names = append(names, m.Name+"_"+m.Comment)
		assert.NotNil(t, m.Up)
		assert.NotNil(t, m.Down)
	}

	assert.Equal(t, []string{
		"20250101000001_create_users",
		"20250101000002_create_questions",
		"20250101000003_create_leaderboard",
	}, names)
}
