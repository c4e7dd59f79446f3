package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/database"
	"postdeck/internal/platform/models"
	"postdeck/internal/platform/repositories"
)

func TestLogger_RecordsActor(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{URL: ":memory:"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(db, "up"))

	ctx := context.Background()
	require.NoError(t, repositories.NewOrganizationRepository(db).Create(ctx, &models.Organization{ID: "org1", Name: "Acme", Slug: "acme"}))

	logger := NewLogger(repositories.NewAuditLogRepository(db))
	ctx = WithActor(ctx, Actor{UserID: "usr_1", IPAddress: "10.0.0.1", UserAgent: "test"})
	logger.Log(ctx, "org1", ActionChannelLinked, "channel", "ch_1", map[string]interface{}{"platform": "TIKTOK"})

	// Unknown organization violates the foreign key; Log must swallow it.
	logger.Log(ctx, "org_missing", ActionChannelLinked, "channel", "ch_2", nil)

	logs, err := logger.List(context.Background(), "org1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "usr_1", logs[0].UserID)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
	assert.Equal(t, ActionChannelLinked, logs[0].Action)
	assert.Equal(t, "TIKTOK", logs[0].Metadata["platform"])
	assert.Equal(t, "Unknown on Unknown", logs[0].Metadata["client"])
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *Logger
	l.Log(context.Background(), "org1", ActionPostCreated, "post", "p1", nil)
}
