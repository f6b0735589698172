package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"github.com/sshindanai/discord-calendar-bot/server/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderSentInsertOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewReminderSentRepository(newTestDB(t))
	mark := dbmodel.ReminderSent{
		DiscordUserID: "u1",
		Provider:      "google",
		CalendarID:    "primary",
		EventID:       "evt1",
		WindowStart:   1_700_000_040_000,
	}

	inserted, err := repo.Insert(ctx, mark)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(ctx, mark)
	require.NoError(t, err)
	assert.False(t, inserted)

	// next minute is a new window
	mark.WindowStart += 60_000
	inserted, err = repo.Insert(ctx, mark)
	require.NoError(t, err)
	assert.True(t, inserted)

	n, err := repo.DeleteBefore(ctx, 1_700_000_100_000)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestReminderSettingsListEnabledPages(t *testing.T) {
	ctx := context.Background()
	repo := NewReminderSettingRepository(newTestDB(t))

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Upsert(ctx, dbmodel.ReminderSettings{
			DiscordUserID: fmt.Sprintf("u%d", i),
			Provider:      "google",
			LeadMinutes:   15,
			Enabled:       i != 2,
		}))
	}

	rows, p, err := repo.ListEnabled(ctx, pagination.Pagination{Limit: 3, Page: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.EqualValues(t, 4, p.TotalRows)
	assert.Equal(t, 2, p.TotalPages)

	rows, _, err = repo.ListEnabled(ctx, pagination.Pagination{Limit: 3, Page: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	// disabling persists the zero value
	require.NoError(t, repo.Upsert(ctx, dbmodel.ReminderSettings{DiscordUserID: "u0", Provider: "microsoft", LeadMinutes: 30}))
	row, err := repo.FindByUserID(ctx, "u0")
	require.NoError(t, err)
	assert.False(t, row.Enabled)
	assert.Equal(t, "microsoft", row.Provider)
	assert.Equal(t, 30, row.LeadMinutes)
}

func TestDigestSettings(t *testing.T) {
	ctx := context.Background()
	repo := NewDigestSettingRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, dbmodel.DigestSettings{DiscordUserID: "u1", Frequency: "daily", Hour: 8, Minute: 0}))
	require.NoError(t, repo.Upsert(ctx, dbmodel.DigestSettings{DiscordUserID: "u1", Frequency: "weekly", Hour: 9, Minute: 30}))
	require.NoError(t, repo.Upsert(ctx, dbmodel.DigestSettings{DiscordUserID: "u1", Frequency: "daily", Hour: 7, Minute: 45}))

	rows, err := repo.ListAt(ctx, 7, 45)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].LastSentAt)

	sent := time.Date(2025, 1, 6, 7, 45, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastSent(ctx, "u1", "daily", sent))
	rows, err = repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].LastSentAt)
	assert.True(t, sent.Equal(*rows[0].LastSentAt))

	n, err := repo.Delete(ctx, "u1", "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
