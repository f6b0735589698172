package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	"github.com/sshindanai/discord-calendar-bot/server/internal/models/dbmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func calendarRow(user, provider, calendarID string) dbmodel.Calendars {
	return dbmodel.Calendars{
		DiscordUserID: user,
		Provider:      provider,
		CalendarID:    calendarID,
		AccessToken:   "access",
		RefreshToken:  strPtr("refresh"),
		ExpiresAt:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Visibility:    "private",
	}
}

func TestCalendarUpsertKeepsRefreshToken(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "google", "primary"), false))

	update := calendarRow("u1", "google", "primary")
	update.AccessToken = "access-2"
	update.RefreshToken = nil
	update.Visibility = "public"
	require.NoError(t, repo.Upsert(ctx, update, false))

	row, err := repo.FindByIdentity(ctx, "u1", "google", "primary")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "access-2", row.AccessToken)
	require.NotNil(t, row.RefreshToken)
	assert.Equal(t, "refresh", *row.RefreshToken)
	assert.Equal(t, "public", row.Visibility)
	assert.False(t, row.IsActive)

	counts, err := repo.CountByProvider(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"google": 1}, counts)
}

func TestCalendarUpsertKeepsActiveFlag(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "google", "primary"), false))
	require.NoError(t, repo.SetActive(ctx, "u1", "google", "primary"))

	// relinking without an explicit flag must not deactivate
	require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "google", "primary"), false))
	row, err := repo.FindActive(ctx, "u1", "google")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "primary", row.CalendarID)
}

func TestCalendarSetActiveExclusive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewCalendarRepository(db)

	for _, id := range []string{"primary", "work", "team"} {
		require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "google", id), false))
	}
	require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "microsoft", "primary"), false))
	require.NoError(t, repo.SetActive(ctx, "u1", "microsoft", "primary"))

	for _, id := range []string{"primary", "work", "team", "work"} {
		require.NoError(t, repo.SetActive(ctx, "u1", "google", id))

		var active int64
		require.NoError(t, db.Model(&dbmodel.Calendars{}).
			Where("discord_user_id = ? AND provider = ? AND is_active = ?", "u1", "google", true).
			Count(&active).Error)
		assert.EqualValues(t, 1, active)

		row, err := repo.FindActive(ctx, "u1", "google")
		require.NoError(t, err)
		assert.Equal(t, id, row.CalendarID)
	}

	// other provider untouched
	row, err := repo.FindActive(ctx, "u1", "microsoft")
	require.NoError(t, err)
	require.NotNil(t, row)
}

func TestCalendarSetActiveConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewCalendarRepository(db)

	ids := []string{"primary", "work", "team", "home"}
	for _, id := range ids {
		require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "google", id), false))
	}
	require.NoError(t, repo.SetActive(ctx, "u1", "google", "primary"))

	const rounds = 25
	var wg sync.WaitGroup
	for w := 0; w < len(ids); w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				assert.NoError(t, repo.SetActive(ctx, "u1", "google", ids[(w+i)%len(ids)]))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				var active int64
				assert.NoError(t, db.Model(&dbmodel.Calendars{}).
					Where("discord_user_id = ? AND provider = ? AND is_active = ?", "u1", "google", true).
					Count(&active).Error)
				assert.EqualValues(t, 1, active)

				row, err := repo.FindActive(ctx, "u1", "google")
				assert.NoError(t, err)
				assert.NotNil(t, row)
			}
		}()
	}
	wg.Wait()
}

func TestCalendarSetActiveUnknownRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "google", "primary"), false))
	require.NoError(t, repo.SetActive(ctx, "u1", "google", "primary"))

	err := repo.SetActive(ctx, "u1", "google", "missing")
	require.ErrorIs(t, err, apperr.ErrCalendarNotLinked)

	row, err := repo.FindActive(ctx, "u1", "google")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "primary", row.CalendarID)
}

func TestCalendarPublicVisibilityAndUnlink(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "google", "primary"), false))
	require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "google", "work"), false))

	n, err := repo.UpdateActiveVisibility(ctx, "u1", "google", "public")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	require.NoError(t, repo.SetActive(ctx, "u1", "google", "work"))
	row, err := repo.FindPublicActive(ctx, "u1", "google")
	require.NoError(t, err)
	assert.Nil(t, row)

	n, err = repo.UpdateActiveVisibility(ctx, "u1", "google", "public")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	row, err = repo.FindPublicActive(ctx, "u1", "google")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "work", row.CalendarID)

	n, err = repo.DeleteByProvider(ctx, "u1", "google")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = repo.DeleteByProvider(ctx, "u1", "google")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestCalendarUpdateTokens(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository(newTestDB(t))
	require.NoError(t, repo.Upsert(ctx, calendarRow("u1", "google", "primary"), false))
	row, err := repo.FindByIdentity(ctx, "u1", "google", "primary")
	require.NoError(t, err)

	expires := time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateTokens(ctx, row.ID, "access-2", nil, expires))

	row, err = repo.FindByIdentity(ctx, "u1", "google", "primary")
	require.NoError(t, err)
	assert.Equal(t, "access-2", row.AccessToken)
	assert.Equal(t, "refresh", *row.RefreshToken)
	assert.True(t, expires.Equal(row.ExpiresAt))
}
