package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCooldownCache(t *testing.T) {
	now := testNow
	cache := newCooldownCache(time.Minute, func() time.Time { return now })

	assert.True(t, cache.Allow("g1-u1"))
	assert.False(t, cache.Allow("g1-u1"))
	assert.True(t, cache.Allow("g1-u2"))

	now = now.Add(59 * time.Second)
	assert.False(t, cache.Allow("g1-u1"))
	now = now.Add(time.Second)
	assert.True(t, cache.Allow("g1-u1"))
}

func TestRandomXPRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		xp := randomXP()
		assert.GreaterOrEqual(t, xp, 5)
		assert.LessOrEqual(t, xp, 15)
	}
}

func TestHandleMessageAwardsXP(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	now := testNow
	tb.xpCooldown = newCooldownCache(time.Minute, func() time.Time { return now })

	tb.HandleMessage(ctx, "g1", "c1", "u1", false)
	tb.HandleMessage(ctx, "g1", "c1", "u1", false) // cooling down
	tb.HandleMessage(ctx, "g1", "c1", "bot", true)
	tb.HandleMessage(ctx, "", "dm", "u1", false)

	progress, _, err := tb.services.levelService.Get(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.Equal(t, 10, progress.XP)
	assert.Empty(t, tb.sender.channels)

	board, err := tb.services.levelService.Leaderboard(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Len(t, board, 1)
}

func TestHandleMessageAnnouncesLevelUp(t *testing.T) {
	tb := newTestBot(t)
	tb.rollXP = func() int { return 240 }

	tb.HandleMessage(context.Background(), "g1", "c1", "u1", false)

	require.Len(t, tb.sender.channels, 1)
	assert.Equal(t, "c1", tb.sender.channels[0].target)
	// 100 for level 1 and 125 for level 2
	assert.Equal(t, "🎉 <@u1> leveled up to **3**! (+2 levels)", tb.sender.channels[0].msg.Content)
}
