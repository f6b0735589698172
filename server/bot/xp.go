package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
)

// cooldownCache remembers when each key last earned XP.
type cooldownCache struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func newCooldownCache(window time.Duration, now func() time.Time) *cooldownCache {
	if now == nil {
		now = time.Now
	}
	return &cooldownCache{last: map[string]time.Time{}, window: window, now: now}
}

// Allow reports whether key is outside its cooldown and starts a new one if so.
func (c *cooldownCache) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[key]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[key] = now
	if len(c.last) > 10000 {
		for k, t := range c.last {
			if now.Sub(t) >= c.window {
				delete(c.last, k)
			}
		}
	}
	return true
}

// HandleMessage awards XP for a guild message and announces level ups.
func (b *Bot) HandleMessage(ctx context.Context, guildID, channelID, userID string, fromBot bool) {
	if fromBot || guildID == "" {
		return
	}
	if !b.xpCooldown.Allow(guildID + "-" + userID) {
		return
	}

	progress, err := b.services.levelService.AddXP(ctx, userID, guildID, b.rollXP())
	if err != nil {
		b.logger.Error("failed to add xp", "user_id", userID, "guild_id", guildID, "err", err)
		return
	}
	if !progress.LeveledUp {
		return
	}

	plural := ""
	if progress.LevelsGained > 1 {
		plural = "s"
	}
	content := fmt.Sprintf("🎉 <@%s> leveled up to **%d**! (+%d level%s)", userID, progress.Level, progress.LevelsGained, plural)
	if err := b.sender.SendChannel(ctx, channelID, chat.Text(content)); err != nil {
		b.logger.Warn("failed to announce level up", "user_id", userID, "channel_id", channelID, "err", err)
	}
}
