// Package scheduler holds the polling jobs: reminders, digests and mark pruning.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/sshindanai/discord-calendar-bot/server/internal/provider"
	"github.com/sshindanai/discord-calendar-bot/server/internal/service"
)

type Deps struct {
	Credentials service.CredentialService
	Settings    service.SettingsService
	Marks       service.ReminderMarkService
	Registry    *provider.Registry
	Sender      chat.Sender
	Logger      *log.Logger
	// Location renders times and anchors digest schedules.
	Location      *time.Location
	Now           func() time.Time
	MaxGoroutines int
}

func (d *Deps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.MaxGoroutines <= 0 {
		d.MaxGoroutines = constant.MAX_GOROUTINES
	}
}

// fanOut runs fn for every item with at most max running at once and waits.
func fanOut[T any](items []T, max int, fn func(T)) {
	var wg sync.WaitGroup
	wg.Add(len(items))
	queues := make(chan struct{}, max)
	for _, item := range items {
		queues <- struct{}{}
		go func(item T) {
			defer func() {
				wg.Done()
				<-queues
			}()
			fn(item)
		}(item)
	}
	wg.Wait()
}

// freshCredential loads the active credential and persists a refresh before
// anything uses the new token.
func (d *Deps) freshCredential(ctx context.Context, userID string, p models.Provider) (models.Credential, error) {
	cred, err := d.Credentials.GetActive(ctx, userID, p)
	if err != nil {
		return cred, err
	}
	cred, refreshed, err := d.Registry.RefreshIfNeeded(ctx, cred)
	if err != nil {
		return cred, err
	}
	if refreshed {
		if err := d.Credentials.UpdateTokens(ctx, cred); err != nil {
			return cred, errors.Wrap(err, "failed to persist refreshed tokens")
		}
	}
	return cred, nil
}

func (d *Deps) logUserError(msg, userID string, err error) {
	if errors.Is(err, apperr.ErrNoActiveCredential) {
		d.Logger.Debug(msg, "user_id", userID, "kind", apperr.Kind(err))
		return
	}
	d.Logger.Error(msg, "user_id", userID, "kind", apperr.Kind(err), "err", err)
}

// windowStart floors t to the reminder bucket in unix milliseconds.
func windowStart(t time.Time) time.Time {
	bucket := constant.REMINDER_BUCKET.Milliseconds()
	return time.UnixMilli(t.UnixMilli() / bucket * bucket)
}
