package bot

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, append(keysAndValues, "err", err)...)
}

func (b *Bot) newCron(ctx context.Context) (*cron.Cron, error) {
	logger := cronLogger{logger: b.logger}
	c := cron.New(
		cron.WithLocation(b.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)

	jobs := []struct {
		spec string
		name string
		run  func()
	}{
		{"@every 1m", "reminders", func() { b.reminders.Tick(ctx) }},
		{"* * * * *", "digests", func() { b.digests.Tick(ctx) }},
		{"@every 1h", "prune", func() { _, _ = b.pruner.Prune(ctx) }},
	}
	for _, job := range jobs {
		if _, err := c.AddFunc(job.spec, job.run); err != nil {
			b.logger.Error("Error adding cron job", "job", job.name, "err", err)
			return nil, err
		}
	}
	return c, nil
}

func (b *Bot) runCron(ctx context.Context) error {
	c, err := b.newCron(ctx)
	if err != nil {
		return err
	}
	b.cron = c
	b.cron.Start()
	b.logger.Info("cron jobs were started", "entries", len(b.cron.Entries()))

	<-ctx.Done()
	// wait for running ticks
	<-b.cron.Stop().Done()
	return nil
}
