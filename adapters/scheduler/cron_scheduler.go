package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CronScheduler runs periodic jobs on a robfig/cron runner.
type CronScheduler struct {
	logger *slog.Logger
}

// NewCronScheduler creates a scheduler logging through logger
func NewCronScheduler(logger *slog.Logger) *CronScheduler {
	return &CronScheduler{logger: logger}
}

// Every runs job each interval until ctx is cancelled.
// Overlapping runs are skipped. Intervals below one second are rejected.
func (s *CronScheduler) Every(ctx context.Context, interval time.Duration, job func(ctx context.Context)) error {
	if interval < time.Second {
		return fmt.Errorf("interval %s is below the one second cron resolution", interval)
	}

	logger := cronLogger{s.logger}
	runner := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	runner.Schedule(cron.Every(interval), cron.FuncJob(func() { job(ctx) }))
	runner.Start()

	go func() {
		<-ctx.Done()
		<-runner.Stop().Done()
	}()
	return nil
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
