package utils

import (
	"context"

	"quizserver/lobby"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronReaper registers the recurring lobby cleanup and starts the scheduler.
// The schedule string uses cron syntax, e.g. "@every 1m".
func CronReaper(reaper *lobby.Reaper, schedule string, logger *zap.Logger) (*cron.Cron, error) {
	if schedule == "" {
		schedule = "@every 1m"
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if reaped := reaper.Sweep(context.Background()); reaped > 0 {
			logger.Info("lobby cleanup finished", zap.Int("reaped", reaped))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
