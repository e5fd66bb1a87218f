package scheduler

import (
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

type CartPurger interface {
	PurgeExpired() (int64, error)
}

// CartSweeper deletes expired guest carts on a cron schedule.
type CartSweeper struct {
	cron     *cron.Cron
	schedule string
	carts    CartPurger
}

func NewCartSweeper(carts CartPurger, schedule string) *CartSweeper {
	return &CartSweeper{
		cron:     cron.New(),
		schedule: schedule,
		carts:    carts,
	}
}

func (s *CartSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		logger.Error("Failed to add cron job for guest cart sweep", err, map[string]interface{}{
			"schedule": s.schedule,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Guest cart sweeper started", map[string]interface{}{
		"schedule": s.schedule,
	})
	return nil
}

func (s *CartSweeper) RunOnce() {
	deleted, err := s.carts.PurgeExpired()
	if err != nil {
		logger.Error("Scheduled guest cart sweep failed", err)
		return
	}
	logger.Debug("Scheduled guest cart sweep finished", map[string]interface{}{
		"deleted": deleted,
	})
}

// Stop waits for a running sweep to finish.
func (s *CartSweeper) Stop() {
	logger.Info("Stopping guest cart sweeper...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Guest cart sweeper stopped", nil)
}
