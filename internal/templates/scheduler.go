package templates

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/expenseflow/expense-ocr/internal/common"
)

// Scheduler triggers recurring retraining runs. A failed run is logged
// and never cancels future runs.
type Scheduler struct {
	cron    *cron.Cron
	manager *Manager
	logger  *slog.Logger
}

func NewScheduler(manager *Manager, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		manager: manager,
		logger:  logger,
	}
}

// Schedule registers a retraining run every intervalDays and starts the
// ticker. Non-positive intervals disable scheduling.
func (s *Scheduler) Schedule(intervalDays int) error {
	if intervalDays <= 0 {
		s.logger.Info("scheduled retraining disabled")
		return nil
	}
	spec := fmt.Sprintf("@every %dh", intervalDays*24)
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.manager.StartJob(context.Background(), intervalDays); err != nil {
			s.logger.Error("scheduled retraining run failed", "error", err)
		}
	})
	if err != nil {
		return common.WrapError(err, "register retraining schedule")
	}
	s.cron.Start()
	s.logger.Info("scheduled retraining enabled", "interval_days", intervalDays)
	return nil
}

// Stop halts the ticker and waits for a running trigger to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
