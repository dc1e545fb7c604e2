package services

import (
	"context"
	"time"

	"github.com/summerlia/zhuhaibay/config"
	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

// RefreshTrigger starts a refresh without waiting for it.
type RefreshTrigger interface {
	StartRefresh() (bool, models.RefreshStatus)
}

// DailyScheduler fires a refresh once a day at a fixed local wall-clock time.
type DailyScheduler struct {
	hour, minute int
	runOnStart   bool
	trigger      RefreshTrigger
	logger       *utils.Logger
}

// NewDailyScheduler parses at ("HH:MM") and returns a scheduler bound to trigger.
func NewDailyScheduler(at string, runOnStart bool, trigger RefreshTrigger, logger *utils.Logger) (*DailyScheduler, error) {
	h, m, err := config.ParseClock(at)
	if err != nil {
		return nil, err
	}
	return &DailyScheduler{
		hour:       h,
		minute:     m,
		runOnStart: runOnStart,
		trigger:    trigger,
		logger:     logger,
	}, nil
}

// NextRun returns the first occurrence of the daily time strictly after now,
// in now's location.
func (s *DailyScheduler) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, firing the trigger at each daily slot.
func (s *DailyScheduler) Run(ctx context.Context) error {
	if s.runOnStart {
		s.fire("startup")
	}

	for {
		next := s.NextRun(time.Now())
		s.logger.Info("[scheduler] next refresh at %s", next.Format("2006-01-02 15:04 MST"))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.fire("daily")
		}
	}
}

func (s *DailyScheduler) fire(reason string) {
	ok, st := s.trigger.StartRefresh()
	if !ok {
		s.logger.Warn("[scheduler] %s refresh skipped: run %s in progress (%s)", reason, st.RunID, st.CurrentStep)
		return
	}
	s.logger.Info("[scheduler] %s refresh started: run %s", reason, st.RunID)
}
