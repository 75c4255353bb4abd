package services

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/lifecycle"
	"github.com/academyhq/tournament-engine/internal/models"
)

// StatusSweeper periodically moves tournaments whose start date has passed
// from READY_FOR_ENROLLMENT to ONGOING, so enrollment closes on time even
// when no admin is watching.
type StatusSweeper struct {
	db       *gorm.DB
	cron     *cron.Cron
	schedule string
	log      *logrus.Logger
}

func NewStatusSweeper(db *gorm.DB, schedule string, log *logrus.Logger) *StatusSweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StatusSweeper{
		db:       db,
		cron:     cron.New(),
		schedule: schedule,
		log:      log,
	}
}

func (s *StatusSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infof("Status sweeper started with schedule %q", s.schedule)
	return nil
}

func (s *StatusSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Status sweeper stopped")
}

// Sweep runs one pass; exported so it can be triggered manually.
func (s *StatusSweeper) Sweep() {
	var due []models.Tournament
	err := s.db.Where("status = ? AND start_date <= ?",
		models.StatusReadyForEnrollment, time.Now()).Find(&due).Error
	if err != nil {
		s.log.Errorf("Status sweep query failed: %v", err)
		return
	}
	for i := range due {
		t := &due[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			return lifecycle.Transition(tx, t, models.StatusOngoing,
				0, "enrollment closed by scheduler", nil)
		})
		if err != nil {
			s.log.Errorf("Failed to open tournament %d: %v", t.ID, err)
			continue
		}
		s.log.WithField("tournament_id", t.ID).Info("Tournament moved to ONGOING")
	}
}
