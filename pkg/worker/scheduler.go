package worker

import (
	"context"
	"time"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/jobs"
	"github.com/foliobooks/folio/pkg/libraries"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Scheduler periodically enqueues a scan job covering every library. Only one
// scan job is ever active at a time; a tick that finds one pending or in
// progress does nothing.
type Scheduler struct {
	interval time.Duration
	log      logger.Logger

	jobService     *jobs.Service
	libraryService *libraries.Service

	shutdown chan struct{}
	done     chan struct{}
}

func NewScheduler(userConfig *config.UserConfig, db *bun.DB) *Scheduler {
	return &Scheduler{
		interval:       time.Duration(userConfig.ScanIntervalMinutes) * time.Minute,
		log:            logger.New(),
		jobService:     jobs.NewService(db),
		libraryService: libraries.NewService(db),
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.log.Info("periodic scans disabled")
		close(s.done)
		return
	}
	go s.run()
}

func (s *Scheduler) Stop() {
	close(s.shutdown)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			if err := s.scheduleScan(context.Background()); err != nil {
				s.log.Err(err).Error("schedule scan error")
			}
		}
	}
}

// scheduleScan creates one pending scan job for all libraries, unless there
// is nothing to scan or a scan job is already active.
func (s *Scheduler) scheduleScan(ctx context.Context) error {
	allLibraries, err := s.libraryService.ListLibraries(ctx, libraries.ListLibrariesOptions{})
	if err != nil {
		return err
	}
	if len(allLibraries) == 0 {
		return nil
	}

	hasActive, err := s.jobService.HasActiveJobByType(ctx, models.JobTypeScan)
	if err != nil {
		return err
	}
	if hasActive {
		return nil
	}

	job := &models.Job{
		Type:       models.JobTypeScan,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobScanData{},
	}
	if err := s.jobService.CreateJob(ctx, job); err != nil {
		return err
	}

	s.log.Info("scheduled scan job", logger.Data{"job_id": job.ID})
	return nil
}
