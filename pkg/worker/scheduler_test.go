package worker

import (
	"testing"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/jobs"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(tc *testContext, intervalMinutes int) *Scheduler {
	return NewScheduler(&config.UserConfig{ScanIntervalMinutes: intervalMinutes}, tc.db)
}

func TestSchedulerSkipsWhenNoLibraries(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)
	s := newTestScheduler(tc, 60)

	require.NoError(t, s.scheduleScan(tc.ctx))

	allJobs, err := tc.jobService.ListJobs(tc.ctx, jobs.ListJobsOptions{})
	require.NoError(t, err)
	assert.Empty(t, allJobs)
}

func TestSchedulerSkipsWhenScanJobActive(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)
	s := newTestScheduler(tc, 60)

	tc.createLibrary(t.TempDir(), "")

	for _, status := range []string{models.JobStatusPending, models.JobStatusInProgress} {
		job := &models.Job{Type: models.JobTypeScan, Status: status, DataParsed: &models.JobScanData{}}
		require.NoError(t, tc.jobService.CreateJob(tc.ctx, job))

		require.NoError(t, s.scheduleScan(tc.ctx))

		allJobs, err := tc.jobService.ListJobs(tc.ctx, jobs.ListJobsOptions{})
		require.NoError(t, err)
		assert.Len(t, allJobs, 1)

		job.Status = models.JobStatusCompleted
		require.NoError(t, tc.jobService.UpdateJob(tc.ctx, job, jobs.UpdateJobOptions{Columns: []string{"status"}}))
		_, err = tc.db.NewDelete().Model(job).WherePK().Exec(tc.ctx)
		require.NoError(t, err)
	}
}

func TestSchedulerCreatesJobWhenNoneActive(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)
	s := newTestScheduler(tc, 60)

	tc.createLibrary(t.TempDir(), "")

	// A finished scan doesn't block a new one.
	done := &models.Job{Type: models.JobTypeScan, Status: models.JobStatusCompleted, DataParsed: &models.JobScanData{}}
	require.NoError(t, tc.jobService.CreateJob(tc.ctx, done))

	require.NoError(t, s.scheduleScan(tc.ctx))

	allJobs, err := tc.jobService.ListJobs(tc.ctx, jobs.ListJobsOptions{
		Statuses: []string{models.JobStatusPending},
	})
	require.NoError(t, err)
	require.Len(t, allJobs, 1)
	assert.Equal(t, models.JobTypeScan, allJobs[0].Type)
}

func TestSchedulerZeroIntervalNeverRuns(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)
	s := newTestScheduler(tc, 0)

	// Start with a disabled interval is a no-op and Stop doesn't hang.
	s.Start()
	close(s.shutdown)
	<-s.done
}
