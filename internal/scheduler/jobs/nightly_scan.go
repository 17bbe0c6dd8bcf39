package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/scan"
	"github.com/wonny/vantage/backend/pkg/logger"
)

const nightlyScanTimeout = 2 * time.Hour

// NightlyScanJob runs the combined SEPA and QM scan after the US close.
// It goes through the job manager so the run is visible to API pollers
// like any manually submitted scan.
type NightlyScanJob struct {
	jobs   *scan.JobManager
	logger *logger.Logger
}

// NewNightlyScanJob creates a new nightly scan job
func NewNightlyScanJob(jobs *scan.JobManager, log *logger.Logger) *NightlyScanJob {
	return &NightlyScanJob{
		jobs:   jobs,
		logger: log,
	}
}

// Name returns the job name
func (j *NightlyScanJob) Name() string {
	return "nightly_combined_scan"
}

// Schedule returns the cron schedule (10 PM UTC on weekdays, after the
// 4 PM ET close and consolidated-tape settlement)
func (j *NightlyScanJob) Schedule() string {
	return "0 0 22 * * 1-5"
}

// Run submits the scan and waits for it to reach a terminal state
func (j *NightlyScanJob) Run(ctx context.Context) error {
	id, err := j.jobs.Submit(contracts.ScanParams{Persist: true})
	if err != nil {
		return fmt.Errorf("submit nightly scan: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"job_id": id,
	}).Info("Nightly scan submitted")

	deadline := time.NewTimer(nightlyScanTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

	for {
		view, ok := j.jobs.Poll(id)
		if !ok {
			return fmt.Errorf("nightly scan %s disappeared", id)
		}

		switch view.Status {
		case contracts.JobDone:
			j.logScanResult(view.Result)
			return nil
		case contracts.JobError:
			return fmt.Errorf("nightly scan %s failed: %s", id, view.Error)
		}

		select {
		case <-tick.C:
		case <-deadline.C:
			j.jobs.Cancel(id)
			return fmt.Errorf("nightly scan %s timed out after %s", id, nightlyScanTimeout)
		case <-ctx.Done():
			j.jobs.Cancel(id)
			return ctx.Err()
		}
	}
}

func (j *NightlyScanJob) logScanResult(result *contracts.CombinedResult) {
	if result == nil {
		return
	}

	fields := map[string]interface{}{
		"regime": result.Regime.State,
		"union":  result.UnionSize,
	}
	if result.SEPA != nil {
		fields["sepa_passed"] = len(result.SEPA.Passed)
	}
	if result.QM != nil {
		fields["qm_passed"] = len(result.QM.Passed)
	}

	j.logger.WithFields(fields).Info("Nightly scan completed")
}
