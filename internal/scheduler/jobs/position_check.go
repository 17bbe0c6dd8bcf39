package jobs

import (
	"context"

	"github.com/wonny/vantage/backend/internal/position"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// PositionCheckJob sweeps all open positions against the risk state
// machine. The position monitor already loops on its own interval when
// started; this job covers deployments that run the scheduler only.
type PositionCheckJob struct {
	monitor *position.Monitor
	logger  *logger.Logger
}

// NewPositionCheckJob creates a new position check job
func NewPositionCheckJob(mon *position.Monitor, log *logger.Logger) *PositionCheckJob {
	return &PositionCheckJob{
		monitor: mon,
		logger:  log,
	}
}

// Name returns the job name
func (j *PositionCheckJob) Name() string {
	return "position_risk_check"
}

// Schedule returns the cron schedule (every 5 minutes during US
// regular hours, weekdays, expressed in UTC)
func (j *PositionCheckJob) Schedule() string {
	return "0 */5 14-21 * * 1-5"
}

// Run executes one assessment pass
func (j *PositionCheckJob) Run(ctx context.Context) error {
	if j.monitor.IsRunning() {
		// The monitor's own loop is active; avoid double assessment.
		return nil
	}

	assessments := j.monitor.CheckAll(ctx)

	j.logger.WithFields(map[string]interface{}{
		"checked": len(assessments),
	}).Debug("Scheduled position check finished")

	return nil
}
