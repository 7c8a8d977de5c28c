package scheduler

import (
	"context"
	"time"

	"labfolio/service/core"
)

// Refresher is satisfied by core.Refresher
type Refresher interface {
	Run(ctx context.Context) (*core.RefreshSummary, error)
}

// RefreshJob runs the factor return refresh under a parent context and a timeout
type RefreshJob struct {
	ctx       context.Context
	refresher Refresher
	timeout   time.Duration
}

func NewRefreshJob(ctx context.Context, refresher Refresher, timeout time.Duration) *RefreshJob {
	return &RefreshJob{ctx: ctx, refresher: refresher, timeout: timeout}
}

func (j *RefreshJob) Name() string {
	return "factor_return_refresh"
}

func (j *RefreshJob) Run() error {
	ctx := j.ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	_, err := j.refresher.Run(ctx)
	return err
}
