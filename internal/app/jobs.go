package app

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/bytelense/internal/async"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/pipeline"
)

// ScanProcessor runs queued label files through the pipeline. onResult, when
// set, sees every finished assessment, including ones the ledger refused.
func (a *App) ScanProcessor(onResult func(async.Job, entity.DetailedAssessment)) async.Processor {
	return async.ProcessorFunc(func(ctx context.Context, job async.Job) error {
		res, err := a.Orchestrator.Scan(ctx, pipeline.Request{
			ScanID:    job.ScanID,
			User:      job.User,
			ImagePath: job.Path,
			Servings:  job.Servings,
		}, nil)
		var se *common.ScanError
		if res.ScanID != "" && (err == nil || (errors.As(err, &se) && se.Kind == common.KindLedgerWriteFailure)) {
			if onResult != nil {
				onResult(job, res)
			}
		}
		return err
	})
}
