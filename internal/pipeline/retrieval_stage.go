package pipeline

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/coordinator"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/gaps"
)

// retrieve fills gaps from external sources. It never fails the scan.
func (o *Orchestrator) retrieve(s *scan, rec entity.NutritionRecord, logger *slog.Logger) common.Outcome[coordinator.Result] {
	report := gaps.Analyze(rec)
	logger.Info("pipeline.gaps",
		"completeness", report.CompletenessScore,
		"gaps", report.CriticalGaps,
		"needs_lookup", report.NeedsProductLookup,
		"needs_research", report.NeedsResearchAgent,
	)

	if o.Retriever == nil || s.deadlineHit {
		res := coordinator.Result{Record: rec, Remaining: report}
		if s.deadlineHit {
			s.degrade(common.KindDeadlineExceeded, constants.StageNutritionRetrieval, "skipped external lookups")
		}
		if !report.Complete() {
			s.degrade(common.KindGapUnresolved, constants.StageNutritionRetrieval, "still missing: "+strings.Join(report.CriticalGaps, ", "))
		}
		return common.Degraded(res, rec.Confidence, common.KindGapUnresolved, nil)
	}

	res, err := o.Retriever.Retrieve(s.run, rec, report)
	s.degradations = append(s.degradations, res.Degradations...)
	if err != nil {
		logger.Warn("pipeline.retrieve.interrupted", "error", err)
		if s.parent.Err() == nil {
			s.degrade(common.KindDeadlineExceeded, constants.StageNutritionRetrieval, "overall deadline reached while waiting for external data")
		}
		return common.Degraded(res, res.Record.Confidence, common.KindExternalServiceTimeout, err)
	}
	if !res.Remaining.Complete() {
		return common.Degraded(res, res.Record.Confidence, common.KindGapUnresolved, nil)
	}
	return common.OK(res, res.Record.Confidence)
}
