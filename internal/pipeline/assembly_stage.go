package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/assessment"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/gaps"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

var errNoScorer = errors.New("no reasoning strategy configured")

// Confidence factors applied for degraded context.
const (
	missingProfileFactor = 0.8
	deadlineFactor       = 0.7
	gapFloorFactor       = 0.7
)

func (o *Orchestrator) assemble(s *scan, sc scanContext, res entity.ScoringResult, citations []entity.CitationSource) entity.DetailedAssessment {
	if s.deadlineHit {
		s.degrade(common.KindDeadlineExceeded, constants.StageAssembly, "overall deadline reached; this is a partial assessment")
	}
	a := assessment.Assemble(assessment.Input{
		ScanID:       s.req.ScanID,
		User:         s.req.User,
		At:           s.req.At,
		Nutrition:    sc.candidate.Nutrition,
		Servings:     s.req.Servings,
		Scoring:      res,
		Context:      sc.consumption,
		Projection:   sc.projection,
		Targets:      sc.profile.DailyTargets,
		Sources:      citations,
		Degradations: s.degradations,
	})

	conf := a.Confidence
	if !res.AllergenOverride() {
		report := gaps.Analyze(sc.candidate.Nutrition)
		conf *= gapFloorFactor + (1-gapFloorFactor)*report.CompletenessScore
	}
	if !sc.profileFound {
		conf *= missingProfileFactor
	}
	if s.deadlineHit {
		conf *= deadlineFactor
	}
	a.Confidence = utils.Round(utils.Clamp(conf, 0, 1), 2)
	return a
}

// record appends the scan to the ledger, retrying once after a backoff. Once
// started, the write is detached from the caller so it cannot be half done.
func (o *Orchestrator) record(s *scan, sc scanContext, res entity.ScoringResult, logger *slog.Logger) error {
	if o.Ledger == nil {
		return nil
	}
	rec := sc.candidate
	rec.Score = res.FinalScore
	rec.Verdict = res.Verdict
	rec.ModerationLevel = res.ModerationLevel

	attempt := func() error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.parent), o.cfg.GracePeriod)
		defer cancel()
		_, err := o.Ledger.Append(ctx, s.req.User, rec)
		return err
	}

	err := attempt()
	if err == nil {
		return nil
	}
	logger.Warn("pipeline.ledger.retry", "error", err, "backoff_ms", o.cfg.LedgerRetryBackoff.Milliseconds())
	select {
	case <-time.After(o.cfg.LedgerRetryBackoff):
	case <-s.parent.Done():
		return s.parent.Err()
	}
	if err = attempt(); err != nil {
		logger.Error("pipeline.ledger.failed", "error", err)
		return common.NewLedgerWriteFailure(err)
	}
	return nil
}
