package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/async"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/scoring"
)

// score always produces a verdict: the reasoning strategy first, the
// threshold table when it fails, times out, or the deadline already passed.
func (o *Orchestrator) score(s *scan, sc scanContext, logger *slog.Logger) common.Outcome[entity.ScoringResult] {
	in := scoring.Input{
		Nutrition:  sc.candidate.Nutrition,
		Profile:    sc.profile,
		Context:    sc.consumption,
		Servings:   s.req.Servings,
		Projection: sc.projection,
	}

	var cause error
	switch {
	case o.Scorer == nil:
		cause = errNoScorer
	case s.deadlineHit:
		cause = context.DeadlineExceeded
	default:
		ctx, cancel := o.stageContext(s, o.cfg.ReasoningTimeout)
		res, err := async.Run(ctx, o.Gate, "reasoning", func(ctx context.Context) (entity.ScoringResult, error) {
			return o.Scorer.Score(ctx, in)
		})
		cancel()
		if err == nil {
			logger.Info("pipeline.score.ok", "strategy", res.Strategy, "final_score", res.FinalScore, "verdict", res.Verdict)
			return common.OK(res, res.Confidence)
		}
		cause = err
	}

	ctx, cancel := o.stageContext(s, 0)
	defer cancel()
	res, err := o.Fallback.Score(ctx, in)
	if err != nil {
		// the threshold table does no I/O; an error here is a programming bug
		logger.Error("pipeline.score.fallback_failed", "error", err)
	}
	if cause != errNoScorer {
		logger.Warn("pipeline.score.fallback", "cause", cause, "final_score", res.FinalScore)
		s.degrade(common.KindScoringEngineFailure, constants.StageScoring, "quality judgment unavailable, used nutrient threshold table: "+describe(cause))
	}
	return common.Degraded(res, res.Confidence, common.KindScoringEngineFailure, cause)
}
