package pipeline

import (
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/ledger"
	"github.com/joseph-ayodele/bytelense/internal/profiles"
)

// scanContext is the immutable snapshot scoring and assembly work from.
type scanContext struct {
	profile      entity.UserProfile
	profileFound bool
	consumption  entity.ConsumptionContext
	candidate    entity.ConsumptionRecord
	projection   ledger.Projection
}

func (o *Orchestrator) loadContext(s *scan, nutrition entity.NutritionRecord, logger *slog.Logger) common.Outcome[scanContext] {
	ctx, cancel := o.stageContext(s, 0)
	defer cancel()

	sc := scanContext{profile: entity.UserProfile{User: s.req.User}}
	kind := common.KindNone

	if o.Profiles != nil {
		p, err := o.Profiles.GetProfile(ctx, s.req.User)
		switch {
		case err == nil:
			sc.profile, sc.profileFound = p.Clone(), true
		case errors.Is(err, common.ErrNotFound):
			logger.Warn("pipeline.profile.missing")
		default:
			logger.Warn("pipeline.profile.failed", "error", err)
		}
	}
	if !sc.profileFound {
		kind = common.KindProfileMissing
		s.degrade(kind, constants.StageContextLoading, "no profile found; default daily targets and no allergen screening")
	}
	if len(sc.profile.DailyTargets) == 0 {
		sc.profile.DailyTargets = profiles.DefaultTargets()
	}

	loc := ledgerLocation(o.Ledger)
	if o.Ledger != nil {
		cc, err := o.contexts.Build(ctx, s.req.User, s.req.At)
		if err != nil {
			logger.Warn("pipeline.context.failed", "error", err)
			kind = common.KindContextUnavailable
			s.degrade(kind, constants.StageContextLoading, "today's history could not be read; scored as if nothing was eaten")
			cc = ledger.EmptyContext(s.req.User, s.req.At, loc)
		}
		sc.consumption = cc
	} else {
		sc.consumption = ledger.EmptyContext(s.req.User, s.req.At, loc)
	}

	sc.candidate = entity.ConsumptionRecord{
		ScanID:           s.req.ScanID,
		Timestamp:        s.req.At,
		Nutrition:        nutrition.Clone(),
		ServingsConsumed: s.req.Servings,
		TimeOfDay:        sc.consumption.TimeOfDay,
	}
	sc.projection = ledger.Project(sc.consumption.Today, sc.candidate, sc.profile.DailyTargets)
	logger.Info("pipeline.context.ok",
		"profile", sc.profileFound,
		"time_of_day", sc.consumption.TimeOfDay,
		"today_records", len(sc.consumption.Today.Records),
		"moderation", sc.projection.Level,
		"max_ratio", sc.projection.MaxRatio,
	)
	if kind != common.KindNone {
		return common.Degraded(sc, 0, kind, nil)
	}
	return common.OK(sc, 1)
}

func ledgerLocation(l *ledger.Ledger) *time.Location {
	if l == nil {
		return time.UTC
	}
	return l.Location()
}
