package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

// RecentLimit is how many past records a consumption context carries.
const RecentLimit = 3

// ContextBuilder assembles the consumption snapshot a scan is scored against.
type ContextBuilder struct {
	ledger *Ledger
}

func NewContextBuilder(l *Ledger) *ContextBuilder {
	return &ContextBuilder{ledger: l}
}

// Build reads today, the Monday-start week and the trailing week's most recent
// records for the moment at. The result is never cached.
func (b *ContextBuilder) Build(ctx context.Context, user string, at time.Time) (entity.ConsumptionContext, error) {
	loc := b.ledger.Location()
	day := utils.DayKey(at, loc)

	today, err := b.ledger.GetDay(ctx, user, day)
	if err != nil {
		return entity.ConsumptionContext{}, err
	}
	week, err := b.ledger.GetWeek(ctx, user, utils.WeekStart(at, loc))
	if err != nil {
		return entity.ConsumptionContext{}, err
	}
	from, err := utils.AddDays(day, -6)
	if err != nil {
		return entity.ConsumptionContext{}, fmt.Errorf("recent window: %w", err)
	}
	recent, err := b.ledger.Recent(ctx, user, from, day, at, RecentLimit)
	if err != nil {
		return entity.ConsumptionContext{}, err
	}

	return entity.ConsumptionContext{
		User:      user,
		At:        at,
		Today:     today,
		Week:      week,
		TimeOfDay: constants.TimeOfDayForHour(at.In(loc).Hour()),
		Recent:    recent,
	}, nil
}

// EmptyContext is the snapshot used when the ledger cannot be read.
func EmptyContext(user string, at time.Time, loc *time.Location) entity.ConsumptionContext {
	if loc == nil {
		loc = time.UTC
	}
	day := utils.DayKey(at, loc)
	week := entity.WeekSummary{WeekStart: utils.WeekStart(at, loc), Totals: entity.Nutrients{}, Averages: entity.Nutrients{}}
	return entity.ConsumptionContext{
		User:      user,
		At:        at,
		Today:     emptyDay(user, day),
		Week:      week,
		TimeOfDay: constants.TimeOfDayForHour(at.In(loc).Hour()),
	}
}
