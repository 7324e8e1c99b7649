// Package ledger is the per-user daily consumption record: appends are
// serialized per user and every total is recomputed from the stored records.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/repository"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

type Ledger struct {
	repo   repository.LedgerRepository
	loc    *time.Location
	locks  *keyedMutex
	logger *slog.Logger
}

type Option func(*Ledger)

// WithLocation sets the time zone that decides which day a record belongs to.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func New(repo repository.LedgerRepository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:   repo,
		loc:    time.UTC,
		locks:  newKeyedMutex(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Location is the ledger's day boundary time zone.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// DayKey is the ledger date a timestamp belongs to.
func (l *Ledger) DayKey(t time.Time) string {
	return utils.DayKey(t, l.loc)
}

// Append adds rec to the user's day, recomputes totals and persists the day.
// Appending a scan ID that is already recorded returns the stored day unchanged.
func (l *Ledger) Append(ctx context.Context, user string, rec entity.ConsumptionRecord) (entity.DailyLedgerEntry, error) {
	v := common.NewValidator().
		Field("user", user, common.Required).
		Field("scan_id", rec.ScanID, common.Required).
		Field("timestamp", rec.Timestamp, common.Required).
		Field("servings_consumed", rec.ServingsConsumed, common.Positive)
	if err := v.Error(); err != nil {
		return entity.DailyLedgerEntry{}, err
	}

	unlock, err := l.locks.Lock(ctx, user)
	if err != nil {
		return entity.DailyLedgerEntry{}, err
	}
	defer unlock()

	day := l.DayKey(rec.Timestamp)
	entry, err := l.load(ctx, user, day)
	if err != nil {
		return entity.DailyLedgerEntry{}, err
	}
	for _, existing := range entry.Records {
		if existing.ScanID == rec.ScanID {
			l.logger.Info("ledger.append.duplicate", "user", user, "day", day, "scan_id", rec.ScanID)
			return entry, nil
		}
	}

	rec.Nutrition = rec.Nutrition.Clone()
	entry.Records = append(entry.Records, rec)
	entry = Rebuild(entry)

	if err := l.repo.PutDay(ctx, entry); err != nil {
		l.logger.Error("ledger.append.failed", "user", user, "day", day, "scan_id", rec.ScanID, "err", err)
		return entity.DailyLedgerEntry{}, fmt.Errorf("persist ledger day: %w", err)
	}
	l.logger.Info("ledger.append.ok", "user", user, "day", day, "scan_id", rec.ScanID, "records", len(entry.Records))
	return entry, nil
}

// GetDay returns the user's entry for an ISO date; a missing day is an empty entry.
func (l *Ledger) GetDay(ctx context.Context, user, day string) (entity.DailyLedgerEntry, error) {
	if err := common.NewValidator().Field("date", day, common.ISODate).Error(); err != nil {
		return entity.DailyLedgerEntry{}, err
	}
	return l.load(ctx, user, day)
}

func (l *Ledger) load(ctx context.Context, user, day string) (entity.DailyLedgerEntry, error) {
	stored, ok, err := l.repo.GetDay(ctx, user, day)
	if err != nil {
		return entity.DailyLedgerEntry{}, fmt.Errorf("load ledger day: %w", err)
	}
	if !ok {
		return emptyDay(user, day), nil
	}
	stored.User, stored.Date = user, day
	return Rebuild(stored), nil
}

func emptyDay(user, day string) entity.DailyLedgerEntry {
	return Rebuild(entity.DailyLedgerEntry{Date: day, User: user})
}

// GetWeek returns the seven days starting at weekStart with totals and averages.
// Averages are taken over the days that have at least one record.
func (l *Ledger) GetWeek(ctx context.Context, user, weekStart string) (entity.WeekSummary, error) {
	start, err := utils.ParseYMD(weekStart)
	if err != nil {
		return entity.WeekSummary{}, fmt.Errorf("week start %q: %w", weekStart, common.ErrInvalidInput)
	}
	end := start.AddDate(0, 0, 6).Format(time.DateOnly)
	stored, err := l.repo.ListDays(ctx, user, weekStart, end)
	if err != nil {
		return entity.WeekSummary{}, fmt.Errorf("load ledger week: %w", err)
	}
	byDay := make(map[string]entity.DailyLedgerEntry, len(stored))
	for _, e := range stored {
		byDay[e.Date] = e
	}

	week := entity.WeekSummary{WeekStart: weekStart, Totals: entity.Nutrients{}, Averages: entity.Nutrients{}}
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i).Format(time.DateOnly)
		e, ok := byDay[day]
		if !ok {
			week.Days[i] = emptyDay(user, day)
			continue
		}
		e.User, e.Date = user, day
		week.Days[i] = Rebuild(e)
	}
	return summarize(week), nil
}

func summarize(week entity.WeekSummary) entity.WeekSummary {
	for _, d := range week.Days {
		if d.IsEmpty() {
			continue
		}
		week.LoggedDays++
		week.Scans += len(d.Records)
		for n, v := range d.Totals {
			week.Totals[n] += v
		}
	}
	if week.LoggedDays > 0 {
		week.Averages = week.Totals.Scale(1 / float64(week.LoggedDays))
	}
	return week
}

// ModerationLevel projects the candidate onto the user's stored day without
// appending it. The scan pipeline already holds today's entry in its
// ConsumptionContext and calls Project on that snapshot instead, so both
// share one calculation.
func (l *Ledger) ModerationLevel(ctx context.Context, user string, candidate entity.ConsumptionRecord, targets entity.Nutrients) (Projection, error) {
	today, err := l.load(ctx, user, l.DayKey(candidate.Timestamp))
	if err != nil {
		return Projection{}, err
	}
	return Project(today, candidate, targets), nil
}

// Recent returns up to limit records logged in the days [from, to] at or before at, newest first.
func (l *Ledger) Recent(ctx context.Context, user, from, to string, at time.Time, limit int) ([]entity.ConsumptionRecord, error) {
	days, err := l.repo.ListDays(ctx, user, from, to)
	if err != nil {
		return nil, fmt.Errorf("load recent records: %w", err)
	}
	var recs []entity.ConsumptionRecord
	for _, d := range days {
		for _, r := range d.Records {
			if !r.Timestamp.After(at) {
				recs = append(recs, r)
			}
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
