package server

import (
	"context"
	"strings"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

func (s *ScanServer) GetDay(ctx context.Context, req DayRequest) (entity.DailyLedgerEntry, error) {
	user, date := strings.TrimSpace(req.User), strings.TrimSpace(req.Date)
	v := common.NewValidator().
		Field("user", user, common.Required).
		Field("date", date, common.Required, common.ISODate)
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Error("invalid get day request", "user", user, "date", date, "error", v.ErrorMessage())
		return entity.DailyLedgerEntry{}, err
	}

	day, err := s.ledger.GetDay(ctx, user, date)
	if err != nil {
		s.logger.Error("failed to read ledger day", "user", user, "date", date, "error", err)
		return entity.DailyLedgerEntry{}, err
	}
	s.logger.Info("ledger day read", "user", user, "date", date, "records", len(day.Records))
	return day, nil
}

func (s *ScanServer) GetWeek(ctx context.Context, req WeekRequest) (entity.WeekSummary, error) {
	user, start := strings.TrimSpace(req.User), strings.TrimSpace(req.WeekStart)
	v := common.NewValidator().
		Field("user", user, common.Required).
		Field("week_start", start, common.Required, common.ISODate)
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Error("invalid get week request", "user", user, "week_start", start, "error", v.ErrorMessage())
		return entity.WeekSummary{}, err
	}

	week, err := s.ledger.GetWeek(ctx, user, start)
	if err != nil {
		s.logger.Error("failed to read ledger week", "user", user, "week_start", start, "error", err)
		return entity.WeekSummary{}, err
	}
	s.logger.Info("ledger week read", "user", user, "week_start", start, "logged_days", week.LoggedDays, "scans", week.Scans)
	return week, nil
}
