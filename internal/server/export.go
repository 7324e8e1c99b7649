package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/bytelense/internal/common"
)

func (s *ScanServer) ExportWeek(ctx context.Context, req WeekRequest) (ExportResponse, error) {
	if s.exporter == nil {
		return ExportResponse{}, fmt.Errorf("export: %w", common.ErrNotFound)
	}
	user, start := strings.TrimSpace(req.User), strings.TrimSpace(req.WeekStart)
	v := common.NewValidator().
		Field("user", user, common.Required).
		Field("week_start", start, common.Required, common.ISODate)
	if err := common.ValidateAndReturnError(v); err != nil {
		return ExportResponse{}, err
	}

	xlsx, err := s.exporter.ExportWeekXLSX(ctx, user, start)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "user", user, "week_start", start, "err", err)
		return ExportResponse{}, err
	}
	return ExportResponse{Filename: WeekFilename(user, start), XLSX: xlsx}, nil
}

// WeekFilename is the download name of a weekly export.
func WeekFilename(user, weekStart string) string {
	return fmt.Sprintf("bytelense-%s-week-%s.xlsx", user, weekStart)
}
