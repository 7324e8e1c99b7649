package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// WeekReader is the ledger read the export needs.
type WeekReader interface {
	GetWeek(ctx context.Context, user, weekStart string) (entity.WeekSummary, error)
	Location() *time.Location
}

// Service is a tiny façade over the ledger that produces XLSX bytes for exports.
type Service struct {
	ledger WeekReader
	logger *slog.Logger
}

func NewService(ledger WeekReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, logger: logger}
}

const (
	scansSheet   = "Scans"
	summarySheet = "Summary"
)

var exportNutrients = []constants.Nutrient{
	constants.Calories, constants.Sugar, constants.Sodium, constants.Fat,
	constants.Carbs, constants.Protein, constants.Fiber,
}

// ExportWeekXLSX returns a workbook for the Monday-start week: one row per
// scan on the "Scans" sheet, and per-day totals plus the weekly totals and
// averages on the "Summary" sheet.
func (s *Service) ExportWeekXLSX(ctx context.Context, user, weekStart string) ([]byte, error) {
	start := time.Now()
	week, err := s.ledger.GetWeek(ctx, user, weekStart)
	if err != nil {
		return nil, fmt.Errorf("load week: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", scansSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(scansSheet)
	f.SetActiveSheet(activeIndex)

	loc := s.ledger.Location()
	if loc == nil {
		loc = time.UTC
	}
	rows := writeScans(f, week, loc)
	writeSummary(f, week)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user", user,
		"week_start", week.WeekStart,
		"rows", rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func nutrientHeaders() []any {
	out := make([]any, 0, len(exportNutrients))
	for _, n := range exportNutrients {
		out = append(out, fmt.Sprintf("%s (%s)", n, n.Unit()))
	}
	return out
}

func amounts(n entity.Nutrients) []any {
	out := make([]any, 0, len(exportNutrients))
	for _, k := range exportNutrients {
		out = append(out, round1(n[k]))
	}
	return out
}

func writeScans(f *excelize.File, week entity.WeekSummary, loc *time.Location) int {
	headers := append([]any{"Date", "Time", "Product", "Servings"}, nutrientHeaders()...)
	headers = append(headers, "Score", "Verdict", "Moderation", "Scan ID")
	writeRow(f, scansSheet, 1, headers...)

	row := 2
	for _, day := range week.Days {
		for _, r := range day.Records {
			values := []any{
				day.Date,
				r.Timestamp.In(loc).Format("15:04"),
				truncate(r.Nutrition.DisplayName(), 60),
				r.ServingsConsumed,
			}
			values = append(values, amounts(r.Intake())...)
			values = append(values, r.Score, string(r.Verdict), string(r.ModerationLevel), r.ScanID)
			writeRow(f, scansSheet, row, values...)
			row++
		}
	}

	_ = f.SetColWidth(scansSheet, "A", "A", 12) // date
	_ = f.SetColWidth(scansSheet, "B", "B", 8)  // time
	_ = f.SetColWidth(scansSheet, "C", "C", 36) // product
	_ = f.SetColWidth(scansSheet, "D", "K", 12) // servings + nutrients
	_ = f.SetColWidth(scansSheet, "L", "N", 14)
	_ = f.SetColWidth(scansSheet, "O", "O", 38) // scan id
	return row - 2
}

func writeSummary(f *excelize.File, week entity.WeekSummary) {
	headers := append([]any{"Date", "Scans", "Highest moderation"}, nutrientHeaders()...)
	writeRow(f, summarySheet, 1, headers...)

	row := 2
	for _, day := range week.Days {
		values := []any{day.Date, len(day.Records), string(day.Flags.Highest)}
		writeRow(f, summarySheet, row, append(values, amounts(day.Totals)...)...)
		row++
	}
	row++
	writeRow(f, summarySheet, row, append([]any{"Week total", week.Scans, ""}, amounts(week.Totals)...)...)
	row++
	avgLabel := fmt.Sprintf("Daily average (%d logged days)", week.LoggedDays)
	writeRow(f, summarySheet, row, append([]any{avgLabel, "", ""}, amounts(week.Averages)...)...)

	_ = f.SetColWidth(summarySheet, "A", "A", 30)
	_ = f.SetColWidth(summarySheet, "B", "C", 18)
	_ = f.SetColWidth(summarySheet, "D", "J", 14)
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
