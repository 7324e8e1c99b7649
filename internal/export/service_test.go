package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/ledger"
	"github.com/joseph-ayodele/bytelense/internal/repository"
)

func seededLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l := ledger.New(repository.NewLedgerRepository(repository.NewMemoryStore(), nil), ledger.WithLocation(time.UTC))
	recs := []entity.ConsumptionRecord{
		{
			ScanID:           "a",
			Timestamp:        time.Date(2026, 3, 9, 8, 15, 0, 0, time.UTC),
			Nutrition:        entity.NutritionRecord{Name: "Oats", PerServing: entity.Nutrients{constants.Calories: 150, constants.Sugar: 1}},
			ServingsConsumed: 2,
			Score:            8.4,
			Verdict:          constants.VerdictExcellent,
			ModerationLevel:  constants.ModerationWithin,
		},
		{
			ScanID:           "b",
			Timestamp:        time.Date(2026, 3, 11, 19, 0, 0, 0, time.UTC),
			Nutrition:        entity.NutritionRecord{Name: "Cola", PerServing: entity.Nutrients{constants.Calories: 140, constants.Sugar: 35}},
			ServingsConsumed: 1,
			Score:            2.1,
			Verdict:          constants.VerdictAvoid,
			ModerationLevel:  constants.ModerationApproaching,
		},
	}
	for _, r := range recs {
		if _, err := l.Append(context.Background(), "u1", r); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func TestExportWeekXLSX(t *testing.T) {
	svc := NewService(seededLedger(t), nil)
	data, err := svc.ExportWeekXLSX(context.Background(), "u1", "2026-03-09")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scans, err := f.GetRows(scansSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(scans) != 3 {
		t.Fatalf("scan rows = %d, want header + 2", len(scans))
	}
	if scans[1][0] != "2026-03-09" || scans[1][1] != "08:15" || scans[1][2] != "Oats" {
		t.Errorf("first row = %v", scans[1])
	}
	// calories column holds the consumed amount
	if scans[1][4] != "300" {
		t.Errorf("calories = %q", scans[1][4])
	}

	summary, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatal(err)
	}
	// header + 7 days + blank + total + average
	if len(summary) != 11 {
		t.Fatalf("summary rows = %d", len(summary))
	}
	if summary[9][0] != "Week total" || summary[9][1] != "2" {
		t.Errorf("total row = %v", summary[9])
	}
	if summary[10][0] != "Daily average (2 logged days)" {
		t.Errorf("average row = %v", summary[10])
	}
}

type brokenWeek struct{}

func (brokenWeek) GetWeek(context.Context, string, string) (entity.WeekSummary, error) {
	return entity.WeekSummary{}, errors.New("db down")
}

func (brokenWeek) Location() *time.Location { return time.UTC }

func TestExportWeekXLSXError(t *testing.T) {
	if _, err := NewService(brokenWeek{}, nil).ExportWeekXLSX(context.Background(), "u1", "2026-03-09"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 6); got != "héllo…" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("got %q", got)
	}
}
