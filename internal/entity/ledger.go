package entity

import (
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
)

// ConsumptionRecord is one logged scan. Created once and never mutated.
type ConsumptionRecord struct {
	ScanID           string                    `json:"scan_id"`
	Timestamp        time.Time                 `json:"timestamp"`
	Nutrition        NutritionRecord           `json:"nutrition"`
	ServingsConsumed float64                   `json:"servings_consumed"`
	TimeOfDay        constants.TimeOfDay       `json:"time_of_day"`
	Score            float64                   `json:"score"`
	Verdict          constants.Verdict         `json:"verdict"`
	ModerationLevel  constants.ModerationLevel `json:"moderation_level"`
}

// Intake is the nutrient amount this record contributes to the day.
func (r ConsumptionRecord) Intake() Nutrients {
	return r.Nutrition.ConsumedAmounts(r.ServingsConsumed)
}

// ModerationFlags summarize the moderation levels recorded during a day.
type ModerationFlags struct {
	Highest     constants.ModerationLevel `json:"highest"`
	Approaching int                       `json:"approaching"`
	Exceeding   int                       `json:"exceeding"`
}

// DailyLedgerEntry is one user's consumption for one calendar day.
type DailyLedgerEntry struct {
	Date    string              `json:"date"`
	User    string              `json:"user"`
	Records []ConsumptionRecord `json:"records"`
	Totals  Nutrients           `json:"totals"`
	Flags   ModerationFlags     `json:"moderation_flags"`
}

// IsEmpty reports whether nothing was logged.
func (e DailyLedgerEntry) IsEmpty() bool {
	return len(e.Records) == 0
}

// WeekSummary aggregates seven consecutive days.
type WeekSummary struct {
	WeekStart  string              `json:"week_start"`
	Days       [7]DailyLedgerEntry `json:"days"`
	Totals     Nutrients           `json:"totals"`
	Averages   Nutrients           `json:"averages"`
	LoggedDays int                 `json:"logged_days"`
	Scans      int                 `json:"scans"`
}

// ConsumptionContext is the read-only snapshot a scan is scored against.
type ConsumptionContext struct {
	User      string              `json:"user"`
	At        time.Time           `json:"at"`
	Today     DailyLedgerEntry    `json:"today"`
	Week      WeekSummary         `json:"week"`
	TimeOfDay constants.TimeOfDay `json:"time_of_day"`
	Recent    []ConsumptionRecord `json:"recent"`
}
