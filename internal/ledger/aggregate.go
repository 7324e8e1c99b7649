package ledger

import (
	"sort"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// Totals sums every record's intake. Records are summed in a canonical order
// so the result does not depend on insertion order.
func Totals(records []entity.ConsumptionRecord) entity.Nutrients {
	sorted := make([]entity.ConsumptionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ScanID < sorted[j].ScanID
	})

	totals := entity.Nutrients{}
	for _, r := range sorted {
		for n, v := range r.Intake() {
			totals[n] += v
		}
	}
	return totals
}

// Flags derives the day's moderation flags from its records.
func Flags(records []entity.ConsumptionRecord) entity.ModerationFlags {
	flags := entity.ModerationFlags{Highest: constants.ModerationWithin}
	for _, r := range records {
		switch r.ModerationLevel {
		case constants.ModerationExceeding:
			flags.Exceeding++
			flags.Highest = constants.ModerationExceeding
		case constants.ModerationApproaching:
			flags.Approaching++
			if flags.Highest != constants.ModerationExceeding {
				flags.Highest = constants.ModerationApproaching
			}
		}
	}
	return flags
}

// Rebuild returns the entry with totals and flags recomputed from its records.
func Rebuild(e entity.DailyLedgerEntry) entity.DailyLedgerEntry {
	out := e
	out.Records = append([]entity.ConsumptionRecord(nil), e.Records...)
	out.Totals = Totals(out.Records)
	out.Flags = Flags(out.Records)
	return out
}

// Projection is the hypothetical state of today after a candidate scan.
type Projection struct {
	Level     constants.ModerationLevel
	MaxRatio  float64
	Nutrient  constants.Nutrient // the nutrient behind MaxRatio
	Ratios    map[constants.Nutrient]float64
	Consumed  entity.Nutrients // today's totals before the candidate
	Candidate entity.Nutrients // the candidate's intake
	Projected entity.Nutrients
}

// Project computes the moderation level of adding candidate to today without
// touching the ledger. Nutrients without a positive target are ignored. This is
// the entry point the scan pipeline uses on its context snapshot.
func Project(today entity.DailyLedgerEntry, candidate entity.ConsumptionRecord, targets entity.Nutrients) Projection {
	consumed := Totals(today.Records)
	intake := candidate.Intake()
	p := Projection{
		Ratios:    map[constants.Nutrient]float64{},
		Consumed:  consumed,
		Candidate: intake,
		Projected: consumed.Add(intake),
	}
	for _, n := range constants.ModerationNutrients {
		target := targets[n]
		if target <= 0 {
			continue
		}
		ratio := p.Projected[n] / target
		p.Ratios[n] = ratio
		if p.Nutrient == "" || ratio > p.MaxRatio {
			p.MaxRatio = ratio
			p.Nutrient = n
		}
	}
	p.Level = constants.ModerationFor(p.MaxRatio)
	return p
}
