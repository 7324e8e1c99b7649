package constants

// Verdict is the five-band classification of a final score.
type Verdict string

const (
	VerdictExcellent Verdict = "excellent"
	VerdictGood      Verdict = "good"
	VerdictModerate  Verdict = "moderate"
	VerdictCaution   Verdict = "caution"
	VerdictAvoid     Verdict = "avoid"
)

// Inclusive lower bounds of each verdict band.
const (
	ExcellentFloor = 8.0
	GoodFloor      = 6.0
	ModerateFloor  = 4.0
	CautionFloor   = 2.0

	MinScore = 0.0
	MaxScore = 10.0
)

// VerdictFor maps a final score onto its band.
func VerdictFor(score float64) Verdict {
	switch {
	case score >= ExcellentFloor:
		return VerdictExcellent
	case score >= GoodFloor:
		return VerdictGood
	case score >= ModerateFloor:
		return VerdictModerate
	case score >= CautionFloor:
		return VerdictCaution
	default:
		return VerdictAvoid
	}
}

// Emoji returns the traffic-light marker shown next to the verdict.
func (v Verdict) Emoji() string {
	switch v {
	case VerdictExcellent, VerdictGood:
		return "🟢"
	case VerdictModerate, VerdictCaution:
		return "🟡"
	default:
		return "🔴"
	}
}
