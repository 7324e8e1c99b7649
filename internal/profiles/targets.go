package profiles

import (
	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

// Fitness goals.
const (
	GoalWeightLoss    = "weight_loss"
	GoalMuscleGain    = "muscle_gain"
	GoalMaintenance   = "maintenance"
	GoalGeneralHealth = "general_health"
)

const (
	defaultCalories = 2000.0
	sodiumTargetMg  = 2000.0
	lossDeficit     = 500.0
	gainSurplus     = 300.0
	minActivity     = 1.2
	maxActivity     = 2.5
)

var workStyleMultiplier = map[string]float64{
	"desk_job":       1.2,
	"light_activity": 1.375,
	"physical_job":   1.55,
}

var exerciseBonus = map[string]float64{
	"rarely":         0,
	"1-2_times_week": 0.05,
	"3-4_times_week": 0.1,
	"5_times_week":   0.15,
	"daily":          0.2,
}

var commuteBonus = map[string]float64{
	"car":              0,
	"public_transport": 0.02,
	"bike":             0.08,
	"walk":             0.05,
}

// DefaultTargets are used when a user has no stored profile.
func DefaultTargets() entity.Nutrients {
	return TargetsFromCalories(defaultCalories, GoalMaintenance, "")
}

// ComputeTargets derives health metrics and daily nutrient targets.
func ComputeTargets(d entity.Demographics, l entity.Lifestyle, g entity.Goals) (entity.HealthMetrics, entity.Nutrients) {
	bmi := BMI(d.HeightCm, d.WeightKg)
	bmr := BMR(d)
	tdee := bmr * ActivityMultiplier(l)
	target := adjustForGoal(tdee, d.WeightKg, g)

	m := entity.HealthMetrics{
		BMI:            utils.Round(bmi, 2),
		BMICategory:    BMICategory(bmi),
		BMR:            utils.Round(bmr, 1),
		TDEE:           utils.Round(tdee, 1),
		TargetCalories: utils.Round(target, 1),
	}
	m.HealthRisks = healthRisks(m.BMICategory, l)
	return m, TargetsFromCalories(target, g.FitnessGoal, d.Gender)
}

// TargetsFromCalories splits a calorie budget into macro targets.
func TargetsFromCalories(kcal float64, fitnessGoal, gender string) entity.Nutrients {
	proteinShare := 0.20
	if fitnessGoal == GoalMuscleGain {
		proteinShare = 0.30
	}
	carbShare := 0.50
	if fitnessGoal == GoalWeightLoss {
		carbShare = 0.40
	}
	fiber := 25.0
	if gender == "male" {
		fiber = 30
	}
	return entity.Nutrients{
		constants.Calories: utils.Round(kcal, 1),
		constants.Protein:  utils.Round(kcal*proteinShare/4, 1),
		constants.Carbs:    utils.Round(kcal*carbShare/4, 1),
		constants.Fat:      utils.Round(kcal*0.25/9, 1),
		constants.Sugar:    utils.Round(kcal*0.10/4, 1),
		constants.Fiber:    fiber,
		constants.Sodium:   sodiumTargetMg,
	}
}

func BMI(heightCm, weightKg float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return weightKg / (m * m)
}

func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "underweight"
	case bmi < 25:
		return "normal"
	case bmi < 30:
		return "overweight"
	default:
		return "obese"
	}
}

// BMR is the Mifflin-St Jeor basal metabolic rate.
func BMR(d entity.Demographics) float64 {
	base := 10*d.WeightKg + 6.25*d.HeightCm - 5*float64(d.Age)
	switch d.Gender {
	case "male":
		return base + 5
	case "female":
		return base - 161
	default:
		return base - 78
	}
}

// ActivityMultiplier combines work, exercise and commute, clamped to [1.2, 2.5].
func ActivityMultiplier(l entity.Lifestyle) float64 {
	base, ok := workStyleMultiplier[l.WorkStyle]
	if !ok {
		base = workStyleMultiplier["desk_job"]
	}
	total := base + exerciseBonus[l.ExerciseFrequency] + commuteBonus[l.CommuteType]
	if l.SleepHours > 0 && l.SleepHours < 6 {
		total -= 0.05
	}
	if l.Smoking == "yes" {
		total -= 0.03
	}
	return utils.Clamp(total, minActivity, maxActivity)
}

func adjustForGoal(tdee, weightKg float64, g entity.Goals) float64 {
	if g.TargetWeightKg > 0 && weightKg > 0 {
		switch {
		case g.TargetWeightKg < weightKg:
			return tdee - lossDeficit
		case g.TargetWeightKg > weightKg:
			return tdee + gainSurplus
		default:
			return tdee
		}
	}
	switch g.FitnessGoal {
	case GoalWeightLoss:
		return tdee - lossDeficit
	case GoalMuscleGain:
		return tdee + gainSurplus
	}
	return tdee
}

func healthRisks(bmiCategory string, l entity.Lifestyle) []string {
	var risks []string
	switch bmiCategory {
	case "underweight":
		risks = append(risks, "underweight_malnutrition_risk")
	case "overweight":
		risks = append(risks, "overweight_cardiovascular_risk")
	case "obese":
		risks = append(risks, "obesity_multiple_disease_risk")
	}
	if l.SleepHours > 0 && l.SleepHours < 6 {
		risks = append(risks, "insufficient_sleep")
	}
	if l.Smoking == "yes" {
		risks = append(risks, "smoking_health_hazard")
	}
	if l.Alcohol == "heavy" {
		risks = append(risks, "excessive_alcohol_consumption")
	}
	if l.ExerciseFrequency == "rarely" {
		risks = append(risks, "sedentary_lifestyle")
	}
	return risks
}
