package entity

import "time"

// Demographics are the body measurements behind the daily targets.
type Demographics struct {
	Age      int     `json:"age"`
	Gender   string  `json:"gender"` // male | female | other
	HeightCm float64 `json:"height_cm"`
	WeightKg float64 `json:"weight_kg"`
}

// Lifestyle feeds the activity multiplier.
type Lifestyle struct {
	WorkStyle         string  `json:"work_style"`         // desk_job | light_activity | physical_job
	ExerciseFrequency string  `json:"exercise_frequency"` // rarely | 1-2_times_week | 3-4_times_week | 5_times_week | daily
	CommuteType       string  `json:"commute_type"`       // car | public_transport | bike | walk
	SleepHours        float64 `json:"sleep_hours"`
	Smoking           string  `json:"smoking"` // yes | no
	Alcohol           string  `json:"alcohol"` // none | light | moderate | heavy
}

// Goals describes what the user is aiming for.
type Goals struct {
	FitnessGoal    string   `json:"fitness_goal"` // weight_loss | muscle_gain | maintenance | general_health
	TargetWeightKg float64  `json:"target_weight_kg"`
	HealthGoals    []string `json:"health_goals,omitempty"`
}

// HealthMetrics are derived from demographics and lifestyle.
type HealthMetrics struct {
	BMI            float64  `json:"bmi"`
	BMICategory    string   `json:"bmi_category"`
	BMR            float64  `json:"bmr"`
	TDEE           float64  `json:"tdee"`
	TargetCalories float64  `json:"target_calories"`
	HealthRisks    []string `json:"health_risks,omitempty"`
}

// UserProfile is an immutable-per-call snapshot of a user's settings.
type UserProfile struct {
	User         string         `json:"user"`
	Name         string         `json:"name,omitempty"`
	Allergens    []string       `json:"allergens,omitempty"`
	DailyTargets Nutrients      `json:"daily_targets"`
	Goals        Goals          `json:"goals"`
	Demographics *Demographics  `json:"demographics,omitempty"`
	Lifestyle    *Lifestyle     `json:"lifestyle,omitempty"`
	Metrics      *HealthMetrics `json:"metrics,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Clone returns a deep copy.
func (p UserProfile) Clone() UserProfile {
	out := p
	out.DailyTargets = p.DailyTargets.Clone()
	if p.Allergens != nil {
		out.Allergens = append([]string(nil), p.Allergens...)
	}
	if p.Goals.HealthGoals != nil {
		out.Goals.HealthGoals = append([]string(nil), p.Goals.HealthGoals...)
	}
	return out
}
