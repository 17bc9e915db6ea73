package users

import (
	"fmt"
	"math"
	"time"
)

type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

type Goal string

const (
	GoalWeightLoss  Goal = "weight-loss"
	GoalMaintenance Goal = "maintenance"
	GoalMuscleGain  Goal = "muscle-gain"
)

type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very-active"
)

var activityFactors = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

// Profile holds the body measurements that energy estimates derive from.
// WeightKG here is the self-reported baseline, not the weight ledger.
type Profile struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	Age           int           `json:"age"`
	Sex           Sex           `json:"sex"`
	HeightCM      float64       `json:"heightCm"`
	WeightKG      float64       `json:"weightKg"`
	ActivityLevel ActivityLevel `json:"activityLevel"`
	Goal          Goal          `json:"goal,omitempty"`
	GoalWeightKG  float64       `json:"goalWeightKg,omitempty"`
	Diets         []string      `json:"diets,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (p *Profile) Validate() error {
	if p.Age < 1 || p.Age > 120 {
		return fmt.Errorf("age must be between 1 and 120, got %d", p.Age)
	}
	if p.Sex != SexMale && p.Sex != SexFemale {
		return fmt.Errorf("unknown sex: %q", p.Sex)
	}
	if p.HeightCM < 50 || p.HeightCM > 250 {
		return fmt.Errorf("height must be between 50 and 250 cm, got %.1f", p.HeightCM)
	}
	if p.WeightKG < 20 || p.WeightKG > 500 {
		return fmt.Errorf("weight must be between 20 and 500 kg, got %.1f", p.WeightKG)
	}
	if _, ok := activityFactors[p.ActivityLevel]; !ok {
		return fmt.Errorf("unknown activity level: %q", p.ActivityLevel)
	}
	if p.Goal != "" && p.Goal != GoalWeightLoss && p.Goal != GoalMaintenance && p.Goal != GoalMuscleGain {
		return fmt.Errorf("unknown goal: %q", p.Goal)
	}
	if p.GoalWeightKG != 0 && (p.GoalWeightKG < 20 || p.GoalWeightKG > 500) {
		return fmt.Errorf("goal weight must be between 20 and 500 kg, got %.1f", p.GoalWeightKG)
	}
	return nil
}

// BMI computes body mass index against the given weight, so the latest
// ledger entry can be used instead of the profile baseline.
func (p *Profile) BMI(weightKG float64) float64 {
	heightM := p.HeightCM / 100
	return round1(weightKG / (heightM * heightM))
}

func BMIClass(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "underweight"
	case bmi < 25:
		return "normal"
	case bmi < 30:
		return "overweight"
	case bmi < 35:
		return "obesity-1"
	case bmi < 40:
		return "obesity-2"
	default:
		return "obesity-3"
	}
}

// BMR uses the revised Harris-Benedict equations.
func (p *Profile) BMR() float64 {
	if p.Sex == SexMale {
		return round1(88.362 + 13.397*p.WeightKG + 4.799*p.HeightCM - 5.677*float64(p.Age))
	}
	return round1(447.593 + 9.247*p.WeightKG + 3.098*p.HeightCM - 4.330*float64(p.Age))
}

func (p *Profile) DailyCalories() float64 {
	return round1(p.BMR() * activityFactors[p.ActivityLevel])
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
