package plans

import "errors"

var ErrPlanNotFound = errors.New("plan not found")

type PlanKind string

const (
	KindDiet     PlanKind = "diet"
	KindFasting  PlanKind = "fasting"
	KindCombined PlanKind = "combined"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Plan is a catalog template. Defined at process start, never mutated.
type Plan struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Kind          PlanKind   `json:"kind"`
	Description   string     `json:"description"`
	DurationWeeks int        `json:"durationWeeks"`
	Category      string     `json:"category"`
	Protocols     []string   `json:"protocols,omitempty"`
	Benefits      []string   `json:"benefits"`
	Difficulty    Difficulty `json:"difficulty"`
}

type Catalog struct {
	plans []Plan
}

func NewCatalog() *Catalog {
	return &Catalog{plans: defaultPlans()}
}

func (c *Catalog) All() []Plan {
	// copy, so callers cannot poke at the catalog
	all := make([]Plan, len(c.plans))
	copy(all, c.plans)
	return all
}

func (c *Catalog) Get(id string) (Plan, error) {
	for _, p := range c.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

func defaultPlans() []Plan {
	return []Plan{
		{
			ID:            "low-carb",
			Name:          "Low Carb",
			Kind:          KindDiet,
			Description:   "Reduced-carbohydrate diet to speed up fat burning",
			DurationWeeks: 12,
			Category:      "low-carb",
			Benefits:      []string{"Fast weight loss", "Reduced appetite", "Improved blood sugar"},
			Difficulty:    DifficultyBeginner,
		},
		{
			ID:            "keto",
			Name:          "Ketogenic",
			Kind:          KindDiet,
			Description:   "Very low carbohydrate diet to induce ketosis",
			DurationWeeks: 16,
			Category:      "keto",
			Benefits:      []string{"Ketosis", "Accelerated weight loss", "Greater satiety"},
			Difficulty:    DifficultyIntermediate,
		},
		{
			ID:            "carnivore",
			Name:          "Carnivore",
			Kind:          KindDiet,
			Description:   "Diet based exclusively on animal products",
			DurationWeeks: 8,
			Category:      "carnivore",
			Benefits:      []string{"Inflammation elimination", "Simplicity", "Satiety"},
			Difficulty:    DifficultyAdvanced,
		},
		{
			ID:            "food-reeducation",
			Name:          "Food Reeducation",
			Kind:          KindDiet,
			Description:   "Gradual change of eating habits towards a healthy lifestyle",
			DurationWeeks: 24,
			Category:      "food-reeducation",
			Benefits:      []string{"Sustainability", "Flexibility", "Habit change"},
			Difficulty:    DifficultyBeginner,
		},
		{
			ID:            "fasting-16h",
			Name:          "Intermittent Fasting 16h",
			Kind:          KindFasting,
			Description:   "16 hour fasting protocol with an 8 hour eating window",
			DurationWeeks: 12,
			Category:      "intermittent-fasting",
			Protocols:     []string{"16h", "18h", "20h"},
			Benefits:      []string{"Autophagy", "Weight loss", "Metabolic improvement"},
			Difficulty:    DifficultyBeginner,
		},
		{
			ID:            "fasting-24h",
			Name:          "Intermittent Fasting 24h",
			Kind:          KindFasting,
			Description:   "24 hour fasting protocol, once or twice a week",
			DurationWeeks: 8,
			Category:      "intermittent-fasting",
			Protocols:     []string{"24h", "36h"},
			Benefits:      []string{"Intense autophagy", "Metabolic reset", "Discipline"},
			Difficulty:    DifficultyAdvanced,
		},
		{
			ID:            "keto-fasting",
			Name:          "Ketogenic + Fasting",
			Kind:          KindCombined,
			Description:   "Ketogenic diet combined with intermittent fasting",
			DurationWeeks: 16,
			Category:      "keto",
			Protocols:     []string{"16h", "18h", "20h"},
			Benefits:      []string{"Deep ketosis", "Maximum weight loss", "Mental clarity"},
			Difficulty:    DifficultyAdvanced,
		},
	}
}
