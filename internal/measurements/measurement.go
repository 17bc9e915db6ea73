package measurements

import "time"

// Measurement is one set of body tape measurements, all in centimeters.
type Measurement struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      time.Time `json:"date"`
	ArmsCm    float64   `json:"armsCm"`
	BustCm    float64   `json:"bustCm"`
	WaistCm   float64   `json:"waistCm"`
	HipsCm    float64   `json:"hipsCm"`
	ThighsCm  float64   `json:"thighsCm"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Photo is a progress photo, stored inline as base64.
type Photo struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Date       time.Time `json:"date"`
	Caption    string    `json:"caption,omitempty"`
	DataBase64 string    `json:"dataBase64"`
	CreatedAt  time.Time `json:"createdAt"`
}

type WeightTrend string

const (
	TrendRising  WeightTrend = "rising"
	TrendFalling WeightTrend = "falling"
	TrendStable  WeightTrend = "stable"
)

// TrendOf derives the short-term direction from the last three weights,
// newest first. Fewer than two points is always stable.
func TrendOf(newestFirst []float64) WeightTrend {
	if len(newestFirst) < 2 {
		return TrendStable
	}
	if len(newestFirst) > 3 {
		newestFirst = newestFirst[:3]
	}

	oldest := newestFirst[len(newestFirst)-1]
	newest := newestFirst[0]
	switch {
	case newest > oldest:
		return TrendRising
	case newest < oldest:
		return TrendFalling
	default:
		return TrendStable
	}
}
