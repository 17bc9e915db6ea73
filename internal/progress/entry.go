package progress

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeightEntry is one logged weigh-in.
type WeightEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      time.Time `json:"date"`
	WeightKG  float64   `json:"weightKg"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FastingSession is one completed fast. Start and end are wall-clock
// "HH:MM"; an end before the start means the fast crossed midnight.
type FastingSession struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Date          time.Time `json:"date"`
	StartTime     string    `json:"startTime"`
	EndTime       string    `json:"endTime"`
	DurationHours float64   `json:"durationHours"`
	Protocol      string    `json:"protocol"`
	ActivePlanID  string    `json:"activePlanId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DietDayEntry marks one calendar day of sticking to the active plan.
type DietDayEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Date         time.Time `json:"date"`
	ActivePlanID string    `json:"activePlanId"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FastDuration computes the hours between two "HH:MM" wall-clock times,
// adding 24h when the end precedes the start (midnight rollover).
func FastDuration(startTime, endTime string) (float64, error) {
	startMinutes, err := parseWallClock(startTime)
	if err != nil {
		return 0, fmt.Errorf("parse start time: %w", err)
	}
	endMinutes, err := parseWallClock(endTime)
	if err != nil {
		return 0, fmt.Errorf("parse end time: %w", err)
	}

	if endMinutes < startMinutes {
		endMinutes += 24 * 60
	}
	return float64(endMinutes-startMinutes) / 60, nil
}

func parseWallClock(value string) (int, error) {
	hourStr, minuteStr, found := strings.Cut(value, ":")
	if !found {
		return 0, fmt.Errorf("invalid wall-clock time: %q", value)
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour*60 + minute, nil
}
