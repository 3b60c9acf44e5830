package model

import (
	"fmt"
	"strings"
	"time"
)

// Grouping is the time-bucket granularity consumption is aggregated at. The
// value is the GraphQL enum literal.
type Grouping string

const (
	GroupingHalfHour Grouping = "HALF_HOUR"
	GroupingHour     Grouping = "HOUR"
	GroupingDay      Grouping = "DAY"
	GroupingWeek     Grouping = "WEEK"
	GroupingMonth    Grouping = "MONTH"
	GroupingQuarter  Grouping = "QUARTER"
)

var Groupings = []Grouping{
	GroupingHalfHour,
	GroupingHour,
	GroupingDay,
	GroupingWeek,
	GroupingMonth,
	GroupingQuarter,
}

// REST returns the group_by query value. Half-hour is the API default and has
// no value: the parameter must be omitted entirely.
func (g Grouping) REST() string {
	switch g {
	case GroupingHour:
		return "hour"
	case GroupingDay:
		return "day"
	case GroupingWeek:
		return "week"
	case GroupingMonth:
		return "month"
	case GroupingQuarter:
		return "quarter"
	default:
		return ""
	}
}

func (g Grouping) GraphQL() string {
	return string(g)
}

func (g Grouping) Valid() bool {
	for _, known := range Groupings {
		if g == known {
			return true
		}
	}
	return false
}

func (g Grouping) String() string {
	if g == GroupingHalfHour {
		return "half-hour"
	}
	return g.REST()
}

// ParseGrouping accepts the CLI name (half-hour, hour...), the REST value or the
// GraphQL literal, case-insensitively. The empty string is half-hour.
func ParseGrouping(value string) (Grouping, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("_", "-", " ", "-").Replace(normalized)
	switch normalized {
	case "", "half-hour", "halfhour", "30m":
		return GroupingHalfHour, nil
	}
	for _, grouping := range Groupings {
		if normalized == grouping.REST() {
			return grouping, nil
		}
	}
	return "", fmt.Errorf("unknown grouping: %s", value)
}

// ConsumptionReading is the energy used over [IntervalStart, IntervalEnd).
type ConsumptionReading struct {
	Consumption   float64
	IntervalStart time.Time
	IntervalEnd   time.Time
}

// Equal reports whether both readings carry the same amount over the same
// instants, regardless of the offsets the timestamps were written with.
func (r ConsumptionReading) Equal(other ConsumptionReading) bool {
	return r.Consumption == other.Consumption &&
		r.IntervalStart.Equal(other.IntervalStart) &&
		r.IntervalEnd.Equal(other.IntervalEnd)
}

func (r ConsumptionReading) String() string {
	return fmt.Sprintf("%g kWh [%s, %s)", r.Consumption,
		r.IntervalStart.Format(time.RFC3339), r.IntervalEnd.Format(time.RFC3339))
}

type Tariff struct {
	DisplayName string
	// UnitRate is in pence per kWh.
	UnitRate float64
}

// MeterPointSnapshot is the latest quarterly reading of every meter on a meter
// point, keyed by meter serial number, together with the active tariff.
type MeterPointSnapshot struct {
	Consumption map[string]ConsumptionReading
	Tariff      Tariff
}
