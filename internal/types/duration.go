// README: Booking duration value object; resolves end times and billable hours.
package types

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

type DurationUnit string

const (
	UnitHours  DurationUnit = "hours"
	UnitDays   DurationUnit = "days"
	UnitWeeks  DurationUnit = "weeks"
	UnitMonths DurationUnit = "months"
)

const (
	secondsPerHour = 3600
	secondsPerDay  = 24 * secondsPerHour
)

// unitSeconds is the length of one unit. A month is a fixed 30 days, not a calendar month.
var unitSeconds = map[DurationUnit]float64{
	UnitHours:  secondsPerHour,
	UnitDays:   secondsPerDay,
	UnitWeeks:  7 * secondsPerDay,
	UnitMonths: 30 * secondsPerDay,
}

// maxSpanSeconds is the longest span a time.Duration can hold.
const maxSpanSeconds = float64(math.MaxInt64) / float64(time.Second)

var (
	ErrInvalidDurationUnit = NewValidationError("duration.unit", "must be one of hours, days, weeks, months")
	ErrInvalidDuration     = NewValidationError("duration.value", "must be a finite number greater than zero")
)

// Duration is only obtainable through ParseDuration, so a held value is always valid.
type Duration struct {
	value float64
	unit  DurationUnit
}

// ParseUnit accepts plural or singular unit names in any case.
func ParseUnit(v string) (DurationUnit, error) {
	u := strings.ToLower(strings.TrimSpace(v))
	if u != "" && !strings.HasSuffix(u, "s") {
		u += "s"
	}
	unit := DurationUnit(u)
	if _, ok := unitSeconds[unit]; !ok {
		return "", ErrInvalidDurationUnit
	}
	return unit, nil
}

func ParseDuration(value float64, unit string) (Duration, error) {
	u, err := ParseUnit(unit)
	if err != nil {
		return Duration{}, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return Duration{}, ErrInvalidDuration
	}
	if value*unitSeconds[u] >= maxSpanSeconds {
		return Duration{}, ErrInvalidDuration
	}
	return Duration{value: value, unit: u}, nil
}

// MustDuration panics on invalid input; intended for constants and tests.
func MustDuration(value float64, unit DurationUnit) Duration {
	d, err := ParseDuration(value, string(unit))
	if err != nil {
		panic(err)
	}
	return d
}

func (d Duration) Value() float64     { return d.value }
func (d Duration) Unit() DurationUnit { return d.unit }
func (d Duration) IsZero() bool       { return d.unit == "" }

func (d Duration) Seconds() float64 {
	return d.value * unitSeconds[d.unit]
}

func (d Duration) Span() time.Duration {
	return time.Duration(math.Round(d.Seconds() * float64(time.Second)))
}

// EndTime returns start advanced by the duration.
func (d Duration) EndTime(start time.Time) time.Time {
	return start.Add(d.Span())
}

// Hours is used for hourly-rate pricing.
func (d Duration) Hours() float64 {
	return d.Seconds() / secondsPerHour
}

type durationJSON struct {
	Value float64      `json:"value"`
	Unit  DurationUnit `json:"unit"`
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(durationJSON{Value: d.value, Unit: d.unit})
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw struct {
		Value float64 `json:"value"`
		Unit  string  `json:"unit"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseDuration(raw.Value, raw.Unit)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
