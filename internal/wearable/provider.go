package wearable

import (
	"fmt"
	"strings"
	"time"
)

type Provider string

const (
	ProviderWhoop  Provider = "whoop"
	ProviderOura   Provider = "oura"
	ProviderFitbit Provider = "fitbit"
	ProviderGarmin Provider = "garmin"
)

func Providers() []Provider {
	return []Provider{ProviderWhoop, ProviderOura, ProviderFitbit, ProviderGarmin}
}

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(s)); p {
	case ProviderWhoop, ProviderOura, ProviderFitbit, ProviderGarmin:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

func (p Provider) String() string { return string(p) }

type DataType string

const (
	DataTypeRecovery DataType = "recovery"
	DataTypeSleep    DataType = "sleep"
	DataTypeActivity DataType = "activity"
)

// DataTypes returns every data type in sync order.
func DataTypes() []DataType {
	return []DataType{DataTypeRecovery, DataTypeSleep, DataTypeActivity}
}

func (d DataType) String() string { return string(d) }

// DateLayout is the calendar-day format used for natural keys and API output.
const DateLayout = "2006-01-02"

// DateRange covers the UTC calendar days from Start's day through End's day,
// both inclusive. Only the day part of each bound is significant.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Bounds returns the half-open instant interval [start, end) spanning every
// day of the range: midnight of the first day to midnight after the last.
func (r DateRange) Bounds() (start, end time.Time) {
	return truncateDay(r.Start), truncateDay(r.End).AddDate(0, 0, 1)
}

// Contains reports whether a DateLayout date falls within the range.
func (r DateRange) Contains(date string) bool {
	return date >= r.StartDate() && date <= r.EndDate()
}

// LastDays returns the window covering the trailing n days up to now.
func LastDays(now time.Time, n int) DateRange {
	return DateRange{
		Start: now.AddDate(0, 0, -n),
		End:   now,
	}
}

func (r DateRange) StartDate() string { return r.Start.UTC().Format(DateLayout) }
func (r DateRange) EndDate() string   { return r.End.UTC().Format(DateLayout) }

// Days returns every calendar day touched by the range, oldest first.
func (r DateRange) Days() []time.Time {
	start := truncateDay(r.Start)
	end := truncateDay(r.End)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
