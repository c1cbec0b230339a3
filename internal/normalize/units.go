package normalize

import (
	"fmt"
	"time"
)

const (
	kilojoulesPerKcal = 4.184
	millisPerMinute   = 60000
	secondsPerMinute  = 60
)

// KilojoulesToKcal converts energy in kJ to kcal.
func KilojoulesToKcal(kj *float64) *float64 { return scale(kj, kilojoulesPerKcal) }

func MillisToMinutes(ms *float64) *float64 { return scale(ms, millisPerMinute) }

func SecondsToMinutes(s *float64) *float64 { return scale(s, secondsPerMinute) }

func scale(v *float64, div float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v / div
	return &out
}

// sum adds the values when every one of them is present.
func sum(vs ...*float64) *float64 {
	var total float64
	for _, v := range vs {
		if v == nil {
			return nil
		}
		total += *v
	}
	return &total
}

func ptr[T any](v T) *T { return &v }

func minutesBetween(start, end *time.Time) *float64 {
	if start == nil || end == nil {
		return nil
	}
	return ptr(end.Sub(*start).Minutes())
}

// parseOffset turns an offset such as "-05:00" into a fixed zone.
func parseOffset(offset string) (*time.Location, error) {
	if offset == "" || offset == "Z" {
		return time.UTC, nil
	}
	t, err := time.Parse("-07:00", offset)
	if err != nil {
		return nil, fmt.Errorf("parsing timezone offset %q: %w", offset, err)
	}
	_, secs := t.Zone()
	return time.FixedZone(offset, secs), nil
}

// localDate returns the calendar day t falls on in the given offset.
func localDate(t time.Time, offset string) (string, error) {
	loc, err := parseOffset(offset)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(dateLayout), nil
}
