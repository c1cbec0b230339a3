package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/artemis-health/artemis/internal/client/fitbit"
	"github.com/artemis-health/artemis/internal/wearable"
	go_json "github.com/goccy/go-json"
)

// Fitbit has no recovery score; the record carries HRV, resting heart rate
// and SpO2 only.
func fitbitRecovery(payload go_json.RawMessage) (*wearable.RecoveryRecord, error) {
	day, err := decode[fitbit.RecoveryDay](payload)
	if err != nil {
		return nil, err
	}
	if day.Date == "" {
		return nil, malformed("fitbit recovery day without date")
	}

	rec := &wearable.RecoveryRecord{Date: day.Date}

	hrv, err := decodePart[fitbit.HRVEntry](day.HRV)
	if err != nil {
		return nil, err
	}
	if hrv != nil && hrv.Value != nil {
		rec.HRV = hrv.Value.DailyRmssd
	}

	heart, err := decodePart[fitbit.HeartEntry](day.Heart)
	if err != nil {
		return nil, err
	}
	if heart != nil && heart.Value != nil {
		rec.HeartRate = heart.Value.RestingHeartRate
	}

	spo2, err := decodePart[fitbit.SpO2Entry](day.SpO2)
	if err != nil {
		return nil, err
	}
	if spo2 != nil && spo2.Value != nil {
		rec.SpO2 = spo2.Value.Avg
	}

	return rec, nil
}

// fitbitSleep keeps the main sleep of a night. Start and end are local wall
// clock times; Fitbit sends no offset with them, so they are stored as UTC.
func fitbitSleep(payload go_json.RawMessage) (*wearable.SleepRecord, error) {
	s, err := decode[fitbit.Sleep](payload)
	if err != nil {
		return nil, err
	}
	if s.DateOfSleep == "" {
		return nil, malformed("fitbit sleep %d without dateOfSleep", s.LogID)
	}
	if !s.IsMainSleep {
		return nil, ErrSkip
	}

	rec := &wearable.SleepRecord{
		Date:                s.DateOfSleep,
		Start:               parseTime(fitbit.LocalTimeLayout, s.StartTime),
		End:                 parseTime(fitbit.LocalTimeLayout, s.EndTime),
		DurationMinutes:     MillisToMinutes(s.Duration),
		TotalSleepMinutes:   s.MinutesAsleep,
		AwakeMinutes:        s.MinutesAwake,
		Efficiency:          s.Efficiency,
		OnsetLatencyMinutes: s.MinutesToFallAsleep,
	}
	if s.Levels != nil {
		// Classic-type logs report asleep/restless/awake instead of stages.
		rec.DeepMinutes = s.Levels.Summary["deep"].Minutes
		rec.LightMinutes = s.Levels.Summary["light"].Minutes
		rec.REMMinutes = s.Levels.Summary["rem"].Minutes
		if wake := s.Levels.Summary["wake"].Minutes; wake != nil {
			rec.AwakeMinutes = wake
		}
	}
	return rec, nil
}

// Meters per distance unit Fitbit may report. Without an Accept-Language
// header Fitbit answers in metric units.
var fitbitDistanceUnits = map[string]float64{
	"":          1000,
	"kilometer": 1000,
	"mile":      1609.344,
	"meter":     1,
}

func fitbitActivity(payload go_json.RawMessage) (*wearable.ActivityRecord, error) {
	a, err := decode[fitbit.Activity](payload)
	if err != nil {
		return nil, err
	}
	if a.LogID == 0 {
		return nil, malformed("fitbit activity without logId")
	}
	start := parseTime(fitbit.OffsetTimeLayout, a.StartTime)
	if start == nil {
		return nil, malformed("fitbit activity %d has unparseable startTime %q", a.LogID, a.StartTime)
	}

	rec := &wearable.ActivityRecord{
		ActivityID:      strconv.FormatInt(a.LogID, 10),
		Date:            start.Format(dateLayout),
		Type:            strings.ToLower(a.ActivityName),
		Start:           start,
		DurationMinutes: MillisToMinutes(a.Duration),
		Calories:        a.Calories,
		AvgHeartRate:    a.AverageHeartRate,
	}
	if a.Duration != nil {
		rec.End = ptr(start.Add(time.Duration(*a.Duration) * time.Millisecond))
	}
	if a.Distance != nil {
		if perUnit, ok := fitbitDistanceUnits[strings.ToLower(a.DistanceUnit)]; ok {
			rec.DistanceMeters = ptr(*a.Distance * perUnit)
		}
	}
	for _, z := range a.HeartRateZones {
		if z.Minutes == nil || z.Name == "" {
			continue
		}
		if rec.HeartRateZones == nil {
			rec.HeartRateZones = make(map[string]float64, len(a.HeartRateZones))
		}
		rec.HeartRateZones[strings.ToLower(z.Name)] = *z.Minutes
	}
	return rec, nil
}

func parseTime(layout, s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil
	}
	return &t
}
