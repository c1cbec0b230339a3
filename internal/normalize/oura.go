package normalize

import (
	"github.com/artemis-health/artemis/internal/client/oura"
	"github.com/artemis-health/artemis/internal/wearable"
	go_json "github.com/goccy/go-json"
)

// decodePart decodes an optional sub-document of a composite payload.
func decodePart[T any](raw go_json.RawMessage) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return decode[T](raw)
}

// ouraRecovery takes the score from readiness, HRV and lowest heart rate
// from the night's main sleep period and SpO2 from the daily SpO2 summary.
// Readiness only reports a temperature deviation, so skin temperature is
// left absent.
func ouraRecovery(payload go_json.RawMessage) (*wearable.RecoveryRecord, error) {
	day, err := decode[oura.RecoveryDay](payload)
	if err != nil {
		return nil, err
	}
	if day.Day == "" {
		return nil, malformed("oura recovery day without day")
	}

	rec := &wearable.RecoveryRecord{Date: day.Day}

	readiness, err := decodePart[oura.DailyReadiness](day.Readiness)
	if err != nil {
		return nil, err
	}
	if readiness != nil {
		rec.Score = readiness.Score
	}

	period, err := decodePart[oura.SleepPeriod](day.Sleep)
	if err != nil {
		return nil, err
	}
	if period != nil {
		rec.HRV = period.AverageHRV
		rec.HeartRate = period.LowestHeartRate
	}

	spo2, err := decodePart[oura.DailySpO2](day.SpO2)
	if err != nil {
		return nil, err
	}
	if spo2 != nil && spo2.SpO2Percentage != nil {
		rec.SpO2 = spo2.SpO2Percentage.Average
	}

	return rec, nil
}

func ouraSleep(payload go_json.RawMessage) (*wearable.SleepRecord, error) {
	day, err := decode[oura.SleepDay](payload)
	if err != nil {
		return nil, err
	}
	if day.Day == "" {
		return nil, malformed("oura sleep day without day")
	}

	rec := &wearable.SleepRecord{Date: day.Day}

	period, err := decodePart[oura.SleepPeriod](day.Period)
	if err != nil {
		return nil, err
	}
	if period != nil {
		rec.Start = period.BedtimeStart
		rec.End = period.BedtimeEnd
		rec.DurationMinutes = SecondsToMinutes(period.TimeInBed)
		rec.TotalSleepMinutes = SecondsToMinutes(period.TotalSleepDuration)
		rec.DeepMinutes = SecondsToMinutes(period.DeepSleepDuration)
		rec.LightMinutes = SecondsToMinutes(period.LightSleepDuration)
		rec.REMMinutes = SecondsToMinutes(period.REMSleepDuration)
		rec.AwakeMinutes = SecondsToMinutes(period.AwakeTime)
		rec.Efficiency = period.Efficiency
		rec.OnsetLatencyMinutes = SecondsToMinutes(period.Latency)
	}

	score, err := decodePart[oura.DailySleep](day.DailySleep)
	if err != nil {
		return nil, err
	}
	if score != nil {
		rec.Score = score.Score
	}

	return rec, nil
}

func ouraDailyActivity(payload go_json.RawMessage) (*wearable.ActivityRecord, error) {
	a, err := decode[oura.DailyActivity](payload)
	if err != nil {
		return nil, err
	}
	if a.Day == "" {
		return nil, malformed("oura daily activity %s without day", a.ID)
	}

	return &wearable.ActivityRecord{
		ActivityID:      wearable.DailyActivityID(a.Day),
		Date:            a.Day,
		Type:            wearable.ActivityTypeDaily,
		DurationMinutes: SecondsToMinutes(sum(a.HighActivityTime, a.MediumActivityTime, a.LowActivityTime)),
		DistanceMeters:  a.EquivalentWalkingDistance,
		Calories:        a.TotalCalories,
	}, nil
}

func ouraWorkout(payload go_json.RawMessage) (*wearable.ActivityRecord, error) {
	w, err := decode[oura.Workout](payload)
	if err != nil {
		return nil, err
	}
	if w.ID == "" || w.Day == "" {
		return nil, malformed("oura workout missing id or day")
	}

	return &wearable.ActivityRecord{
		ActivityID:      w.ID,
		Date:            w.Day,
		Type:            w.Activity,
		Start:           w.StartDatetime,
		End:             w.EndDatetime,
		DurationMinutes: minutesBetween(w.StartDatetime, w.EndDatetime),
		DistanceMeters:  w.Distance,
		Calories:        w.Calories,
	}, nil
}
