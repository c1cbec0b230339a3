package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/artemis-health/artemis/internal/client/garmin"
	"github.com/artemis-health/artemis/internal/wearable"
	go_json "github.com/goccy/go-json"
)

// Garmin has no recovery score; resting heart rate comes from the daily
// summary and HRV from the overnight average.
func garminRecovery(payload go_json.RawMessage) (*wearable.RecoveryRecord, error) {
	day, err := decode[garmin.RecoveryDay](payload)
	if err != nil {
		return nil, err
	}
	if day.CalendarDate == "" {
		return nil, malformed("garmin recovery day without calendarDate")
	}

	rec := &wearable.RecoveryRecord{Date: day.CalendarDate}

	daily, err := decodePart[garmin.Daily](day.Daily)
	if err != nil {
		return nil, err
	}
	if daily != nil {
		rec.HeartRate = daily.RestingHeartRateInBeatsPerMinute
	}

	hrv, err := decodePart[garmin.HRV](day.HRV)
	if err != nil {
		return nil, err
	}
	if hrv != nil {
		rec.HRV = hrv.LastNightAvg
	}

	return rec, nil
}

func garminSleep(payload go_json.RawMessage) (*wearable.SleepRecord, error) {
	s, err := decode[garmin.Sleep](payload)
	if err != nil {
		return nil, err
	}
	if s.CalendarDate == "" {
		return nil, malformed("garmin sleep %s without calendarDate", s.SummaryID)
	}

	rec := &wearable.SleepRecord{
		Date:            s.CalendarDate,
		Start:           unixTime(s.StartTimeInSeconds),
		DurationMinutes: SecondsToMinutes(sum(s.DurationInSeconds, s.AwakeDurationInSeconds)),
		DeepMinutes:     SecondsToMinutes(s.DeepSleepDurationInSeconds),
		LightMinutes:    SecondsToMinutes(s.LightSleepDurationInSeconds),
		REMMinutes:      SecondsToMinutes(s.REMSleepInSeconds),
		AwakeMinutes:    SecondsToMinutes(s.AwakeDurationInSeconds),
	}
	rec.TotalSleepMinutes = sum(rec.DeepMinutes, rec.LightMinutes, rec.REMMinutes)
	if rec.Start != nil && s.DurationInSeconds != nil {
		rec.End = ptr(rec.Start.Add(time.Duration(*s.DurationInSeconds) * time.Second))
	}
	if s.OverallSleepScore != nil {
		rec.Score = s.OverallSleepScore.Value
	}
	return rec, nil
}

func garminDaily(payload go_json.RawMessage) (*wearable.ActivityRecord, error) {
	d, err := decode[garmin.Daily](payload)
	if err != nil {
		return nil, err
	}
	if d.CalendarDate == "" {
		return nil, malformed("garmin daily %s without calendarDate", d.SummaryID)
	}

	rec := &wearable.ActivityRecord{
		ActivityID:      wearable.DailyActivityID(d.CalendarDate),
		Date:            d.CalendarDate,
		Type:            wearable.ActivityTypeDaily,
		Start:           unixTime(d.StartTimeInSeconds),
		DurationMinutes: SecondsToMinutes(d.ActiveTimeInSeconds),
		DistanceMeters:  d.DistanceInMeters,
		Calories:        sum(d.ActiveKilocalories, d.BMRKilocalories),
		AvgHeartRate:    d.AverageHeartRateInBeatsPerMinute,
		MaxHeartRate:    d.MaxHeartRateInBeatsPerMinute,
	}
	if rec.Calories == nil {
		rec.Calories = d.ActiveKilocalories
	}
	if rec.Start != nil && d.DurationInSeconds != nil {
		rec.End = ptr(rec.Start.Add(time.Duration(*d.DurationInSeconds) * time.Second))
	}
	return rec, nil
}

func garminActivity(payload go_json.RawMessage) (*wearable.ActivityRecord, error) {
	a, err := decode[garmin.Activity](payload)
	if err != nil {
		return nil, err
	}

	id := a.SummaryID
	if a.ActivityID != nil {
		id = strconv.FormatInt(*a.ActivityID, 10)
	}
	start := unixTime(a.StartTimeInSeconds)
	if id == "" || start == nil {
		return nil, malformed("garmin activity missing id or start")
	}

	var offset time.Duration
	if a.StartTimeOffsetInSeconds != nil {
		offset = time.Duration(*a.StartTimeOffsetInSeconds) * time.Second
	}

	rec := &wearable.ActivityRecord{
		ActivityID:      id,
		Date:            start.Add(offset).Format(dateLayout),
		Type:            strings.ToLower(a.ActivityType),
		Start:           start,
		DurationMinutes: SecondsToMinutes(a.DurationInSeconds),
		DistanceMeters:  a.DistanceInMeters,
		Calories:        a.ActiveKilocalories,
		AvgHeartRate:    a.AverageHeartRateInBeatsPerMinute,
		MaxHeartRate:    a.MaxHeartRateInBeatsPerMinute,
	}
	if a.DurationInSeconds != nil {
		rec.End = ptr(start.Add(time.Duration(*a.DurationInSeconds) * time.Second))
	}
	return rec, nil
}

func unixTime(secs *int64) *time.Time {
	if secs == nil {
		return nil
	}
	return ptr(time.Unix(*secs, 0).UTC())
}
