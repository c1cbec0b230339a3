package normalize

import (
	"strings"

	"github.com/artemis-health/artemis/internal/client/whoop"
	"github.com/artemis-health/artemis/internal/wearable"
	go_json "github.com/goccy/go-json"
)

func whoopScored(state whoop.ScoreState) bool {
	return state == "" || state == whoop.ScoreStateScored
}

// whoopRecovery maps a recovery stored without its sleep. With no timezone to
// go on it is dated by the UTC day it was created.
func whoopRecovery(payload go_json.RawMessage) (*wearable.RecoveryRecord, error) {
	r, err := decode[whoop.Recovery](payload)
	if err != nil {
		return nil, err
	}
	return whoopRecoveryOn(r, nil)
}

// whoopRecoverySleep dates a recovery by the local day its sleep ended, the
// same day whoopSleep gives the night.
func whoopRecoverySleep(payload go_json.RawMessage) (*wearable.RecoveryRecord, error) {
	pair, err := decode[whoop.RecoverySleep](payload)
	if err != nil {
		return nil, err
	}
	r, err := decodePart[whoop.Recovery](pair.Recovery)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, malformed("whoop recovery pair without recovery")
	}
	s, err := decodePart[whoop.Sleep](pair.Sleep)
	if err != nil {
		return nil, err
	}
	return whoopRecoveryOn(r, s)
}

func whoopRecoveryOn(r *whoop.Recovery, s *whoop.Sleep) (*wearable.RecoveryRecord, error) {
	if r.CreatedAt.IsZero() {
		return nil, malformed("whoop recovery for cycle %d has no created_at", r.CycleID)
	}
	if !whoopScored(r.ScoreState) || r.Score == nil {
		return nil, ErrSkip
	}

	date := r.CreatedAt.UTC().Format(dateLayout)
	if s != nil && !s.End.IsZero() {
		d, err := localDate(s.End, s.TimezoneOffset)
		if err != nil {
			return nil, malformed("whoop recovery for cycle %d: %v", r.CycleID, err)
		}
		date = d
	}

	return &wearable.RecoveryRecord{
		Date:      date,
		Score:     r.Score.RecoveryScore,
		HRV:       r.Score.HRVRmssdMilli,
		HeartRate: r.Score.RestingHeartRate,
		SkinTemp:  r.Score.SkinTempCelsius,
		SpO2:      r.Score.SpO2Percentage,
	}, nil
}

// whoopSleep dates a sleep by the local day the user woke up. Naps are not
// the night's sleep and are skipped.
func whoopSleep(payload go_json.RawMessage) (*wearable.SleepRecord, error) {
	s, err := decode[whoop.Sleep](payload)
	if err != nil {
		return nil, err
	}
	if s.End.IsZero() {
		return nil, malformed("whoop sleep %s has no end", s.ID)
	}
	if s.Nap || !whoopScored(s.ScoreState) || s.Score == nil {
		return nil, ErrSkip
	}

	date, err := localDate(s.End, s.TimezoneOffset)
	if err != nil {
		return nil, malformed("whoop sleep %s: %v", s.ID, err)
	}

	rec := &wearable.SleepRecord{
		Date:       date,
		Start:      ptr(s.Start),
		End:        ptr(s.End),
		Efficiency: s.Score.SleepEfficiencyPercentage,
		Score:      s.Score.SleepPerformancePercentage,
	}
	if st := s.Score.StageSummary; st != nil {
		rec.DurationMinutes = MillisToMinutes(st.TotalInBedTimeMilli)
		rec.DeepMinutes = MillisToMinutes(st.TotalSlowWaveSleepTimeMilli)
		rec.LightMinutes = MillisToMinutes(st.TotalLightSleepTimeMilli)
		rec.REMMinutes = MillisToMinutes(st.TotalREMSleepTimeMilli)
		rec.AwakeMinutes = MillisToMinutes(st.TotalAwakeTimeMilli)
		rec.TotalSleepMinutes = sum(rec.DeepMinutes, rec.LightMinutes, rec.REMMinutes)
	}
	return rec, nil
}

var whoopZoneNames = []string{"zone0", "zone1", "zone2", "zone3", "zone4", "zone5"}

func whoopWorkout(payload go_json.RawMessage) (*wearable.ActivityRecord, error) {
	w, err := decode[whoop.Workout](payload)
	if err != nil {
		return nil, err
	}
	if w.ID == "" || w.Start.IsZero() {
		return nil, malformed("whoop workout missing id or start")
	}
	if !whoopScored(w.ScoreState) || w.Score == nil {
		return nil, ErrSkip
	}

	date, err := localDate(w.Start, w.TimezoneOffset)
	if err != nil {
		return nil, malformed("whoop workout %s: %v", w.ID, err)
	}

	rec := &wearable.ActivityRecord{
		ActivityID:     w.ID,
		Date:           date,
		Type:           strings.ToLower(w.SportName),
		Start:          ptr(w.Start),
		DistanceMeters: w.Score.DistanceMeter,
		Calories:       KilojoulesToKcal(w.Score.Kilojoule),
		AvgHeartRate:   w.Score.AverageHeartRate,
		MaxHeartRate:   w.Score.MaxHeartRate,
		Strain:         w.Score.Strain,
	}
	if !w.End.IsZero() {
		rec.End = ptr(w.End)
		rec.DurationMinutes = minutesBetween(rec.Start, rec.End)
	}
	if z := w.Score.ZoneDurations; z != nil {
		rec.HeartRateZones = zoneMinutes(whoopZoneNames, []*float64{
			z.ZoneZeroMilli, z.ZoneOneMilli, z.ZoneTwoMilli, z.ZoneThreeMilli, z.ZoneFourMilli, z.ZoneFiveMilli,
		}, MillisToMinutes)
	}
	return rec, nil
}

// whoopCycle maps a physiological cycle onto the day's aggregate activity.
func whoopCycle(payload go_json.RawMessage) (*wearable.ActivityRecord, error) {
	c, err := decode[whoop.Cycle](payload)
	if err != nil {
		return nil, err
	}
	if c.Start.IsZero() {
		return nil, malformed("whoop cycle %d has no start", c.ID)
	}
	if !whoopScored(c.ScoreState) || c.Score == nil {
		return nil, ErrSkip
	}

	date, err := localDate(c.Start, c.TimezoneOffset)
	if err != nil {
		return nil, malformed("whoop cycle %d: %v", c.ID, err)
	}

	rec := &wearable.ActivityRecord{
		ActivityID:   wearable.DailyActivityID(date),
		Date:         date,
		Type:         wearable.ActivityTypeDaily,
		Start:        ptr(c.Start),
		End:          c.End,
		Calories:     KilojoulesToKcal(c.Score.Kilojoule),
		AvgHeartRate: c.Score.AverageHeartRate,
		MaxHeartRate: c.Score.MaxHeartRate,
		Strain:       c.Score.Strain,
	}
	rec.DurationMinutes = minutesBetween(rec.Start, rec.End)
	return rec, nil
}

// zoneMinutes pairs zone names with converted durations, leaving out zones
// the provider did not report. It returns nil when no zone was reported.
func zoneMinutes(names []string, values []*float64, convert func(*float64) *float64) map[string]float64 {
	var out map[string]float64
	for i, v := range values {
		if m := convert(v); m != nil {
			if out == nil {
				out = make(map[string]float64, len(values))
			}
			out[names[i]] = *m
		}
	}
	return out
}
