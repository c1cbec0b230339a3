package normalize_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/artemis-health/artemis/internal/client/fitbit"
	"github.com/artemis-health/artemis/internal/client/garmin"
	"github.com/artemis-health/artemis/internal/client/oura"
	"github.com/artemis-health/artemis/internal/client/whoop"
	"github.com/artemis-health/artemis/internal/normalize"
	"github.com/artemis-health/artemis/internal/wearable"
	go_json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

func f(v float64) *float64 { return &v }

func raw(p wearable.Provider, dt wearable.DataType, kind, payload string) wearable.RawRecord {
	return wearable.RawRecord{Provider: p, DataType: dt, Kind: kind, Payload: go_json.RawMessage(payload)}
}

func TestWhoopRecovery_Scenario(t *testing.T) {
	t.Parallel()

	in := raw(wearable.ProviderWhoop, wearable.DataTypeRecovery, whoop.KindRecovery,
		`{"cycle_id":93845,"created_at":"2024-01-15T11:25:44.774Z","score_state":"SCORED",`+
			`"score":{"recovery_score":67,"hrv_rmssd_milli":54,"resting_heart_rate":52}}`)

	got, err := normalize.Recovery(in)
	if err != nil {
		t.Fatalf("Recovery() error = %v", err)
	}

	want := &wearable.RecoveryRecord{
		Provider:  wearable.ProviderWhoop,
		Date:      "2024-01-15",
		Score:     f(67),
		HRV:       f(54),
		HeartRate: f(52),
		Raw:       in.Payload,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Recovery() mismatch (-want +got):\n%s", diff)
	}

	out, err := go_json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]any
	if err := go_json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for key, want := range map[string]any{"score": 67.0, "hrv": 54.0, "heartRate": 52.0, "date": "2024-01-15"} {
		if fields[key] != want {
			t.Errorf("json %s = %v, want %v", key, fields[key], want)
		}
	}
	for _, key := range []string{"skinTemp", "spo2"} {
		if _, ok := fields[key]; ok {
			t.Errorf("json has %s, want absent", key)
		}
	}
}

func TestWhoopRecovery_DatedOnLocalWakeDay(t *testing.T) {
	t.Parallel()

	const recovery = `{"cycle_id":7,"sleep_id":"s7","created_at":%q,"score_state":"SCORED","score":{"recovery_score":70}}`
	const sleep = `{"id":"s7","start":%q,"end":%q,"timezone_offset":%q,"score_state":"SCORED","score":{}}`

	tests := []struct {
		name      string
		createdAt string
		sleep     string
		want      string
	}{
		{
			name:      "east of UTC",
			createdAt: "2024-01-14T21:30:00Z",
			sleep:     fmt.Sprintf(sleep, "2024-01-14T13:00:00Z", "2024-01-14T21:00:00Z", "+10:00"),
			want:      "2024-01-15",
		},
		{
			name:      "west of UTC",
			createdAt: "2024-01-16T06:30:00Z",
			sleep:     fmt.Sprintf(sleep, "2024-01-15T22:00:00Z", "2024-01-16T06:00:00Z", "-08:00"),
			want:      "2024-01-15",
		},
		{
			name:      "sleep missing",
			createdAt: "2024-01-14T21:30:00Z",
			want:      "2024-01-14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload := `{"recovery":` + fmt.Sprintf(recovery, tt.createdAt)
			if tt.sleep != "" {
				payload += `,"sleep":` + tt.sleep
			}
			payload += "}"

			got, err := normalize.Recovery(raw(wearable.ProviderWhoop, wearable.DataTypeRecovery, whoop.KindRecoverySleep, payload))
			if err != nil {
				t.Fatalf("Recovery() error = %v", err)
			}
			if got.Date != tt.want {
				t.Errorf("Date = %s, want %s", got.Date, tt.want)
			}

			if tt.sleep == "" {
				return
			}
			night, err := normalize.Sleep(raw(wearable.ProviderWhoop, wearable.DataTypeSleep, whoop.KindSleep, tt.sleep))
			if err != nil {
				t.Fatalf("Sleep() error = %v", err)
			}
			if night.Date != got.Date {
				t.Errorf("sleep dated %s, recovery dated %s", night.Date, got.Date)
			}
		})
	}
}

func TestWhoopWorkout_KilojoulesToKcal(t *testing.T) {
	t.Parallel()

	in := raw(wearable.ProviderWhoop, wearable.DataTypeActivity, whoop.KindWorkout,
		`{"id":"ecfc6a15-4661-442f-a9a4-f160dd7afae8","start":"2024-01-15T13:00:00Z","end":"2024-01-15T14:00:00Z",`+
			`"timezone_offset":"-05:00","sport_name":"Running","score_state":"SCORED",`+
			`"score":{"strain":8.2,"average_heart_rate":140,"max_heart_rate":175,"kilojoule":4184,`+
			`"zone_durations":{"zone_one_milli":600000,"zone_two_milli":1200000}}}`)

	got, err := normalize.Activity(in)
	if err != nil {
		t.Fatalf("Activity() error = %v", err)
	}
	if got.Calories == nil || *got.Calories != 1000 {
		t.Errorf("Calories = %v, want 1000", got.Calories)
	}
	if got.DurationMinutes == nil || *got.DurationMinutes != 60 {
		t.Errorf("DurationMinutes = %v, want 60", got.DurationMinutes)
	}
	if got.Date != "2024-01-15" || got.Type != "running" || got.ActivityID != "ecfc6a15-4661-442f-a9a4-f160dd7afae8" {
		t.Errorf("got date=%s type=%s id=%s", got.Date, got.Type, got.ActivityID)
	}
	if got.DistanceMeters != nil {
		t.Errorf("DistanceMeters = %v, want absent", *got.DistanceMeters)
	}
	if diff := cmp.Diff(map[string]float64{"zone1": 10, "zone2": 20}, got.HeartRateZones); diff != "" {
		t.Errorf("HeartRateZones mismatch (-want +got):\n%s", diff)
	}
}

func TestWhoopSleep_MillisToMinutes(t *testing.T) {
	t.Parallel()

	in := raw(wearable.ProviderWhoop, wearable.DataTypeSleep, whoop.KindSleep,
		`{"id":"s1","start":"2024-01-15T03:00:00Z","end":"2024-01-15T11:00:00Z","timezone_offset":"-05:00",`+
			`"nap":false,"score_state":"SCORED","score":{"sleep_performance_percentage":91,`+
			`"sleep_efficiency_percentage":93.5,"stage_summary":{"total_in_bed_time_milli":28800000,`+
			`"total_awake_time_milli":1800000,"total_light_sleep_time_milli":14400000,`+
			`"total_slow_wave_sleep_time_milli":6000000,"total_rem_sleep_time_milli":6600000}}}`)

	got, err := normalize.Sleep(in)
	if err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}

	start := time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
	want := &wearable.SleepRecord{
		Provider:          wearable.ProviderWhoop,
		Date:              "2024-01-15",
		Start:             &start,
		End:               &end,
		DurationMinutes:   f(480),
		TotalSleepMinutes: f(450),
		DeepMinutes:       f(100),
		LightMinutes:      f(240),
		REMMinutes:        f(110),
		AwakeMinutes:      f(30),
		Efficiency:        f(93.5),
		Score:             f(91),
		Raw:               in.Payload,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sleep() mismatch (-want +got):\n%s", diff)
	}
}

func TestWhoop_SkipsUnscoredAndNaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   wearable.RawRecord
	}{
		{
			name: "pending recovery",
			in: raw(wearable.ProviderWhoop, wearable.DataTypeRecovery, whoop.KindRecovery,
				`{"cycle_id":1,"created_at":"2024-01-15T11:00:00Z","score_state":"PENDING_SCORE"}`),
		},
		{
			name: "nap",
			in: raw(wearable.ProviderWhoop, wearable.DataTypeSleep, whoop.KindSleep,
				`{"id":"n","start":"2024-01-15T18:00:00Z","end":"2024-01-15T18:30:00Z","nap":true,"score_state":"SCORED","score":{}}`),
		},
		{
			name: "unscorable cycle",
			in: raw(wearable.ProviderWhoop, wearable.DataTypeActivity, whoop.KindCycle,
				`{"id":1,"start":"2024-01-15T04:00:00Z","score_state":"UNSCORABLE"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := normalize.Batch(t.Context(), "u1", time.Now(), []wearable.RawRecord{tt.in})
			if res.Skipped != 1 || res.Malformed != 0 || res.Len() != 0 {
				t.Errorf("Batch() skipped=%d malformed=%d len=%d, want 1/0/0", res.Skipped, res.Malformed, res.Len())
			}
		})
	}
}

func TestOura_SecondsToMinutes(t *testing.T) {
	t.Parallel()

	in := raw(wearable.ProviderOura, wearable.DataTypeSleep, oura.KindSleepDay,
		`{"day":"2024-01-15","period":{"day":"2024-01-15","type":"long_sleep","time_in_bed":28800,`+
			`"total_sleep_duration":27000,"deep_sleep_duration":5400,"light_sleep_duration":14400,`+
			`"rem_sleep_duration":7200,"awake_time":1800,"efficiency":94,"latency":600},`+
			`"daily_sleep":{"day":"2024-01-15","score":82}}`)

	got, err := normalize.Sleep(in)
	if err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	checks := map[string]struct {
		got  *float64
		want float64
	}{
		"duration": {got.DurationMinutes, 480},
		"total":    {got.TotalSleepMinutes, 450},
		"deep":     {got.DeepMinutes, 90},
		"light":    {got.LightMinutes, 240},
		"rem":      {got.REMMinutes, 120},
		"awake":    {got.AwakeMinutes, 30},
		"latency":  {got.OnsetLatencyMinutes, 10},
		"score":    {got.Score, 82},
	}
	for name, c := range checks {
		if c.got == nil || *c.got != c.want {
			t.Errorf("%s = %v, want %v", name, c.got, c.want)
		}
	}
	if got.Start != nil {
		t.Errorf("Start = %v, want absent", got.Start)
	}
}

func TestOuraRecovery_PartialDay(t *testing.T) {
	t.Parallel()

	in := raw(wearable.ProviderOura, wearable.DataTypeRecovery, oura.KindRecoveryDay,
		`{"day":"2024-01-15","readiness":{"day":"2024-01-15","score":81,"temperature_deviation":-0.2}}`)

	got, err := normalize.Recovery(in)
	if err != nil {
		t.Fatalf("Recovery() error = %v", err)
	}
	want := &wearable.RecoveryRecord{
		Provider: wearable.ProviderOura,
		Date:     "2024-01-15",
		Score:    f(81),
		Raw:      in.Payload,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Recovery() mismatch (-want +got):\n%s", diff)
	}
}

func TestFitbitActivity_DistanceUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		unit string
		want *float64
	}{
		{name: "default metric", unit: "", want: f(5000)},
		{name: "kilometer", unit: "Kilometer", want: f(5000)},
		{name: "mile", unit: "Mile", want: f(8046.72)},
		{name: "unknown", unit: "furlong", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := raw(wearable.ProviderFitbit, wearable.DataTypeActivity, fitbit.KindActivity,
				`{"logId":42,"activityName":"Run","startTime":"2024-01-15T07:00:00.000-05:00",`+
					`"duration":1800000,"calories":300,"distance":5,"distanceUnit":"`+tt.unit+`"}`)
			got, err := normalize.Activity(in)
			if err != nil {
				t.Fatalf("Activity() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got.DistanceMeters); diff != "" {
				t.Errorf("DistanceMeters mismatch (-want +got):\n%s", diff)
			}
			if got.DurationMinutes == nil || *got.DurationMinutes != 30 {
				t.Errorf("DurationMinutes = %v, want 30", got.DurationMinutes)
			}
			if got.ActivityID != "42" || got.Date != "2024-01-15" {
				t.Errorf("ActivityID=%s Date=%s, want 42 2024-01-15", got.ActivityID, got.Date)
			}
		})
	}
}

func TestFitbitSleep_SkipsNonMain(t *testing.T) {
	t.Parallel()

	in := raw(wearable.ProviderFitbit, wearable.DataTypeSleep, fitbit.KindSleep,
		`{"logId":1,"dateOfSleep":"2024-01-15","isMainSleep":false,"duration":1800000}`)
	if _, err := normalize.Sleep(in); !errors.Is(err, normalize.ErrSkip) {
		t.Errorf("Sleep() error = %v, want ErrSkip", err)
	}
}

func TestGarminDaily(t *testing.T) {
	t.Parallel()

	in := raw(wearable.ProviderGarmin, wearable.DataTypeActivity, garmin.KindDaily,
		`{"summaryId":"d","calendarDate":"2024-01-15","startTimeInSeconds":1705294800,"durationInSeconds":86400,`+
			`"activeTimeInSeconds":3600,"distanceInMeters":8000,"activeKilocalories":600,"bmrKilocalories":1700}`)

	got, err := normalize.Activity(in)
	if err != nil {
		t.Fatalf("Activity() error = %v", err)
	}
	if got.ActivityID != "daily-2024-01-15" || got.Type != wearable.ActivityTypeDaily {
		t.Errorf("ActivityID=%s Type=%s", got.ActivityID, got.Type)
	}
	if got.Calories == nil || *got.Calories != 2300 {
		t.Errorf("Calories = %v, want 2300", got.Calories)
	}
	if got.DurationMinutes == nil || *got.DurationMinutes != 60 {
		t.Errorf("DurationMinutes = %v, want 60", got.DurationMinutes)
	}
	if got.AvgHeartRate != nil {
		t.Errorf("AvgHeartRate = %v, want absent", *got.AvgHeartRate)
	}
}

func TestBatch_IsolatesMalformedPayloads(t *testing.T) {
	t.Parallel()

	good := raw(wearable.ProviderWhoop, wearable.DataTypeRecovery, whoop.KindRecovery,
		`{"cycle_id":1,"created_at":"2024-01-15T11:00:00Z","score_state":"SCORED","score":{"recovery_score":50}}`)
	syncedAt := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	res := normalize.Batch(t.Context(), "user-1", syncedAt, []wearable.RawRecord{
		raw(wearable.ProviderWhoop, wearable.DataTypeRecovery, whoop.KindRecovery, `{"cycle_id":`),
		good,
		raw(wearable.ProviderOura, wearable.DataTypeSleep, "unknown_kind", `{}`),
		raw(wearable.ProviderGarmin, wearable.DataTypeSleep, garmin.KindSleep, `{"summaryId":"x"}`),
	})

	if res.Malformed != 3 {
		t.Errorf("Malformed = %d, want 3", res.Malformed)
	}
	if len(res.Recovery) != 1 {
		t.Fatalf("len(Recovery) = %d, want 1", len(res.Recovery))
	}
	rec := res.Recovery[0]
	if rec.UserID != "user-1" || !rec.SyncedAt.Equal(syncedAt) {
		t.Errorf("UserID=%s SyncedAt=%v, want user-1 %v", rec.UserID, rec.SyncedAt, syncedAt)
	}
	if !bytes.Equal(rec.Raw, good.Payload) {
		t.Errorf("Raw = %s, want payload kept verbatim", rec.Raw)
	}
}

func TestUnitConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(*float64) *float64
		in   *float64
		want *float64
	}{
		{name: "kJ to kcal", fn: normalize.KilojoulesToKcal, in: f(4184), want: f(1000)},
		{name: "ms to min", fn: normalize.MillisToMinutes, in: f(28800000), want: f(480)},
		{name: "s to min", fn: normalize.SecondsToMinutes, in: f(28800), want: f(480)},
		{name: "absent stays absent", fn: normalize.KilojoulesToKcal, in: nil, want: nil},
		{name: "zero stays zero", fn: normalize.MillisToMinutes, in: f(0), want: f(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, tt.fn(tt.in)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
