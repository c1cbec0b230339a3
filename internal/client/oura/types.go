package oura

import (
	"time"

	go_json "github.com/goccy/go-json"
)

const (
	KindRecoveryDay   = "recovery_day"
	KindSleepDay      = "sleep_day"
	KindDailyActivity = "daily_activity"
	KindWorkout       = "workout"
)

// SleepTypeLong marks the main sleep period of a night.
const SleepTypeLong = "long_sleep"

type Page struct {
	Data      []go_json.RawMessage `json:"data"`
	NextToken *string              `json:"next_token"`
}

type PersonalInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// RecoveryDay joins the documents Oura splits one morning's recovery across.
// Each part is the vendor document exactly as returned.
type RecoveryDay struct {
	Day       string             `json:"day"`
	Readiness go_json.RawMessage `json:"readiness,omitempty"`
	Sleep     go_json.RawMessage `json:"sleep,omitempty"`
	SpO2      go_json.RawMessage `json:"spo2,omitempty"`
}

// SleepDay pairs the main sleep period with the day's sleep score.
type SleepDay struct {
	Day        string             `json:"day"`
	Period     go_json.RawMessage `json:"period,omitempty"`
	DailySleep go_json.RawMessage `json:"daily_sleep,omitempty"`
}

type DailyReadiness struct {
	ID                   string   `json:"id"`
	Day                  string   `json:"day"`
	Score                *float64 `json:"score"`
	TemperatureDeviation *float64 `json:"temperature_deviation"`
}

// SleepPeriod durations are in seconds.
type SleepPeriod struct {
	ID                 string     `json:"id"`
	Day                string     `json:"day"`
	Type               string     `json:"type"`
	BedtimeStart       *time.Time `json:"bedtime_start"`
	BedtimeEnd         *time.Time `json:"bedtime_end"`
	TimeInBed          *float64   `json:"time_in_bed"`
	TotalSleepDuration *float64   `json:"total_sleep_duration"`
	DeepSleepDuration  *float64   `json:"deep_sleep_duration"`
	LightSleepDuration *float64   `json:"light_sleep_duration"`
	REMSleepDuration   *float64   `json:"rem_sleep_duration"`
	AwakeTime          *float64   `json:"awake_time"`
	Efficiency         *float64   `json:"efficiency"`
	Latency            *float64   `json:"latency"`
	AverageHRV         *float64   `json:"average_hrv"`
	LowestHeartRate    *float64   `json:"lowest_heart_rate"`
	AverageHeartRate   *float64   `json:"average_heart_rate"`
}

type DailySleep struct {
	ID    string   `json:"id"`
	Day   string   `json:"day"`
	Score *float64 `json:"score"`
}

type DailySpO2 struct {
	ID             string `json:"id"`
	Day            string `json:"day"`
	SpO2Percentage *struct {
		Average *float64 `json:"average"`
	} `json:"spo2_percentage"`
}

type DailyActivity struct {
	ID                        string     `json:"id"`
	Day                       string     `json:"day"`
	Score                     *float64   `json:"score"`
	ActiveCalories            *float64   `json:"active_calories"`
	TotalCalories             *float64   `json:"total_calories"`
	Steps                     *float64   `json:"steps"`
	EquivalentWalkingDistance *float64   `json:"equivalent_walking_distance"`
	HighActivityTime          *float64   `json:"high_activity_time"`
	MediumActivityTime        *float64   `json:"medium_activity_time"`
	LowActivityTime           *float64   `json:"low_activity_time"`
	Timestamp                 *time.Time `json:"timestamp"`
}

type Workout struct {
	ID            string     `json:"id"`
	Day           string     `json:"day"`
	Activity      string     `json:"activity"`
	Calories      *float64   `json:"calories"`
	Distance      *float64   `json:"distance"`
	Intensity     string     `json:"intensity"`
	StartDatetime *time.Time `json:"start_datetime"`
	EndDatetime   *time.Time `json:"end_datetime"`
}
