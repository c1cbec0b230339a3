package garmin

import go_json "github.com/goccy/go-json"

const (
	KindRecoveryDay = "recovery_day"
	KindSleep       = "sleep"
	KindDaily       = "daily"
	KindActivity    = "activity"
)

// RecoveryDay joins the daily summary (resting heart rate) with the overnight
// HRV summary for one calendar date. Both parts are kept as Garmin sent them.
type RecoveryDay struct {
	CalendarDate string             `json:"calendarDate"`
	Daily        go_json.RawMessage `json:"daily,omitempty"`
	HRV          go_json.RawMessage `json:"hrv,omitempty"`
}

// Garmin reports every duration in seconds and every time as Unix seconds
// with a separate offset to local time.
type Daily struct {
	SummaryID                        string   `json:"summaryId"`
	CalendarDate                     string   `json:"calendarDate"`
	StartTimeInSeconds               *int64   `json:"startTimeInSeconds"`
	StartTimeOffsetInSeconds         *int64   `json:"startTimeOffsetInSeconds"`
	DurationInSeconds                *float64 `json:"durationInSeconds"`
	ActiveTimeInSeconds              *float64 `json:"activeTimeInSeconds"`
	Steps                            *float64 `json:"steps"`
	DistanceInMeters                 *float64 `json:"distanceInMeters"`
	ActiveKilocalories               *float64 `json:"activeKilocalories"`
	BMRKilocalories                  *float64 `json:"bmrKilocalories"`
	AverageHeartRateInBeatsPerMinute *float64 `json:"averageHeartRateInBeatsPerMinute"`
	MaxHeartRateInBeatsPerMinute     *float64 `json:"maxHeartRateInBeatsPerMinute"`
	RestingHeartRateInBeatsPerMinute *float64 `json:"restingHeartRateInBeatsPerMinute"`
}

type HRV struct {
	SummaryID    string   `json:"summaryId"`
	CalendarDate string   `json:"calendarDate"`
	LastNightAvg *float64 `json:"lastNightAvg"`
}

type Sleep struct {
	SummaryID                   string   `json:"summaryId"`
	CalendarDate                string   `json:"calendarDate"`
	StartTimeInSeconds          *int64   `json:"startTimeInSeconds"`
	StartTimeOffsetInSeconds    *int64   `json:"startTimeOffsetInSeconds"`
	DurationInSeconds           *float64 `json:"durationInSeconds"`
	DeepSleepDurationInSeconds  *float64 `json:"deepSleepDurationInSeconds"`
	LightSleepDurationInSeconds *float64 `json:"lightSleepDurationInSeconds"`
	REMSleepInSeconds           *float64 `json:"remSleepInSeconds"`
	AwakeDurationInSeconds      *float64 `json:"awakeDurationInSeconds"`
	OverallSleepScore           *struct {
		Value *float64 `json:"value"`
	} `json:"overallSleepScore"`
}

type Activity struct {
	SummaryID                        string   `json:"summaryId"`
	ActivityID                       *int64   `json:"activityId"`
	ActivityType                     string   `json:"activityType"`
	StartTimeInSeconds               *int64   `json:"startTimeInSeconds"`
	StartTimeOffsetInSeconds         *int64   `json:"startTimeOffsetInSeconds"`
	DurationInSeconds                *float64 `json:"durationInSeconds"`
	DistanceInMeters                 *float64 `json:"distanceInMeters"`
	ActiveKilocalories               *float64 `json:"activeKilocalories"`
	AverageHeartRateInBeatsPerMinute *float64 `json:"averageHeartRateInBeatsPerMinute"`
	MaxHeartRateInBeatsPerMinute     *float64 `json:"maxHeartRateInBeatsPerMinute"`
}

type userID struct {
	UserID string `json:"userId"`
}
