package fitbit

import go_json "github.com/goccy/go-json"

const (
	KindRecoveryDay = "recovery_day"
	KindSleep       = "sleep"
	KindActivity    = "activity"
)

// Fitbit reports local wall-clock times without an offset on sleep logs.
const (
	LocalTimeLayout  = "2006-01-02T15:04:05.000"
	OffsetTimeLayout = "2006-01-02T15:04:05.000-07:00"
)

// RecoveryDay joins the per-day documents from the HRV, heart rate and SpO2
// range endpoints. Each part is the vendor entry exactly as returned.
type RecoveryDay struct {
	Date  string             `json:"date"`
	HRV   go_json.RawMessage `json:"hrv,omitempty"`
	Heart go_json.RawMessage `json:"heart,omitempty"`
	SpO2  go_json.RawMessage `json:"spo2,omitempty"`
}

type HRVEntry struct {
	DateTime string `json:"dateTime"`
	Value    *struct {
		DailyRmssd *float64 `json:"dailyRmssd"`
		DeepRmssd  *float64 `json:"deepRmssd"`
	} `json:"value"`
}

type HeartEntry struct {
	DateTime string `json:"dateTime"`
	Value    *struct {
		RestingHeartRate *float64 `json:"restingHeartRate"`
	} `json:"value"`
}

type SpO2Entry struct {
	DateTime string `json:"dateTime"`
	Value    *struct {
		Avg *float64 `json:"avg"`
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	} `json:"value"`
}

type hrvResponse struct {
	HRV []go_json.RawMessage `json:"hrv"`
}

type heartResponse struct {
	Heart []go_json.RawMessage `json:"activities-heart"`
}

type LevelSummary struct {
	Minutes *float64 `json:"minutes"`
}

// Sleep durations are in milliseconds; minute fields are already minutes.
type Sleep struct {
	LogID               int64    `json:"logId"`
	DateOfSleep         string   `json:"dateOfSleep"`
	StartTime           string   `json:"startTime"`
	EndTime             string   `json:"endTime"`
	Duration            *float64 `json:"duration"`
	MinutesAsleep       *float64 `json:"minutesAsleep"`
	MinutesAwake        *float64 `json:"minutesAwake"`
	MinutesToFallAsleep *float64 `json:"minutesToFallAsleep"`
	TimeInBed           *float64 `json:"timeInBed"`
	Efficiency          *float64 `json:"efficiency"`
	IsMainSleep         bool     `json:"isMainSleep"`
	Levels              *struct {
		Summary map[string]LevelSummary `json:"summary"`
	} `json:"levels"`
}

type sleepResponse struct {
	Sleep []go_json.RawMessage `json:"sleep"`
}

type HeartRateZone struct {
	Name    string   `json:"name"`
	Minutes *float64 `json:"minutes"`
}

// Activity durations are in milliseconds.
type Activity struct {
	LogID            int64           `json:"logId"`
	ActivityName     string          `json:"activityName"`
	StartTime        string          `json:"startTime"`
	Duration         *float64        `json:"duration"`
	ActiveDuration   *float64        `json:"activeDuration"`
	Calories         *float64        `json:"calories"`
	Distance         *float64        `json:"distance"`
	DistanceUnit     string          `json:"distanceUnit"`
	AverageHeartRate *float64        `json:"averageHeartRate"`
	HeartRateZones   []HeartRateZone `json:"heartRateZones"`
}

type activityListResponse struct {
	Activities []go_json.RawMessage `json:"activities"`
	Pagination struct {
		Next string `json:"next"`
	} `json:"pagination"`
}
