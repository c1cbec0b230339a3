package whoop

import (
	"time"

	go_json "github.com/goccy/go-json"
)

// Kinds tag raw records so the normalizer knows which shape to decode.
const (
	KindRecovery      = "recovery"
	KindRecoverySleep = "recovery_sleep"
	KindSleep         = "sleep"
	KindWorkout       = "workout"
	KindCycle         = "cycle"
)

type UserProfile struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Score fields are pointers throughout: WHOOP omits metrics it could not
// measure and a missing value must not read as zero.

type Cycle struct {
	ID             int64       `json:"id"`
	UserID         int64       `json:"user_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Start          time.Time   `json:"start"`
	End            *time.Time  `json:"end"`
	TimezoneOffset string      `json:"timezone_offset"`
	ScoreState     ScoreState  `json:"score_state"`
	Score          *CycleScore `json:"score"`
}

type CycleScore struct {
	Strain           *float64 `json:"strain"`
	Kilojoule        *float64 `json:"kilojoule"`
	AverageHeartRate *float64 `json:"average_heart_rate"`
	MaxHeartRate     *float64 `json:"max_heart_rate"`
}

type Recovery struct {
	CycleID    int64          `json:"cycle_id"`
	SleepID    string         `json:"sleep_id"`
	UserID     int64          `json:"user_id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ScoreState ScoreState     `json:"score_state"`
	Score      *RecoveryScore `json:"score"`
}

// RecoverySleep pairs a recovery with the sleep it was scored from. The
// recovery itself carries no timezone; the sleep does. Each part is the vendor
// document exactly as returned.
type RecoverySleep struct {
	Recovery go_json.RawMessage `json:"recovery"`
	Sleep    go_json.RawMessage `json:"sleep,omitempty"`
}

type RecoveryScore struct {
	UserCalibrating  bool     `json:"user_calibrating"`
	RecoveryScore    *float64 `json:"recovery_score"`
	RestingHeartRate *float64 `json:"resting_heart_rate"`
	HRVRmssdMilli    *float64 `json:"hrv_rmssd_milli"`
	SpO2Percentage   *float64 `json:"spo2_percentage"`
	SkinTempCelsius  *float64 `json:"skin_temp_celsius"`
}

type Sleep struct {
	ID             string      `json:"id"`
	CycleID        int64       `json:"cycle_id"`
	UserID         int64       `json:"user_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	TimezoneOffset string      `json:"timezone_offset"`
	Nap            bool        `json:"nap"`
	ScoreState     ScoreState  `json:"score_state"`
	Score          *SleepScore `json:"score"`
}

type SleepScore struct {
	StageSummary               *SleepStages `json:"stage_summary"`
	RespiratoryRate            *float64     `json:"respiratory_rate"`
	SleepPerformancePercentage *float64     `json:"sleep_performance_percentage"`
	SleepConsistencyPercentage *float64     `json:"sleep_consistency_percentage"`
	SleepEfficiencyPercentage  *float64     `json:"sleep_efficiency_percentage"`
}

type SleepStages struct {
	TotalInBedTimeMilli         *float64 `json:"total_in_bed_time_milli"`
	TotalAwakeTimeMilli         *float64 `json:"total_awake_time_milli"`
	TotalNoDataTimeMilli        *float64 `json:"total_no_data_time_milli"`
	TotalLightSleepTimeMilli    *float64 `json:"total_light_sleep_time_milli"`
	TotalSlowWaveSleepTimeMilli *float64 `json:"total_slow_wave_sleep_time_milli"`
	TotalREMSleepTimeMilli      *float64 `json:"total_rem_sleep_time_milli"`
	SleepCycleCount             *float64 `json:"sleep_cycle_count"`
	DisturbanceCount            *float64 `json:"disturbance_count"`
}

type Workout struct {
	ID             string        `json:"id"`
	UserID         int64         `json:"user_id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	TimezoneOffset string        `json:"timezone_offset"`
	SportName      string        `json:"sport_name"`
	ScoreState     ScoreState    `json:"score_state"`
	Score          *WorkoutScore `json:"score"`
}

type WorkoutScore struct {
	Strain              *float64      `json:"strain"`
	AverageHeartRate    *float64      `json:"average_heart_rate"`
	MaxHeartRate        *float64      `json:"max_heart_rate"`
	Kilojoule           *float64      `json:"kilojoule"`
	PercentRecorded     *float64      `json:"percent_recorded"`
	DistanceMeter       *float64      `json:"distance_meter"`
	AltitudeGainMeter   *float64      `json:"altitude_gain_meter"`
	AltitudeChangeMeter *float64      `json:"altitude_change_meter"`
	ZoneDurations       *WorkoutZones `json:"zone_durations"`
}

type WorkoutZones struct {
	ZoneZeroMilli  *float64 `json:"zone_zero_milli"`
	ZoneOneMilli   *float64 `json:"zone_one_milli"`
	ZoneTwoMilli   *float64 `json:"zone_two_milli"`
	ZoneThreeMilli *float64 `json:"zone_three_milli"`
	ZoneFourMilli  *float64 `json:"zone_four_milli"`
	ZoneFiveMilli  *float64 `json:"zone_five_milli"`
}
