package wearable

import (
	"slices"
	"time"

	go_json "github.com/goccy/go-json"
)

// RawRecord is a single vendor payload tagged with where it came from.
// Payload is kept byte-for-byte as the vendor returned it. Kind names the
// vendor resource when one data type is assembled from several endpoints.
type RawRecord struct {
	Provider Provider
	DataType DataType
	Kind     string
	Payload  go_json.RawMessage
}

// Optional fields are pointers: a nil value means the provider did not report
// the metric, which is distinct from a reported zero.
type RecoveryRecord struct {
	UserID    string             `json:"-"`
	Provider  Provider           `json:"provider"`
	Date      string             `json:"date"`
	Score     *float64           `json:"score,omitempty"`
	HRV       *float64           `json:"hrv,omitempty"`
	HeartRate *float64           `json:"heartRate,omitempty"`
	SkinTemp  *float64           `json:"skinTemp,omitempty"`
	SpO2      *float64           `json:"spo2,omitempty"`
	Raw       go_json.RawMessage `json:"-"`
	SyncedAt  time.Time          `json:"syncedAt"`
}

type SleepRecord struct {
	UserID              string             `json:"-"`
	Provider            Provider           `json:"provider"`
	Date                string             `json:"date"`
	Start               *time.Time         `json:"start,omitempty"`
	End                 *time.Time         `json:"end,omitempty"`
	DurationMinutes     *float64           `json:"durationMinutes,omitempty"`
	TotalSleepMinutes   *float64           `json:"totalSleepMinutes,omitempty"`
	DeepMinutes         *float64           `json:"deepMinutes,omitempty"`
	LightMinutes        *float64           `json:"lightMinutes,omitempty"`
	REMMinutes          *float64           `json:"remMinutes,omitempty"`
	AwakeMinutes        *float64           `json:"awakeMinutes,omitempty"`
	Efficiency          *float64           `json:"efficiency,omitempty"`
	Score               *float64           `json:"score,omitempty"`
	OnsetLatencyMinutes *float64           `json:"onsetLatencyMinutes,omitempty"`
	Raw                 go_json.RawMessage `json:"-"`
	SyncedAt            time.Time          `json:"syncedAt"`
}

type ActivityRecord struct {
	UserID          string             `json:"-"`
	Provider        Provider           `json:"provider"`
	ActivityID      string             `json:"activityId"`
	Date            string             `json:"date"`
	Type            string             `json:"type,omitempty"`
	Start           *time.Time         `json:"start,omitempty"`
	End             *time.Time         `json:"end,omitempty"`
	DurationMinutes *float64           `json:"durationMinutes,omitempty"`
	DistanceMeters  *float64           `json:"distanceMeters,omitempty"`
	Calories        *float64           `json:"calories,omitempty"`
	AvgHeartRate    *float64           `json:"avgHeartRate,omitempty"`
	MaxHeartRate    *float64           `json:"maxHeartRate,omitempty"`
	Strain          *float64           `json:"strain,omitempty"`
	HeartRateZones  map[string]float64 `json:"heartRateZones,omitempty"`
	Raw             go_json.RawMessage `json:"-"`
	SyncedAt        time.Time          `json:"syncedAt"`
}

// ActivityTypeDaily is the activity type of per-day aggregate rows.
const ActivityTypeDaily = "daily"

// DailyActivityID is the synthetic activity id for providers that only report
// per-day aggregates.
func DailyActivityID(date string) string {
	return "daily-" + date
}

// Records is the unified read shape, identical for live and stored reads.
type Records struct {
	Recovery []RecoveryRecord `json:"recovery"`
	Sleep    []SleepRecord    `json:"sleep"`
	Activity []ActivityRecord `json:"activity"`
}

func NewRecords() *Records {
	return &Records{
		Recovery: []RecoveryRecord{},
		Sleep:    []SleepRecord{},
		Activity: []ActivityRecord{},
	}
}

// Clip drops records dated outside dr.
func (r *Records) Clip(dr DateRange) {
	r.Recovery = slices.DeleteFunc(r.Recovery, func(rec RecoveryRecord) bool { return !dr.Contains(rec.Date) })
	r.Sleep = slices.DeleteFunc(r.Sleep, func(rec SleepRecord) bool { return !dr.Contains(rec.Date) })
	r.Activity = slices.DeleteFunc(r.Activity, func(rec ActivityRecord) bool { return !dr.Contains(rec.Date) })
}

func (r *Records) Len() int {
	return len(r.Recovery) + len(r.Sleep) + len(r.Activity)
}
