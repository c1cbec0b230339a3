// Package normalize maps provider payloads onto the unified record shapes.
// Every mapping is a pure function of one payload; the batch helpers attach
// ownership and skip what cannot be mapped without failing the rest.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artemis-health/artemis/internal/client/fitbit"
	"github.com/artemis-health/artemis/internal/client/garmin"
	"github.com/artemis-health/artemis/internal/client/oura"
	"github.com/artemis-health/artemis/internal/client/whoop"
	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xslog"
	go_json "github.com/goccy/go-json"
)

const dateLayout = wearable.DateLayout

var (
	// ErrSkip marks a well-formed payload that carries nothing to store yet,
	// such as an unscored Whoop cycle or a nap.
	ErrSkip = errors.New("payload skipped")

	ErrMalformed = errors.New("malformed payload")
)

type (
	recoveryFunc func(go_json.RawMessage) (*wearable.RecoveryRecord, error)
	sleepFunc    func(go_json.RawMessage) (*wearable.SleepRecord, error)
	activityFunc func(go_json.RawMessage) (*wearable.ActivityRecord, error)
)

type kindKey struct {
	provider wearable.Provider
	kind     string
}

// Recovery maps one recovery payload. The returned record has Provider and
// Raw set; ownership and sync time are filled in by Batch.
func Recovery(raw wearable.RawRecord) (*wearable.RecoveryRecord, error) {
	fn, ok := recoveryFuncs[kindKey{raw.Provider, raw.Kind}]
	if !ok {
		return nil, unknownKind(raw)
	}
	rec, err := fn(raw.Payload)
	if err != nil {
		return nil, err
	}
	rec.Provider = raw.Provider
	rec.Raw = raw.Payload
	return rec, nil
}

func Sleep(raw wearable.RawRecord) (*wearable.SleepRecord, error) {
	fn, ok := sleepFuncs[kindKey{raw.Provider, raw.Kind}]
	if !ok {
		return nil, unknownKind(raw)
	}
	rec, err := fn(raw.Payload)
	if err != nil {
		return nil, err
	}
	rec.Provider = raw.Provider
	rec.Raw = raw.Payload
	return rec, nil
}

func Activity(raw wearable.RawRecord) (*wearable.ActivityRecord, error) {
	fn, ok := activityFuncs[kindKey{raw.Provider, raw.Kind}]
	if !ok {
		return nil, unknownKind(raw)
	}
	rec, err := fn(raw.Payload)
	if err != nil {
		return nil, err
	}
	rec.Provider = raw.Provider
	rec.Raw = raw.Payload
	return rec, nil
}

func unknownKind(raw wearable.RawRecord) error {
	return fmt.Errorf("%w: no mapping for %s %s/%q", ErrMalformed, raw.Provider, raw.DataType, raw.Kind)
}

// decode unmarshals a payload, tagging failures as malformed.
func decode[T any](payload go_json.RawMessage) (*T, error) {
	var v T
	if err := go_json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &v, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Result holds the records a batch produced and what it dropped.
type Result struct {
	Recovery  []wearable.RecoveryRecord
	Sleep     []wearable.SleepRecord
	Activity  []wearable.ActivityRecord
	Skipped   int
	Malformed int
}

func (r *Result) Len() int {
	return len(r.Recovery) + len(r.Sleep) + len(r.Activity)
}

// Records converts the result into the unified read shape.
func (r *Result) Records() *wearable.Records {
	out := wearable.NewRecords()
	out.Recovery = append(out.Recovery, r.Recovery...)
	out.Sleep = append(out.Sleep, r.Sleep...)
	out.Activity = append(out.Activity, r.Activity...)
	return out
}

// Batch normalizes raw records for one user. Malformed payloads are logged,
// counted and left out; they never fail the batch.
func Batch(ctx context.Context, userID string, syncedAt time.Time, raws []wearable.RawRecord) *Result {
	logger := xslog.FromContext(ctx)
	res := &Result{}

	for _, raw := range raws {
		var err error
		switch raw.DataType {
		case wearable.DataTypeRecovery:
			var rec *wearable.RecoveryRecord
			if rec, err = Recovery(raw); err == nil {
				rec.UserID, rec.SyncedAt = userID, syncedAt
				res.Recovery = append(res.Recovery, *rec)
			}
		case wearable.DataTypeSleep:
			var rec *wearable.SleepRecord
			if rec, err = Sleep(raw); err == nil {
				rec.UserID, rec.SyncedAt = userID, syncedAt
				res.Sleep = append(res.Sleep, *rec)
			}
		case wearable.DataTypeActivity:
			var rec *wearable.ActivityRecord
			if rec, err = Activity(raw); err == nil {
				rec.UserID, rec.SyncedAt = userID, syncedAt
				res.Activity = append(res.Activity, *rec)
			}
		default:
			err = unknownKind(raw)
		}

		switch {
		case err == nil:
		case errors.Is(err, ErrSkip):
			res.Skipped++
		default:
			res.Malformed++
			metrics.RecordsSkippedTotal.WithLabelValues(string(raw.Provider), string(raw.DataType)).Inc()
			logger.WarnContext(ctx, "skipping payload that could not be normalized",
				xslog.CellGroup(raw.Provider, raw.DataType), xslog.Error(err))
		}
	}

	return res
}

var (
	recoveryFuncs = map[kindKey]recoveryFunc{
		{wearable.ProviderWhoop, whoop.KindRecovery}:      whoopRecovery,
		{wearable.ProviderWhoop, whoop.KindRecoverySleep}: whoopRecoverySleep,
		{wearable.ProviderOura, oura.KindRecoveryDay}:     ouraRecovery,
		{wearable.ProviderFitbit, fitbit.KindRecoveryDay}: fitbitRecovery,
		{wearable.ProviderGarmin, garmin.KindRecoveryDay}: garminRecovery,
	}
	sleepFuncs = map[kindKey]sleepFunc{
		{wearable.ProviderWhoop, whoop.KindSleep}:   whoopSleep,
		{wearable.ProviderOura, oura.KindSleepDay}:  ouraSleep,
		{wearable.ProviderFitbit, fitbit.KindSleep}: fitbitSleep,
		{wearable.ProviderGarmin, garmin.KindSleep}: garminSleep,
	}
	activityFuncs = map[kindKey]activityFunc{
		{wearable.ProviderWhoop, whoop.KindCycle}:       whoopCycle,
		{wearable.ProviderWhoop, whoop.KindWorkout}:     whoopWorkout,
		{wearable.ProviderOura, oura.KindDailyActivity}: ouraDailyActivity,
		{wearable.ProviderOura, oura.KindWorkout}:       ouraWorkout,
		{wearable.ProviderFitbit, fitbit.KindActivity}:  fitbitActivity,
		{wearable.ProviderGarmin, garmin.KindDaily}:     garminDaily,
		{wearable.ProviderGarmin, garmin.KindActivity}:  garminActivity,
	}
)
