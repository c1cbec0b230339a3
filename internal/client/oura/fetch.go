package oura

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/wearable"
	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// dayKey is the subset of fields used to group documents by day.
type dayKey struct {
	Day       string   `json:"day"`
	Type      string   `json:"type"`
	TimeInBed *float64 `json:"time_in_bed"`
}

func peek(raw go_json.RawMessage) (dayKey, bool) {
	var k dayKey
	if err := go_json.Unmarshal(raw, &k); err != nil || k.Day == "" {
		return dayKey{}, false
	}
	return k, true
}

// lastDay returns the start of the day of the last document in an ascending
// listing. That day may be incomplete, so the listing is complete up to it.
func lastDay(docs []go_json.RawMessage) time.Time {
	if len(docs) == 0 {
		return time.Time{}
	}
	k, ok := peek(docs[len(docs)-1])
	if !ok {
		return time.Time{}
	}
	day, err := time.Parse(wearable.DateLayout, k.Day)
	if err != nil {
		return time.Time{}
	}
	return day
}

// FetchRecovery assembles one record per day from readiness, the main sleep
// period (HRV and lowest heart rate) and SpO2.
func (c *Client) FetchRecovery(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	readiness, err := c.list(ctx, token, metrics.OpListRecovery, "daily_readiness", r)
	if err != nil {
		return nil, err
	}
	periods, err := c.list(ctx, token, metrics.OpListSleep, "sleep", r)
	if err != nil {
		return nil, err
	}
	spo2, err := c.list(ctx, token, metrics.OpListRecovery, "daily_spo2", r)
	if err != nil {
		return nil, err
	}

	days := make(map[string]*RecoveryDay)
	get := func(day string) *RecoveryDay {
		d, ok := days[day]
		if !ok {
			d = &RecoveryDay{Day: day}
			days[day] = d
		}
		return d
	}

	for _, raw := range readiness {
		if k, ok := peek(raw); ok {
			get(k.Day).Readiness = raw
		}
	}
	for day, raw := range mainPeriods(periods) {
		get(day).Sleep = raw
	}
	for _, raw := range spo2 {
		if k, ok := peek(raw); ok {
			get(k.Day).SpO2 = raw
		}
	}

	out := make([]wearable.RawRecord, 0, len(days))
	for _, day := range sortedKeys(days) {
		payload, err := go_json.Marshal(days[day])
		if err != nil {
			return nil, fmt.Errorf("encoding recovery day %s: %w", day, err)
		}
		out = append(out, wearable.RawRecord{
			Provider: wearable.ProviderOura,
			DataType: wearable.DataTypeRecovery,
			Kind:     KindRecoveryDay,
			Payload:  payload,
		})
	}
	return out, nil
}

// FetchSleep returns one record per night: the main sleep period with the
// daily sleep score attached.
func (c *Client) FetchSleep(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	periods, err := c.list(ctx, token, metrics.OpListSleep, "sleep", r)
	if err != nil {
		return nil, err
	}
	scores, err := c.list(ctx, token, metrics.OpListSleep, "daily_sleep", r)
	if err != nil {
		return nil, err
	}

	days := make(map[string]*SleepDay)
	for day, raw := range mainPeriods(periods) {
		days[day] = &SleepDay{Day: day, Period: raw}
	}
	for _, raw := range scores {
		k, ok := peek(raw)
		if !ok {
			continue
		}
		d, ok := days[k.Day]
		if !ok {
			d = &SleepDay{Day: k.Day}
			days[k.Day] = d
		}
		d.DailySleep = raw
	}

	out := make([]wearable.RawRecord, 0, len(days))
	for _, day := range sortedKeys(days) {
		payload, err := go_json.Marshal(days[day])
		if err != nil {
			return nil, fmt.Errorf("encoding sleep day %s: %w", day, err)
		}
		out = append(out, wearable.RawRecord{
			Provider: wearable.ProviderOura,
			DataType: wearable.DataTypeSleep,
			Kind:     KindSleepDay,
			Payload:  payload,
		})
	}
	return out, nil
}

func (c *Client) FetchActivity(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	daily, err := c.list(ctx, token, metrics.OpListDaily, "daily_activity", r)
	if err != nil {
		return nil, err
	}
	workouts, err := c.list(ctx, token, metrics.OpListWorkout, "workout", r)
	if err != nil {
		return nil, err
	}

	out := make([]wearable.RawRecord, 0, len(daily)+len(workouts))
	for _, raw := range daily {
		out = append(out, wearable.RawRecord{
			Provider: wearable.ProviderOura, DataType: wearable.DataTypeActivity, Kind: KindDailyActivity, Payload: raw,
		})
	}
	for _, raw := range workouts {
		out = append(out, wearable.RawRecord{
			Provider: wearable.ProviderOura, DataType: wearable.DataTypeActivity, Kind: KindWorkout, Payload: raw,
		})
	}
	return out, nil
}

// mainPeriods picks the longest long_sleep period per day. Days with only
// naps or rest periods fall back to the longest period of any type.
func mainPeriods(periods []go_json.RawMessage) map[string]go_json.RawMessage {
	type pick struct {
		raw  go_json.RawMessage
		long bool
		bed  float64
	}
	best := make(map[string]pick)

	for _, raw := range periods {
		k, ok := peek(raw)
		if !ok {
			continue
		}
		cand := pick{raw: raw, long: k.Type == SleepTypeLong}
		if k.TimeInBed != nil {
			cand.bed = *k.TimeInBed
		}

		cur, seen := best[k.Day]
		switch {
		case !seen:
			best[k.Day] = cand
		case cand.long && !cur.long:
			best[k.Day] = cand
		case cand.long == cur.long && cand.bed > cur.bed:
			best[k.Day] = cand
		}
	}

	out := make(map[string]go_json.RawMessage, len(best))
	for day, p := range best {
		out[day] = p.raw
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
