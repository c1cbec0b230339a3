package garmin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/wearable"
	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// uploadWindow is the widest upload range the summary endpoints accept.
const uploadWindow = 24 * time.Hour

type summaryKey struct {
	SummaryID    string `json:"summaryId"`
	CalendarDate string `json:"calendarDate"`
}

func peek(raw go_json.RawMessage) summaryKey {
	var k summaryKey
	_ = go_json.Unmarshal(raw, &k)
	return k
}

// summaries reads one summary endpoint a day at a time over the range,
// pacing requests. Windows that would end in the future are clipped to now.
func (c *Client) summaries(ctx context.Context, token *oauth2.Token, op, resource string, r wearable.DateRange) ([]go_json.RawMessage, error) {
	now := c.now()
	path := "/wellness-api/rest/" + resource

	var out []go_json.RawMessage
	for _, day := range r.Days() {
		start := day
		if !start.Before(now) {
			break
		}
		end := start.Add(uploadWindow)
		if end.After(now) {
			end = now
		}

		q := url.Values{
			"uploadStartTimeInSeconds": []string{strconv.FormatInt(start.Unix(), 10)},
			"uploadEndTimeInSeconds":   []string{strconv.FormatInt(end.Unix(), 10)},
		}

		if err := c.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting to pace request: %w", err)
		}
		var page []go_json.RawMessage
		if err := c.do(ctx, token, op, http.MethodGet, path, q, &page); err != nil {
			return nil, fmt.Errorf("listing %s: %w", resource, err)
		}
		out = append(out, page...)
	}
	return out, nil
}

// latestByDate keeps the last summary seen for each calendar date. Garmin
// re-sends a day's summary as the device uploads more data.
func latestByDate(summaries []go_json.RawMessage) map[string]go_json.RawMessage {
	out := make(map[string]go_json.RawMessage, len(summaries))
	for _, raw := range summaries {
		if k := peek(raw); k.CalendarDate != "" {
			out[k.CalendarDate] = raw
		}
	}
	return out
}

func (c *Client) FetchRecovery(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	dailies, err := c.summaries(ctx, token, metrics.OpListDaily, "dailies", r)
	if err != nil {
		return nil, err
	}
	hrv, err := c.summaries(ctx, token, metrics.OpListRecovery, "hrv", r)
	if err != nil {
		return nil, err
	}

	days := make(map[string]*RecoveryDay)
	get := func(date string) *RecoveryDay {
		d, ok := days[date]
		if !ok {
			d = &RecoveryDay{CalendarDate: date}
			days[date] = d
		}
		return d
	}
	for date, raw := range latestByDate(dailies) {
		get(date).Daily = raw
	}
	for date, raw := range latestByDate(hrv) {
		get(date).HRV = raw
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]wearable.RawRecord, 0, len(dates))
	for _, date := range dates {
		payload, err := go_json.Marshal(days[date])
		if err != nil {
			return nil, fmt.Errorf("encoding recovery day %s: %w", date, err)
		}
		out = append(out, wearable.RawRecord{
			Provider: wearable.ProviderGarmin,
			DataType: wearable.DataTypeRecovery,
			Kind:     KindRecoveryDay,
			Payload:  payload,
		})
	}
	return out, nil
}

func (c *Client) FetchSleep(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	sleeps, err := c.summaries(ctx, token, metrics.OpListSleep, "sleeps", r)
	if err != nil {
		return nil, err
	}

	byDate := latestByDate(sleeps)
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]wearable.RawRecord, 0, len(dates))
	for _, date := range dates {
		out = append(out, wearable.RawRecord{
			Provider: wearable.ProviderGarmin,
			DataType: wearable.DataTypeSleep,
			Kind:     KindSleep,
			Payload:  byDate[date],
		})
	}
	return out, nil
}

// FetchActivity returns the per-day aggregates followed by individual
// activities, each activity once even when Garmin re-sends it.
func (c *Client) FetchActivity(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	dailies, err := c.summaries(ctx, token, metrics.OpListDaily, "dailies", r)
	if err != nil {
		return nil, err
	}
	activities, err := c.summaries(ctx, token, metrics.OpListActivity, "activities", r)
	if err != nil {
		return nil, err
	}

	byDate := latestByDate(dailies)
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]wearable.RawRecord, 0, len(dates)+len(activities))
	for _, date := range dates {
		out = append(out, wearable.RawRecord{
			Provider: wearable.ProviderGarmin,
			DataType: wearable.DataTypeActivity,
			Kind:     KindDaily,
			Payload:  byDate[date],
		})
	}

	seen := make(map[string]int, len(activities))
	for _, raw := range activities {
		rec := wearable.RawRecord{
			Provider: wearable.ProviderGarmin,
			DataType: wearable.DataTypeActivity,
			Kind:     KindActivity,
			Payload:  raw,
		}
		id := peek(raw).SummaryID
		if i, ok := seen[id]; ok && id != "" {
			out[i] = rec
			continue
		}
		seen[id] = len(out)
		out = append(out, rec)
	}
	return out, nil
}
