package fitbit

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xslog"
	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// Longest ranges the Fitbit range endpoints accept.
const (
	maxRecoveryWindowDays = 30
	maxSleepWindowDays    = 100
	activityPageSize      = 100
)

// windows splits r into consecutive inclusive day ranges of at most days days.
func windows(r wearable.DateRange, days int) []wearable.DateRange {
	all := r.Days()
	var out []wearable.DateRange
	for i := 0; i < len(all); i += days {
		j := min(i+days, len(all)) - 1
		out = append(out, wearable.DateRange{Start: all[i], End: all[j]})
	}
	return out
}

func rangePath(format string, w wearable.DateRange) string {
	return fmt.Sprintf(format, w.StartDate(), w.EndDate())
}

type dateKey struct {
	DateTime string `json:"dateTime"`
}

func entryDate(raw go_json.RawMessage) string {
	var k dateKey
	if err := go_json.Unmarshal(raw, &k); err != nil {
		return ""
	}
	return k.DateTime
}

// FetchRecovery assembles one record per day from the HRV, resting heart
// rate and SpO2 range endpoints, walking the range in 30-day windows.
func (c *Client) FetchRecovery(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	days := make(map[string]*RecoveryDay)
	get := func(date string) *RecoveryDay {
		d, ok := days[date]
		if !ok {
			d = &RecoveryDay{Date: date}
			days[date] = d
		}
		return d
	}

	for _, w := range windows(r, maxRecoveryWindowDays) {
		var hrv hrvResponse
		if err := c.get(ctx, token, metrics.OpListRecovery, rangePath("/1/user/-/hrv/date/%s/%s.json", w), nil, &hrv); err != nil {
			return nil, fmt.Errorf("listing hrv: %w", err)
		}
		for _, raw := range hrv.HRV {
			if date := entryDate(raw); date != "" {
				get(date).HRV = raw
			}
		}

		var heart heartResponse
		if err := c.get(ctx, token, metrics.OpListHeartRate, rangePath("/1/user/-/activities/heart/date/%s/%s.json", w), nil, &heart); err != nil {
			return nil, fmt.Errorf("listing heart rate: %w", err)
		}
		for _, raw := range heart.Heart {
			if date := entryDate(raw); date != "" {
				get(date).Heart = raw
			}
		}

		var spo2 []go_json.RawMessage
		if err := c.get(ctx, token, metrics.OpListRecovery, rangePath("/1/user/-/spo2/date/%s/%s.json", w), nil, &spo2); err != nil {
			return nil, fmt.Errorf("listing spo2: %w", err)
		}
		for _, raw := range spo2 {
			if date := entryDate(raw); date != "" {
				get(date).SpO2 = raw
			}
		}
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
			Provider: wearable.ProviderFitbit,
			DataType: wearable.DataTypeRecovery,
			Kind:     KindRecoveryDay,
			Payload:  payload,
		})
	}
	return out, nil
}

func (c *Client) FetchSleep(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	var out []wearable.RawRecord
	for _, w := range windows(r, maxSleepWindowDays) {
		var resp sleepResponse
		if err := c.get(ctx, token, metrics.OpListSleep, rangePath("/1.2/user/-/sleep/date/%s/%s.json", w), nil, &resp); err != nil {
			return nil, fmt.Errorf("listing sleep: %w", err)
		}
		for _, raw := range resp.Sleep {
			out = append(out, wearable.RawRecord{
				Provider: wearable.ProviderFitbit,
				DataType: wearable.DataTypeSleep,
				Kind:     KindSleep,
				Payload:  raw,
			})
		}
	}
	return out, nil
}

// FetchActivity pages through the activity log from the start of the range
// in ascending order and stops at the first activity past its end.
func (c *Client) FetchActivity(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	query := url.Values{
		"afterDate": []string{r.Start.UTC().Format("2006-01-02T15:04:05")},
		"sort":      []string{"asc"},
		"offset":    []string{"0"},
		"limit":     []string{strconv.Itoa(activityPageSize)},
	}
	target := "/1/user/-/activities/list.json"
	endDate := r.EndDate()

	var out []wearable.RawRecord
	for page := 1; ; page++ {
		var resp activityListResponse
		if err := c.get(ctx, token, metrics.OpListActivity, target, query, &resp); err != nil {
			return nil, fmt.Errorf("listing activities: %w", err)
		}

		for _, raw := range resp.Activities {
			if activityDate(raw) > endDate {
				return out, nil
			}
			out = append(out, wearable.RawRecord{
				Provider: wearable.ProviderFitbit,
				DataType: wearable.DataTypeActivity,
				Kind:     KindActivity,
				Payload:  raw,
			})
		}

		if resp.Pagination.Next == "" || len(resp.Activities) == 0 {
			return out, nil
		}
		if page >= c.maxPages {
			xslog.FromContext(ctx).WarnContext(ctx, "pagination limit reached, remaining pages skipped",
				xslog.Provider(wearable.ProviderFitbit), xslog.Count(len(out)))
			var through time.Time
			if n := len(out); n > 0 {
				through, _ = time.Parse(wearable.DateLayout, activityDate(out[n-1].Payload))
			}
			provider.ReportTruncated(ctx, through)
			return out, nil
		}
		target, query = resp.Pagination.Next, nil
	}
}

// activityDate returns the local calendar day an activity started on.
func activityDate(raw go_json.RawMessage) string {
	var a struct {
		StartTime string `json:"startTime"`
	}
	if err := go_json.Unmarshal(raw, &a); err != nil || len(a.StartTime) < len(wearable.DateLayout) {
		return ""
	}
	if t, err := time.Parse(OffsetTimeLayout, a.StartTime); err == nil {
		return t.Format(wearable.DateLayout)
	}
	return a.StartTime[:len(wearable.DateLayout)]
}
