package whoop

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/xslog"
	go_json "github.com/goccy/go-json"
)

// maxPageSize is the largest limit WHOOP accepts on collection endpoints.
const maxPageSize = 25

type ListParams struct {
	Limit     int
	Start     *time.Time
	End       *time.Time
	NextToken *string
}

func (p *ListParams) values() url.Values {
	if p == nil {
		return nil
	}

	v := make(url.Values)

	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Start != nil {
		v.Set("start", p.Start.UTC().Format(time.RFC3339))
	}
	if p.End != nil {
		v.Set("end", p.End.UTC().Format(time.RFC3339))
	}
	if p.NextToken != nil {
		v.Set("nextToken", *p.NextToken)
	}

	return v
}

type PaginatedResponse[T any] struct {
	Records   []T     `json:"records"`
	NextToken *string `json:"next_token,omitempty"`
}

func (p *PaginatedResponse[T]) HasMore() bool {
	return p.NextToken != nil && *p.NextToken != ""
}

type listFunc func(ctx context.Context, params *ListParams) (*PaginatedResponse[go_json.RawMessage], error)

// listAll follows next_token until the collection is exhausted or maxPages
// pages have been read.
func listAll(ctx context.Context, list listFunc, start, end time.Time, maxPages int) ([]go_json.RawMessage, error) {
	params := &ListParams{Limit: maxPageSize, Start: &start, End: &end}

	var records []go_json.RawMessage
	for page := 1; ; page++ {
		resp, err := list(ctx, params)
		if err != nil {
			return nil, err
		}
		records = append(records, resp.Records...)

		if !resp.HasMore() {
			return records, nil
		}
		if page >= maxPages {
			xslog.FromContext(ctx).WarnContext(ctx, "pagination limit reached, remaining pages skipped",
				xslog.Provider("whoop"), xslog.Count(len(records)))
			// WHOOP pages newest first, so what was skipped is the oldest part
			// of the window.
			provider.ReportTruncated(ctx, time.Time{})
			return records, nil
		}
		params.NextToken = resp.NextToken
	}
}
