package whoop

import (
	"context"
	"net/http"

	"github.com/artemis-health/artemis/internal/metrics"
	go_json "github.com/goccy/go-json"
)

type cycleService struct {
	client *API
}

func (s *cycleService) List(ctx context.Context, params *ListParams) (*PaginatedResponse[go_json.RawMessage], error) {
	const route = "/v2/cycle"

	var resp PaginatedResponse[go_json.RawMessage]
	if err := s.client.do(ctx, metrics.OpListDaily, http.MethodGet, route, params.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
