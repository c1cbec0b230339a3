package whoop

import (
	"context"
	"net/http"

	"github.com/artemis-health/artemis/internal/metrics"
	go_json "github.com/goccy/go-json"
)

type recoveryService struct {
	client *API
}

func (s *recoveryService) List(ctx context.Context, params *ListParams) (*PaginatedResponse[go_json.RawMessage], error) {
	const route = "/v2/recovery"

	var resp PaginatedResponse[go_json.RawMessage]
	if err := s.client.do(ctx, metrics.OpListRecovery, http.MethodGet, route, params.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
