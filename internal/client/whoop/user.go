package whoop

import (
	"context"
	"net/http"

	"github.com/artemis-health/artemis/internal/metrics"
)

type userService struct {
	client *API
}

func (s *userService) GetProfile(ctx context.Context) (*UserProfile, error) {
	const route = "/v2/user/profile/basic"

	var profile UserProfile
	if err := s.client.do(ctx, metrics.OpGetUser, http.MethodGet, route, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// RevokeAccess invalidates every token WHOOP issued to this app for the user.
func (s *userService) RevokeAccess(ctx context.Context) error {
	const route = "/v2/user/access"
	return s.client.do(ctx, metrics.OpRevokeToken, http.MethodDelete, route, nil, nil)
}
