package whoop

import (
	"context"

	go_json "github.com/goccy/go-json"
)

type UserService interface {
	GetProfile(ctx context.Context) (*UserProfile, error)
	RevokeAccess(ctx context.Context) error
}

// Collection services return records undecoded so callers can keep the
// vendor payload verbatim.
type CycleService interface {
	List(ctx context.Context, params *ListParams) (*PaginatedResponse[go_json.RawMessage], error)
}

type RecoveryService interface {
	List(ctx context.Context, params *ListParams) (*PaginatedResponse[go_json.RawMessage], error)
}

type SleepService interface {
	List(ctx context.Context, params *ListParams) (*PaginatedResponse[go_json.RawMessage], error)
}

type WorkoutService interface {
	List(ctx context.Context, params *ListParams) (*PaginatedResponse[go_json.RawMessage], error)
}
