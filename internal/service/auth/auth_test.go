package auth_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/provider/providertest"
	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/service/auth"
	"github.com/artemis-health/artemis/internal/service/token"
	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/wearable"
	"golang.org/x/oauth2"
)

type fakeSyncer struct{ users []string }

func (f *fakeSyncer) SyncInBackground(_ context.Context, userID string) {
	f.users = append(f.users, userID)
}

type fixture struct {
	svc    *auth.OAuth
	repo   *repository.Repository
	garmin *providertest.Client
	syncer *fakeSyncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := storage.NewMemoryBackend(100, 100)
	t.Cleanup(func() { _ = backend.Close() })

	garmin := providertest.New(wearable.ProviderGarmin)
	garmin.PKCE = true
	registry := provider.NewRegistry(garmin)
	repo := repository.NewMemory()
	syncer := &fakeSyncer{}

	return &fixture{
		svc:    auth.NewOAuth(registry, backend, token.New(repo.Integrations, registry, backend), syncer),
		repo:   repo,
		garmin: garmin,
		syncer: syncer,
	}
}

func startState(t *testing.T, f *fixture) (state, verifier string) {
	t.Helper()

	res, err := f.svc.StartConnect(t.Context(), auth.StartConnectRequest{UserID: "u1", Provider: wearable.ProviderGarmin})
	if err != nil {
		t.Fatalf("StartConnect() error = %v", err)
	}
	u, err := url.Parse(res.AuthURL)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	return u.Query().Get("state"), u.Query().Get("verifier")
}

func TestConnectFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	state, verifier := startState(t, f)
	if state == "" || verifier == "" {
		t.Fatalf("state = %q, verifier = %q, want both set", state, verifier)
	}

	f.garmin.ExchangeFunc = func(_ context.Context, code, v string) (*provider.Grant, error) {
		if v != verifier {
			t.Errorf("verifier = %q, want %q", v, verifier)
		}
		return &provider.Grant{Token: &oauth2.Token{AccessToken: "at-" + code}, ProviderUserID: "g-1"}, nil
	}

	res, err := f.svc.HandleCallback(t.Context(), auth.CallbackRequest{
		Provider: wearable.ProviderGarmin,
		State:    state,
		Code:     "abc",
	})
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if res.UserID != "u1" || res.Integration.ProviderUserID != "g-1" {
		t.Errorf("HandleCallback() = %+v", res)
	}

	in, err := f.repo.Integrations.GetActive(t.Context(), "u1", wearable.ProviderGarmin)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if in.AccessToken != "at-abc" {
		t.Errorf("AccessToken = %q, want at-abc", in.AccessToken)
	}
	if len(f.syncer.users) != 1 {
		t.Errorf("background syncs = %v, want one", f.syncer.users)
	}

	// States are single use.
	_, err = f.svc.HandleCallback(t.Context(), auth.CallbackRequest{Provider: wearable.ProviderGarmin, State: state, Code: "abc"})
	if !errors.Is(err, auth.ErrInvalidState) {
		t.Errorf("replayed HandleCallback() error = %v, want ErrInvalidState", err)
	}
}

func TestHandleCallback_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  func(state string) auth.CallbackRequest
		want error
	}{
		{
			name: "unknown state",
			req: func(string) auth.CallbackRequest {
				return auth.CallbackRequest{Provider: wearable.ProviderGarmin, State: "nope", Code: "c"}
			},
			want: auth.ErrInvalidState,
		},
		{
			name: "provider mismatch",
			req: func(state string) auth.CallbackRequest {
				return auth.CallbackRequest{Provider: wearable.ProviderOura, State: state, Code: "c"}
			},
			want: auth.ErrInvalidState,
		},
		{
			name: "user denied",
			req: func(state string) auth.CallbackRequest {
				return auth.CallbackRequest{Provider: wearable.ProviderGarmin, State: state, ErrorCode: "access_denied"}
			},
			want: auth.ErrAuthDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			state, _ := startState(t, f)
			_, err := f.svc.HandleCallback(t.Context(), tt.req(state))
			if !errors.Is(err, tt.want) {
				t.Errorf("HandleCallback() error = %v, want %v", err, tt.want)
			}
			if len(f.syncer.users) != 0 {
				t.Errorf("background syncs = %v, want none", f.syncer.users)
			}
		})
	}
}

func TestStartConnect_DisabledProvider(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.StartConnect(t.Context(), auth.StartConnectRequest{UserID: "u1", Provider: wearable.ProviderFitbit})
	if !errors.Is(err, wearable.ErrProviderDisabled) {
		t.Errorf("StartConnect() error = %v, want ErrProviderDisabled", err)
	}
}
