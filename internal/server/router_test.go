package server_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/provider/providertest"
	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/server"
	"github.com/artemis-health/artemis/internal/server/handler"
	servermw "github.com/artemis-health/artemis/internal/server/middleware"
	"github.com/artemis-health/artemis/internal/service/auth"
	"github.com/artemis-health/artemis/internal/service/token"
	"github.com/artemis-health/artemis/internal/service/unified"
	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xsync"
	go_json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"golang.org/x/oauth2"
)

const (
	testAppURL = "https://app.example/settings"
	testIssuer = "https://auth.example/auth/v1"
)

type testServer struct {
	handler http.Handler
	repo    *repository.Repository
	whoop   *providertest.Client
	oura    *providertest.Client
	key     jwk.Key
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	key, err := jwk.Import(raw)
	if err != nil {
		t.Fatalf("jwk.Import() error = %v", err)
	}
	_ = key.Set(jwk.KeyIDKey, "k1")
	_ = key.Set(jwk.AlgorithmKey, jwa.RS256())
	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		t.Fatalf("PublicKeyOf() error = %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}

	backend := storage.NewMemoryBackend(1000, 1000)
	t.Cleanup(func() { _ = backend.Close() })

	ts := &testServer{
		repo:  repository.NewMemory(),
		whoop: providertest.New(wearable.ProviderWhoop),
		oura:  providertest.New(wearable.ProviderOura),
		key:   key,
	}

	logger := slog.New(slog.DiscardHandler)
	registry := provider.NewRegistry(ts.whoop, ts.oura)
	tokens := token.New(ts.repo.Integrations, registry, backend)
	syncSvc := xsync.NewService(registry, ts.repo, tokens, logger)
	t.Cleanup(syncSvc.Wait)

	authSvc := auth.NewOAuth(registry, backend, tokens, syncSvc)
	reader := unified.NewService(syncSvc, syncSvc, ts.repo)

	ts.handler = server.NewRouter(server.RouterConfig{
		Logger:   logger,
		Limiter:  backend,
		Verifier: servermw.NewJWTVerifier(servermw.StaticKeys{Set: set}, testIssuer, ""),
	}, server.Handlers{
		Health:       handler.NewHealth(map[string]handler.Pinger{"storage": backend}),
		OAuth:        handler.NewOAuth(authSvc, testAppURL),
		Integrations: handler.NewIntegrations(ts.repo.Integrations, authSvc, tokens),
		Sync:         handler.NewSync(syncSvc, ts.repo.SyncStatus),
		Wearables:    handler.NewWearables(reader, nil),
	})
	return ts
}

func (ts *testServer) bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Subject(userID).
		Issuer(testIssuer).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256(), ts.key))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return "Bearer " + string(signed)
}

func (ts *testServer) do(t *testing.T, method, target, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if userID != "" {
		req.Header.Set("Authorization", ts.bearer(t, userID))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) connect(t *testing.T, userID string, p wearable.Provider) {
	t.Helper()
	err := ts.repo.Integrations.Replace(t.Context(), &wearable.Integration{
		UserID:      userID,
		Provider:    p,
		AccessToken: "access",
	})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	body, _ := io.ReadAll(rec.Body)
	if err := go_json.Unmarshal(body, &v); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", body, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	for _, target := range []string{"/api/integrations", "/api/sync/status", "/api/wearables"} {
		if rec := ts.do(t, http.MethodGet, target, ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", target, rec.Code)
		}
	}
}

func TestConnectFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/integrations/whoop/connect", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("connect status = %d, want 200: %s", rec.Code, rec.Body)
	}
	authURL, err := url.Parse(decode[auth.StartConnectResult](t, rec).AuthURL)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	state := authURL.Query().Get("state")
	if state == "" {
		t.Fatal("auth URL has no state")
	}

	rec = ts.do(t, http.MethodGet, "/oauth/whoop/callback?code=abc&state="+url.QueryEscape(state), "")
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("callback status = %d, want 307", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != testAppURL+"?connected=whoop" {
		t.Errorf("Location = %q, want connected redirect", loc)
	}

	// State is single use.
	rec = ts.do(t, http.MethodGet, "/oauth/whoop/callback?code=abc&state="+url.QueryEscape(state), "")
	loc, _ := url.Parse(rec.Header().Get("Location"))
	if got := loc.Query().Get("error"); got != handler.ErrorCodeInvalidState {
		t.Errorf("replayed callback error = %q, want %q", got, handler.ErrorCodeInvalidState)
	}

	rec = ts.do(t, http.MethodGet, "/api/integrations", "u1")
	list := decode[struct {
		Integrations []wearable.Integration `json:"integrations"`
	}](t, rec)
	if len(list.Integrations) != 1 || list.Integrations[0].Provider != wearable.ProviderWhoop {
		t.Fatalf("integrations = %+v, want one whoop integration", list.Integrations)
	}
	if strings.Contains(rec.Body.String(), "access-abc") {
		t.Error("integrations response leaks the access token")
	}
}

func TestCallback_ErrorRedirects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "unknown state", target: "/oauth/whoop/callback?code=abc&state=nope", want: handler.ErrorCodeInvalidState},
		{name: "unknown provider", target: "/oauth/polar/callback?code=abc&state=nope", want: handler.ErrorCodeUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t)
			rec := ts.do(t, http.MethodGet, tt.target, "")
			if rec.Code != http.StatusTemporaryRedirect {
				t.Fatalf("status = %d, want 307", rec.Code)
			}
			loc, err := url.Parse(rec.Header().Get("Location"))
			if err != nil {
				t.Fatalf("url.Parse() error = %v", err)
			}
			if got := loc.Query().Get("error"); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnect_UnknownProvider(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodGet, "/api/integrations/polar/connect", "u1"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/integrations/fitbit/connect", "u1"); rec.Code != http.StatusNotFound {
		t.Errorf("disabled provider status = %d, want 404", rec.Code)
	}
}

func TestDisconnect(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.connect(t, "u1", wearable.ProviderOura)

	if rec := ts.do(t, http.MethodDelete, "/api/integrations/oura", "u1"); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if n := ts.oura.RevokeCalls.Load(); n != 1 {
		t.Errorf("revoke calls = %d, want 1", n)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/integrations/oura", "u1"); rec.Code != http.StatusNotFound {
		t.Errorf("second disconnect status = %d, want 404", rec.Code)
	}
}

func TestSync_PartialFailureIsOK(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.connect(t, "u1", wearable.ProviderWhoop)
	ts.connect(t, "u1", wearable.ProviderOura)
	ts.oura.Sleep = func(context.Context, *oauth2.Token, wearable.DateRange) ([]wearable.RawRecord, error) {
		return nil, fmt.Errorf("%w: 502", wearable.ErrProviderUnavailable)
	}

	rec := ts.do(t, http.MethodPost, "/api/sync", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	body := decode[struct {
		Results xsync.Result `json:"results"`
		Partial bool         `json:"partial"`
	}](t, rec)
	if !body.Partial {
		t.Error("partial = false, want true")
	}
	got := map[wearable.DataType]wearable.SyncOutcome{}
	for dt, c := range body.Results[wearable.ProviderOura] {
		got[dt] = c.Outcome
	}
	want := map[wearable.DataType]wearable.SyncOutcome{
		wearable.DataTypeRecovery: wearable.SyncSuccess,
		wearable.DataTypeSleep:    wearable.SyncError,
		wearable.DataTypeActivity: wearable.SyncSuccess,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("oura outcomes mismatch (-want +got):\n%s", diff)
	}

	rec = ts.do(t, http.MethodGet, "/api/sync/status", "u1")
	statuses := decode[struct {
		Statuses []wearable.SyncStatus `json:"statuses"`
	}](t, rec)
	if len(statuses.Statuses) != 6 {
		t.Errorf("len(statuses) = %d, want 6", len(statuses.Statuses))
	}
}

func TestWearables(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.connect(t, "client-1", wearable.ProviderWhoop)

	t.Run("own data is live", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/wearables?start=2024-01-01&end=2024-01-07&sync=false", "client-1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
		}
		if got := decode[unified.Response](t, rec).Source; got != unified.SourceLive {
			t.Errorf("source = %q, want live", got)
		}
	})

	t.Run("no integrations", func(t *testing.T) {
		if rec := ts.do(t, http.MethodGet, "/api/wearables", "nobody"); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("bad dates", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/wearables?start=01/02/2024", "client-1")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("range too long", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/wearables?start=2023-01-01&end=2024-01-01", "client-1")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("trainer without grant", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/clients/client-1/wearables", "trainer-1")
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("trainer with grant reads stored data", func(t *testing.T) {
		if err := ts.repo.Trainers.Grant(t.Context(), "trainer-2", "client-1"); err != nil {
			t.Fatalf("Grant() error = %v", err)
		}
		rec := ts.do(t, http.MethodGet, "/api/wearables?client_id=client-1", "trainer-2")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
		}
		resp := decode[unified.Response](t, rec)
		if resp.Source != unified.SourceStored || resp.UserID != "client-1" {
			t.Errorf("response = %+v, want stored data for client-1", resp)
		}
	})
}
