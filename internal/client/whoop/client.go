package whoop

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xhttp"
	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.prod.whoop.com/developer"

// API is a thin client over the WHOOP developer API for a single token.
type API struct {
	User     UserService
	Cycle    CycleService
	Recovery RecoveryService
	Sleep    SleepService
	Workout  WorkoutService

	baseURL     string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	quota       *provider.QuotaTracker
}

type clientConfig struct {
	baseURL  string
	endpoint oauth2.Endpoint
	timeout  time.Duration
	quota    *provider.QuotaTracker
	maxPages int
}

func newConfig(opts []Option) *clientConfig {
	cfg := &clientConfig{
		baseURL:  defaultBaseURL,
		endpoint: Endpoint,
		timeout:  30 * time.Second,
		maxPages: 50,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (cfg *clientConfig) api(tokenSource oauth2.TokenSource) *API {
	transport := &whoopTransport{
		base:        xhttp.NewTransport(),
		tokenSource: tokenSource,
	}

	c := &API{
		baseURL:     cfg.baseURL,
		httpClient:  &http.Client{Transport: transport, Timeout: cfg.timeout},
		tokenSource: tokenSource,
		quota:       cfg.quota,
	}

	c.User = &userService{client: c}
	c.Cycle = &cycleService{client: c}
	c.Recovery = &recoveryService{client: c}
	c.Sleep = &sleepService{client: c}
	c.Workout = &workoutService{client: c}

	return c
}

type Option func(*clientConfig)

func WithBaseURL(baseURL string) Option {
	return func(cfg *clientConfig) { cfg.baseURL = baseURL }
}

// WithEndpoint overrides the OAuth authorize and token URLs.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(cfg *clientConfig) { cfg.endpoint = endpoint }
}

func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

func WithQuota(quota *provider.QuotaTracker) Option {
	return func(cfg *clientConfig) { cfg.quota = quota }
}

func WithMaxPages(n int) Option {
	return func(cfg *clientConfig) {
		if n > 0 {
			cfg.maxPages = n
		}
	}
}

func (c *API) do(ctx context.Context, op string, method string, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var accessToken string
	if c.quota != nil {
		tok, err := c.tokenSource.Token()
		if err != nil {
			return fmt.Errorf("getting token: %w", err)
		}
		accessToken = tok.AccessToken
		if err := c.quota.Check(ctx, accessToken); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveProviderRequest(string(wearable.ProviderWhoop), op, 0, time.Since(start))
		return fmt.Errorf("executing request: %w", provider.ClassifyTransport(err))
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.ObserveProviderRequest(string(wearable.ProviderWhoop), op, resp.StatusCode, time.Since(start))
	if c.quota != nil {
		c.quota.Observe(ctx, accessToken, resp)
	}

	if resp.StatusCode >= 400 {
		return provider.ClassifyResponse(wearable.ProviderWhoop, resp, parseAPIError(resp))
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", provider.ClassifyTransport(err))
		}
		if err := go_json.NewDecoder(bytes.NewReader(body)).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w\nbody: %s", err, string(body))
		}
	}

	return nil
}

type whoopTransport struct {
	base        http.RoundTripper
	tokenSource oauth2.TokenSource
}

var _ http.RoundTripper = (*whoopTransport)(nil)

func (t *whoopTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}

	req = req.Clone(req.Context())
	xhttp.SetRequestHeaderBearer(req, token.AccessToken)
	xhttp.SetRequestHeaderAcceptJSON(req)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("round trip: %w", err)
	}
	return resp, nil
}
