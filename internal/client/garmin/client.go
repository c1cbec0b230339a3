package garmin

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
	"github.com/artemis-health/artemis/internal/xslog"
	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://apis.garmin.com"

var _ provider.Client = (*Client)(nil)

type Client struct {
	*provider.OAuth

	baseURL    string
	httpClient *http.Client
	pacer      *provider.Pacer
	now        func() time.Time
}

type clientConfig struct {
	baseURL  string
	endpoint oauth2.Endpoint
	timeout  time.Duration
	pacing   time.Duration
	now      func() time.Time
}

type Option func(*clientConfig)

func WithBaseURL(baseURL string) Option {
	return func(cfg *clientConfig) { cfg.baseURL = baseURL }
}

func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(cfg *clientConfig) { cfg.endpoint = endpoint }
}

func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

// WithPacing sets the minimum gap between the per-day summary requests.
func WithPacing(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.pacing = d }
}

func WithClock(now func() time.Time) Option {
	return func(cfg *clientConfig) { cfg.now = now }
}

func New(config Config, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:  defaultBaseURL,
		endpoint: Endpoint,
		timeout:  30 * time.Second,
		pacing:   100 * time.Millisecond,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := xhttp.NewHTTPClient(xhttp.WithTimeout(cfg.timeout))
	return &Client{
		OAuth:      provider.NewOAuth(wearable.ProviderGarmin, config.oauth2(cfg.endpoint), httpClient, true),
		baseURL:    cfg.baseURL,
		httpClient: httpClient,
		pacer:      provider.NewPacer(cfg.pacing),
		now:        cfg.now,
	}
}

func (c *Client) Provider() wearable.Provider { return wearable.ProviderGarmin }

func (c *Client) DataTypes() []wearable.DataType { return wearable.DataTypes() }

func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*provider.Grant, error) {
	tok, err := c.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	grant := &provider.Grant{Token: tok}

	var id userID
	if err := c.do(ctx, tok, metrics.OpGetUser, http.MethodGet, "/wellness-api/rest/user/id", nil, &id); err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "failed to fetch garmin user id",
			xslog.Provider(wearable.ProviderGarmin), xslog.Error(err))
		return grant, nil
	}
	grant.ProviderUserID = id.UserID
	return grant, nil
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return c.Refresh(ctx, refreshToken)
}

// RevokeToken deletes the user's registration, which ends Garmin's consent
// for this application.
func (c *Client) RevokeToken(ctx context.Context, token *oauth2.Token) error {
	if err := c.do(ctx, token, metrics.OpRevokeToken, http.MethodDelete, "/wellness-api/rest/user/registration", nil, nil); err != nil {
		return fmt.Errorf("revoking garmin registration: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, token *oauth2.Token, op string, method string, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	xhttp.SetRequestHeaderBearer(req, token.AccessToken)
	xhttp.SetRequestHeaderAcceptJSON(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveProviderRequest(string(wearable.ProviderGarmin), op, 0, time.Since(start))
		return fmt.Errorf("executing request: %w", provider.ClassifyTransport(err))
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.ObserveProviderRequest(string(wearable.ProviderGarmin), op, resp.StatusCode, time.Since(start))

	// Garmin answers 403 when the user has withdrawn consent in Garmin Connect.
	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", wearable.ErrNotConnected, parseAPIError(resp))
	}
	if resp.StatusCode >= 400 {
		return provider.ClassifyResponse(wearable.ProviderGarmin, resp, parseAPIError(resp))
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", provider.ClassifyTransport(err))
		}
		if err := go_json.NewDecoder(bytes.NewReader(body)).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
