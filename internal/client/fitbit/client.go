package fitbit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xhttp"
	"github.com/artemis-health/artemis/internal/xslog"
	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.fitbit.com"

var _ provider.Client = (*Client)(nil)

type Client struct {
	*provider.OAuth

	baseURL    string
	httpClient *http.Client
	quota      *provider.QuotaTracker
	pacer      *provider.Pacer
	maxPages   int
}

type clientConfig struct {
	baseURL  string
	endpoint oauth2.Endpoint
	timeout  time.Duration
	quota    storage.QuotaStore
	pacing   time.Duration
	maxPages int
}

type Option func(*clientConfig)

func WithBaseURL(baseURL string) Option {
	return func(cfg *clientConfig) { cfg.baseURL = strings.TrimSuffix(baseURL, "/") }
}

func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(cfg *clientConfig) { cfg.endpoint = endpoint }
}

func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

// WithQuotaStore sets where per-token request budgets are kept. Without it
// budgets are tracked in process memory.
func WithQuotaStore(store storage.QuotaStore) Option {
	return func(cfg *clientConfig) { cfg.quota = store }
}

// WithPacing sets the minimum gap between data requests.
func WithPacing(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.pacing = d }
}

func WithMaxPages(n int) Option {
	return func(cfg *clientConfig) {
		if n > 0 {
			cfg.maxPages = n
		}
	}
}

func New(config Config, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:  defaultBaseURL,
		endpoint: Endpoint,
		timeout:  30 * time.Second,
		pacing:   100 * time.Millisecond,
		maxPages: 50,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.quota == nil {
		cfg.quota = storage.NewMemoryBackend(1, 1)
	}

	httpClient := xhttp.NewHTTPClient(xhttp.WithTimeout(cfg.timeout))
	return &Client{
		OAuth:      provider.NewOAuth(wearable.ProviderFitbit, config.oauth2(cfg.endpoint), httpClient, false),
		baseURL:    cfg.baseURL,
		httpClient: httpClient,
		quota:      provider.NewQuotaTracker(wearable.ProviderFitbit, provider.FitbitQuotaHeaders, cfg.quota),
		pacer:      provider.NewPacer(cfg.pacing),
		maxPages:   cfg.maxPages,
	}
}

func (c *Client) Provider() wearable.Provider { return wearable.ProviderFitbit }

func (c *Client) DataTypes() []wearable.DataType { return wearable.DataTypes() }

// ExchangeCode takes the Fitbit user id from the token response, which
// carries it alongside the tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*provider.Grant, error) {
	tok, err := c.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	grant := &provider.Grant{Token: tok}
	if id, ok := tok.Extra("user_id").(string); ok {
		grant.ProviderUserID = id
	}
	return grant, nil
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return c.Refresh(ctx, refreshToken)
}

func (c *Client) RevokeToken(ctx context.Context, token *oauth2.Token) error {
	form := url.Values{"token": []string{token.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	cfg := c.Config()
	req.SetBasicAuth(url.QueryEscape(cfg.ClientID), url.QueryEscape(cfg.ClientSecret))
	req.Header.Set(xhttp.ContentType, "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveProviderRequest(string(wearable.ProviderFitbit), metrics.OpRevokeToken, 0, time.Since(start))
		return fmt.Errorf("revoking fitbit token: %w", provider.ClassifyTransport(err))
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ObserveProviderRequest(string(wearable.ProviderFitbit), metrics.OpRevokeToken, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("revoking fitbit token: %w", provider.ClassifyResponse(wearable.ProviderFitbit, resp, parseAPIError(resp)))
	}
	return nil
}

// get issues a paced, quota-checked GET. target is a path under the base URL
// or an absolute URL on the same host, as Fitbit returns for pagination.
func (c *Client) get(ctx context.Context, token *oauth2.Token, op string, target string, query url.Values, result any) error {
	u := target
	if !strings.HasPrefix(target, "http") {
		u = c.baseURL + target
	} else if !strings.HasPrefix(target, c.baseURL+"/") {
		return fmt.Errorf("refusing to follow link outside %s: %s", c.baseURL, target)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	if err := c.quota.Check(ctx, token.AccessToken); err != nil {
		return err
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("waiting to pace request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	xhttp.SetRequestHeaderBearer(req, token.AccessToken)
	xhttp.SetRequestHeaderAcceptJSON(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveProviderRequest(string(wearable.ProviderFitbit), op, 0, time.Since(start))
		return fmt.Errorf("executing request: %w", provider.ClassifyTransport(err))
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.ObserveProviderRequest(string(wearable.ProviderFitbit), op, resp.StatusCode, time.Since(start))
	c.quota.Observe(ctx, token.AccessToken, resp)

	if resp.StatusCode >= 400 {
		return provider.ClassifyResponse(wearable.ProviderFitbit, resp, parseAPIError(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", provider.ClassifyTransport(err))
	}
	if err := go_json.NewDecoder(bytes.NewReader(body)).Decode(result); err != nil {
		xslog.FromContext(ctx).DebugContext(ctx, "undecodable fitbit response",
			xslog.Provider(wearable.ProviderFitbit), xslog.Error(err))
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
