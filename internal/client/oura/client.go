package oura

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
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

const defaultBaseURL = "https://api.ouraring.com"

var _ provider.Client = (*Client)(nil)

type Client struct {
	*provider.OAuth

	baseURL    string
	httpClient *http.Client
	maxPages   int
}

type clientConfig struct {
	baseURL  string
	endpoint oauth2.Endpoint
	timeout  time.Duration
	maxPages int
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
		maxPages: 50,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := xhttp.NewHTTPClient(xhttp.WithTimeout(cfg.timeout))
	return &Client{
		OAuth:      provider.NewOAuth(wearable.ProviderOura, config.oauth2(cfg.endpoint), httpClient, false),
		baseURL:    cfg.baseURL,
		httpClient: httpClient,
		maxPages:   cfg.maxPages,
	}
}

func (c *Client) Provider() wearable.Provider { return wearable.ProviderOura }

func (c *Client) DataTypes() []wearable.DataType { return wearable.DataTypes() }

func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*provider.Grant, error) {
	tok, err := c.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	grant := &provider.Grant{Token: tok}

	var info PersonalInfo
	if err := c.do(ctx, tok, metrics.OpGetUser, http.MethodGet, "/v2/usercollection/personal_info", nil, &info); err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "failed to fetch oura personal info",
			xslog.Provider(wearable.ProviderOura), xslog.Error(err))
		return grant, nil
	}
	grant.ProviderUserID = info.ID
	return grant, nil
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return c.Refresh(ctx, refreshToken)
}

// RevokeToken invalidates the access token. Oura takes it as a query parameter.
func (c *Client) RevokeToken(ctx context.Context, token *oauth2.Token) error {
	q := url.Values{"access_token": []string{token.AccessToken}}
	if err := c.do(ctx, token, metrics.OpRevokeToken, http.MethodGet, "/oauth/revoke", q, nil); err != nil {
		return fmt.Errorf("revoking oura token: %w", err)
	}
	return nil
}

// list reads every page of a usercollection endpoint for the date range.
// end_date is exclusive on Oura's side, so the range end is pushed a day out.
func (c *Client) list(ctx context.Context, token *oauth2.Token, op, collection string, r wearable.DateRange) ([]go_json.RawMessage, error) {
	q := url.Values{
		"start_date": []string{r.StartDate()},
		"end_date":   []string{r.End.UTC().AddDate(0, 0, 1).Format(wearable.DateLayout)},
	}
	path := "/v2/usercollection/" + collection

	var out []go_json.RawMessage
	for page := 1; ; page++ {
		var resp Page
		if err := c.do(ctx, token, op, http.MethodGet, path, q, &resp); err != nil {
			return nil, fmt.Errorf("listing %s: %w", collection, err)
		}
		out = append(out, resp.Data...)

		if resp.NextToken == nil || *resp.NextToken == "" {
			return out, nil
		}
		if page >= c.maxPages {
			xslog.FromContext(ctx).WarnContext(ctx, "pagination limit reached, remaining pages skipped",
				xslog.Provider(wearable.ProviderOura), slog.String("collection", collection), xslog.Count(len(out)))
			provider.ReportTruncated(ctx, lastDay(out))
			return out, nil
		}
		q.Set("next_token", *resp.NextToken)
	}
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
		metrics.ObserveProviderRequest(string(wearable.ProviderOura), op, 0, time.Since(start))
		return fmt.Errorf("executing request: %w", provider.ClassifyTransport(err))
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.ObserveProviderRequest(string(wearable.ProviderOura), op, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		return provider.ClassifyResponse(wearable.ProviderOura, resp, parseAPIError(resp))
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
