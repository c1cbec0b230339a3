package whoop

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xhttp"
	"github.com/artemis-health/artemis/internal/xslog"
	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

var _ provider.Client = (*Client)(nil)

// Client adapts the WHOOP API to provider.Client.
type Client struct {
	*provider.OAuth
	cfg *clientConfig
}

func New(config Config, opts ...Option) *Client {
	cfg := newConfig(opts)
	httpClient := xhttp.NewHTTPClient(xhttp.WithTimeout(cfg.timeout))
	return &Client{
		OAuth: provider.NewOAuth(wearable.ProviderWhoop, config.oauth2(cfg.endpoint), httpClient, false),
		cfg:   cfg,
	}
}

func (c *Client) Provider() wearable.Provider { return wearable.ProviderWhoop }

func (c *Client) DataTypes() []wearable.DataType { return wearable.DataTypes() }

func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*provider.Grant, error) {
	tok, err := c.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	grant := &provider.Grant{Token: tok}
	profile, err := c.api(tok).User.GetProfile(ctx)
	if err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "failed to fetch whoop profile",
			xslog.Provider(wearable.ProviderWhoop), xslog.Error(err))
		return grant, nil
	}
	grant.ProviderUserID = strconv.FormatInt(profile.UserID, 10)
	return grant, nil
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return c.Refresh(ctx, refreshToken)
}

func (c *Client) RevokeToken(ctx context.Context, token *oauth2.Token) error {
	if err := c.api(token).User.RevokeAccess(ctx); err != nil {
		return fmt.Errorf("revoking whoop access: %w", err)
	}
	return nil
}

// Cycles and sleeps dated on the first day of r usually begin the evening
// before it.
const lookback = 24 * time.Hour

// window converts r's calendar days into the start-time filter Whoop applies.
func window(r wearable.DateRange) (start, end time.Time) {
	start, end = r.Bounds()
	return start.Add(-lookback), end
}

// FetchRecovery returns each recovery paired with its sleep so it can be dated
// on the user's local wake day.
func (c *Client) FetchRecovery(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	api := c.api(token)
	start, end := window(r)
	recoveries, err := listAll(ctx, api.Recovery.List, start, end, c.cfg.maxPages)
	if err != nil {
		return nil, fmt.Errorf("listing recoveries: %w", err)
	}
	if len(recoveries) == 0 {
		return nil, nil
	}
	sleeps, err := listAll(ctx, api.Sleep.List, start, end, c.cfg.maxPages)
	if err != nil {
		return nil, fmt.Errorf("listing sleeps: %w", err)
	}

	byID := make(map[string]go_json.RawMessage, len(sleeps))
	for _, raw := range sleeps {
		var s struct {
			ID string `json:"id"`
		}
		if err := go_json.Unmarshal(raw, &s); err == nil && s.ID != "" {
			byID[s.ID] = raw
		}
	}

	paired := make([]go_json.RawMessage, 0, len(recoveries))
	for _, raw := range recoveries {
		var rec struct {
			SleepID string `json:"sleep_id"`
		}
		_ = go_json.Unmarshal(raw, &rec)
		payload, err := go_json.Marshal(RecoverySleep{Recovery: raw, Sleep: byID[rec.SleepID]})
		if err != nil {
			return nil, fmt.Errorf("encoding recovery: %w", err)
		}
		paired = append(paired, payload)
	}
	return tag(wearable.DataTypeRecovery, KindRecoverySleep, paired), nil
}

func (c *Client) FetchSleep(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	api := c.api(token)
	start, end := window(r)
	payloads, err := listAll(ctx, api.Sleep.List, start, end, c.cfg.maxPages)
	if err != nil {
		return nil, fmt.Errorf("listing sleeps: %w", err)
	}
	return tag(wearable.DataTypeSleep, KindSleep, payloads), nil
}

// FetchActivity returns physiological cycles, which become daily aggregates,
// followed by individual workouts.
func (c *Client) FetchActivity(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	api := c.api(token)
	start, end := window(r)

	cycles, err := listAll(ctx, api.Cycle.List, start, end, c.cfg.maxPages)
	if err != nil {
		return nil, fmt.Errorf("listing cycles: %w", err)
	}
	workouts, err := listAll(ctx, api.Workout.List, start, end, c.cfg.maxPages)
	if err != nil {
		return nil, fmt.Errorf("listing workouts: %w", err)
	}

	out := tag(wearable.DataTypeActivity, KindCycle, cycles)
	return append(out, tag(wearable.DataTypeActivity, KindWorkout, workouts)...), nil
}

func (c *Client) api(token *oauth2.Token) *API {
	return c.cfg.api(oauth2.StaticTokenSource(token))
}

func tag(dt wearable.DataType, kind string, payloads []go_json.RawMessage) []wearable.RawRecord {
	out := make([]wearable.RawRecord, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, wearable.RawRecord{
			Provider: wearable.ProviderWhoop,
			DataType: dt,
			Kind:     kind,
			Payload:  p,
		})
	}
	return out
}
