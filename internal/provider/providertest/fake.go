// Package providertest provides a scriptable provider.Client for tests.
package providertest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/wearable"
	"golang.org/x/oauth2"
)

var _ provider.Client = (*Client)(nil)

type FetchFunc func(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error)

// Client answers every call from its function fields. Nil functions return
// empty results. Counters are safe for concurrent use.
type Client struct {
	P     wearable.Provider
	Types []wearable.DataType
	PKCE  bool

	ExchangeFunc func(ctx context.Context, code, verifier string) (*provider.Grant, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	RevokeFunc   func(ctx context.Context, token *oauth2.Token) error
	Recovery     FetchFunc
	Sleep        FetchFunc
	Activity     FetchFunc

	RefreshCalls atomic.Int32
	RevokeCalls  atomic.Int32

	mu     sync.Mutex
	ranges map[wearable.DataType][]wearable.DateRange
}

func New(p wearable.Provider) *Client {
	return &Client{
		P:      p,
		Types:  wearable.DataTypes(),
		ranges: make(map[wearable.DataType][]wearable.DateRange),
	}
}

func (c *Client) Provider() wearable.Provider { return c.P }

func (c *Client) DataTypes() []wearable.DataType { return c.Types }

func (c *Client) AuthCodeURL(state, verifier string) string {
	u := "https://auth.example/" + string(c.P) + "?state=" + state
	if c.PKCE {
		u += "&verifier=" + verifier
	}
	return u
}

func (c *Client) UsesPKCE() bool { return c.PKCE }

func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*provider.Grant, error) {
	if c.ExchangeFunc == nil {
		return &provider.Grant{Token: &oauth2.Token{AccessToken: "access-" + code}}, nil
	}
	return c.ExchangeFunc(ctx, code, verifier)
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	c.RefreshCalls.Add(1)
	if c.RefreshFunc == nil {
		return &oauth2.Token{AccessToken: "refreshed", RefreshToken: refreshToken}, nil
	}
	return c.RefreshFunc(ctx, refreshToken)
}

func (c *Client) RevokeToken(ctx context.Context, token *oauth2.Token) error {
	c.RevokeCalls.Add(1)
	if c.RevokeFunc == nil {
		return nil
	}
	return c.RevokeFunc(ctx, token)
}

func (c *Client) FetchRecovery(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	return c.fetch(ctx, wearable.DataTypeRecovery, c.Recovery, token, r)
}

func (c *Client) FetchSleep(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	return c.fetch(ctx, wearable.DataTypeSleep, c.Sleep, token, r)
}

func (c *Client) FetchActivity(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	return c.fetch(ctx, wearable.DataTypeActivity, c.Activity, token, r)
}

// Ranges returns every window requested for dt, in call order.
func (c *Client) Ranges(dt wearable.DataType) []wearable.DateRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wearable.DateRange, len(c.ranges[dt]))
	copy(out, c.ranges[dt])
	return out
}

func (c *Client) fetch(ctx context.Context, dt wearable.DataType, fn FetchFunc, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error) {
	c.mu.Lock()
	if c.ranges == nil {
		c.ranges = make(map[wearable.DataType][]wearable.DateRange)
	}
	c.ranges[dt] = append(c.ranges[dt], r)
	c.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(ctx, token, r)
}
