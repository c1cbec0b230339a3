package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/wearable"
	"golang.org/x/oauth2"
)

// OAuth wraps an oauth2.Config with the vendor's HTTP client, PKCE mode and
// error classification. Vendor clients embed it.
type OAuth struct {
	provider   wearable.Provider
	config     *oauth2.Config
	httpClient *http.Client
	pkce       bool
}

func NewOAuth(p wearable.Provider, config *oauth2.Config, httpClient *http.Client, pkce bool) *OAuth {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuth{
		provider:   p,
		config:     config,
		httpClient: httpClient,
		pkce:       pkce,
	}
}

func (o *OAuth) UsesPKCE() bool { return o.pkce }

func (o *OAuth) AuthCodeURL(state, verifier string) string {
	var opts []oauth2.AuthCodeOption
	if o.pkce && verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return o.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a token.
func (o *OAuth) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if o.pkce {
		if verifier == "" {
			return nil, errors.New("missing PKCE verifier")
		}
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	start := time.Now()
	tok, err := o.config.Exchange(o.context(ctx), code, opts...)
	metrics.ObserveProviderRequest(string(o.provider), metrics.OpExchangeCode, tokenStatus(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", ClassifyTokenError(o.provider, err))
	}
	return tok, nil
}

// Refresh trades a refresh token for a new token. Vendors that do not rotate
// refresh tokens get the old one carried over.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", wearable.ErrNotConnected)
	}

	start := time.Now()
	src := o.config.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	metrics.ObserveProviderRequest(string(o.provider), metrics.OpRefreshToken, tokenStatus(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", ClassifyTokenError(o.provider, err))
	}
	return tok, nil
}

func (o *OAuth) Config() *oauth2.Config { return o.config }

func (o *OAuth) HTTPClient() *http.Client { return o.httpClient }

func (o *OAuth) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func tokenStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}
