package provider

import (
	"context"
	"fmt"

	"github.com/artemis-health/artemis/internal/wearable"
	"golang.org/x/oauth2"
)

// Grant is the result of a successful authorization code exchange.
type Grant struct {
	Token          *oauth2.Token
	ProviderUserID string
}

// Client is the capability every wearable vendor implements. Fetch methods
// return vendor payloads untouched; normalization happens elsewhere.
type Client interface {
	Provider() wearable.Provider

	// DataTypes lists what the vendor offers, in sync order.
	DataTypes() []wearable.DataType

	// AuthCodeURL builds the consent URL. verifier is ignored unless UsesPKCE.
	AuthCodeURL(state, verifier string) string
	UsesPKCE() bool

	ExchangeCode(ctx context.Context, code, verifier string) (*Grant, error)
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	RevokeToken(ctx context.Context, token *oauth2.Token) error

	FetchRecovery(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error)
	FetchSleep(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error)
	FetchActivity(ctx context.Context, token *oauth2.Token, r wearable.DateRange) ([]wearable.RawRecord, error)
}

// Fetch dispatches to the fetch method for dt.
func Fetch(ctx context.Context, c Client, token *oauth2.Token, dt wearable.DataType, r wearable.DateRange) ([]wearable.RawRecord, error) {
	if !Supports(c, dt) {
		return nil, fmt.Errorf("%w: %s %s", wearable.ErrUnsupportedDataType, c.Provider(), dt)
	}

	switch dt {
	case wearable.DataTypeRecovery:
		return c.FetchRecovery(ctx, token, r)
	case wearable.DataTypeSleep:
		return c.FetchSleep(ctx, token, r)
	case wearable.DataTypeActivity:
		return c.FetchActivity(ctx, token, r)
	default:
		return nil, fmt.Errorf("%w: %s", wearable.ErrUnsupportedDataType, dt)
	}
}

func Supports(c Client, dt wearable.DataType) bool {
	for _, d := range c.DataTypes() {
		if d == dt {
			return true
		}
	}
	return false
}
