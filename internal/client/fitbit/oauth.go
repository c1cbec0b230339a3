package fitbit

import "golang.org/x/oauth2"

// Endpoint uses HTTP basic auth with the client credentials on the token
// endpoint, as Fitbit requires.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://www.fitbit.com/oauth2/authorize",
	TokenURL:  "https://api.fitbit.com/oauth2/token", //nolint:gosec // not credentials, just endpoint URL
	AuthStyle: oauth2.AuthStyleInHeader,
}

var scopes = []string{"activity", "heartrate", "sleep", "oxygen_saturation", "profile"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c Config) oauth2(endpoint oauth2.Endpoint) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}
