package oura

import "golang.org/x/oauth2"

var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://cloud.ouraring.com/oauth/authorize",
	TokenURL:  "https://api.ouraring.com/oauth/token", //nolint:gosec // not credentials, just endpoint URL
	AuthStyle: oauth2.AuthStyleInParams,
}

var scopes = []string{"personal", "daily", "heartrate", "workout", "spo2"}

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
