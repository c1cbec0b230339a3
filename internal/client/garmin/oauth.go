package garmin

import "golang.org/x/oauth2"

// Garmin Connect uses OAuth 2.0 with PKCE and takes client credentials in the
// form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://connect.garmin.com/oauth2Confirm",
	TokenURL:  "https://diauth.garmin.com/di-oauth2-service/oauth/token", //nolint:gosec // not credentials, just endpoint URL
	AuthStyle: oauth2.AuthStyleInParams,
}

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
		Endpoint:     endpoint,
	}
}
