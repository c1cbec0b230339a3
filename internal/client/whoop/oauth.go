package whoop

import "golang.org/x/oauth2"

var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://api.prod.whoop.com/oauth/oauth2/auth",
	TokenURL:  "https://api.prod.whoop.com/oauth/oauth2/token", //nolint:gosec // not credentials, just endpoint URL
	AuthStyle: oauth2.AuthStyleInParams,
}

var scopes = []string{
	"offline",
	"read:recovery",
	"read:cycles",
	"read:sleep",
	"read:workout",
	"read:profile",
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
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}
