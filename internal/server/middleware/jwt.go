package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/artemis-health/artemis/internal/xcontext"
	"github.com/artemis-health/artemis/internal/xerrors"
	"github.com/artemis-health/artemis/internal/xslog"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

var ErrMissingSubject = errors.New("token has no subject")

type KeySource interface {
	KeySet(ctx context.Context) (jwk.Set, error)
}

// StaticKeys serves a fixed key set.
type StaticKeys struct {
	Set jwk.Set
}

func (s StaticKeys) KeySet(context.Context) (jwk.Set, error) { return s.Set, nil }

// RemoteKeys fetches a JWKS document and keeps it for ttl.
type RemoteKeys struct {
	url string
	ttl time.Duration

	mu        sync.Mutex
	set       jwk.Set
	fetchedAt time.Time
}

func NewRemoteKeys(url string, ttl time.Duration) *RemoteKeys {
	return &RemoteKeys{url: url, ttl: ttl}
}

func (k *RemoteKeys) KeySet(ctx context.Context) (jwk.Set, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.set != nil && time.Since(k.fetchedAt) < k.ttl {
		return k.set, nil
	}

	set, err := jwk.Fetch(ctx, k.url)
	if err != nil {
		if k.set != nil {
			xslog.FromContext(ctx).WarnContext(ctx, "failed to refresh JWKS, using cached keys", xslog.Error(err))
			return k.set, nil
		}
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	k.set, k.fetchedAt = set, time.Now()
	return set, nil
}

// JWTVerifier checks access tokens issued by the identity provider.
type JWTVerifier struct {
	keys     KeySource
	issuer   string
	audience string
}

func NewJWTVerifier(keys KeySource, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{keys: keys, issuer: issuer, audience: audience}
}

// Verify parses the bearer token on r and returns its subject.
func (v *JWTVerifier) Verify(r *http.Request) (string, error) {
	set, err := v.keys.KeySet(r.Context())
	if err != nil {
		return "", err
	}

	opts := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithValidate(true)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	tok, err := jwt.ParseRequest(r, opts...)
	if err != nil {
		return "", err
	}

	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return "", ErrMissingSubject
	}
	return sub, nil
}

// JWTAuth rejects requests without a valid access token and puts the
// token's subject in context as the user id.
func JWTAuth(v *JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, err := v.Verify(r)
			if err != nil {
				xerrors.WriteError(ctx, w, xerrors.Unauthorized(
					xerrors.WithMessage("invalid or missing access token"),
					xerrors.WithCause(err),
				))
				return
			}

			ctx = xcontext.SetUserID(ctx, userID)
			ctx = xslog.WithAttrs(ctx, xslog.UserID(userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
