package middleware_test

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artemis-health/artemis/internal/server/middleware"
	"github.com/artemis-health/artemis/internal/xcontext"
	go_json "github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	testIssuer   = "https://auth.example/auth/v1"
	testAudience = "authenticated"
)

type signer struct {
	key jwk.Key
	set jwk.Set
}

func newSigner(t *testing.T) *signer {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	key, err := jwk.Import(raw)
	if err != nil {
		t.Fatalf("jwk.Import() error = %v", err)
	}
	if err := key.Set(jwk.KeyIDKey, "test-key"); err != nil {
		t.Fatalf("Set(kid) error = %v", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256()); err != nil {
		t.Fatalf("Set(alg) error = %v", err)
	}

	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		t.Fatalf("PublicKeyOf() error = %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}
	return &signer{key: key, set: set}
}

func (s *signer) sign(t *testing.T, b *jwt.Builder) string {
	t.Helper()
	tok, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256(), s.key))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return string(signed)
}

func validClaims() *jwt.Builder {
	now := time.Now()
	return jwt.NewBuilder().
		Subject("user-1").
		Issuer(testIssuer).
		Audience([]string{testAudience}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour))
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()

	s := newSigner(t)
	other := newSigner(t)
	verifier := middleware.NewJWTVerifier(middleware.StaticKeys{Set: s.set}, testIssuer, testAudience)

	tests := []struct {
		name       string
		token      func(t *testing.T) string
		wantStatus int
		wantUser   string
	}{
		{
			name:       "valid token",
			token:      func(t *testing.T) string { return s.sign(t, validClaims()) },
			wantStatus: http.StatusOK,
			wantUser:   "user-1",
		},
		{
			name:       "missing header",
			token:      func(*testing.T) string { return "" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return s.sign(t, validClaims().Expiration(time.Now().Add(-time.Hour)))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				return s.sign(t, validClaims().Issuer("https://evil.example"))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				return s.sign(t, validClaims().Audience([]string{"anon"}))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown signing key",
			token:      func(t *testing.T) string { return other.sign(t, validClaims()) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage",
			token:      func(*testing.T) string { return "not.a.jwt" },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotUser string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = xcontext.GetUserID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/integrations", nil)
			if tok := tt.token(t); tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			rec := httptest.NewRecorder()

			middleware.JWTAuth(verifier)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user id = %q, want %q", gotUser, tt.wantUser)
			}
		})
	}
}

func TestRemoteKeys_CachesKeySet(t *testing.T) {
	t.Parallel()

	s := newSigner(t)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		buf, err := go_json.Marshal(s.set)
		if err != nil {
			t.Errorf("marshal key set: %v", err)
		}
		_, _ = w.Write(buf)
	}))
	t.Cleanup(srv.Close)

	keys := middleware.NewRemoteKeys(srv.URL, time.Hour)
	for range 3 {
		set, err := keys.KeySet(t.Context())
		if err != nil {
			t.Fatalf("KeySet() error = %v", err)
		}
		if set.Len() != 1 {
			t.Errorf("Len() = %d, want 1", set.Len())
		}
	}
	if calls != 1 {
		t.Errorf("JWKS fetched %d times, want 1", calls)
	}
}
