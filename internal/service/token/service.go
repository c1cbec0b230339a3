// Package token owns the OAuth token lifecycle of wearable integrations.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xslog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ExpiryBuffer is how long before expiry an access token is refreshed.
const ExpiryBuffer = 5 * time.Minute

const (
	lockTTL         = 30 * time.Second
	lockPoll        = 100 * time.Millisecond
	revokeTimeout   = 10 * time.Second
	refreshTimeout  = 30 * time.Second
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

type Store interface {
	GetValidToken(ctx context.Context, userID string, p wearable.Provider) (*oauth2.Token, error)
	SaveTokens(ctx context.Context, userID string, p wearable.Provider, grant *provider.Grant) (*wearable.Integration, error)
	Disconnect(ctx context.Context, userID string, p wearable.Provider) error
	Deactivate(ctx context.Context, in *wearable.Integration, cause error) error
}

var _ Store = (*Service)(nil)

type Service struct {
	repo     repository.IntegrationRepository
	registry *provider.Registry
	locker   storage.Locker
	flights  singleflight.Group
	now      func() time.Time
	attempts int
	backoff  time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRetry sets how many times a transient refresh failure is attempted and
// the initial backoff between attempts, which doubles on each retry.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		s.attempts = max(attempts, 1)
		s.backoff = backoff
	}
}

func New(repo repository.IntegrationRepository, registry *provider.Registry, locker storage.Locker, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		registry: registry,
		locker:   locker,
		now:      time.Now,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetValidToken returns an access token for the user's active integration,
// refreshing it first when it expires within ExpiryBuffer.
//
// Returns wearable.ErrNotConnected when there is no active integration or the
// vendor rejected the refresh, in which case the integration is deactivated.
// Returns wearable.ErrProviderUnavailable when the refresh kept failing
// transiently; the integration stays active.
func (s *Service) GetValidToken(ctx context.Context, userID string, p wearable.Provider) (*oauth2.Token, error) {
	in, err := s.active(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	if !in.ExpiresWithin(s.now(), ExpiryBuffer) {
		return in.Token(), nil
	}

	// The flight is detached from every caller; once the vendor rotates the
	// refresh token the new one has to reach the store.
	key := userID + ":" + string(p)
	ch := s.flights.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(fctx, userID, p)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", wearable.ErrProviderUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			metrics.TokenRefreshTotal.WithLabelValues(string(p), metrics.RefreshShared).Inc()
		}
		return res.Val.(*oauth2.Token), nil
	}
}

func (s *Service) refresh(ctx context.Context, userID string, p wearable.Provider) (*oauth2.Token, error) {
	logger := xslog.FromContext(ctx).With(xslog.UserID(userID), xslog.Provider(p))

	unlock, err := storage.Lock(ctx, s.locker, "token-refresh:"+userID+":"+string(p), lockTTL, lockPoll)
	if err != nil {
		return nil, fmt.Errorf("acquiring refresh lock: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.WarnContext(ctx, "failed to release refresh lock", xslog.Error(err))
		}
	}()

	// Another process may have refreshed while we waited for the lock.
	in, err := s.active(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	if !in.ExpiresWithin(s.now(), ExpiryBuffer) {
		metrics.TokenRefreshTotal.WithLabelValues(string(p), metrics.RefreshShared).Inc()
		return in.Token(), nil
	}

	client, err := s.registry.Get(p)
	if err != nil {
		return nil, err
	}

	tok, err := s.refreshWithRetry(ctx, client, in.RefreshToken)
	switch {
	case errors.Is(err, wearable.ErrNotConnected):
		metrics.TokenRefreshTotal.WithLabelValues(string(p), metrics.RefreshDeactivated).Inc()
		if derr := s.Deactivate(ctx, in, err); derr != nil {
			return nil, fmt.Errorf("deactivating integration: %w", derr)
		}
		return nil, err
	case err != nil:
		metrics.TokenRefreshTotal.WithLabelValues(string(p), metrics.RefreshTransient).Inc()
		logger.WarnContext(ctx, "token refresh failed transiently", xslog.Error(err))
		if errors.Is(err, wearable.ErrProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", wearable.ErrProviderUnavailable, err)
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = in.RefreshToken
	}
	if err := s.repo.UpdateTokens(ctx, in.ID, tok); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: integration disconnected during refresh", wearable.ErrNotConnected)
		}
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}

	metrics.TokenRefreshTotal.WithLabelValues(string(p), metrics.RefreshSuccess).Inc()
	logger.InfoContext(ctx, "refreshed access token")
	return tok, nil
}

func (s *Service) refreshWithRetry(ctx context.Context, client provider.Client, refreshToken string) (*oauth2.Token, error) {
	logger := xslog.FromContext(ctx)
	backoff := s.backoff

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		var tok *oauth2.Token
		tok, err = client.RefreshToken(ctx, refreshToken)
		if err == nil {
			return tok, nil
		}
		if errors.Is(err, wearable.ErrNotConnected) || ctx.Err() != nil || attempt == s.attempts {
			break
		}

		logger.DebugContext(ctx, "retrying token refresh",
			xslog.Provider(client.Provider()), xslog.Attempt(attempt), xslog.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, err
}

// SaveTokens stores a freshly granted token as the user's active integration,
// deactivating any previous one.
func (s *Service) SaveTokens(ctx context.Context, userID string, p wearable.Provider, grant *provider.Grant) (*wearable.Integration, error) {
	in := &wearable.Integration{
		UserID:         userID,
		Provider:       p,
		ProviderUserID: grant.ProviderUserID,
		AccessToken:    grant.Token.AccessToken,
		RefreshToken:   grant.Token.RefreshToken,
		TokenExpiry:    grant.Token.Expiry,
		Scopes:         grantedScopes(grant.Token),
		ConnectedAt:    s.now(),
	}
	if err := s.repo.Replace(ctx, in); err != nil {
		return nil, fmt.Errorf("saving integration: %w", err)
	}

	xslog.FromContext(ctx).InfoContext(ctx, "connected integration",
		xslog.UserID(userID), xslog.Provider(p))
	return in, nil
}

// Disconnect revokes the token with the vendor, best effort, and deactivates
// the integration.
func (s *Service) Disconnect(ctx context.Context, userID string, p wearable.Provider) error {
	in, err := s.active(ctx, userID, p)
	if err != nil {
		return err
	}

	logger := xslog.FromContext(ctx).With(xslog.UserID(userID), xslog.Provider(p))
	if client, err := s.registry.Get(p); err == nil {
		rctx, cancel := context.WithTimeout(ctx, revokeTimeout)
		if err := client.RevokeToken(rctx, in.Token()); err != nil {
			logger.WarnContext(ctx, "failed to revoke token with provider", xslog.Error(err))
		}
		cancel()
	}

	if err := s.repo.Deactivate(ctx, in.ID); err != nil {
		return fmt.Errorf("deactivating integration: %w", err)
	}
	logger.InfoContext(ctx, "disconnected integration")
	return nil
}

// Deactivate soft-deletes an integration the vendor no longer accepts.
func (s *Service) Deactivate(ctx context.Context, in *wearable.Integration, cause error) error {
	if err := s.repo.Deactivate(ctx, in.ID); err != nil {
		return err
	}
	xslog.FromContext(ctx).WarnContext(ctx, "deactivated integration",
		xslog.UserID(in.UserID), xslog.Provider(in.Provider), xslog.Error(cause))
	return nil
}

func (s *Service) active(ctx context.Context, userID string, p wearable.Provider) (*wearable.Integration, error) {
	in, err := s.repo.GetActive(ctx, userID, p)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", wearable.ErrNotConnected, p)
	}
	if err != nil {
		return nil, fmt.Errorf("loading integration: %w", err)
	}
	return in, nil
}

func grantedScopes(tok *oauth2.Token) []string {
	scope, _ := tok.Extra("scope").(string)
	if scope == "" {
		return nil
	}
	return strings.Fields(scope)
}
