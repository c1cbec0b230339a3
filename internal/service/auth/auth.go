package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/service/token"
	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/xslog"
	"golang.org/x/oauth2"
)

const (
	stateTTL        = 10 * time.Minute
	stateLength     = 32
	exchangeTimeout = 15 * time.Second
)

type BackgroundSyncer interface {
	SyncInBackground(ctx context.Context, userID string)
}

type OAuth struct {
	registry   *provider.Registry
	stateStore storage.StateStore
	tokens     token.Store
	syncer     BackgroundSyncer
}

var _ Service = (*OAuth)(nil)

func NewOAuth(
	registry *provider.Registry,
	stateStore storage.StateStore,
	tokens token.Store,
	syncer BackgroundSyncer,
) *OAuth {
	return &OAuth{
		registry:   registry,
		stateStore: stateStore,
		tokens:     tokens,
		syncer:     syncer,
	}
}

func (s *OAuth) StartConnect(ctx context.Context, req StartConnectRequest) (*StartConnectResult, error) {
	client, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	entry := storage.StateEntry{
		UserID:    req.UserID,
		Provider:  string(req.Provider),
		CreatedAt: time.Now(),
	}
	if client.UsesPKCE() {
		entry.Verifier = oauth2.GenerateVerifier()
	}

	if err := s.stateStore.Set(ctx, state, entry, stateTTL); err != nil {
		return nil, fmt.Errorf("storing state: %w", err)
	}

	return &StartConnectResult{AuthURL: client.AuthCodeURL(state, entry.Verifier)}, nil
}

func (s *OAuth) HandleCallback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	if req.State == "" {
		return nil, ErrInvalidState
	}

	entry, err := s.stateStore.GetAndDelete(ctx, req.State)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving state: %w", err)
	}
	if entry.Provider != string(req.Provider) {
		return nil, ErrInvalidState
	}

	if req.ErrorCode != "" {
		return nil, &AuthError{
			Err:       ErrAuthDenied,
			Provider:  req.Provider,
			ErrorCode: req.ErrorCode,
			ErrorDesc: req.ErrorDesc,
		}
	}

	if req.Code == "" {
		return nil, &AuthError{
			Err:       ErrInvalidState,
			Provider:  req.Provider,
			ErrorCode: "invalid_request",
			ErrorDesc: "missing authorization code",
		}
	}

	client, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	grant, err := client.ExchangeCode(exchangeCtx, req.Code, entry.Verifier)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}

	in, err := s.tokens.SaveTokens(ctx, entry.UserID, req.Provider, grant)
	if err != nil {
		return nil, err
	}

	xslog.FromContext(ctx).InfoContext(ctx, "wearable connected",
		xslog.UserID(entry.UserID), xslog.Provider(req.Provider))

	if s.syncer != nil {
		s.syncer.SyncInBackground(ctx, entry.UserID)
	}

	return &CallbackResult{UserID: entry.UserID, Integration: in}, nil
}

func generateState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

