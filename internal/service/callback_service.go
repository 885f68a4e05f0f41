package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-session/internal/auth"
	"github.com/spec-kit/marketplace-session/internal/config"
	"github.com/spec-kit/marketplace-session/internal/domain"
	"github.com/spec-kit/marketplace-session/internal/navigation"
	"github.com/spec-kit/marketplace-session/internal/repository"
)

// CredentialAdopter persists a credential and re-derives the session from it.
type CredentialAdopter interface {
	Adopt(ctx context.Context, credential string) error
}

// SellerUpgrader requests a seller upgrade for a credential.
type SellerUpgrader interface {
	RequestUpgrade(ctx context.Context, credential string) UpgradeResult
}

// CallbackParams is what the identity provider hands back on the callback route.
type CallbackParams struct {
	Credential string
	Error      string
}

// CallbackDependencies bundles collaborators of the callback service.
type CallbackDependencies struct {
	Store     repository.CredentialStore
	Sessions  CredentialAdopter
	Upgrader  SellerUpgrader
	Navigator navigation.Navigator
	Routes    config.RoutesConfig
	Logger    *zap.Logger
}

// CallbackService resolves a return from the identity provider into exactly
// one navigation.
type CallbackService struct {
	store    repository.CredentialStore
	sessions CredentialAdopter
	upgrader SellerUpgrader
	nav      navigation.Navigator
	routes   config.RoutesConfig
	logger   *zap.Logger

	mu sync.Mutex
}

// NewCallbackService builds the service.
func NewCallbackService(deps CallbackDependencies) *CallbackService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackService{
		store:    deps.Store,
		sessions: deps.Sessions,
		upgrader: deps.Upgrader,
		nav:      deps.Navigator,
		routes:   deps.Routes,
		logger:   logger,
	}
}

// Handle runs the callback flow to completion and performs its navigation.
// Invocations are serialized; intent flags are consumed as they are read, so a
// replayed callback falls through to the root.
func (s *CallbackService) Handle(ctx context.Context, params CallbackParams) navigation.Target {
	s.mu.Lock()
	target := s.resolve(ctx, params)
	s.mu.Unlock()

	s.logger.Info("oauth callback resolved",
		zap.String("target", target.String()),
		zap.String("reason", string(target.Reason)))
	s.nav.Navigate(ctx, target)
	return target
}

func (s *CallbackService) resolve(ctx context.Context, params CallbackParams) navigation.Target {
	if target, ok := s.takeRedirect(ctx, domain.KeyRedirectAfterAuth, domain.ReasonResumeAfterAuth); ok {
		return target
	}

	if params.Error != "" {
		return navigation.To(s.routes.Login, domain.ReasonProviderError).WithError(params.Error)
	}
	if params.Credential == "" {
		return navigation.To(s.routes.Login, domain.ReasonMissingCredential)
	}

	if err := s.sessions.Adopt(ctx, params.Credential); err != nil {
		s.logger.Error("adopt callback credential", zap.Error(err))
	}
	claims, err := auth.DecodeCredential(params.Credential)
	if err != nil {
		s.logger.Warn("callback credential not decodable", zap.Error(err))
	}

	if s.takeFlag(ctx, domain.KeySellerRegistrationPending) {
		return s.upgrade(ctx, params.Credential, claims)
	}

	if target, ok := s.takeRedirect(ctx, domain.KeyOAuthRedirect, domain.ReasonOAuthRedirect); ok {
		return target
	}
	return navigation.To(s.routes.Root, domain.ReasonDefault)
}

func (s *CallbackService) upgrade(ctx context.Context, credential string, claims *auth.Claims) navigation.Target {
	result := s.upgrader.RequestUpgrade(ctx, credential)

	switch result.Outcome {
	case UpgradeIssued:
		if err := s.sessions.Adopt(ctx, result.Credential); err != nil {
			s.logger.Error("adopt seller credential", zap.Error(err))
		}
		return navigation.To(s.routes.SellerHome, domain.ReasonSellerIssued)
	case UpgradeAlreadySeller:
		// The role is read from an unverified payload. It only decides between
		// re-syncing and forcing a fresh seller login.
		if claims != nil && claims.Role == domain.RoleSeller {
			return navigation.To(s.routes.SellerHome, domain.ReasonSellerResync)
		}
		return navigation.To(s.routes.SellerLogin, domain.ReasonTokenMismatch).WithError(domain.NavErrorTokenMismatch)
	case UpgradeRejected:
		return navigation.To(s.routes.SellerLogin, domain.ReasonRegistrationFailed).WithError(domain.NavErrorRegistrationFailed)
	default:
		return navigation.To(s.routes.SellerLogin, domain.ReasonNetworkError).WithError(domain.NavErrorNetwork)
	}
}

func (s *CallbackService) takeFlag(ctx context.Context, key string) bool {
	val, ok, err := s.store.Take(ctx, key)
	if err != nil {
		s.logger.Error("consume intent flag", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok && val == domain.FlagTrue
}

func (s *CallbackService) takeRedirect(ctx context.Context, key string, reason domain.NavigationReason) (navigation.Target, bool) {
	val, ok, err := s.store.Take(ctx, key)
	if err != nil {
		s.logger.Error("consume redirect target", zap.String("key", key), zap.Error(err))
		return navigation.Target{}, false
	}
	if !ok || val == "" {
		return navigation.Target{}, false
	}
	if !navigation.IsLocalPath(val) {
		s.logger.Warn("discarding off-origin redirect target", zap.String("key", key), zap.String("target", val))
		return navigation.Target{}, false
	}
	return navigation.To(val, reason), true
}
