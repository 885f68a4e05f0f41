package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-session/internal/auth"
	"github.com/spec-kit/marketplace-session/internal/domain"
	"github.com/spec-kit/marketplace-session/internal/events"
	"github.com/spec-kit/marketplace-session/internal/navigation"
	"github.com/spec-kit/marketplace-session/internal/repository"
)

// SessionDependencies bundles collaborators of the session service.
type SessionDependencies struct {
	Store      repository.CredentialStore
	Navigator  navigation.Navigator
	Dispatcher events.Dispatcher
	RootPath   string
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// SessionService owns the session derived from the credential store for one
// client context. It is the only component that derives a Session.
type SessionService struct {
	store      repository.CredentialStore
	nav        navigation.Navigator
	dispatcher events.Dispatcher
	rootPath   string
	logger     *zap.Logger
	now        func() time.Time

	// opMu serializes transitions and guards active and unsubscribe; mu
	// guards the fields read by Session.
	opMu        sync.Mutex
	mu          sync.RWMutex
	state       domain.SessionState
	identity    *domain.Identity
	active      bool
	unsubscribe []func()
}

// NewSessionService builds an uninitialized session service.
func NewSessionService(deps SessionDependencies) *SessionService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	root := deps.RootPath
	if root == "" {
		root = "/"
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		store:      deps.Store,
		nav:        deps.Navigator,
		dispatcher: deps.Dispatcher,
		rootPath:   root,
		logger:     logger,
		now:        clock,
		state:      domain.SessionUninitialized,
	}
}

// Session returns a snapshot of the current session.
func (s *SessionService) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewSession(s.state, copyIdentity(s.identity))
}

// Activate performs the initial derivation and starts following external
// changes. Calling it on an active service is a no-op. A store read failure is
// returned after the session has settled as anonymous.
func (s *SessionService) Activate(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.active {
		return nil
	}
	s.active = true

	s.mu.Lock()
	s.state = domain.SessionLoading
	s.mu.Unlock()

	s.unsubscribe = append(s.unsubscribe, s.store.OnExternalChange(s.onStoreChange))
	if s.dispatcher != nil {
		s.unsubscribe = append(s.unsubscribe, s.dispatcher.Subscribe(events.EventCredentialBroadcast, s.onBroadcast))
	}

	raw, ok, err := s.store.Get(ctx, domain.KeyAuthToken)
	if err != nil {
		s.logger.Error("read credential on activation", zap.Error(err))
		s.setState(ctx, domain.SessionAnonymous, nil, "activate")
		return fmt.Errorf("read credential: %w", err)
	}
	if !ok {
		s.setState(ctx, domain.SessionAnonymous, nil, "activate")
		return nil
	}
	s.applyCredential(ctx, raw, "activate")
	return nil
}

// Deactivate stops following external changes. A later Activate starts a new
// derivation.
func (s *SessionService) Deactivate() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	for _, fn := range s.unsubscribe {
		fn()
	}
	s.unsubscribe = nil
	s.active = false

	s.mu.Lock()
	s.state = domain.SessionUninitialized
	s.identity = nil
	s.mu.Unlock()
}

// Adopt persists credential and derives the session from it. A credential that
// fails validation is logged and leaves the session unchanged; the write stays.
//
// An inactive service is activated first so it keeps following other contexts.
// Store writes happen outside opMu: an in-process store notifies other
// contexts synchronously and those may be writing back at the same time.
func (s *SessionService) Adopt(ctx context.Context, credential string) error {
	if err := s.Activate(ctx); err != nil {
		s.logger.Warn("activation before adopt", zap.Error(err))
	}

	if err := s.store.Set(ctx, domain.KeyAuthToken, credential); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}

	claims, err := auth.ValidateCredential(credential, s.now())
	if err != nil {
		s.logger.Warn("adopted credential rejected", zap.Error(err))
		return nil
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.setState(ctx, domain.SessionAuthenticated, claims.Identity(), "adopt")
	return nil
}

// Terminate clears the credential, settles the session as anonymous and
// navigates to the application root. The navigation happens on every call,
// whatever the current state and whether or not the store write succeeded.
func (s *SessionService) Terminate(ctx context.Context) error {
	err := s.store.Delete(ctx, domain.KeyAuthToken)
	if err != nil {
		s.logger.Error("clear credential", zap.Error(err))
		err = fmt.Errorf("clear credential: %w", err)
	}

	s.opMu.Lock()
	s.setState(ctx, domain.SessionAnonymous, nil, "terminate")
	s.opMu.Unlock()

	s.nav.Navigate(ctx, navigation.To(s.rootPath, domain.ReasonTerminate))
	return err
}

func (s *SessionService) onStoreChange(ctx context.Context, change repository.Change) {
	if change.Key != domain.KeyAuthToken {
		return
	}
	s.rederive(ctx, change.Value, change.Present, "external_change")
}

func (s *SessionService) onBroadcast(ctx context.Context, event events.Event) error {
	var token string
	switch p := event.Payload.(type) {
	case events.CredentialBroadcastPayload:
		token = p.Token
	case *events.CredentialBroadcastPayload:
		if p != nil {
			token = p.Token
		}
	default:
		return fmt.Errorf("unexpected %s payload %T", event.Type, event.Payload)
	}
	s.rederive(ctx, token, token != "", "broadcast")
	return nil
}

// rederive replaces the session from an externally observed value. An absent
// value ends the session without navigating.
func (s *SessionService) rederive(ctx context.Context, raw string, present bool, cause string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !present || raw == "" {
		s.setState(ctx, domain.SessionAnonymous, nil, cause)
		return
	}
	s.applyCredential(ctx, raw, cause)
}

func (s *SessionService) applyCredential(ctx context.Context, raw, cause string) {
	claims, err := auth.ValidateCredential(raw, s.now())
	if err != nil {
		s.logger.Debug("credential not usable", zap.String("cause", cause), zap.Error(err))
		s.setState(ctx, domain.SessionAnonymous, nil, cause)
		return
	}
	s.setState(ctx, domain.SessionAuthenticated, claims.Identity(), cause)
}

func (s *SessionService) setState(ctx context.Context, state domain.SessionState, identity *domain.Identity, cause string) {
	s.mu.Lock()
	old := s.state
	changed := old != state || !sameIdentity(s.identity, identity)
	s.state = state
	s.identity = identity
	s.mu.Unlock()

	if !changed || s.dispatcher == nil {
		return
	}
	payload := events.SessionChangedPayload{OldState: old, NewState: state, Cause: cause}
	if identity != nil {
		id := identity.ID
		payload.IdentityID = &id
		payload.Role = identity.Role
	}
	if err := s.dispatcher.Publish(ctx, events.NewEvent(events.EventSessionChanged, payload)); err != nil {
		s.logger.Warn("session_changed handlers failed", zap.Error(err))
	}
}

func sameIdentity(a, b *domain.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.DisplayName != b.DisplayName || a.Role != b.Role {
		return false
	}
	if a.StoreID == nil || b.StoreID == nil {
		return a.StoreID == b.StoreID
	}
	return *a.StoreID == *b.StoreID
}

func copyIdentity(i *domain.Identity) *domain.Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.StoreID != nil {
		id := *i.StoreID
		c.StoreID = &id
	}
	return &c
}
