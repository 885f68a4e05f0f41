package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-session/internal/auth/authtest"
	"github.com/spec-kit/marketplace-session/internal/domain"
	"github.com/spec-kit/marketplace-session/internal/events"
	"github.com/spec-kit/marketplace-session/internal/navigation"
	"github.com/spec-kit/marketplace-session/internal/repository"
)

type sessionFixture struct {
	origin     *repository.MemoryOrigin
	store      repository.CredentialStore
	nav        *navigation.Capture
	dispatcher events.Dispatcher
	sessions   *SessionService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	origin := repository.NewMemoryOrigin()
	store := origin.NewContext()
	return newSessionFixtureWithStore(t, origin, store)
}

func newSessionFixtureWithStore(t *testing.T, origin *repository.MemoryOrigin, store repository.CredentialStore) *sessionFixture {
	t.Helper()

	nav := &navigation.Capture{}
	dispatcher := events.NewInMemoryDispatcher()
	sessions := NewSessionService(SessionDependencies{
		Store:      store,
		Navigator:  nav,
		Dispatcher: dispatcher,
		RootPath:   "/",
		Logger:     zap.NewNop(),
	})
	t.Cleanup(sessions.Deactivate)
	return &sessionFixture{origin: origin, store: store, nav: nav, dispatcher: dispatcher, sessions: sessions}
}

func TestSessionService_LoadingUntilActivated(t *testing.T) {
	f := newSessionFixture(t)

	before := f.sessions.Session()
	assert.True(t, before.IsLoading)
	assert.False(t, before.IsAuthenticated)

	require.NoError(t, f.sessions.Activate(context.Background()))

	after := f.sessions.Session()
	assert.False(t, after.IsLoading)
	assert.False(t, after.IsAuthenticated)
	assert.Equal(t, domain.SessionAnonymous, after.State)
	assert.Nil(t, after.Identity)
}

func TestSessionService_ActivateWithStoredCredential(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, domain.KeyAuthToken, authtest.Flat(t, 9, "seller", 4, time.Hour)))

	require.NoError(t, f.sessions.Activate(ctx))

	session := f.sessions.Session()
	assert.True(t, session.IsAuthenticated)
	assert.False(t, session.IsLoading)
	require.NotNil(t, session.Identity)
	assert.Equal(t, int64(9), session.Identity.ID)
	assert.Equal(t, domain.RoleSeller, session.Identity.Role)
	assert.Equal(t, int64(4), *session.Identity.StoreID)
}

func TestSessionService_ExpiredCredentialIsAnonymous(t *testing.T) {
	for _, role := range []string{"customer", "seller", "admin"} {
		t.Run(role, func(t *testing.T) {
			f := newSessionFixture(t)
			ctx := context.Background()
			require.NoError(t, f.store.Set(ctx, domain.KeyAuthToken, authtest.Flat(t, 1, role, 3, -time.Second)))

			require.NoError(t, f.sessions.Activate(ctx))
			assert.False(t, f.sessions.Session().IsAuthenticated)
		})
	}
}

func TestSessionService_ActivateTwiceIsNoop(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	var changes []events.SessionChangedPayload
	f.dispatcher.Subscribe(events.EventSessionChanged, func(_ context.Context, e events.Event) error {
		changes = append(changes, e.Payload.(events.SessionChangedPayload))
		return nil
	})

	require.NoError(t, f.sessions.Activate(ctx))
	require.NoError(t, f.sessions.Activate(ctx))

	require.Len(t, changes, 1)
	assert.Equal(t, domain.SessionLoading, changes[0].OldState)
	assert.Equal(t, domain.SessionAnonymous, changes[0].NewState)
}

func TestSessionService_AdoptFlatAndNestedShapes(t *testing.T) {
	tests := []struct {
		name       string
		credential func(t *testing.T) string
	}{
		{name: "flat", credential: func(t *testing.T) string { return authtest.Flat(t, 5, "seller", 11, time.Hour) }},
		{name: "nested", credential: func(t *testing.T) string { return authtest.Nested(t, 5, "seller", 11, time.Hour) }},
	}

	var identities []*domain.Identity
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t)
			ctx := context.Background()
			require.NoError(t, f.sessions.Activate(ctx))

			require.NoError(t, f.sessions.Adopt(ctx, tt.credential(t)))

			session := f.sessions.Session()
			require.True(t, session.IsAuthenticated)
			assert.Equal(t, domain.RoleSeller, session.Identity.Role)
			require.NotNil(t, session.Identity.StoreID)
			assert.Equal(t, int64(11), *session.Identity.StoreID)
			identities = append(identities, session.Identity)
		})
	}
	require.Len(t, identities, 2)
	assert.Equal(t, identities[0], identities[1])
}

func TestSessionService_AdoptInvalidKeepsStateAndWrite(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Activate(ctx))
	require.NoError(t, f.sessions.Adopt(ctx, authtest.Flat(t, 5, "customer", nil, time.Hour)))

	require.NoError(t, f.sessions.Adopt(ctx, "not-a-credential"))

	session := f.sessions.Session()
	assert.True(t, session.IsAuthenticated)
	assert.Equal(t, int64(5), session.Identity.ID)

	stored, ok, err := f.store.Get(ctx, domain.KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "not-a-credential", stored)
}

func TestSessionService_TerminateAlwaysNavigatesOnce(t *testing.T) {
	t.Run("authenticated", func(t *testing.T) {
		f := newSessionFixture(t)
		ctx := context.Background()
		require.NoError(t, f.sessions.Activate(ctx))
		require.NoError(t, f.sessions.Adopt(ctx, authtest.Flat(t, 5, "customer", nil, time.Hour)))

		require.NoError(t, f.sessions.Terminate(ctx))

		assert.False(t, f.sessions.Session().IsAuthenticated)
		_, ok, err := f.store.Get(ctx, domain.KeyAuthToken)
		require.NoError(t, err)
		assert.False(t, ok)
		require.Len(t, f.nav.Targets(), 1)
		assert.Equal(t, "/", f.nav.Targets()[0].String())
	})

	t.Run("already anonymous", func(t *testing.T) {
		f := newSessionFixture(t)
		ctx := context.Background()
		require.NoError(t, f.sessions.Activate(ctx))

		require.NoError(t, f.sessions.Terminate(ctx))
		require.NoError(t, f.sessions.Terminate(ctx))

		assert.Len(t, f.nav.Targets(), 2)
		for _, target := range f.nav.Targets() {
			assert.Equal(t, domain.ReasonTerminate, target.Reason)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		origin := repository.NewMemoryOrigin()
		store := &flakyStore{CredentialStore: origin.NewContext(), deleteErr: errors.New("store down")}
		f := newSessionFixtureWithStore(t, origin, store)

		err := f.sessions.Terminate(context.Background())
		assert.Error(t, err)
		assert.Len(t, f.nav.Targets(), 1)
		assert.Equal(t, domain.SessionAnonymous, f.sessions.Session().State)
	})
}

func TestSessionService_FollowsOtherContexts(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Activate(ctx))
	otherTab := f.origin.NewContext()

	require.NoError(t, otherTab.Set(ctx, domain.KeyAuthToken, authtest.Nested(t, 21, "admin", nil, time.Hour)))
	session := f.sessions.Session()
	require.True(t, session.IsAuthenticated)
	assert.Equal(t, domain.RoleAdmin, session.Identity.Role)

	require.NoError(t, otherTab.Set(ctx, domain.KeyOAuthRedirect, "/cart"))
	assert.True(t, f.sessions.Session().IsAuthenticated)

	require.NoError(t, otherTab.Delete(ctx, domain.KeyAuthToken))
	assert.False(t, f.sessions.Session().IsAuthenticated)
	assert.Empty(t, f.nav.Targets(), "external logout must not navigate")

	require.NoError(t, otherTab.Set(ctx, domain.KeyAuthToken, "garbage"))
	assert.Equal(t, domain.SessionAnonymous, f.sessions.Session().State)
}

func TestSessionService_FollowsBroadcasts(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Activate(ctx))

	credential := authtest.Flat(t, 8, "seller", 2, time.Hour)
	require.NoError(t, f.dispatcher.Publish(ctx, events.NewEvent(events.EventCredentialBroadcast,
		events.CredentialBroadcastPayload{Token: credential})))
	assert.True(t, f.sessions.Session().IsAuthenticated)

	require.NoError(t, f.dispatcher.Publish(ctx, events.NewEvent(events.EventCredentialBroadcast,
		&events.CredentialBroadcastPayload{})))
	assert.False(t, f.sessions.Session().IsAuthenticated)
	assert.Empty(t, f.nav.Targets())

	err := f.dispatcher.Publish(ctx, events.NewEvent(events.EventCredentialBroadcast, "bogus"))
	assert.Error(t, err)
}

func TestSessionService_DeactivateStopsFollowing(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Activate(ctx))
	f.sessions.Deactivate()

	require.NoError(t, f.origin.NewContext().Set(ctx, domain.KeyAuthToken, authtest.Flat(t, 1, "customer", nil, time.Hour)))

	session := f.sessions.Session()
	assert.Equal(t, domain.SessionUninitialized, session.State)
	assert.False(t, session.IsAuthenticated)

	require.NoError(t, f.sessions.Activate(ctx))
	assert.True(t, f.sessions.Session().IsAuthenticated)
}

func TestSessionService_AdoptBeforeActivateStillFollowsOtherContexts(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sessions.Adopt(ctx, authtest.Flat(t, 6, "seller", 1, time.Hour)))
	require.NoError(t, f.sessions.Activate(ctx))
	require.True(t, f.sessions.Session().IsAuthenticated)

	require.NoError(t, f.origin.NewContext().Delete(ctx, domain.KeyAuthToken))

	session := f.sessions.Session()
	assert.Equal(t, domain.SessionAnonymous, session.State)
	assert.False(t, session.IsAuthenticated)

	credential := authtest.Flat(t, 7, "customer", nil, time.Hour)
	require.NoError(t, f.dispatcher.Publish(ctx, events.NewEvent(events.EventCredentialBroadcast,
		events.CredentialBroadcastPayload{Token: credential})))
	assert.Equal(t, int64(7), f.sessions.Session().Identity.ID)
}

func TestSessionService_ActivateReadFailure(t *testing.T) {
	origin := repository.NewMemoryOrigin()
	store := &flakyStore{CredentialStore: origin.NewContext(), getErr: errors.New("store down")}
	f := newSessionFixtureWithStore(t, origin, store)

	err := f.sessions.Activate(context.Background())
	assert.Error(t, err)
	session := f.sessions.Session()
	assert.Equal(t, domain.SessionAnonymous, session.State)
	assert.False(t, session.IsLoading)
}

func TestSessionService_SessionReturnsCopies(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Activate(ctx))
	require.NoError(t, f.sessions.Adopt(ctx, authtest.Flat(t, 5, "seller", 3, time.Hour)))

	first := f.sessions.Session()
	*first.Identity.StoreID = 99
	first.Identity.Role = domain.RoleAdmin

	second := f.sessions.Session()
	assert.Equal(t, int64(3), *second.Identity.StoreID)
	assert.Equal(t, domain.RoleSeller, second.Identity.Role)
}

type flakyStore struct {
	repository.CredentialStore
	getErr    error
	setErr    error
	deleteErr error
	takeErr   error
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	return s.CredentialStore.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.CredentialStore.Set(ctx, key, value)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.CredentialStore.Delete(ctx, key)
}

func (s *flakyStore) Take(ctx context.Context, key string) (string, bool, error) {
	if s.takeErr != nil {
		return "", false, s.takeErr
	}
	return s.CredentialStore.Take(ctx, key)
}
