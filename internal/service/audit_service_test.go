package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/marketplace-session/internal/domain"
	"github.com/spec-kit/marketplace-session/internal/events"
	"github.com/spec-kit/marketplace-session/internal/observability"
)

func TestAuditService_RecordsNavigationsAndTransitions(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	audit := NewAuditService(dispatcher, zap.New(core), metrics)
	unsubscribe := audit.RegisterHandlers()
	ctx := context.Background()

	id := int64(4)
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventSessionChanged, events.SessionChangedPayload{
		OldState:   domain.SessionLoading,
		NewState:   domain.SessionAuthenticated,
		IdentityID: &id,
		Role:       domain.RoleSeller,
		Cause:      "activate",
	})))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventNavigated, events.NavigatedPayload{
		Target: "/", Reason: domain.ReasonTerminate,
	})))

	assert.Equal(t, 1, logs.FilterMessage("SessionChanged").Len())
	assert.Equal(t, 1, logs.FilterMessage("Navigated").Len())
	assert.Equal(t, int64(1), metrics.Snapshot().Navigations["terminate"])

	unsubscribe()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventNavigated, events.NavigatedPayload{
		Target: "/", Reason: domain.ReasonTerminate,
	})))
	assert.Equal(t, int64(1), metrics.Snapshot().Navigations["terminate"])
}
