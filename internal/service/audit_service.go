package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-session/internal/events"
	"github.com/spec-kit/marketplace-session/internal/observability"
)

// AuditService records session transitions and navigations.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events and returns a func removing the subscriptions.
func (a *AuditService) RegisterHandlers() func() {
	if a.dispatcher == nil {
		return func() {}
	}
	unsubs := []func(){
		a.dispatcher.Subscribe(events.EventSessionChanged, a.handleSessionChanged),
		a.dispatcher.Subscribe(events.EventNavigated, a.handleNavigated),
	}
	return func() {
		for _, fn := range unsubs {
			fn()
		}
	}
}

func (a *AuditService) handleSessionChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SessionChangedPayload)
	if !ok {
		return nil
	}
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("old_state", string(payload.OldState)),
		zap.String("new_state", string(payload.NewState)),
		zap.String("cause", payload.Cause),
	}
	if payload.IdentityID != nil {
		fields = append(fields, zap.Int64("identity_id", *payload.IdentityID), zap.String("role", string(payload.Role)))
	}
	a.logger.Info("SessionChanged", fields...)
	return nil
}

func (a *AuditService) handleNavigated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NavigatedPayload)
	if !ok {
		return nil
	}
	a.metrics.RecordNavigation(string(payload.Reason))
	a.logger.Info("Navigated",
		zap.String("event_id", event.ID),
		zap.String("target", payload.Target),
		zap.String("reason", string(payload.Reason)))
	return nil
}
