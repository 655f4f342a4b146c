package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tokengate/auth-service/internal/events"
	"github.com/tokengate/auth-service/internal/observability"
)

// AuditService writes authentication events to the log and event counters.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserRegistered, a.record)
	a.dispatcher.Subscribe(events.EventUserLoggedIn, a.record)
	a.dispatcher.Subscribe(events.EventTokenRefreshed, a.record)
	a.dispatcher.Subscribe(events.EventUserUpdated, a.record)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
}

func (a *AuditService) record(_ context.Context, event events.Event) error {
	a.logger.Info("audit",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("username", event.Username),
		zap.Any("payload", event.Payload))
	a.metrics.RecordEvent(string(event.Type))
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	a.logger.Warn("audit",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("username", event.Username),
		zap.Any("payload", event.Payload))
	a.metrics.RecordEvent(string(event.Type))
	return nil
}
