package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-session/internal/repository"
	"github.com/spec-kit/marketplace-session/internal/service"
)

const watchRetryDelay = 2 * time.Second

// StartAuditWorker registers audit handlers and returns their teardown.
func StartAuditWorker(audit *service.AuditService) func() {
	if audit == nil {
		return func() {}
	}
	return audit.RegisterHandlers()
}

// StartStoreWatcher follows changes made to the store by other contexts until
// ctx is done, resubscribing after failures. The returned channel closes when
// the watcher stops.
func StartStoreWatcher(ctx context.Context, store repository.CredentialStore, logger *zap.Logger) <-chan struct{} {
	return startStoreWatcher(ctx, store, logger, watchRetryDelay)
}

func startStoreWatcher(ctx context.Context, store repository.CredentialStore, logger *zap.Logger, retry time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			err := store.Watch(ctx)
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				// store delivers changes synchronously
				return
			}
			logger.Warn("credential store watch failed", zap.Error(err), zap.Duration("retry_in", retry))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retry):
			}
		}
	}()
	return done
}
