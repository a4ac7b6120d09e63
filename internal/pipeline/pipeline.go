// Package pipeline runs the notification processing workers.
package pipeline

import (
	"context"
	"sync"
	"time"

	"idpmon/internal/correlate"
	"idpmon/internal/logger"
	"idpmon/internal/metrics"
	"idpmon/pkg/models"
)

// Engine processes one notification to a terminal outcome.
type Engine interface {
	Process(ctx context.Context, notification models.ChangeNotification) correlate.Outcome
}

// Source supplies notifications and tracks processed resource ids.
type Source interface {
	Dequeue(ctx context.Context) (*models.ChangeNotification, error)
	MarkProcessed(ctx context.Context, resourceID string) (bool, error)
}

// NotificationPipeline pops notifications off the queue and runs the
// correlation engine. Processing per notification is a strictly sequential
// chain of external calls; concurrency comes only from running multiple
// independent notifications at once.
type NotificationPipeline struct {
	source      Source
	engine      Engine
	clientState string
	workers     int
}

// New creates a notification pipeline.
func New(source Source, engine Engine, clientState string, workers int) *NotificationPipeline {
	if workers <= 0 {
		workers = 4
	}
	return &NotificationPipeline{
		source:      source,
		engine:      engine,
		clientState: clientState,
		workers:     workers,
	}
}

// Run starts the worker loops and blocks until the context is canceled.
func (p *NotificationPipeline) Run(ctx context.Context) error {
	logger.Infof("Notification pipeline started with %d workers", p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

func (p *NotificationPipeline) workerLoop(ctx context.Context) {
	for {
		notification, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop notification: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if notification == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		p.handle(ctx, *notification)
	}
}

func (p *NotificationPipeline) handle(ctx context.Context, notification models.ChangeNotification) {
	if notification.ClientState != p.clientState {
		logger.Infof("Notification received with unexpected client state: %s", notification.ClientState)
		return
	}

	resourceID := notification.ResourceData.ID
	if resourceID == "" {
		logger.Warnf("Notification without a resource id dropped")
		return
	}

	first, err := p.source.MarkProcessed(ctx, resourceID)
	if err != nil {
		// When the marker is unavailable we still process; at-least-once
		// delivery means a duplicate ticket note at worst.
		logger.Warnf("Idempotency check failed for %s: %v", resourceID, err)
	} else if !first {
		metrics.NotificationsDuplicate.Inc()
		logger.Debugf("Skipping already-processed alert %s", resourceID)
		return
	}

	outcome := p.engine.Process(ctx, notification)
	metrics.AlertsProcessed.WithLabelValues(outcome.Kind.String()).Inc()
	if outcome.Kind == correlate.OutcomeFailed {
		logger.Errorf("Failure! %s", outcome.Reason)
	}
}
