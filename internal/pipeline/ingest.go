package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Bhupin123/Sismicity/internal/alerting"
	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/observability"
)

// EventStore persists events and lists watched locations.
type EventStore interface {
	// InsertEvents stores events, skipping natural-key duplicates, and returns
	// only the events that were newly inserted.
	InsertEvents(ctx context.Context, events []domain.Event) ([]domain.Event, error)
	ActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error)
}

// NotificationPublisher hands notification payloads to the delivery service.
type NotificationPublisher interface {
	PublishNotifications(ctx context.Context, notifications []domain.Notification) error
}

// LivePublisher broadcasts a newly ingested event to live subscribers.
type LivePublisher interface {
	PublishEvent(ctx context.Context, event domain.Event) error
}

// Ingestor implements BatchLoader: it stores a batch and fans the new events
// out to subscription matching and the live channel. Only the store write can
// fail the batch; fan-out failures are logged and counted.
type Ingestor struct {
	store    EventStore
	notifier NotificationPublisher
	live     LivePublisher
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewIngestor creates an Ingestor. notifier and live may be nil.
func NewIngestor(store EventStore, notifier NotificationPublisher, live LivePublisher, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{
		store:    store,
		notifier: notifier,
		live:     live,
		logger:   logger,
		metrics:  metrics,
	}
}

// LoadBatch stores events and fans out the newly inserted ones.
func (i *Ingestor) LoadBatch(ctx context.Context, events []domain.Event) error {
	inserted, err := i.store.InsertEvents(ctx, events)
	if err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	i.metrics.EventsIngested.Add(float64(len(inserted)))
	i.metrics.DuplicateEvents.Add(float64(len(events) - len(inserted)))
	if len(inserted) == 0 {
		return nil
	}

	i.notify(ctx, inserted)
	i.broadcast(ctx, inserted)
	return nil
}

func (i *Ingestor) notify(ctx context.Context, events []domain.Event) {
	if i.notifier == nil {
		return
	}
	subs, err := i.store.ActiveSubscriptions(ctx)
	if err != nil {
		i.metrics.FanoutErrors.WithLabelValues("subscriptions").Inc()
		i.logger.Warn("list subscriptions failed, skipping notifications", "error", err, "events", len(events))
		return
	}

	notifications := alerting.Match(events, subs)
	if len(notifications) == 0 {
		return
	}
	if err := i.notifier.PublishNotifications(ctx, notifications); err != nil {
		i.metrics.FanoutErrors.WithLabelValues("notifications").Inc()
		i.logger.Warn("publish notifications failed", "error", err, "notifications", len(notifications))
		return
	}
	i.metrics.NotificationsPublished.Add(float64(len(notifications)))
	i.logger.Info("notifications published", "notifications", len(notifications), "events", len(events))
}

func (i *Ingestor) broadcast(ctx context.Context, events []domain.Event) {
	if i.live == nil {
		return
	}
	for _, e := range events {
		if err := i.live.PublishEvent(ctx, e); err != nil {
			i.metrics.FanoutErrors.WithLabelValues("live").Inc()
			i.logger.Warn("publish live event failed", "error", err, "event_id", e.ID)
			continue
		}
		i.metrics.LivePublished.Inc()
	}
}
