package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/golyo/golyo-calendar/internal/model"
	"github.com/golyo/golyo-calendar/internal/service"
)

// upcomingWindow is how far ahead the daily digest looks.
const upcomingWindow = 7 * 24 * time.Hour

// DigestSink receives the daily digest of upcoming occurrences.
type DigestSink interface {
	SendUpcoming(ctx context.Context, events []*model.Event) error
}

// Reminder periodically materializes the next week of occurrences and pushes
// a digest to the configured sink.
type Reminder struct {
	events    *service.EventService
	sink      DigestSink
	trainerID string
	logger    *zap.Logger
	stopChan  chan struct{}
}

func NewReminder(events *service.EventService, sink DigestSink, trainerID string, logger *zap.Logger) *Reminder {
	return &Reminder{
		events:    events,
		sink:      sink,
		trainerID: trainerID,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

func (r *Reminder) Start(ctx context.Context) {
	r.logger.Info("Starting reminder loop")
	go r.run(ctx)
}

func (r *Reminder) Stop() {
	r.logger.Info("Stopping reminder loop")
	close(r.stopChan)
}

func (r *Reminder) run(ctx context.Context) {
	// first digest right away, then daily
	r.sendDigest(ctx)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sendDigest(ctx)
		case <-r.stopChan:
			r.logger.Info("Reminder loop stopped")
			return
		case <-ctx.Done():
			r.logger.Info("Reminder loop cancelled")
			return
		}
	}
}

func (r *Reminder) sendDigest(ctx context.Context) {
	now := time.Now()
	events, err := r.events.Events(ctx, r.trainerID, now, now.Add(upcomingWindow), "")
	if err != nil {
		r.logger.Error("Failed to collect upcoming events", zap.Error(err))
		return
	}

	if err := r.sink.SendUpcoming(ctx, events); err != nil {
		r.logger.Error("Failed to send digest", zap.Error(err))
		return
	}

	r.logger.Info("Digest sent", zap.Int("events", len(events)))
}
