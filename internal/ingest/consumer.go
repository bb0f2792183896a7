package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/example/ride-dispatch/internal/errors"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// DriverUpdate is one message on the driver updates topic. Either field may be
// omitted; both are applied when present, location first.
type DriverUpdate struct {
	DriverID string              `json:"driver_id"`
	Location *models.Location    `json:"location,omitempty"`
	Status   models.DriverStatus `json:"status,omitempty"`
}

// DriverUpdater is the slice of the dispatch engine the consumer drives.
type DriverUpdater interface {
	UpdateDriverLocation(ctx context.Context, driverID string, loc models.Location) error
	SetDriverStatus(ctx context.Context, driverID string, status models.DriverStatus) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

const maxBackoff = 30 * time.Second

// LocationConsumer applies driver pings from Kafka to the engine.
type LocationConsumer struct {
	reader  messageReader
	target  DriverUpdater
	logger  *slog.Logger
	backoff time.Duration
	sleep   func(context.Context, time.Duration)
}

func NewLocationConsumer(brokers []string, topic, group string, target DriverUpdater, logger *slog.Logger) *LocationConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 1, MaxBytes: 10e6})
	return newLocationConsumer(r, target, logger)
}

func newLocationConsumer(r messageReader, target DriverUpdater, logger *slog.Logger) *LocationConsumer {
	return &LocationConsumer{reader: r, target: target, logger: logger, backoff: time.Second, sleep: sleepCtx}
}

// Run reads until ctx is cancelled. Read errors back off exponentially up to
// 30s; bad messages are logged and skipped.
func (c *LocationConsumer) Run(ctx context.Context) error {
	backoff := c.backoff
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.WarnContext(ctx, "kafka read error", "error", err, "backoff", backoff)
			c.sleep(ctx, backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = c.backoff

		if err := c.Apply(ctx, m.Value); err != nil {
			result := "failed"
			if errors.Is(err, apperrors.ErrValidation) {
				result = "invalid"
			}
			observability.DriverUpdatesConsumed.WithLabelValues(result).Inc()
			c.logger.WarnContext(ctx, "driver update rejected", "offset", m.Offset, "error", err)
			continue
		}
		observability.DriverUpdatesConsumed.WithLabelValues("applied").Inc()
	}
}

// Apply decodes one payload and pushes it into the engine.
func (c *LocationConsumer) Apply(ctx context.Context, payload []byte) error {
	var u DriverUpdate
	if err := json.Unmarshal(payload, &u); err != nil {
		return fmt.Errorf("%w: decode driver update: %v", apperrors.ErrValidation, err)
	}
	if u.DriverID == "" {
		return fmt.Errorf("%w: driver update without driver_id", apperrors.ErrValidation)
	}
	if u.Location == nil && u.Status == "" {
		return fmt.Errorf("%w: driver update for %s carries nothing", apperrors.ErrValidation, u.DriverID)
	}
	if u.Location != nil {
		if err := c.target.UpdateDriverLocation(ctx, u.DriverID, *u.Location); err != nil {
			return err
		}
	}
	if u.Status != "" {
		if err := c.target.SetDriverStatus(ctx, u.DriverID, u.Status); err != nil {
			return err
		}
	}
	return nil
}

func (c *LocationConsumer) Close() error { return c.reader.Close() }

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
