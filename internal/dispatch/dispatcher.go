// Package dispatch implements the delivery engine: a retrying sender over
// the channel adapters and a bounded fan-out that pushes a batch of
// messages through it concurrently.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"platanotify/internal/metrics"
	"platanotify/internal/models"
)

const DefaultConcurrencyLimit = 10

// Dispatcher fans a batch of messages out through the retrying sender,
// never allowing more than limit sends in flight at once.
type Dispatcher struct {
	sender *Sender
	limit  int
	logger *zap.Logger
}

func NewDispatcher(sender *Sender, limit int, logger *zap.Logger) *Dispatcher {
	if limit <= 0 {
		limit = DefaultConcurrencyLimit
	}
	return &Dispatcher{sender: sender, limit: limit, logger: logger}
}

// DispatchAll sends every message concurrently, capped at the configured
// in-flight limit, and returns once each has reached a terminal outcome.
// Outcomes are positionally aligned with msgs. One message exhausting its
// retries never affects its siblings.
func (d *Dispatcher) DispatchAll(ctx context.Context, msgs []models.OutboundMessage) []models.DispatchOutcome {
	outcomes := make([]models.DispatchOutcome, len(msgs))

	sem := make(chan struct{}, d.limit)
	var wg sync.WaitGroup

	for i, msg := range msgs {
		wg.Add(1)
		go func(i int, msg models.OutboundMessage) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			out := d.sender.Send(ctx, msg)
			outcomes[i] = out

			if out.Success {
				metrics.MessagesSent.WithLabelValues(string(msg.Channel)).Inc()
			} else {
				metrics.MessageFailures.WithLabelValues(string(msg.Channel)).Inc()
			}
		}(i, msg)
	}

	wg.Wait()

	failed := 0
	for _, out := range outcomes {
		if !out.Success {
			failed++
		}
	}
	if failed > 0 {
		d.logger.Warn("fan-out finished with failures",
			zap.Int("total", len(msgs)),
			zap.Int("failed", failed),
		)
	}

	return outcomes
}
