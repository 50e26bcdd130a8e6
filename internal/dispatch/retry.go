package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"platanotify/internal/channel"
	"platanotify/internal/models"
)

// RetryPolicy bounds how hard a single message delivery is retried.
// MaxDelay must be >= InitialDelay and BackoffFactor must be > 1.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// DefaultRetryPolicy is the policy used across the service: delays of
// 1s, 2s, 4s, 8s and 16s between attempts, ~31s of backoff worst case.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		InitialDelay:  time.Second,
		BackoffFactor: 2,
		MaxDelay:      60 * time.Second,
	}
}

// SleepFunc suspends the caller for d or until ctx is done. Injected so
// tests can run the retry loop against a fake clock.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sender wraps channel adapters with the retry policy. One Sender serves
// every channel; the message's Channel field selects the adapter.
type Sender struct {
	channels map[models.Channel]channel.Channel
	policy   RetryPolicy
	logger   *zap.Logger
	sleep    SleepFunc
}

func NewSender(policy RetryPolicy, logger *zap.Logger, channels ...channel.Channel) *Sender {
	byName := make(map[models.Channel]channel.Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}
	return &Sender{
		channels: byName,
		policy:   policy,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// WithSleep replaces the backoff sleep. Test hook.
func (s *Sender) WithSleep(sleep SleepFunc) *Sender {
	s.sleep = sleep
	return s
}

// Send delivers msg, retrying failed attempts with exponential backoff
// until success or the attempt budget is spent. The returned outcome is
// terminal either way; errors never propagate past it.
func (s *Sender) Send(ctx context.Context, msg models.OutboundMessage) models.DispatchOutcome {
	ch, ok := s.channels[msg.Channel]
	if !ok {
		return models.DispatchOutcome{
			Message:   msg,
			LastError: fmt.Errorf("no adapter registered for channel %q", msg.Channel),
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.policy.InitialDelay
	b.Multiplier = s.policy.BackoffFactor
	b.MaxInterval = s.policy.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // attempts are bounded by count, not wall clock
	b.Reset()

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		err := attemptSend(ctx, ch, msg)
		if err == nil {
			return models.DispatchOutcome{Message: msg, Success: true, AttemptsUsed: attempt}
		}
		lastErr = err

		s.logger.Warn("send attempt failed",
			zap.String("message_id", msg.ID),
			zap.String("channel", string(msg.Channel)),
			zap.String("to", msg.To),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == s.policy.MaxAttempts {
			break
		}
		if err := s.sleep(ctx, b.NextBackOff()); err != nil {
			// Shutdown mid-backoff: report what we know.
			return models.DispatchOutcome{Message: msg, AttemptsUsed: attempt, LastError: lastErr}
		}
	}

	return models.DispatchOutcome{Message: msg, AttemptsUsed: s.policy.MaxAttempts, LastError: lastErr}
}

// attemptSend performs one channel send. A panicking provider client
// consumes a retry attempt like any structured failure.
func attemptSend(ctx context.Context, ch channel.Channel, msg models.OutboundMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panic: %v", r)
		}
	}()
	return ch.Send(ctx, msg)
}
