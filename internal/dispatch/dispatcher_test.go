package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"platanotify/internal/dispatch"
	"platanotify/internal/models"
)

// gateChannel tracks how many sends are in flight at once.
type gateChannel struct {
	mu          sync.Mutex
	inflight    int
	maxInflight int
	failFor     map[string]bool // recipients that always fail
}

func (g *gateChannel) Name() models.Channel { return models.ChannelEmail }

func (g *gateChannel) Send(_ context.Context, msg models.OutboundMessage) error {
	g.mu.Lock()
	g.inflight++
	if g.inflight > g.maxInflight {
		g.maxInflight = g.inflight
	}
	g.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	g.mu.Lock()
	g.inflight--
	g.mu.Unlock()

	if g.failFor[msg.To] {
		return errors.New("hard bounce")
	}
	return nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func batch(n int) []models.OutboundMessage {
	msgs := make([]models.OutboundMessage, n)
	for i := range msgs {
		msgs[i] = models.OutboundMessage{
			ID:      fmt.Sprintf("m%d", i),
			Channel: models.ChannelEmail,
			To:      fmt.Sprintf("user%d@example.com", i),
			Subject: "oi",
			Body:    "corpo",
		}
	}
	return msgs
}

func TestDispatchAll_RespectsConcurrencyLimit(t *testing.T) {
	ch := &gateChannel{}
	sender := dispatch.NewSender(dispatch.DefaultRetryPolicy(), zap.NewNop(), ch).WithSleep(noSleep)
	d := dispatch.NewDispatcher(sender, 10, zap.NewNop())

	outcomes := d.DispatchAll(context.Background(), batch(15))

	require.Len(t, outcomes, 15)
	for _, out := range outcomes {
		assert.True(t, out.Success)
	}
	assert.LessOrEqual(t, ch.maxInflight, 10)
}

func TestDispatchAll_OutcomesAlignWithMessages(t *testing.T) {
	ch := &gateChannel{}
	sender := dispatch.NewSender(dispatch.DefaultRetryPolicy(), zap.NewNop(), ch).WithSleep(noSleep)
	d := dispatch.NewDispatcher(sender, 3, zap.NewNop())

	msgs := batch(8)
	outcomes := d.DispatchAll(context.Background(), msgs)

	require.Len(t, outcomes, len(msgs))
	for i, out := range outcomes {
		assert.Equal(t, msgs[i].To, out.Message.To)
	}
}

func TestDispatchAll_FailureIsolatedPerRecipient(t *testing.T) {
	ch := &gateChannel{failFor: map[string]bool{"user3@example.com": true}}
	policy := dispatch.DefaultRetryPolicy()
	policy.MaxAttempts = 2

	sender := dispatch.NewSender(policy, zap.NewNop(), ch).WithSleep(noSleep)
	d := dispatch.NewDispatcher(sender, 10, zap.NewNop())

	outcomes := d.DispatchAll(context.Background(), batch(6))

	require.Len(t, outcomes, 6)
	for _, out := range outcomes {
		if out.Message.To == "user3@example.com" {
			assert.False(t, out.Success)
			assert.Equal(t, 2, out.AttemptsUsed)
			assert.Error(t, out.LastError)
			continue
		}
		assert.True(t, out.Success, "sibling delivery must not be affected")
	}
}

func TestDispatchAll_EmptyBatch(t *testing.T) {
	sender := dispatch.NewSender(dispatch.DefaultRetryPolicy(), zap.NewNop(), &gateChannel{})
	d := dispatch.NewDispatcher(sender, 10, zap.NewNop())

	outcomes := d.DispatchAll(context.Background(), nil)
	assert.Empty(t, outcomes)
}
