// Package channel provides a uniform send capability over the message
// transports the marketplace uses: email and whatsapp. Each adapter wraps a
// provider client behind the same Channel interface so the dispatch layer
// never touches provider SDKs directly.
package channel

import (
	"context"

	"platanotify/internal/models"
)

// Channel delivers a single OutboundMessage over one transport.
type Channel interface {
	// Name returns the channel identifier the adapter serves.
	Name() models.Channel
	// Send performs one delivery attempt. Retrying is the caller's job.
	Send(ctx context.Context, msg models.OutboundMessage) error
}
