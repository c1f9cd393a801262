// Package relay defines the interface for passing a processed inbound
// message on to another system.
package relay

import (
	"context"

	"github.com/shineum/postmark-inbound/internal/email"
)

// Relay is the interface that forwarding backends must implement.
// Each relay hands a decoded inbound message to its target (stdout, SES, etc.).
type Relay interface {
	// Forward delivers the message through this relay.
	// It returns an error if the delivery fails.
	Forward(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this relay.
	Name() string
}
