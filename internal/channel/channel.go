// Package channel delivers outbound messages to the messaging channel.
package channel

import (
	"context"
)

// Channel is the outbound messaging surface the orchestrator depends on.
type Channel interface {
	// SendText delivers a plain text message.
	SendText(ctx context.Context, to, body string) error

	// SendLocationRequest delivers an interactive message with the channel's
	// native "share location" button.
	SendLocationRequest(ctx context.Context, to, body string) error

	// SendTemplate delivers a pre-approved template with body parameters.
	SendTemplate(ctx context.Context, to, name string, params []string) error
}
