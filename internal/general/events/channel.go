// Package events delivers server-pushed updates to the console. Two
// transports implement the same Channel contract: a WebSocket stream
// (primary) and a RabbitMQ queue (for deployments where the backend
// fans out through the broker instead).
package events

import "context"

// Handler receives one decoded event payload. The concrete type depends
// on the event name (contracts.NotificationEvent, contracts.ApprovalEvent,
// ...); handlers must filter by driver identity before mutating state.
type Handler func(ctx context.Context, payload any)

// Channel is the push-side contract.
//
// On registers at most one handler per event name; registering again
// replaces the previous handler. Off removes it. Disconnect is safe to
// call repeatedly.
type Channel interface {
	Connect(ctx context.Context, userID, role string) error
	On(event string, h Handler)
	Off(event string)
	Disconnect()
}
