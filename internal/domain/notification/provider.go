package notification

import "context"

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Target addresses a real-time push: a single user, a room, or everyone.
type Target struct {
	UserID    string `json:"userId,omitempty"`
	Room      string `json:"room,omitempty"`
	Broadcast bool   `json:"broadcast,omitempty"`
}

// Pusher delivers a real-time event to connected clients.
// Implementations live in internal/gateway (in-process hub) and infra/pubsub (Redis fan-out).
type Pusher interface {
	Push(ctx context.Context, target Target, event string, payload any) error
}

// Message is a rendered message ready for an out-of-band provider.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Provider defines the contract for an out-of-band delivery channel.
// Implementations live in infra/ (e.g., Resend for email).
type Provider interface {
	// Send delivers a rendered message and returns the provider's message ID.
	Send(ctx context.Context, msg *Message) (string, error)

	// Channel returns which delivery channel this provider handles.
	Channel() Channel
}

// TemplateRenderer renders a notification into an out-of-band message body.
// Implementations live in infra/template/.
type TemplateRenderer interface {
	Render(n *Notification) (subject, html, text string, err error)
}
