package email

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"shipnotify/internal/domain/notification"

	"github.com/resend/resend-go/v2"
)

var _ notification.Provider = (*ResendProvider)(nil)

// ResendProvider sends emails using the Resend SDK.
type ResendProvider struct {
	client      *resend.Client
	fromAddress string
	fromName    string
}

// NewResendProvider creates a new Resend email provider.
func NewResendProvider(apiKey, fromAddress, fromName string) *ResendProvider {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	return &ResendProvider{
		client:      resend.NewCustomClient(httpClient, apiKey),
		fromAddress: fromAddress,
		fromName:    fromName,
	}
}

// WithBaseURL points the provider at a different API host.
func (p *ResendProvider) WithBaseURL(raw string) (*ResendProvider, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing resend base url: %w", err)
	}
	p.client.BaseURL = u
	return p, nil
}

// Channel returns the email channel identifier.
func (p *ResendProvider) Channel() notification.Channel {
	return notification.ChannelEmail
}

// Send delivers an email via Resend and returns the message ID.
func (p *ResendProvider) Send(ctx context.Context, msg *notification.Message) (string, error) {
	from := p.fromAddress
	if p.fromName != "" {
		from = fmt.Sprintf("%s <%s>", p.fromName, p.fromAddress)
	}

	resp, err := p.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Tags:    []resend.Tag{{Name: "source", Value: "shipnotify"}},
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return resp.Id, nil
}
