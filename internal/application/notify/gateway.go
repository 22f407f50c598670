package notify

import (
	"context"
	"fmt"

	"github.com/hr-workforce-api/internal/domain"
	"github.com/hr-workforce-api/internal/infrastructure/smtp"
	"github.com/hr-workforce-api/internal/infrastructure/sns"
)

// Sender delivers a one-time code over a single channel.
type Sender interface {
	SendOTP(ctx context.Context, recipient, code string) error
	ChannelName() string
}

// Gateway maps the closed channel set {EMAIL, SMS} onto sender
// implementations. Delivery failure surfaces to the caller; a code the user
// never received must not look successfully dispatched.
type Gateway struct {
	senders map[string]Sender
}

func NewGateway(mailer smtp.Mailer, sms sns.SMSSender) *Gateway {
	return &Gateway{senders: map[string]Sender{
		domain.ChannelEmail: &emailSender{mailer: mailer},
		domain.ChannelSMS:   &smsSender{sns: sms},
	}}
}

func (g *Gateway) SendOTP(ctx context.Context, channel, recipient, code string) error {
	s, ok := g.senders[channel]
	if !ok {
		return fmt.Errorf("unknown notification channel %q: %w", channel, domain.ErrBadRequest)
	}
	if err := s.SendOTP(ctx, recipient, code); err != nil {
		return fmt.Errorf("deliver otp via %s: %w", s.ChannelName(), err)
	}
	return nil
}

type emailSender struct {
	mailer smtp.Mailer
}

func (s *emailSender) SendOTP(ctx context.Context, recipient, code string) error {
	return s.mailer.SendCode(recipient, code)
}

func (s *emailSender) ChannelName() string { return domain.ChannelEmail }

type smsSender struct {
	sns sns.SMSSender
}

func (s *smsSender) SendOTP(ctx context.Context, recipient, code string) error {
	if s.sns == nil {
		return fmt.Errorf("sms sender not configured")
	}
	return s.sns.SendCode(ctx, recipient, code)
}

func (s *smsSender) ChannelName() string { return domain.ChannelSMS }
