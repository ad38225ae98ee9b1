// README: Delivery sinks: Firebase Cloud Messaging push and SMTP e-mail.
package notification

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"

	"gigmarket/internal/modules/user"
)

// MessageSender is satisfied by *messaging.Client.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type PushSink struct {
	client MessageSender
}

func NewPushSink(client MessageSender) *PushSink {
	return &PushSink{client: client}
}

func (s *PushSink) Name() string { return "fcm" }

func (s *PushSink) Deliver(ctx context.Context, to *user.User, n Notification) error {
	if to.DeviceToken == "" {
		return ErrNoAddress
	}
	msg := &messaging.Message{
		Token: to.DeviceToken,
		Data: map[string]string{
			"notification_id": string(n.ID),
			"type":            n.Type,
			"link":            n.Link,
		},
		Notification: &messaging.Notification{
			Title: titleFor(n.Type),
			Body:  n.Message,
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		return errors.Wrap(err, "fcm send")
	}
	return nil
}

// MailSender is satisfied by *mail.Client.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type MailSink struct {
	client  MailSender
	from    string
	baseURL string
}

func NewMailSink(client MailSender, from, baseURL string) *MailSink {
	return &MailSink{client: client, from: from, baseURL: baseURL}
}

// NewSMTPClient builds the go-mail client used by MailSink.
func NewSMTPClient(host string, port int, username, password string) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}
	c, err := mail.NewClient(host, opts...)
	return c, errors.Wrap(err, "smtp client")
}

func (s *MailSink) Name() string { return "email" }

func (s *MailSink) Deliver(ctx context.Context, to *user.User, n Notification) error {
	if to.Email == "" {
		return ErrNoAddress
	}
	msg, err := s.compose(to, n)
	if err != nil {
		return err
	}
	return errors.Wrap(s.client.DialAndSendWithContext(ctx, msg), "smtp send")
}

func (s *MailSink) compose(to *user.User, n Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, errors.Wrap(err, "mail from")
	}
	if err := msg.To(to.Email); err != nil {
		return nil, errors.Wrap(err, "mail to")
	}
	msg.Subject(titleFor(n.Type))

	body := fmt.Sprintf("Hi %s,\n\n%s\n", to.Name, n.Message)
	if n.Link != "" {
		body += fmt.Sprintf("\nOpen: %s%s\n", s.baseURL, n.Link)
	}
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func titleFor(kind string) string {
	switch kind {
	case TypeOrderBooked:
		return "New order"
	case TypeOrderAccepted:
		return "Order accepted"
	case TypeOrderStarted:
		return "Work started"
	case TypeOrderDelivered:
		return "Order delivered"
	case TypeRevisionRequested:
		return "Revision requested"
	case TypeOrderCompleted:
		return "Order completed"
	case TypeOrderCancelled:
		return "Order cancelled"
	case TypeReviewReceived:
		return "New review"
	}
	return "Notification"
}
