// Package notify delivers the webhook notification and the follow-up email.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/sirupsen/logrus"
)

// FollowUpSubject is the subject line of the follow-up email
const FollowUpSubject = "Your Application is Under Review"

var followUpBody = template.Must(template.New("followup").Parse(`Dear {{.Name}},

Thank you for applying. We have received your application and CV, and our team is currently reviewing it.

We will get back to you as soon as the review is complete.

Kind regards,
The Recruitment Team
`))

// Message is a plain-text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a single email
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// FollowUpMessage renders the follow-up email addressed to name
func FollowUpMessage(email, name string) (Message, error) {
	var body bytes.Buffer
	if err := followUpBody.Execute(&body, struct{ Name string }{Name: name}); err != nil {
		return Message{}, fmt.Errorf("failed to render follow-up email: %w", err)
	}
	return Message{To: email, Subject: FollowUpSubject, Body: body.String()}, nil
}

// LogMailer writes messages to the log instead of sending them
type LogMailer struct {
	log logrus.FieldLogger
}

// NewLogMailer creates a mailer for development setups
func NewLogMailer(log logrus.FieldLogger) *LogMailer {
	return &LogMailer{log: log}
}

// Send logs msg
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info(msg.Body)
	return nil
}
