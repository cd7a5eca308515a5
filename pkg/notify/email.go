package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"daytrader-api/pkg/strategy"
)

// Email sends plain-text mail over SMTP with PLAIN auth. Used for the daily
// summary reports; proposals are delivered as text without actions.
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmail builds an SMTP sink.
func NewEmail(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) deliver(subject, body string) error {
	if len(e.to) == 0 {
		return nil
	}
	msg := strings.Join([]string{
		"From: " + e.from,
		"To: " + strings.Join(e.to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	if err := e.send(addr, auth, e.from, e.to, []byte(msg)); err != nil {
		return fmt.Errorf("email: send to %v: %w", e.to, err)
	}
	return nil
}

// Send delivers the message as mail. Priority becomes a subject tag.
func (e *Email) Send(ctx context.Context, title, text string, priority Priority) error {
	subject := title
	if priority == PriorityCritical {
		subject = "[CRITICAL] " + subject
	}
	return e.deliver(subject, text)
}

// SendProposalForApproval mails the proposal details without actions.
func (e *Email) SendProposalForApproval(ctx context.Context, p strategy.Proposal) error {
	body := fmt.Sprintf("Proposal %s\n%s %s x%d @ %.2f (%s)\nNotional: %.2f\n",
		p.ID, p.Side, p.Symbol, p.Quantity, p.Price, p.Strategy, p.Notional())
	return e.deliver("Proposal pending approval: "+p.Symbol, body)
}
