// Package smtp is the outbound submission side of an account: composing
// and sending a message is outside the sync core's scope, but the core
// still owns account configuration end to end, so a submission client
// lives here rather than leaving smtp_host/smtp_port as dead config.
package smtp

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/inboxd/mailsync/internal/model"
)

// Message is an outbound message to submit via SMTP.
type Message struct {
	To        []model.Address
	Cc        []model.Address
	Bcc       []model.Address
	Subject   string
	BodyText  string
	BodyHTML  string
	ReplyTo   string
	InReplyTo string
}

// Client submits messages on behalf of one account.
type Client struct {
	account  model.Account
	password string
}

// New returns a submission client for account, authenticating with
// password when the server requires it.
func New(account model.Account, password string) *Client {
	return &Client{account: account, password: password}
}

// Send submits msg to the account's SMTP server using the transport
// variant the account's SMTPSecurity selects.
func (c *Client) Send(msg *Message) error {
	raw, err := buildMessage(c.account.SMTPUsername, msg)
	if err != nil {
		return fmt.Errorf("building message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", c.account.SMTPHost, c.account.SMTPPort)

	var auth smtp.Auth
	if c.password != "" {
		auth = smtp.PlainAuth("", c.account.SMTPUsername, c.password, c.account.SMTPHost)
	}

	var cl *smtp.Client
	switch c.account.SMTPSecurity {
	case model.SecurityImplicitTLS:
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: c.account.SMTPHost})
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", addr, err)
		}
		defer conn.Close()

		cl, err = smtp.NewClient(conn, c.account.SMTPHost)
		if err != nil {
			return fmt.Errorf("starting smtp session: %w", err)
		}
	case model.SecurityStartTLS:
		cl, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", addr, err)
		}
		if err := cl.StartTLS(&tls.Config{ServerName: c.account.SMTPHost}); err != nil {
			return fmt.Errorf("starting tls: %w", err)
		}
	case model.SecurityNone:
		cl, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", addr, err)
		}
	default:
		return fmt.Errorf("unsupported smtp security mode %q", c.account.SMTPSecurity)
	}
	defer cl.Close()

	if auth != nil {
		if err := cl.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	if err := cl.Mail(c.account.SMTPUsername); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	for _, rcpt := range allRecipients(msg) {
		if err := cl.Rcpt(rcpt); err != nil {
			return fmt.Errorf("setting recipient %s: %w", rcpt, err)
		}
	}

	w, err := cl.Data()
	if err != nil {
		return fmt.Errorf("opening data writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data writer: %w", err)
	}

	return cl.Quit()
}

func allRecipients(msg *Message) []string {
	var out []string
	for _, list := range [][]model.Address{msg.To, msg.Cc, msg.Bcc} {
		for _, a := range list {
			out = append(out, a.Addr)
		}
	}
	return out
}

func addrList(addrs []model.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		if a.Name != "" {
			parts[i] = fmt.Sprintf("%q <%s>", a.Name, a.Addr)
		} else {
			parts[i] = a.Addr
		}
	}
	return strings.Join(parts, ", ")
}

func buildMessage(from string, msg *Message) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", addrList(msg.To))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", addrList(msg.Cc))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	if msg.ReplyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	if msg.InReplyTo != "" {
		fmt.Fprintf(&buf, "In-Reply-To: %s\r\n", msg.InReplyTo)
	}

	if msg.BodyHTML != "" {
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.BodyHTML)
	} else {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.BodyText)
	}

	return buf.Bytes(), nil
}
