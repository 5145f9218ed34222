// Package imap is the protocol adapter: it owns every network call to the
// remote IMAP server and translates between wire concepts (UIDs, flags,
// mailboxes) and the model types the store and sync engine operate on. No
// other package dials a socket.
package imap

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/inboxd/mailsync/internal/model"
)

const dialTimeout = 15 * time.Second

// ErrAuthFailed wraps a Login rejection so callers can distinguish it from
// transport-level dial failures. Per spec.md §4.3/§7, authentication
// failures suspend further retries for the account; transient errors don't.
var ErrAuthFailed = errors.New("imap authentication failed")

// Dial connects and authenticates to account's IMAP server using the
// transport variant its IMAPSecurity selects, returning a ready client.
func Dial(account model.Account, password string) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)
	dialer := &net.Dialer{Timeout: dialTimeout}

	var c *client.Client
	var err error

	switch account.IMAPSecurity {
	case model.SecurityImplicitTLS:
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{
			ServerName: account.IMAPHost,
			MinVersion: tls.VersionTLS12,
		})
	case model.SecurityStartTLS:
		c, err = client.DialWithDialer(dialer, addr)
		if err == nil {
			err = c.StartTLS(&tls.Config{
				ServerName: account.IMAPHost,
				MinVersion: tls.VersionTLS12,
			})
		}
	case model.SecurityNone:
		c, err = client.DialWithDialer(dialer, addr)
	default:
		return nil, fmt.Errorf("unsupported imap security mode %q", account.IMAPSecurity)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	if err := c.Login(account.IMAPUsername, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("authenticating as %s: %w: %w", account.IMAPUsername, ErrAuthFailed, err)
	}

	return c, nil
}

// Close logs out and releases the underlying connection. Errors are
// swallowed: a failed logout on a connection we're discarding isn't
// actionable.
func Close(c *client.Client) {
	if c == nil {
		return
	}
	_ = c.Logout()
}

// hasCapability reports whether the server advertised name in its
// CAPABILITY response.
func hasCapability(c *client.Client, name string) bool {
	caps, err := c.Capability()
	if err != nil {
		return false
	}
	_, ok := caps[name]
	return ok
}
