package imap

import (
	"context"
	"fmt"
	"time"

	idle "github.com/emersion/go-imap-idle"
	"github.com/emersion/go-imap/client"
)

// idleFallbackPoll is the polling interval IdleWithFallback uses for a
// server without IDLE. Idle below returns an error for such servers before
// reaching that fallback, so with the capability check in place the value
// is not exercised. Restarting IDLE inside the ~29 minute RFC 2177 window
// is left to the caller, whose context cancellation ends this call.
const idleFallbackPoll = 5 * time.Second

// Idle runs IMAP IDLE against the already-selected mailbox, invoking
// onUpdate whenever the server reports a mailbox change, until ctx is
// canceled. It returns nil on a clean context cancellation.
func Idle(ctx context.Context, c *client.Client, onUpdate func()) error {
	if !hasCapability(c, "IDLE") {
		return fmt.Errorf("server does not support IDLE")
	}

	updates := make(chan client.Update, 16)
	c.Updates = updates
	defer func() { c.Updates = nil }()

	idleClient := idle.NewClient(c)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- idleClient.IdleWithFallback(stop, idleFallbackPoll) }()

	for {
		select {
		case <-ctx.Done():
			close(stop)
			<-done
			return nil
		case err := <-done:
			return err
		case update := <-updates:
			if _, ok := update.(*client.MailboxUpdate); ok {
				onUpdate()
			}
		}
	}
}
