package syncengine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	imapx "github.com/inboxd/mailsync/internal/imap"
)

// idleFolder is the mailbox watched via IDLE between polling ticks; INBOX
// is what every provider supports and where push latency matters most.
const idleFolder = "INBOX"

// idleRestart bounds how long a single IDLE command runs before the
// connection is torn down and re-established, comfortably inside the
// ~29 minute window servers typically enforce.
const idleRestart = 20 * time.Minute

// idleBackoff is the pause after a failed IDLE attempt before retrying.
const idleBackoff = 10 * time.Second

// runIdle maintains a long-lived IDLE connection against idleFolder,
// triggering an immediate sync pass whenever the server reports a mailbox
// change, until ctx is canceled. A server lacking IDLE simply falls back
// to the ticker in run().
func (r *accountRunner) runIdle(ctx context.Context, log *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := r.idleOnce(ctx, log); err != nil {
			log.WithError(err).Debug("idle session ended")
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleBackoff):
			}
		}
	}
}

func (r *accountRunner) idleOnce(ctx context.Context, log *logrus.Entry) error {
	c, err := r.dial(ctx)
	if err != nil {
		return err
	}
	defer imapx.Close(c)

	if _, err := imapx.Select(c, idleFolder, true); err != nil {
		return err
	}

	idleCtx, cancel := context.WithTimeout(ctx, idleRestart)
	defer cancel()

	return imapx.Idle(idleCtx, c, func() {
		log.Debug("idle update received")
		select {
		case r.triggerCh <- idleFolder:
		default:
		}
	})
}
