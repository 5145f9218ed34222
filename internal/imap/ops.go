package imap

import (
	"fmt"

	"github.com/emersion/go-imap"
	move "github.com/emersion/go-imap-move"
	"github.com/emersion/go-imap/client"

	"github.com/inboxd/mailsync/internal/model"
)

// ApplyOp executes op against the remote mailbox. The caller must have
// already selected op.Folder (for Move, the source folder).
func ApplyOp(c *client.Client, op model.Operation) error {
	uidSet := new(imap.SeqSet)
	uidSet.AddNum(op.UID)

	switch op.Kind {
	case model.OpMarkRead:
		return storeFlags(c, uidSet, true, imap.SeenFlag)
	case model.OpMarkUnread:
		return storeFlags(c, uidSet, false, imap.SeenFlag)
	case model.OpDelete:
		return deleteMessage(c, uidSet)
	case model.OpMove:
		return moveMessage(c, uidSet, op.DestFolder)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func storeFlags(c *client.Client, uidSet *imap.SeqSet, add bool, flags ...string) error {
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if !add {
		item = imap.FormatFlagsOp(imap.RemoveFlags, true)
	}

	flagsArg := make([]interface{}, len(flags))
	for i, f := range flags {
		flagsArg[i] = f
	}

	if err := c.UidStore(uidSet, item, flagsArg, nil); err != nil {
		return fmt.Errorf("storing flags: %w", err)
	}
	return nil
}

// deleteMessage marks the message \Deleted and expunges it. The spec's
// delete operation has no undo: this removes the message from the server.
func deleteMessage(c *client.Client, uidSet *imap.SeqSet) error {
	if err := storeFlags(c, uidSet, true, imap.DeletedFlag); err != nil {
		return err
	}
	if err := c.Expunge(nil); err != nil {
		return fmt.Errorf("expunging: %w", err)
	}
	return nil
}

// moveMessage relocates a message to dest. It uses the MOVE extension when
// the server advertises it, and otherwise falls back to COPY + STORE
// \Deleted + EXPUNGE, since sequence numbers are not stable enough to
// retry a partially-applied fallback blindly — the UID set is re-resolved
// against the same still-selected mailbox for each step.
func moveMessage(c *client.Client, uidSet *imap.SeqSet, dest string) error {
	if hasCapability(c, "MOVE") {
		mc := move.NewClient(c)
		if err := mc.UidMove(uidSet, dest); err != nil {
			return fmt.Errorf("moving to %s: %w", dest, err)
		}
		return nil
	}

	if err := c.UidCopy(uidSet, dest); err != nil {
		return fmt.Errorf("copying to %s: %w", dest, err)
	}
	if err := storeFlags(c, uidSet, true, imap.DeletedFlag); err != nil {
		return fmt.Errorf("marking source deleted after copy to %s: %w", dest, err)
	}
	if err := c.Expunge(nil); err != nil {
		return fmt.Errorf("expunging after move to %s: %w", dest, err)
	}
	return nil
}
