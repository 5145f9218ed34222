package syncengine

import (
	"context"
	"fmt"

	imapx "github.com/inboxd/mailsync/internal/imap"
)

// drainOps applies every unprocessed operation against the remote server,
// in FIFO order, grouping consecutive operations against the same folder
// under a single SELECT. Per I4, a processed op is never re-applied. Every
// failure counts as retryable: a failed op is retried until it has failed
// maxOpAttempts times, then finalized with its last error rather than
// retried forever.
func (r *accountRunner) drainOps(ctx context.Context) error {
	ops, err := r.store.PendingOps(ctx)
	if err != nil {
		return fmt.Errorf("listing pending operations: %w", err)
	}
	if len(ops) == 0 {
		return nil
	}

	c, err := r.dial(ctx)
	if err != nil {
		return err
	}
	defer imapx.Close(c)

	selected := ""
	for _, op := range ops {
		attempts, err := r.store.OpAttempts(ctx, op.ID)
		if err != nil {
			return fmt.Errorf("reading attempts for op %d: %w", op.ID, err)
		}
		if attempts >= maxOpAttempts {
			cause := op.Error
			if cause == "" {
				cause = "exceeded maximum retry attempts"
			}
			if err := r.store.MarkOpFailedPermanently(ctx, op.ID, cause); err != nil {
				return fmt.Errorf("finalizing op %d after max attempts: %w", op.ID, err)
			}
			continue
		}

		if op.Folder != selected {
			if _, err := imapx.Select(c, op.Folder, false); err != nil {
				_ = r.store.MarkOpFailed(ctx, op.ID, err.Error())
				continue
			}
			selected = op.Folder
		}

		if err := imapx.ApplyOp(c, op); err != nil {
			if markErr := r.store.MarkOpFailed(ctx, op.ID, err.Error()); markErr != nil {
				return fmt.Errorf("recording failed op %d: %w", op.ID, markErr)
			}
			continue
		}

		// The optimistic local mutation applied at queue() time already
		// matches this outcome; the next sync pass reconciles any drift
		// (e.g. a moved message disappearing from its source folder).
		if err := r.store.MarkOpProcessed(ctx, op.ID); err != nil {
			return fmt.Errorf("marking op %d processed: %w", op.ID, err)
		}
	}

	return nil
}
