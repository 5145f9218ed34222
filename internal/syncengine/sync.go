package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	imapx "github.com/inboxd/mailsync/internal/imap"
	"github.com/inboxd/mailsync/internal/model"
)

// syncOneFolder performs a single cold-or-incremental sync pass against
// folder and persists the result. Per I1, last_uid_seen only ever advances.
func (r *accountRunner) syncOneFolder(ctx context.Context, folder string) error {
	if r.isSuspended() {
		return fmt.Errorf("account %s suspended after an authentication failure; force_full_sync to retry", r.account.Key())
	}

	meta, err := r.store.GetFolderMetadata(ctx, folder)
	if err != nil {
		return fmt.Errorf("reading folder metadata: %w", err)
	}
	if meta == nil {
		if err := r.store.UpsertFolder(ctx, folder); err != nil {
			return err
		}
		meta = &model.FolderMetadata{Folder: folder}
	}

	if err := r.store.SetSyncInProgress(ctx, folder, true); err != nil {
		return fmt.Errorf("setting sync in progress: %w", err)
	}

	statID, statErr := r.store.RecordSyncStart(ctx, folder)

	c, err := r.dial(ctx)
	if err != nil {
		_ = r.store.SetSyncInProgress(ctx, folder, false)
		r.recordFolderError(ctx, folder, meta, err)
		r.finishSyncStat(ctx, statID, statErr, 0, err)
		if errors.Is(err, imapx.ErrAuthFailed) {
			r.suspend()
		}
		return err
	}
	defer imapx.Close(c)

	status, err := imapx.Select(c, folder, true)
	if err != nil {
		_ = r.store.SetSyncInProgress(ctx, folder, false)
		r.recordFolderError(ctx, folder, meta, err)
		r.finishSyncStat(ctx, statID, statErr, 0, err)
		return err
	}

	if threads, err := imapx.ThreadHint(c); err != nil {
		r.engine.logger.WithError(err).WithField("folder", folder).Debug("thread hint unavailable")
	} else if len(threads) > 0 {
		r.engine.logger.WithFields(logrus.Fields{"folder": folder, "threads": len(threads)}).
			Debug("server-side thread hint received; discarded after this pass")
	}

	var emails []model.Email
	var skippedZeroUID int
	if meta.LastUIDSeen == 0 {
		emails, skippedZeroUID, err = coldSync(c, folder, r.engine.initialSyncLimit)
	} else {
		emails, skippedZeroUID, err = incrementalSync(c, folder, meta.LastUIDSeen)
	}
	if err != nil {
		_ = r.store.SetSyncInProgress(ctx, folder, false)
		r.recordFolderError(ctx, folder, meta, err)
		r.finishSyncStat(ctx, statID, statErr, 0, err)
		return err
	}
	if skippedZeroUID > 0 {
		r.engine.logger.WithFields(logrus.Fields{
			"account": r.account.Key(), "folder": folder, "count": skippedZeroUID,
		}).Warn("skipped messages with uid 0")
	}

	if len(emails) > 0 {
		if err := r.store.UpsertEmails(ctx, folder, emails); err != nil {
			_ = r.store.SetSyncInProgress(ctx, folder, false)
			r.recordFolderError(ctx, folder, meta, err)
			r.finishSyncStat(ctx, statID, statErr, len(emails), err)
			return fmt.Errorf("persisting fetched emails: %w", err)
		}
	}

	newMax := meta.LastUIDSeen
	for _, e := range emails {
		if e.UID > newMax {
			newMax = e.UID
		}
	}

	newMeta := model.FolderMetadata{
		Folder:         folder,
		LastUIDSeen:    newMax,
		TotalMessages:  int(status.Messages),
		LastSyncTime:   time.Now(),
		SyncInProgress: false,
		LastError:      "",
	}
	if err := r.store.UpdateFolderMetadata(ctx, newMeta); err != nil {
		r.finishSyncStat(ctx, statID, statErr, len(emails), err)
		return fmt.Errorf("updating folder metadata: %w", err)
	}

	r.engine.dirty.Mark(r.account.Key(), folder)
	r.finishSyncStat(ctx, statID, statErr, len(emails), nil)

	return nil
}

// recordFolderError persists cause on folder's last_error so the UI can
// surface it, per §7's authentication/validation error taxonomy. meta is
// the metadata read at the top of this pass; other fields are preserved.
func (r *accountRunner) recordFolderError(ctx context.Context, folder string, meta *model.FolderMetadata, cause error) {
	newMeta := *meta
	newMeta.Folder = folder
	newMeta.SyncInProgress = false
	newMeta.LastSyncTime = time.Now()
	newMeta.LastError = cause.Error()
	if err := r.store.UpdateFolderMetadata(ctx, newMeta); err != nil {
		r.engine.logger.WithError(err).WithField("folder", folder).Error("persisting folder sync error")
	}
}

func (r *accountRunner) finishSyncStat(ctx context.Context, statID int64, statErr error, fetched int, passErr error) {
	if statErr != nil {
		return
	}
	cause := ""
	if passErr != nil {
		cause = passErr.Error()
	}
	_ = r.store.RecordSyncEnd(ctx, statID, fetched, cause)
}

// coldSync fetches messages in the already-selected folder for a folder
// with no prior local state: everything the server reports by default, or
// up to limit most-recent messages when limit is a positive, explicit
// opt-in (per spec.md §4.3, the default is a complete mirror).
func coldSync(c *client.Client, folder string, limit int) ([]model.Email, int, error) {
	uids, err := imapx.RecentUIDs(c, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing recent uids: %w", err)
	}
	return imapx.FetchUIDs(c, folder, uids)
}

// incrementalSync fetches every message whose UID is greater than
// lastSeen, i.e. everything the prior pass had not yet observed.
func incrementalSync(c *client.Client, folder string, lastSeen uint32) ([]model.Email, int, error) {
	latest, err := imapx.LatestUID(c)
	if err != nil {
		return nil, 0, fmt.Errorf("resolving latest uid: %w", err)
	}
	if latest <= lastSeen {
		return nil, 0, nil
	}
	return imapx.FetchUIDRange(c, folder, lastSeen+1, latest)
}

// ForceFullSync resets folder's sync state so the next pass re-runs a cold
// sync, per the force_full_sync operation. It is also the account's manual
// retry path out of an authentication suspension.
func (r *accountRunner) ForceFullSync(ctx context.Context, folder string) error {
	if err := r.store.ResetFolderSync(ctx, folder); err != nil {
		return err
	}
	r.resume()
	r.engine.TriggerSync(r.account.Key(), folder)
	return nil
}
