package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/inboxd/mailsync/internal/model"
)

// UpsertFolder ensures a folder_metadata row exists for folder, leaving
// existing sync state untouched.
func (s *Store) UpsertFolder(ctx context.Context, folder string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folder_metadata (folder, last_uid_seen, total_messages, version)
		VALUES (?, 0, 0, 0)
		ON CONFLICT(folder) DO NOTHING`,
		folder,
	)
	if err != nil {
		return fmt.Errorf("upserting folder %s: %w", folder, err)
	}
	return nil
}

// GetFolderMetadata returns the sync-state record for folder, or nil if the
// folder is not yet known locally.
func (s *Store) GetFolderMetadata(ctx context.Context, folder string) (*model.FolderMetadata, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT folder, last_uid_seen, total_messages, last_sync_time,
		       sync_in_progress, last_error, version
		FROM folder_metadata WHERE folder = ?`, folder,
	)

	meta, err := scanFolderMetadata(row)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("getting folder metadata %s: %w", folder, err)
	}
	return &meta, nil
}

// ListFolderMetadata returns the sync-state record for every known folder.
func (s *Store) ListFolderMetadata(ctx context.Context) ([]model.FolderMetadata, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT folder, last_uid_seen, total_messages, last_sync_time,
		       sync_in_progress, last_error, version
		FROM folder_metadata ORDER BY folder`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing folder metadata: %w", err)
	}
	defer rows.Close()

	var out []model.FolderMetadata
	for rows.Next() {
		meta, err := scanFolderMetadataRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// UpdateFolderMetadata persists the sync-state fields the engine advances
// after a sync pass, bumping version so dirty-flag readers observe a change.
func (s *Store) UpdateFolderMetadata(ctx context.Context, meta model.FolderMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE folder_metadata
		SET last_uid_seen = ?, total_messages = ?, last_sync_time = ?,
		    sync_in_progress = ?, last_error = ?, version = version + 1
		WHERE folder = ?`,
		meta.LastUIDSeen, meta.TotalMessages, meta.LastSyncTime.UTC(),
		boolToInt(meta.SyncInProgress), meta.LastError, meta.Folder,
	)
	if err != nil {
		return fmt.Errorf("updating folder metadata %s: %w", meta.Folder, err)
	}
	return nil
}

// SetSyncInProgress flips the advisory in-progress flag for folder. The
// engine clears this on startup for any folder left set by a prior crash.
func (s *Store) SetSyncInProgress(ctx context.Context, folder string, inProgress bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE folder_metadata SET sync_in_progress = ? WHERE folder = ?",
		boolToInt(inProgress), folder,
	)
	if err != nil {
		return fmt.Errorf("setting sync_in_progress for %s: %w", folder, err)
	}
	return nil
}

// ClearStaleSyncFlags clears sync_in_progress for every folder. Called once
// at startup: a flag left set can only mean the prior process died mid-sync.
func (s *Store) ClearStaleSyncFlags(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "UPDATE folder_metadata SET sync_in_progress = 0")
	if err != nil {
		return fmt.Errorf("clearing stale sync flags: %w", err)
	}
	return nil
}

// ResetFolderSync zeroes a folder's sync state so the next pass performs a
// cold sync, per the force_full_sync operation.
func (s *Store) ResetFolderSync(ctx context.Context, folder string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE folder_metadata
		SET last_uid_seen = 0, total_messages = 0, last_error = '', version = version + 1
		WHERE folder = ?`, folder,
	)
	if err != nil {
		return fmt.Errorf("resetting folder sync state %s: %w", folder, err)
	}
	return nil
}

// UpsertEmails inserts or replaces a batch of emails within a single
// transaction, along with their attachments.
func (s *Store) UpsertEmails(ctx context.Context, folder string, emails []model.Email) error {
	if len(emails) == 0 {
		return nil
	}

	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		const emailQuery = `
			INSERT OR REPLACE INTO emails (
				folder, uid, message_id, subject, date,
				from_addrs, to_addrs, cc_addrs, bcc_addrs, reply_to,
				flags, seen, body_text, body_html, raw_headers, cached_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		stmt, err := tx.PreparexContext(ctx, emailQuery)
		if err != nil {
			return fmt.Errorf("preparing email upsert: %w", err)
		}
		defer stmt.Close()

		delAttach, err := tx.PreparexContext(ctx,
			"DELETE FROM attachments WHERE folder = ? AND uid = ?")
		if err != nil {
			return fmt.Errorf("preparing attachment delete: %w", err)
		}
		defer delAttach.Close()

		insAttach, err := tx.PreparexContext(ctx, `
			INSERT INTO attachments (folder, uid, filename, content_type, data)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing attachment insert: %w", err)
		}
		defer insAttach.Close()

		for _, e := range emails {
			if e.UID == 0 {
				// I2: uid 0 is never persisted.
				continue
			}
			from, err := json.Marshal(e.From)
			if err != nil {
				return fmt.Errorf("marshaling from addrs for uid %d: %w", e.UID, err)
			}
			to, err := json.Marshal(e.To)
			if err != nil {
				return fmt.Errorf("marshaling to addrs for uid %d: %w", e.UID, err)
			}
			cc, err := json.Marshal(e.Cc)
			if err != nil {
				return fmt.Errorf("marshaling cc addrs for uid %d: %w", e.UID, err)
			}
			bcc, err := json.Marshal(e.Bcc)
			if err != nil {
				return fmt.Errorf("marshaling bcc addrs for uid %d: %w", e.UID, err)
			}
			replyTo, err := json.Marshal(e.ReplyTo)
			if err != nil {
				return fmt.Errorf("marshaling reply-to addrs for uid %d: %w", e.UID, err)
			}
			flags, err := json.Marshal(e.Flags)
			if err != nil {
				return fmt.Errorf("marshaling flags for uid %d: %w", e.UID, err)
			}
			rawHeaders, err := json.Marshal(e.RawHeaders)
			if err != nil {
				return fmt.Errorf("marshaling raw headers for uid %d: %w", e.UID, err)
			}

			_, err = stmt.ExecContext(ctx,
				folder, e.UID, e.MessageID, e.Subject, e.Date.UTC(),
				string(from), string(to), string(cc), string(bcc), string(replyTo),
				string(flags), boolToInt(e.Seen()), e.BodyText, e.BodyHTML,
				string(rawHeaders), e.CachedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("upserting email uid %d: %w", e.UID, err)
			}

			if _, err := delAttach.ExecContext(ctx, folder, e.UID); err != nil {
				return fmt.Errorf("clearing attachments for uid %d: %w", e.UID, err)
			}
			for _, a := range e.Attachments {
				if _, err := insAttach.ExecContext(ctx, folder, e.UID, a.Filename, a.ContentType, a.Data); err != nil {
					return fmt.Errorf("inserting attachment for uid %d: %w", e.UID, err)
				}
			}
		}

		return nil
	})
}

// GetLastUID returns the highest UID known locally for folder.
func (s *Store) GetLastUID(ctx context.Context, folder string) (uint32, error) {
	var uid uint32
	err := s.db.GetContext(ctx, &uid,
		"SELECT COALESCE(MAX(uid), 0) FROM emails WHERE folder = ?", folder)
	if err != nil {
		return 0, fmt.Errorf("getting last uid for %s: %w", folder, err)
	}
	return uid, nil
}

// Page returns up to pageSize emails from folder, newest first, skipping
// offset rows.
func (s *Store) Page(ctx context.Context, folder string, offset, pageSize int) ([]model.Email, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT folder, uid, message_id, subject, date,
		       from_addrs, to_addrs, cc_addrs, bcc_addrs, reply_to,
		       flags, seen, body_text, body_html, raw_headers, cached_at
		FROM emails WHERE folder = ?
		ORDER BY date DESC, uid DESC
		LIMIT ? OFFSET ?`,
		folder, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("paging emails in %s: %w", folder, err)
	}
	defer rows.Close()

	var out []model.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEmail returns a single cached email by folder and UID, including its
// attachments.
func (s *Store) GetEmail(ctx context.Context, folder string, uid uint32) (*model.Email, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT folder, uid, message_id, subject, date,
		       from_addrs, to_addrs, cc_addrs, bcc_addrs, reply_to,
		       flags, seen, body_text, body_html, raw_headers, cached_at
		FROM emails WHERE folder = ? AND uid = ?`,
		folder, uid,
	)

	e, err := scanEmailRow(row)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("getting email %s/%d: %w", folder, uid, err)
	}

	atts, err := s.getAttachments(ctx, folder, uid)
	if err != nil {
		return nil, err
	}
	e.Attachments = atts

	return &e, nil
}

func (s *Store) getAttachments(ctx context.Context, folder string, uid uint32) ([]model.Attachment, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT filename, content_type, data FROM attachments WHERE folder = ? AND uid = ?",
		folder, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("getting attachments for %s/%d: %w", folder, uid, err)
	}
	defer rows.Close()

	var out []model.Attachment
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.Filename, &a.ContentType, &a.Data); err != nil {
			return nil, fmt.Errorf("scanning attachment row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetSince returns every cached email in folder with a date-received after
// ts, including attachment bytes, per get_since_timestamp.
func (s *Store) GetSince(ctx context.Context, folder string, ts time.Time) ([]model.Email, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT folder, uid, message_id, subject, date,
		       from_addrs, to_addrs, cc_addrs, bcc_addrs, reply_to,
		       flags, seen, body_text, body_html, raw_headers, cached_at
		FROM emails WHERE folder = ? AND date > ?
		ORDER BY date DESC, uid DESC`,
		folder, ts.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("getting emails since %s in %s: %w", ts, folder, err)
	}
	defer rows.Close()

	var out []model.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		atts, err := s.getAttachments(ctx, folder, e.UID)
		if err != nil {
			return nil, err
		}
		e.Attachments = atts
		out = append(out, e)
	}
	return out, rows.Err()
}

// EnqueueOp records a new mutation request. The caller is responsible for
// applying the matching optimistic local mutation once this returns.
func (s *Store) EnqueueOp(ctx context.Context, op model.Operation) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO email_operations (kind, folder, uid, dest_folder, created_at, processed, attempts, error)
		VALUES (?, ?, ?, ?, ?, 0, 0, '')`,
		string(op.Kind), op.Folder, op.UID, op.DestFolder, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("enqueuing operation: %w", err)
	}
	return res.LastInsertId()
}

// PendingOps returns unprocessed operations in FIFO order.
func (s *Store) PendingOps(ctx context.Context) ([]model.Operation, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, kind, folder, uid, dest_folder, created_at, processed, error
		FROM email_operations WHERE processed = 0 ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending operations: %w", err)
	}
	defer rows.Close()

	var out []model.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// MarkOpProcessed marks an operation as permanently applied. Per I4, once
// processed the row is immutable.
func (s *Store) MarkOpProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE email_operations SET processed = 1, error = '' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking operation %d processed: %w", id, err)
	}
	return nil
}

// MarkOpFailedPermanently finalizes an operation that will never be
// retried again, recording cause so the UI can surface it. The engine calls
// it only once an op has reached the retry cap; failures are not sorted
// into retryable and non-retryable, so every failure counts towards that
// cap. Per I4, once processed the row is immutable.
func (s *Store) MarkOpFailedPermanently(ctx context.Context, id int64, cause string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE email_operations SET processed = 1, error = ? WHERE id = ?", cause, id)
	if err != nil {
		return fmt.Errorf("marking operation %d permanently failed: %w", id, err)
	}
	return nil
}

// MarkOpFailed records a failed application attempt, incrementing the
// attempt counter the retry policy consults.
func (s *Store) MarkOpFailed(ctx context.Context, id int64, cause string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE email_operations SET attempts = attempts + 1, error = ? WHERE id = ?",
		cause, id,
	)
	if err != nil {
		return fmt.Errorf("marking operation %d failed: %w", id, err)
	}
	return nil
}

// OpAttempts returns how many times an operation has failed so far.
func (s *Store) OpAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := s.db.GetContext(ctx, &attempts, "SELECT attempts FROM email_operations WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("getting attempts for operation %d: %w", id, err)
	}
	return attempts, nil
}

// RecordSyncStart inserts a sync_stats row and returns its ID for a later
// RecordSyncEnd call.
func (s *Store) RecordSyncStart(ctx context.Context, folder string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO sync_stats (folder, started_at, fetched_count, error) VALUES (?, ?, 0, '')",
		folder, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording sync start for %s: %w", folder, err)
	}
	return res.LastInsertId()
}

// RecordSyncEnd finalizes a sync_stats row with its outcome.
func (s *Store) RecordSyncEnd(ctx context.Context, id int64, fetched int, cause string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_stats SET finished_at = ?, fetched_count = ?, error = ? WHERE id = ?",
		time.Now().UTC(), fetched, cause, id,
	)
	if err != nil {
		return fmt.Errorf("recording sync end for stat %d: %w", id, err)
	}
	return nil
}

func scanEmail(rows *sqlx.Rows) (model.Email, error) {
	return scanEmailCols(rows.Scan)
}

func scanEmailRow(row *sqlx.Row) (model.Email, error) {
	return scanEmailCols(row.Scan)
}

func scanEmailCols(scan func(dest ...interface{}) error) (model.Email, error) {
	var (
		e                                          model.Email
		folder                                     string
		from, to, cc, bcc, replyTo, flags, headers string
		seenInt                                    int
		date, cachedAt                             time.Time
	)

	err := scan(
		&folder, &e.UID, &e.MessageID, &e.Subject, &date,
		&from, &to, &cc, &bcc, &replyTo,
		&flags, &seenInt, &e.BodyText, &e.BodyHTML, &headers, &cachedAt,
	)
	if err != nil {
		return model.Email{}, err
	}

	e.Folder = folder
	e.Date = date
	e.CachedAt = cachedAt

	if from != "" {
		if err := json.Unmarshal([]byte(from), &e.From); err != nil {
			return model.Email{}, fmt.Errorf("unmarshaling from address: %w", err)
		}
	}

	for _, pair := range []struct {
		raw string
		dst *[]model.Address
	}{
		{to, &e.To}, {cc, &e.Cc}, {bcc, &e.Bcc}, {replyTo, &e.ReplyTo},
	} {
		if pair.raw != "" {
			if err := json.Unmarshal([]byte(pair.raw), pair.dst); err != nil {
				return model.Email{}, fmt.Errorf("unmarshaling address list: %w", err)
			}
		}
	}

	if flags != "" {
		if err := json.Unmarshal([]byte(flags), &e.Flags); err != nil {
			return model.Email{}, fmt.Errorf("unmarshaling flags: %w", err)
		}
	}
	if seenInt != 0 {
		e.Flags = model.WithFlag(e.Flags, model.FlagSeen)
	}
	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &e.RawHeaders); err != nil {
			return model.Email{}, fmt.Errorf("unmarshaling raw headers: %w", err)
		}
	}

	return e, nil
}

func scanFolderMetadata(row *sqlx.Row) (model.FolderMetadata, error) {
	return scanFolderMetadataCols(row.Scan)
}

func scanFolderMetadataRows(rows *sqlx.Rows) (model.FolderMetadata, error) {
	return scanFolderMetadataCols(rows.Scan)
}

func scanFolderMetadataCols(scan func(dest ...interface{}) error) (model.FolderMetadata, error) {
	var (
		meta         model.FolderMetadata
		lastSyncTime *time.Time
		inProgress   int
	)

	err := scan(
		&meta.Folder, &meta.LastUIDSeen, &meta.TotalMessages, &lastSyncTime,
		&inProgress, &meta.LastError, &meta.Version,
	)
	if err != nil {
		return model.FolderMetadata{}, err
	}

	if lastSyncTime != nil {
		meta.LastSyncTime = *lastSyncTime
	}
	meta.SyncInProgress = inProgress != 0

	return meta, nil
}

func scanOperation(rows *sqlx.Rows) (model.Operation, error) {
	var (
		op            model.Operation
		kind          string
		processedInt  int
		errStr        string
		createdAt     time.Time
	)

	err := rows.Scan(&op.ID, &kind, &op.Folder, &op.UID, &op.DestFolder, &createdAt, &processedInt, &errStr)
	if err != nil {
		return model.Operation{}, fmt.Errorf("scanning operation row: %w", err)
	}

	op.Kind = model.OpKind(kind)
	op.CreatedAt = createdAt
	op.Processed = processedInt != 0
	op.Error = errStr

	return op, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
