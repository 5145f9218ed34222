// Package api is the UI-facing surface of the core: a typed, store-only
// API that never touches the network. It is safe to embed in a terminal UI
// process running separately from the sync engine, which is the only
// component permitted to dial IMAP.
package api

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/inboxd/mailsync/internal/model"
	"github.com/inboxd/mailsync/internal/store"
)

// Syncer is the subset of the sync engine the API is allowed to reach for
// out-of-band requests; it never gets a store handle of its own.
type Syncer interface {
	TriggerSync(accountKey, folder string)
}

// API is the read/queue surface backing a terminal UI.
type API struct {
	accounts []model.Account
	stores   map[string]*store.Store
	syncer   Syncer

	mu       gosync.Mutex
	overlay  map[overlayKey]model.OpKind
}

type overlayKey struct {
	account string
	folder  string
	uid     uint32
}

// New returns an API backed by one opened store per account.
func New(accounts []model.Account, stores map[string]*store.Store, syncer Syncer) *API {
	return &API{
		accounts: accounts,
		stores:   stores,
		syncer:   syncer,
		overlay:  make(map[overlayKey]model.OpKind),
	}
}

// ListAccounts returns every configured account.
func (a *API) ListAccounts() []model.Account {
	return a.accounts
}

func (a *API) storeFor(accountKey string) (*store.Store, error) {
	st, ok := a.stores[accountKey]
	if !ok {
		return nil, fmt.Errorf("unknown account %q", accountKey)
	}
	return st, nil
}

// ListFolders returns the sync state of every locally-known folder for
// accountKey.
func (a *API) ListFolders(ctx context.Context, accountKey string) ([]model.FolderMetadata, error) {
	st, err := a.storeFor(accountKey)
	if err != nil {
		return nil, err
	}
	metas, err := st.ListFolderMetadata(ctx)
	if err != nil {
		return nil, err
	}
	for i := range metas {
		metas[i].Account = accountKey
	}
	return metas, nil
}

// Page returns up to pageSize cached emails from accountKey/folder,
// newest first, starting at pageIndex (0-based), with queued-but-unsynced
// mutations overlaid so the UI never shows a state it already asked to
// change.
func (a *API) Page(ctx context.Context, accountKey, folder string, pageIndex, pageSize int) ([]model.Email, error) {
	st, err := a.storeFor(accountKey)
	if err != nil {
		return nil, err
	}

	emails, err := st.Page(ctx, folder, pageIndex*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	for i := range emails {
		emails[i].Account = accountKey
	}
	a.applyOverlay(accountKey, folder, emails)
	return emails, nil
}

// Open returns the full cached email, including attachments, for
// accountKey/folder/uid.
func (a *API) Open(ctx context.Context, accountKey, folder string, uid uint32) (*model.Email, error) {
	st, err := a.storeFor(accountKey)
	if err != nil {
		return nil, err
	}
	e, err := st.GetEmail(ctx, folder, uid)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("no cached email %s/%s/%d", accountKey, folder, uid)
	}
	e.Account = accountKey

	single := []model.Email{*e}
	a.applyOverlay(accountKey, folder, single)
	return &single[0], nil
}

// Queue records a mutation request and immediately applies its optimistic
// local effect, so a subsequent Page/Open reflects the requested state
// before the sync engine has applied it remotely.
func (a *API) Queue(ctx context.Context, accountKey, folder string, uid uint32, kind model.OpKind, destFolder string) error {
	st, err := a.storeFor(accountKey)
	if err != nil {
		return err
	}

	op := model.Operation{
		Account:    accountKey,
		Kind:       kind,
		Folder:     folder,
		UID:        uid,
		DestFolder: destFolder,
		CreatedAt:  time.Now(),
	}
	if _, err := st.EnqueueOp(ctx, op); err != nil {
		return err
	}

	a.mu.Lock()
	a.overlay[overlayKey{accountKey, folder, uid}] = kind
	a.mu.Unlock()

	a.syncer.TriggerSync(accountKey, folder)
	return nil
}

// Thread returns the UIDs of every cached message in accountKey/folder that
// belongs to the same conversation as uid, grouped by Message-ID/In-Reply-To
// found in the stored raw-headers map. This is a pure read-time computation
// over already-fetched rows; the store never persists thread pointers.
func (a *API) Thread(ctx context.Context, accountKey, folder string, uid uint32) ([]uint32, error) {
	st, err := a.storeFor(accountKey)
	if err != nil {
		return nil, err
	}

	emails, err := st.GetSince(ctx, folder, time.Time{})
	if err != nil {
		return nil, err
	}

	idx := newThreadIndex(emails)
	return idx.conversation(uid)
}

// ForceFullSync resets a folder's sync state so the engine's next pass
// re-fetches it from scratch.
func (a *API) ForceFullSync(ctx context.Context, accountKey, folder string) error {
	st, err := a.storeFor(accountKey)
	if err != nil {
		return err
	}
	if err := st.ResetFolderSync(ctx, folder); err != nil {
		return err
	}
	a.syncer.TriggerSync(accountKey, folder)
	return nil
}

// applyOverlay mutates emails in place to reflect any queued-but-unsynced
// operations against them, and clears overlay entries once the underlying
// row already shows the requested state (the sync engine caught up).
func (a *API) applyOverlay(accountKey, folder string, emails []model.Email) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range emails {
		k := overlayKey{accountKey, folder, emails[i].UID}
		kind, ok := a.overlay[k]
		if !ok {
			continue
		}

		switch kind {
		case model.OpMarkRead:
			if emails[i].Seen() {
				delete(a.overlay, k)
				continue
			}
			emails[i].Flags = model.WithFlag(emails[i].Flags, model.FlagSeen)
		case model.OpMarkUnread:
			if !emails[i].Seen() {
				delete(a.overlay, k)
				continue
			}
			emails[i].Flags = model.WithoutFlag(emails[i].Flags, model.FlagSeen)
		case model.OpDelete, model.OpMove:
			emails[i].Flags = model.WithFlag(emails[i].Flags, model.FlagDeleted)
		}
	}
}
