package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/mailsync/internal/model"
	"github.com/inboxd/mailsync/internal/store"
)

type fakeSyncer struct {
	triggered []string
}

func (f *fakeSyncer) TriggerSync(accountKey, folder string) {
	f.triggered = append(f.triggered, accountKey+"/"+folder)
}

func newTestAPI(t *testing.T) (*API, *fakeSyncer, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "account.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	syncer := &fakeSyncer{}
	accounts := []model.Account{{Name: "personal", Email: "user@example.com"}}
	a := New(accounts, map[string]*store.Store{"user_example_com": st}, syncer)
	return a, syncer, st
}

func seedEmail(t *testing.T, st *store.Store, uid uint32, flags ...model.Flag) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertFolder(ctx, "INBOX"))
	require.NoError(t, st.UpsertEmails(ctx, "INBOX", []model.Email{{
		Folder: "INBOX", UID: uid, Subject: "hi", Date: time.Now(),
		Flags: flags, CachedAt: time.Now(),
	}}))
}

func TestListAccounts(t *testing.T) {
	a, _, _ := newTestAPI(t)
	accounts := a.ListAccounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "personal", accounts[0].Name)
}

func TestStoreForUnknownAccount(t *testing.T) {
	a, _, _ := newTestAPI(t)
	_, err := a.Page(context.Background(), "no-such-account", "INBOX", 0, 10)
	assert.Error(t, err)
}

func TestPageBackfillsAccountKey(t *testing.T) {
	a, _, st := newTestAPI(t)
	seedEmail(t, st, 1)

	emails, err := a.Page(context.Background(), "user_example_com", "INBOX", 0, 10)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "user_example_com", emails[0].Account)
}

func TestOpenUnknownEmail(t *testing.T) {
	a, _, _ := newTestAPI(t)
	_, err := a.Open(context.Background(), "user_example_com", "INBOX", 404)
	assert.Error(t, err)
}

func TestQueueAppliesOptimisticOverlayToPage(t *testing.T) {
	a, syncer, st := newTestAPI(t)
	seedEmail(t, st, 1)

	ctx := context.Background()
	before, err := a.Page(ctx, "user_example_com", "INBOX", 0, 10)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.False(t, before[0].Seen(), "email starts unread")

	require.NoError(t, a.Queue(ctx, "user_example_com", "INBOX", 1, model.OpMarkRead, ""))

	after, err := a.Page(ctx, "user_example_com", "INBOX", 0, 10)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, after[0].Seen(), "queued mark-read must be reflected before the engine syncs")
	assert.Equal(t, []string{"user_example_com/INBOX"}, syncer.triggered)
}

func TestQueueAppliesOptimisticOverlayToOpen(t *testing.T) {
	a, _, st := newTestAPI(t)
	seedEmail(t, st, 1, model.FlagSeen)

	ctx := context.Background()
	before, err := a.Open(ctx, "user_example_com", "INBOX", 1)
	require.NoError(t, err)
	assert.True(t, before.Seen())

	require.NoError(t, a.Queue(ctx, "user_example_com", "INBOX", 1, model.OpMarkUnread, ""))

	after, err := a.Open(ctx, "user_example_com", "INBOX", 1)
	require.NoError(t, err)
	assert.False(t, after.Seen(), "queued mark-unread must be reflected before the engine syncs")
}

func TestOverlayClearsOnceStoreCatchesUp(t *testing.T) {
	a, _, st := newTestAPI(t)
	seedEmail(t, st, 1)

	ctx := context.Background()
	require.NoError(t, a.Queue(ctx, "user_example_com", "INBOX", 1, model.OpMarkRead, ""))

	// Simulate the sync engine having applied the change remotely and
	// persisted the resulting state.
	require.NoError(t, st.UpsertEmails(ctx, "INBOX", []model.Email{{
		Folder: "INBOX", UID: 1, Subject: "hi", Date: time.Now(),
		Flags: []model.Flag{model.FlagSeen}, CachedAt: time.Now(),
	}}))

	_, err := a.Page(ctx, "user_example_com", "INBOX", 0, 10)
	require.NoError(t, err)

	a.mu.Lock()
	_, stillOverlaid := a.overlay[overlayKey{"user_example_com", "INBOX", 1}]
	a.mu.Unlock()
	assert.False(t, stillOverlaid, "overlay entry must clear once the store reflects the queued state")
}

func TestQueueDeleteMarksDeletedInOverlay(t *testing.T) {
	a, _, st := newTestAPI(t)
	seedEmail(t, st, 1)

	ctx := context.Background()
	require.NoError(t, a.Queue(ctx, "user_example_com", "INBOX", 1, model.OpDelete, ""))

	emails, err := a.Page(ctx, "user_example_com", "INBOX", 0, 10)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.True(t, emails[0].HasFlag(model.FlagDeleted))
}

func TestThreadGroupsByMessageIDAndInReplyTo(t *testing.T) {
	a, _, st := newTestAPI(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertFolder(ctx, "INBOX"))

	root := model.Email{
		Folder: "INBOX", UID: 1, MessageID: "<root@x>", Subject: "hi",
		Date: time.Now(), CachedAt: time.Now(),
	}
	reply := model.Email{
		Folder: "INBOX", UID: 2, MessageID: "<reply@x>", Subject: "re: hi",
		Date: time.Now(), CachedAt: time.Now(),
		RawHeaders: map[string]string{"In-Reply-To": "<root@x>"},
	}
	unrelated := model.Email{
		Folder: "INBOX", UID: 3, MessageID: "<other@x>", Subject: "unrelated",
		Date: time.Now(), CachedAt: time.Now(),
	}
	require.NoError(t, st.UpsertEmails(ctx, "INBOX", []model.Email{root, reply, unrelated}))

	uids, err := a.Thread(ctx, "user_example_com", "INBOX", 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1, 2}, uids)
}

func TestThreadUnknownUID(t *testing.T) {
	a, _, _ := newTestAPI(t)
	_, err := a.Thread(context.Background(), "user_example_com", "INBOX", 404)
	assert.Error(t, err)
}

func TestForceFullSyncResetsAndTriggers(t *testing.T) {
	a, syncer, st := newTestAPI(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertFolder(ctx, "INBOX"))
	require.NoError(t, st.UpdateFolderMetadata(ctx, model.FolderMetadata{Folder: "INBOX", LastUIDSeen: 50}))

	require.NoError(t, a.ForceFullSync(ctx, "user_example_com", "INBOX"))

	meta, err := st.GetFolderMetadata(ctx, "INBOX")
	require.NoError(t, err)
	assert.EqualValues(t, 0, meta.LastUIDSeen)
	assert.Equal(t, []string{"user_example_com/INBOX"}, syncer.triggered)
}
