package syncengine

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/mailsync/internal/credential"
	"github.com/inboxd/mailsync/internal/dirty"
	"github.com/inboxd/mailsync/internal/model"
	"github.com/inboxd/mailsync/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, model.Account) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	vault := credential.New(t.TempDir())
	e := New(vault, dirty.New(), logger, time.Minute, 0)

	acc := model.Account{Name: "personal", Email: "user@example.com"}
	st, err := store.Open(filepath.Join(t.TempDir(), "account.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	e.Register(acc, st)
	return e, acc
}

func TestRegisterKeysRunnerByAccount(t *testing.T) {
	e, acc := newTestEngine(t)
	_, ok := e.runners[acc.Key()]
	assert.True(t, ok)
}

func TestTriggerSyncUnknownAccountIsNoop(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.NotPanics(t, func() {
		e.TriggerSync("no-such-account", "INBOX")
	})
}

func TestTriggerSyncDeliversToRunnerChannel(t *testing.T) {
	e, acc := newTestEngine(t)

	e.TriggerSync(acc.Key(), "INBOX")

	select {
	case folder := <-e.runners[acc.Key()].triggerCh:
		assert.Equal(t, "INBOX", folder)
	default:
		t.Fatal("expected a folder on the trigger channel")
	}
}

func TestTriggerSyncDropsWhenChannelFull(t *testing.T) {
	e, acc := newTestEngine(t)
	r := e.runners[acc.Key()]

	for i := 0; i < cap(r.triggerCh); i++ {
		e.TriggerSync(acc.Key(), "INBOX")
	}
	// The channel is now full; one more trigger must not block the caller.
	done := make(chan struct{})
	go func() {
		e.TriggerSync(acc.Key(), "INBOX")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TriggerSync blocked on a full channel")
	}
}
