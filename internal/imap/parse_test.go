package imap

import (
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/mailsync/internal/model"
)

func TestAddressesPrefersPersonalName(t *testing.T) {
	in := []*imap.Address{
		{PersonalName: "Alice", MailboxName: "alice", HostName: "example.com"},
		nil,
		{MailboxName: "bob", HostName: "example.com"},
	}

	out := addresses(in)
	assert.Equal(t, []model.Address{
		{Name: "Alice", Addr: "alice@example.com"},
		{Name: "", Addr: "bob@example.com"},
	}, out, "a nil entry in the envelope address list is skipped")
}

func TestAddressesEmptyInput(t *testing.T) {
	assert.Empty(t, addresses(nil))
}

func TestFlattenHeadersJoinsRepeatedValues(t *testing.T) {
	in := map[string][]string{
		"Received": {"hop1", "hop2"},
		"Subject":  {"Hello"},
	}

	out := flattenHeaders(in)
	assert.Equal(t, "hop1; hop2", out["Received"])
	assert.Equal(t, "Hello", out["Subject"])
}

func TestFlattenHeadersEmptyInput(t *testing.T) {
	out := flattenHeaders(map[string][]string{})
	assert.Empty(t, out)
}

func TestParseMessageRequiresEnvelope(t *testing.T) {
	_, err := parseMessage(&imap.Message{Uid: 5}, "INBOX")
	assert.Error(t, err)
}

func TestParseMessageRejectsZeroUID(t *testing.T) {
	_, err := parseMessage(&imap.Message{Uid: 0, Envelope: &imap.Envelope{}}, "INBOX")
	require.Error(t, err)
	assert.ErrorIs(t, err, errZeroUID)
}

func TestParseMessageMapsEnvelopeFields(t *testing.T) {
	msg := &imap.Message{
		Uid:   5,
		Flags: []string{imap.SeenFlag, imap.FlaggedFlag},
		Envelope: &imap.Envelope{
			MessageId: "<abc@example.com>",
			Subject:   "Hi",
			From:      []*imap.Address{{PersonalName: "Alice", MailboxName: "alice", HostName: "example.com"}},
			To:        []*imap.Address{{MailboxName: "bob", HostName: "example.com"}},
		},
	}

	e, err := parseMessage(msg, "INBOX")
	require.NoError(t, err)
	assert.Equal(t, "INBOX", e.Folder)
	assert.EqualValues(t, 5, e.UID)
	assert.Equal(t, "<abc@example.com>", e.MessageID)
	assert.Equal(t, "Hi", e.Subject)
	assert.Equal(t, model.Address{Name: "Alice", Addr: "alice@example.com"}, e.From)
	assert.Equal(t, []model.Address{{Addr: "bob@example.com"}}, e.To)
	assert.True(t, e.Seen())
	assert.True(t, e.HasFlag(model.FlagFlagged))
}
