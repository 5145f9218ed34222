package smtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/mailsync/internal/model"
)

func TestAllRecipientsCombinesToCcBcc(t *testing.T) {
	msg := &Message{
		To:  []model.Address{{Addr: "to@example.com"}},
		Cc:  []model.Address{{Addr: "cc@example.com"}},
		Bcc: []model.Address{{Addr: "bcc@example.com"}},
	}
	assert.Equal(t, []string{"to@example.com", "cc@example.com", "bcc@example.com"}, allRecipients(msg))
}

func TestAddrListFormatsNamedAndBareAddresses(t *testing.T) {
	addrs := []model.Address{
		{Name: "Alice", Addr: "alice@example.com"},
		{Addr: "bob@example.com"},
	}
	assert.Equal(t, `"Alice" <alice@example.com>, bob@example.com`, addrList(addrs))
}

func TestBuildMessagePlainText(t *testing.T) {
	msg := &Message{
		To:       []model.Address{{Addr: "bob@example.com"}},
		Subject:  "Hello",
		BodyText: "plain body",
	}

	raw, err := buildMessage("alice@example.com", msg)
	require.NoError(t, err)

	s := string(raw)
	assert.True(t, strings.Contains(s, "From: alice@example.com\r\n"))
	assert.True(t, strings.Contains(s, "To: bob@example.com\r\n"))
	assert.True(t, strings.Contains(s, "Subject: Hello\r\n"))
	assert.True(t, strings.Contains(s, "Content-Type: text/plain"))
	assert.True(t, strings.HasSuffix(s, "plain body"))
	assert.False(t, strings.Contains(s, "Cc:"), "no Cc header when there are no Cc recipients")
}

func TestBuildMessagePrefersHTMLBody(t *testing.T) {
	msg := &Message{
		To:       []model.Address{{Addr: "bob@example.com"}},
		Cc:       []model.Address{{Addr: "carol@example.com"}},
		Subject:  "Hi",
		BodyText: "fallback text",
		BodyHTML: "<p>hi</p>",
		ReplyTo:  "reply@example.com",
	}

	raw, err := buildMessage("alice@example.com", msg)
	require.NoError(t, err)

	s := string(raw)
	assert.True(t, strings.Contains(s, "Cc: carol@example.com\r\n"))
	assert.True(t, strings.Contains(s, "Reply-To: reply@example.com\r\n"))
	assert.True(t, strings.Contains(s, "Content-Type: text/html"))
	assert.True(t, strings.HasSuffix(s, "<p>hi</p>"))
}
