package dirty

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndClearClearsOnRead(t *testing.T) {
	tr := New()

	assert.False(t, tr.CheckAndClear("acct", "INBOX"), "unmarked folder reads as clean")

	tr.Mark("acct", "INBOX")
	assert.True(t, tr.CheckAndClear("acct", "INBOX"), "marked folder reads as dirty")
	assert.False(t, tr.CheckAndClear("acct", "INBOX"), "a second read observes the flag already cleared")
}

func TestCheckAndClearIsPerAccountFolder(t *testing.T) {
	tr := New()
	tr.Mark("acct-a", "INBOX")

	assert.True(t, tr.CheckAndClear("acct-a", "INBOX"))
	assert.False(t, tr.CheckAndClear("acct-b", "INBOX"), "a different account's folder is unaffected")
	assert.False(t, tr.CheckAndClear("acct-a", "Archive"), "a different folder on the same account is unaffected")
}

func TestMarkIsIdempotent(t *testing.T) {
	tr := New()
	tr.Mark("acct", "INBOX")
	tr.Mark("acct", "INBOX")

	assert.True(t, tr.CheckAndClear("acct", "INBOX"))
	assert.False(t, tr.CheckAndClear("acct", "INBOX"))
}

func TestConcurrentMarkAndClear(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Mark("acct", "INBOX")
		}()
		go func() {
			defer wg.Done()
			tr.CheckAndClear("acct", "INBOX")
		}()
	}
	wg.Wait()
}
