package imap

import (
	"fmt"

	"github.com/emersion/go-imap"
	sortthread "github.com/emersion/go-imap-sortthread"
	"github.com/emersion/go-imap/client"
)

// ThreadHint runs the THREAD command against the selected folder when the
// server supports it, returning nil without error when it does not. The
// result is advisory and is not stored: the sync engine only logs how many
// threads it got, and conversations served to the UI are grouped by
// Message-ID/In-Reply-To at read time.
func ThreadHint(c *client.Client) ([]*sortthread.Thread, error) {
	if !hasCapability(c, "THREAD=REFERENCES") {
		return nil, nil
	}

	tc := sortthread.NewThreadClient(c)
	threads, err := tc.UidThread(sortthread.References, imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("running THREAD command: %w", err)
	}
	return threads, nil
}
