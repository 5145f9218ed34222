package imap

import (
	"errors"
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/inboxd/mailsync/internal/model"
)

// bodySection requests the whole message body without setting \Seen: the
// spec forbids a passive sync pass from mutating server-side read state.
var bodySection = &imap.BodySectionName{Peek: true}

// ListFolders returns every mailbox the account exposes.
func ListFolders(c *client.Client) ([]string, error) {
	mailboxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)

	go func() { done <- c.List("", "*", mailboxes) }()

	var names []string
	for m := range mailboxes {
		names = append(names, m.Name)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return names, nil
}

// Select opens folder and returns its mailbox status. readOnly selects via
// EXAMINE rather than SELECT, guaranteeing the pass cannot mutate flags.
func Select(c *client.Client, folder string, readOnly bool) (*imap.MailboxStatus, error) {
	status, err := c.Select(folder, readOnly)
	if err != nil {
		return nil, fmt.Errorf("selecting folder %s: %w", folder, err)
	}
	return status, nil
}

// LatestUID returns the highest UID currently present in the selected
// folder, or 0 if the folder is empty. The caller must have already
// selected folder.
func LatestUID(c *client.Client) (uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = nil
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return 0, fmt.Errorf("searching for latest uid: %w", err)
	}
	var max uint32
	for _, u := range uids {
		if u > max {
			max = u
		}
	}
	return max, nil
}

// fetchItems are the items requested on every message fetch: envelope and
// flags for indexing, the full body (peeked) for local caching.
func fetchItems() []imap.FetchItem {
	return []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		imap.FetchInternalDate,
		bodySection.FetchItem(),
	}
}

// FetchUIDRange fetches every message in folder whose UID is in [lo, hi],
// inclusive. The caller must have already selected folder. The second
// return value counts messages dropped for carrying UID 0, per I2.
func FetchUIDRange(c *client.Client, folder string, lo, hi uint32) ([]model.Email, int, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(lo, hi)

	messages := make(chan *imap.Message, 32)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seqSet, fetchItems(), messages) }()

	var emails []model.Email
	var skippedZeroUID int
	for msg := range messages {
		e, err := parseMessage(msg, folder)
		if err != nil {
			if errors.Is(err, errZeroUID) {
				skippedZeroUID++
			}
			continue
		}
		emails = append(emails, e)
	}
	if err := <-done; err != nil {
		return emails, skippedZeroUID, fmt.Errorf("fetching uids %d-%d in %s: %w", lo, hi, folder, err)
	}
	return emails, skippedZeroUID, nil
}

// FetchUIDs fetches exactly the messages named by uids. Used by cold sync
// with the UIDs RecentUIDs returns (all of them unless a limit is set). The second
// return value counts messages dropped for carrying UID 0, per I2.
func FetchUIDs(c *client.Client, folder string, uids []uint32) ([]model.Email, int, error) {
	if len(uids) == 0 {
		return nil, 0, nil
	}

	seqSet := new(imap.SeqSet)
	for _, u := range uids {
		seqSet.AddNum(u)
	}

	messages := make(chan *imap.Message, 32)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seqSet, fetchItems(), messages) }()

	var emails []model.Email
	var skippedZeroUID int
	for msg := range messages {
		e, err := parseMessage(msg, folder)
		if err != nil {
			if errors.Is(err, errZeroUID) {
				skippedZeroUID++
			}
			continue
		}
		emails = append(emails, e)
	}
	if err := <-done; err != nil {
		return emails, skippedZeroUID, fmt.Errorf("fetching uid set in %s: %w", folder, err)
	}
	return emails, skippedZeroUID, nil
}

// RecentUIDs returns the UIDs present in the selected folder, used to seed
// a cold sync. A positive limit keeps only the last limit UIDs of the
// search result; zero or a negative limit returns every UID.
func RecentUIDs(c *client.Client, limit int) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("searching for recent uids: %w", err)
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	return uids, nil
}
