package api

import (
	"fmt"

	"github.com/inboxd/mailsync/internal/model"
)

// threadIndex groups cached emails into conversations by Message-ID and
// In-Reply-To, the way spec.md §9 describes read-time threading: never
// stored as pointers between rows, just a graph built on demand from
// already-fetched rows.
type threadIndex struct {
	byUID   map[uint32]model.Email
	byMsgID map[string][]uint32
	parent  map[string]string // message-id -> in-reply-to message-id
}

func newThreadIndex(emails []model.Email) *threadIndex {
	idx := &threadIndex{
		byUID:   make(map[uint32]model.Email, len(emails)),
		byMsgID: make(map[string][]uint32),
		parent:  make(map[string]string),
	}

	for _, e := range emails {
		idx.byUID[e.UID] = e

		mid := threadMessageID(e)
		if mid == "" {
			continue
		}
		idx.byMsgID[mid] = append(idx.byMsgID[mid], e.UID)

		if ref := threadInReplyTo(e); ref != "" {
			idx.parent[mid] = ref
		}
	}

	return idx
}

// conversation returns every UID connected to uid through the Message-ID /
// In-Reply-To graph, including uid itself.
func (idx *threadIndex) conversation(uid uint32) ([]uint32, error) {
	root, ok := idx.byUID[uid]
	if !ok {
		return nil, fmt.Errorf("no cached email for uid %d", uid)
	}

	startID := threadMessageID(root)
	if startID == "" {
		return []uint32{uid}, nil
	}

	visitedIDs := map[string]bool{}
	seenUIDs := map[uint32]bool{}
	var uids []uint32

	var visit func(msgID string)
	visit = func(msgID string) {
		if msgID == "" || visitedIDs[msgID] {
			return
		}
		visitedIDs[msgID] = true

		for _, u := range idx.byMsgID[msgID] {
			if !seenUIDs[u] {
				seenUIDs[u] = true
				uids = append(uids, u)
			}
		}
		visit(idx.parent[msgID])
		for childID, parentID := range idx.parent {
			if parentID == msgID {
				visit(childID)
			}
		}
	}
	visit(startID)

	return uids, nil
}

func threadMessageID(e model.Email) string {
	if e.MessageID != "" {
		return e.MessageID
	}
	return headerValue(e.RawHeaders, "Message-Id", "Message-ID", "message-id")
}

func threadInReplyTo(e model.Email) string {
	return headerValue(e.RawHeaders, "In-Reply-To", "in-reply-to")
}

func headerValue(raw map[string]string, names ...string) string {
	for _, n := range names {
		if v, ok := raw[n]; ok {
			return v
		}
	}
	return ""
}
