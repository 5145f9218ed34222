// Package dirty is the in-process change-notification channel described by
// the engine's dirty-flag contract: a cheap, intra-process signal that a
// folder changed, cleared the moment a reader observes it. It is an
// optimization only — the canonical source of truth for "did this folder
// change" is always the folder_metadata version column in the store.
package dirty

import "sync"

// Tracker holds one flag per (account, folder) pair.
type Tracker struct {
	mu    sync.Mutex
	flags map[key]bool
}

type key struct {
	account string
	folder  string
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{flags: make(map[key]bool)}
}

// Mark sets the dirty flag for account/folder. Called by the sync engine
// after it persists new state.
func (t *Tracker) Mark(account, folder string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flags[key{account, folder}] = true
}

// CheckAndClear reports whether account/folder was marked dirty, clearing
// the flag as part of the same critical section so a concurrent reader
// can't observe the same change twice nor miss one raised between the
// check and the clear.
func (t *Tracker) CheckAndClear(account, folder string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{account, folder}
	dirty := t.flags[k]
	delete(t.flags, k)
	return dirty
}
