package model

import "time"

// FolderMetadata is the per-folder sync-state record: I1 requires
// LastUIDSeen to be monotonically non-decreasing across syncs.
type FolderMetadata struct {
	Account          string
	Folder           string
	LastUIDSeen      uint32
	TotalMessages    int
	LastSyncTime     time.Time
	SyncInProgress   bool
	LastError        string
	Version          int64
}

// Folder is a remote-named mailbox known to the local mirror.
type Folder struct {
	Account  string
	Name     string
	Metadata FolderMetadata
}
