package model

import "time"

// Address is a single email address: an optional display name and the
// addr-spec. Fetched messages fill it from the IMAP envelope's structured
// address fields; no code parses address strings or raw From/To headers
// into it.
type Address struct {
	Name string `json:"name,omitempty"`
	Addr string `json:"addr"`
}

// Attachment is a MIME leaf with a filename or non-text content type.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Flag is an IMAP system or keyword flag, single-backslash prefixed for
// system flags (\Seen, \Answered, \Flagged, \Draft, \Deleted).
type Flag string

const (
	FlagSeen     Flag = "\\Seen"
	FlagAnswered Flag = "\\Answered"
	FlagFlagged  Flag = "\\Flagged"
	FlagDraft    Flag = "\\Draft"
	FlagDeleted  Flag = "\\Deleted"
)

// Email is the local mirror of a single remote message, identified by
// (Account, Folder, UID).
type Email struct {
	Account      string
	Folder       string
	UID          uint32
	MessageID    string
	Subject      string
	Date         time.Time
	From         Address
	To           []Address
	Cc           []Address
	Bcc          []Address
	ReplyTo      []Address
	Flags        []Flag
	BodyText     string
	BodyHTML     string
	Attachments  []Attachment
	RawHeaders   map[string]string
	CachedAt     time.Time
}

// Seen reports whether the email carries the \Seen flag.
func (e *Email) Seen() bool {
	for _, f := range e.Flags {
		if f == FlagSeen {
			return true
		}
	}
	return false
}

// HasFlag reports whether the email carries the given flag.
func (e *Email) HasFlag(f Flag) bool {
	for _, existing := range e.Flags {
		if existing == f {
			return true
		}
	}
	return false
}

// WithFlag returns the flag set with f added, without mutating Flags.
func WithFlag(flags []Flag, f Flag) []Flag {
	for _, existing := range flags {
		if existing == f {
			return flags
		}
	}
	return append(append([]Flag{}, flags...), f)
}

// WithoutFlag returns the flag set with f removed, without mutating Flags.
func WithoutFlag(flags []Flag, f Flag) []Flag {
	out := make([]Flag, 0, len(flags))
	for _, existing := range flags {
		if existing != f {
			out = append(out, existing)
		}
	}
	return out
}

// EmailSummary is a lightweight projection of Email without body or
// attachment bytes. The store's paginated reads return full Email values,
// not this type.
type EmailSummary struct {
	Account string
	Folder  string
	UID     uint32
	Subject string
	From    Address
	Date    time.Time
	Flags   []Flag
}
