package imap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"

	"github.com/inboxd/mailsync/internal/model"
)

// errZeroUID is returned for a message the server reported with UID 0.
// Per I2, such messages are skipped rather than stored: servers
// occasionally return this sentinel during race conditions.
var errZeroUID = errors.New("message has uid 0")

// parseMessage converts a fetched IMAP message into the cache's Email
// shape, extracting MIME body parts and attachment metadata via enmime.
func parseMessage(msg *imap.Message, folder string) (model.Email, error) {
	if msg.Uid == 0 {
		return model.Email{}, errZeroUID
	}
	if msg.Envelope == nil {
		return model.Email{}, fmt.Errorf("message uid %d has no envelope", msg.Uid)
	}

	e := model.Email{
		Folder:    folder,
		UID:       msg.Uid,
		MessageID: msg.Envelope.MessageId,
		Subject:   msg.Envelope.Subject,
		Date:      msg.Envelope.Date,
		To:        addresses(msg.Envelope.To),
		Cc:        addresses(msg.Envelope.Cc),
		Bcc:       addresses(msg.Envelope.Bcc),
		ReplyTo:   addresses(msg.Envelope.ReplyTo),
		CachedAt:  time.Now(),
	}
	if froms := addresses(msg.Envelope.From); len(froms) > 0 {
		e.From = froms[0]
	}
	for _, f := range msg.Flags {
		e.Flags = append(e.Flags, model.Flag(f))
	}

	body := msg.GetBody(bodySection)
	if body == nil {
		return e, nil
	}

	env, err := enmime.ReadEnvelope(body)
	if err != nil {
		return e, nil
	}

	e.BodyText = env.Text
	e.BodyHTML = env.HTML
	e.RawHeaders = flattenHeaders(env.Root.Header)

	for _, a := range env.Attachments {
		e.Attachments = append(e.Attachments, model.Attachment{
			Filename:    a.FileName,
			ContentType: a.ContentType,
			Data:        a.Content,
		})
	}
	for _, a := range env.Inlines {
		if a.FileName == "" {
			continue
		}
		e.Attachments = append(e.Attachments, model.Attachment{
			Filename:    a.FileName,
			ContentType: a.ContentType,
			Data:        a.Content,
		})
	}

	return e, nil
}

// addresses converts an envelope's address list into the model's address
// type, preferring the personal name and falling back to the bare address.
func addresses(in []*imap.Address) []model.Address {
	out := make([]model.Address, 0, len(in))
	for _, a := range in {
		if a == nil {
			continue
		}
		out = append(out, model.Address{
			Name: a.PersonalName,
			Addr: a.Address(),
		})
	}
	return out
}

// flattenHeaders collapses a MIME part's header into one value per name,
// joining repeated headers with "; " — the cache stores headers for
// display and read-time threading, not for byte-exact round-tripping.
func flattenHeaders(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[k] = strings.Join(vs, "; ")
	}
	return out
}
