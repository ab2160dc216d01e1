package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jhillyerd/enmime"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// DiscoveredAttachment is an attachment part together with the storage key
// and job tag derived for it. Ordinal is the 1-based position of the part
// among all attachments of the message.
type DiscoveredAttachment struct {
	Part         *enmime.Part
	AttachmentID string
	Key          string
	JobTag       string
	Ordinal      int
}

// SanitizeFilename strips every character that is not an ASCII letter or
// digit. Filenames differing only in punctuation map to the same key.
func SanitizeFilename(filename string) string {
	return nonAlphanumeric.ReplaceAllString(filename, "")
}

func attachmentKey(objectKey, name string) string {
	return objectKey + "/attachments/" + name
}

func jobTag(emailID, name string) string {
	prefix := emailID
	if r := []rune(emailID); len(r) > 5 {
		prefix = string(r[:5])
	}
	return prefix + "_" + name
}

func isAttachment(p *enmime.Part) bool {
	return strings.EqualFold(p.Disposition, "attachment")
}

func isEmbeddedMessage(p *enmime.Part) bool {
	return strings.EqualFold(p.ContentType, "message/rfc822")
}

// WalkAttachments visits the MIME tree depth first in document order and
// returns one entry per attachment part. Parts without a filename are named
// by their ordinal. enmime leaves message/rfc822 parts unparsed, so their
// content is parsed here and walked in place with the same counter.
func WalkAttachments(root *enmime.Part, emailID, objectKey string) ([]DiscoveredAttachment, error) {

	var found []DiscoveredAttachment
	ordinal := 0

	var walk func(p *enmime.Part) error
	walk = func(p *enmime.Part) error {
		for ; p != nil; p = p.NextSibling {
			if isAttachment(p) {
				ordinal++
				name := SanitizeFilename(p.FileName)
				if p.FileName == "" {
					name = strconv.Itoa(ordinal)
				}
				logger.Debugf("%v ==> %q (%s)", p.ContentType, p.FileName, name)
				found = append(found, DiscoveredAttachment{
					Part:         p,
					AttachmentID: p.FileName,
					Key:          attachmentKey(objectKey, name),
					JobTag:       jobTag(emailID, name),
					Ordinal:      ordinal,
				})
			}
			if isEmbeddedMessage(p) {
				inner, err := ParseRawMail(p.Content)
				if err != nil {
					return fmt.Errorf("embedded message %q: %w", p.FileName, err)
				}
				if err := walk(inner.Root); err != nil {
					return err
				}
			}
			if err := walk(p.FirstChild); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return found, nil
}
