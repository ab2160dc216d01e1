package main

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/jhillyerd/enmime"
)

// ParseRawMail parses raw mail bytes strictly: the bytes must be valid UTF-8
// and enmime must not have reported any defect in the message. The only
// entry tolerated is the notice that a text body was derived from HTML.
func ParseRawMail(raw []byte) (*enmime.Envelope, error) {

	logger.Debugf("Parsing email (%d bytes)", len(raw))

	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: message is not valid UTF-8", ErrParse)
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	for _, perr := range envelope.Errors {
		if perr.Name == enmime.ErrorPlainTextFromHTML {
			continue
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrParse, perr.Name, perr.Detail)
	}

	return envelope, nil
}
