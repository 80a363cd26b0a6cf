package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// Parser turns raw RFC 822 messages into Email values.
type Parser struct{}

// NewParser creates a new message parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses a raw message into an Email. The read state is left
// ReadStateUnknown; adapters set it from provider flags after parsing.
func (p *Parser) Parse(id string, raw []byte) (*Email, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	header := entity.Header
	e := &Email{
		ID:      id,
		From:    decodeHeader(header.Get("From")),
		Subject: decodeHeader(header.Get("Subject")),
		Date:    header.Get("Date"),
	}
	e.Body = extractBody(entity)
	return e, nil
}

// extractBody returns the first text/plain part, falling back to
// text/html when no plain part exists. Attachments are skipped.
func extractBody(entity *message.Entity) string {
	mediaType, _, err := entity.Header.ContentType()
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		var fallback string
		mr := entity.MultipartReader()
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}

			disposition, _, _ := part.Header.ContentDisposition()
			if disposition == "attachment" {
				continue
			}

			partType, _, _ := part.Header.ContentType()
			switch {
			case strings.HasPrefix(partType, "multipart/"):
				if body := extractBody(part); body != "" {
					return body
				}
			case strings.HasPrefix(partType, "text/plain"):
				if body, err := io.ReadAll(part.Body); err == nil {
					return string(body)
				}
			case strings.HasPrefix(partType, "text/html") && fallback == "":
				if body, err := io.ReadAll(part.Body); err == nil {
					fallback = string(body)
				}
			}
		}
		return fallback
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

// decodeHeader decodes RFC 2047 encoded header values.
func decodeHeader(s string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}
