package email

import (
	"net/mail"
	"strings"
	"time"
)

// ReadState is the normalized read marker for an email, derived once at
// ingestion from the provider's native representation (Gmail label sets
// or IMAP flag sets).
type ReadState int

const (
	// ReadStateUnknown means the provider supplied neither labels nor
	// flags. The cleanup policy treats unknown as unread.
	ReadStateUnknown ReadState = iota
	ReadStateUnread
	ReadStateRead
)

// ReadStateFromLabels derives the read state from a Gmail-style label
// set: a message is read when the UNREAD marker is absent.
func ReadStateFromLabels(labels []string) ReadState {
	for _, l := range labels {
		if l == "UNREAD" {
			return ReadStateUnread
		}
	}
	return ReadStateRead
}

// ReadStateFromFlags derives the read state from an IMAP flag set: a
// message is read when the \Seen flag is present.
func ReadStateFromFlags(flags []string) ReadState {
	for _, f := range flags {
		if f == `\Seen` {
			return ReadStateRead
		}
	}
	return ReadStateUnread
}

// Email is a provider-neutral snapshot of a single message. Instances
// are built fresh by a mail-store adapter each cycle and are treated as
// read-only by the decision engines.
type Email struct {
	// ID is the provider-assigned identifier, unique within a session.
	ID      string
	Subject string
	Body    string
	// From is the raw header value, "Display Name <addr@domain>" or a
	// bare address.
	From string
	// Date is the provider-native date string (RFC 2822 or RFC 3339).
	Date      string
	ReadState ReadState
}

// SenderAddress returns the address part of the From header, or "" when
// the header cannot be parsed.
func (e *Email) SenderAddress() string {
	addr, _ := splitFrom(e.From)
	return addr
}

// SenderName returns the decoded display name of the sender, or "" when
// none is present.
func (e *Email) SenderName() string {
	_, name := splitFrom(e.From)
	return name
}

// SenderDomain returns the part of the sender address after the last
// "@", or "" when the address carries none.
func (e *Email) SenderDomain() string {
	addr := e.SenderAddress()
	i := strings.LastIndexByte(addr, '@')
	if i < 0 {
		return ""
	}
	return addr[i+1:]
}

// SentAt parses the originating timestamp, accepting RFC 2822 dates
// (including the obsolete forms net/mail tolerates) and RFC 3339.
func (e *Email) SentAt() (time.Time, error) {
	if t, err := mail.ParseDate(e.Date); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, e.Date)
}

// splitFrom splits a raw From header into address and display name.
// Malformed input degrades to whatever can be salvaged, never an error:
// a bare string containing "@" is taken as the address, an unparsable
// angle-bracket form is split manually, anything else yields "".
func splitFrom(from string) (addr, name string) {
	if a, err := mail.ParseAddress(from); err == nil {
		return a.Address, a.Name
	}
	s := strings.TrimSpace(from)
	if i := strings.IndexByte(s, '<'); i >= 0 {
		if j := strings.IndexByte(s[i:], '>'); j > 0 {
			addr = strings.TrimSpace(s[i+1 : i+j])
			name = strings.Trim(strings.TrimSpace(s[:i]), `"`)
			return addr, name
		}
		return "", ""
	}
	if strings.Contains(s, "@") {
		return s, ""
	}
	return "", ""
}
