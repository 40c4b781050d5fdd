package mailserver

import (
	"bytes"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"
)

// Message is an outgoing email.
type Message struct {
	ID      string
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	Date    time.Time
}

// Recipients returns every envelope recipient, Bcc included.
func (m Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	out = append(out, m.Bcc...)
	return out
}

// Bytes renders the message as RFC 5322 text. Bcc is never written.
func (m Message) Bytes() []byte {
	var buf bytes.Buffer
	header := func(key, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
	}

	header("Message-ID", "<"+m.ID+"@"+domainOf(m.From)+">")
	header("Date", m.Date.Format(time.RFC1123Z))
	header("From", m.From)
	header("To", strings.Join(m.To, ", "))
	if len(m.Cc) > 0 {
		header("Cc", strings.Join(m.Cc, ", "))
	}
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")

	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// parseAddresses accepts comma separated lists and returns bare addresses.
func parseAddresses(field string, values []string) ([]string, error) {
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		list, err := mail.ParseAddressList(value)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid address %q: %w", field, value, err)
		}
		for _, addr := range list {
			out = append(out, addr.Address)
		}
	}
	return out, nil
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
