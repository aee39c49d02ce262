package email

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// parsedMessage is the result of parsing a complete RFC 5322 message.
type parsedMessage struct {
	headers     map[string]any
	subject     string
	from        *addressList
	to          *addressList
	cc          *addressList
	bcc         *addressList
	replyTo     *addressList
	date        time.Time
	messageID   string
	inReplyTo   string
	references  []string
	text        string
	html        string
	attachments []parsedAttachment
}

type parsedAttachment struct {
	filename    string
	contentType string
	content     []byte
}

// addressList mirrors the {value, text} shape hosts expect for address
// headers.
type addressList struct {
	Value []address `json:"value"`
	Text  string    `json:"text"`
}

type address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// parseMessage parses raw message bytes with go-message. Parts with an
// unknown charset or transfer encoding are kept undecoded rather than
// failing the message. The first plain and HTML text parts become the
// message text; every other leaf part is an attachment.
func parseMessage(raw []byte) (*parsedMessage, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !tolerable(err) {
		return nil, fmt.Errorf("reading message: %w", err)
	}

	out := &parsedMessage{headers: map[string]any{}}
	if err := out.readHeader(mail.Header{Header: entity.Header}); err != nil {
		return nil, err
	}

	err = entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil && !tolerable(err) {
			return err
		}
		if part.MultipartReader() != nil {
			return nil
		}
		return out.addPart(part)
	})
	if err != nil {
		return nil, fmt.Errorf("reading message part: %w", err)
	}

	return out, nil
}

func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func (p *parsedMessage) addPart(part *message.Entity) error {
	contentType, _, _ := part.Header.ContentType()
	disposition, _, _ := part.Header.ContentDisposition()

	body, err := io.ReadAll(part.Body)
	if err != nil {
		return fmt.Errorf("reading %s part: %w", contentType, err)
	}

	if disposition != "attachment" {
		switch {
		case contentType == "text/plain" && p.text == "":
			p.text = string(body)
			return nil
		case contentType == "text/html" && p.html == "":
			p.html = string(body)
			return nil
		}
	}

	h := mail.AttachmentHeader{Header: part.Header}
	filename, err := h.Filename()
	if err != nil || filename == "" {
		filename = contentIDName(part.Header)
	}
	p.attachments = append(p.attachments, parsedAttachment{
		filename:    filename,
		contentType: contentType,
		content:     body,
	})
	return nil
}

// contentIDName names an inline part without a filename by its Content-ID.
func contentIDName(h message.Header) string {
	return strings.Trim(h.Get("Content-Id"), "<> ")
}

func (p *parsedMessage) readHeader(h mail.Header) error {
	fields := h.Fields()
	for fields.Next() {
		line, err := fields.Raw()
		if err != nil {
			return fmt.Errorf("reading header %s: %w", fields.Key(), err)
		}
		// A repeated header keeps its last occurrence.
		key := strings.ToLower(fields.Key())
		p.headers[key] = strings.TrimRight(string(line), "\r\n")
	}

	p.subject, _ = h.Subject()
	p.messageID, _ = h.MessageID()
	p.date, _ = h.Date()

	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		p.inReplyTo = ids[0]
	}
	if ids, err := h.MsgIDList("References"); err == nil {
		p.references = ids
	}

	p.from = addresses(h, "From")
	p.to = addresses(h, "To")
	p.cc = addresses(h, "Cc")
	p.bcc = addresses(h, "Bcc")
	p.replyTo = addresses(h, "Reply-To")
	return nil
}

func addresses(h mail.Header, key string) *addressList {
	list, err := h.AddressList(key)
	if err != nil || len(list) == 0 {
		return nil
	}

	out := &addressList{}
	texts := make([]string, 0, len(list))
	for _, a := range list {
		out.Value = append(out.Value, address{Address: a.Address, Name: a.Name})
		texts = append(texts, a.String())
	}
	out.Text = strings.Join(texts, ", ")
	return out
}

// json renders the parsed message as an output record payload.
func (p *parsedMessage) json() map[string]any {
	out := map[string]any{
		"headers": p.headers,
		"subject": p.subject,
		"text":    p.text,
		"html":    p.html,
	}
	if p.messageID != "" {
		out["messageId"] = p.messageID
	}
	if !p.date.IsZero() {
		out["date"] = p.date.UTC().Format(time.RFC3339)
	}
	if p.inReplyTo != "" {
		out["inReplyTo"] = p.inReplyTo
	}
	if len(p.references) > 0 {
		out["references"] = p.references
	}
	for key, list := range map[string]*addressList{
		"from": p.from, "to": p.to, "cc": p.cc, "bcc": p.bcc, "replyTo": p.replyTo,
	} {
		if list != nil {
			out[key] = list
		}
	}
	return out
}
