package email

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/textproto"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
)

// step names one extraction operation for the failure policy table.
type step string

const (
	stepRawText      step = "raw text"
	stepHeader       step = "header"
	stepTextHTML     step = "html text"
	stepTextPlain    step = "plain text"
	stepAttachment   step = "attachment"
	stepWholeMessage step = "full message"
)

type failurePolicy int

const (
	// fatal fails the whole item.
	fatal failurePolicy = iota
	// bestEffort degrades the value to its zero value.
	bestEffort
)

// extractionPolicy decides, per step, whether a failure aborts the item.
var extractionPolicy = map[step]failurePolicy{
	stepRawText:      fatal,
	stepHeader:       fatal,
	stepTextHTML:     bestEffort,
	stepTextPlain:    bestEffort,
	stepAttachment:   fatal,
	stepWholeMessage: fatal,
}

// errPartAbsent marks a lookup that found no matching part, as opposed
// to a fetch that failed.
var errPartAbsent = errors.New("part absent")

// topLevelHeaders are promoted out of metadata in simple records.
var topLevelHeaders = map[string]bool{
	"cc": true, "date": true, "from": true, "subject": true, "to": true,
}

// binaryPreparer wraps raw bytes into a binary handle.
type binaryPreparer interface {
	PrepareBinaryData(data []byte, fileName, mimeType string) model.BinaryData
}

// extractor converts fetched messages of one item into output records.
type extractor struct {
	session Session
	opts    Options
	index   int
	binary  binaryPreparer
	logger  *slog.Logger
}

// handle applies the failure policy of s to err. It returns nil when the
// failure may be swallowed.
func (x *extractor) handle(s step, uid uint32, err error) error {
	if err == nil {
		return nil
	}
	if extractionPolicy[s] == bestEffort {
		if errors.Is(err, errPartAbsent) {
			x.logger.Debug("message part absent, using empty value",
				"item", x.index, "uid", uid, "step", string(s))
		} else {
			x.logger.Debug("message part fetch failed, using empty value",
				"item", x.index, "uid", uid, "step", string(s), "err", err)
		}
		return nil
	}
	return err
}

// extract converts one message according to the configured format.
func (x *extractor) extract(ctx context.Context, msg *Message) (model.Item, error) {
	var (
		item model.Item
		err  error
	)

	switch x.opts.Format {
	case FormatRaw:
		item, err = x.extractRaw(msg)
	case FormatResolved:
		item, err = x.extractResolved(msg)
	default:
		item, err = x.extractSimple(ctx, msg)
	}
	if err != nil {
		return model.Item{}, err
	}

	if x.opts.OutputUID {
		item.JSON["uid"] = uint32(msg.UID)
	}
	return item, nil
}

func (x *extractor) extractRaw(msg *Message) (model.Item, error) {
	body, ok := msg.Section(SectionText)
	if !ok {
		return model.Item{}, x.handle(stepRawText, uint32(msg.UID), &node.MalformedMessageError{
			ItemIndex: x.index, UID: uint32(msg.UID), Part: SectionText,
		})
	}
	return model.NewItem(map[string]any{"raw": string(body)}, x.index), nil
}

func (x *extractor) extractSimple(ctx context.Context, msg *Message) (model.Item, error) {
	uid := uint32(msg.UID)
	parts := msg.Parts()

	html, err := x.text(ctx, msg, parts, "html")
	if err = x.handle(stepTextHTML, uid, err); err != nil {
		return model.Item{}, err
	}
	plain, err := x.text(ctx, msg, parts, "plain")
	if err = x.handle(stepTextPlain, uid, err); err != nil {
		return model.Item{}, err
	}

	metadata := map[string]any{}
	item := model.NewItem(map[string]any{
		"textHtml":  html,
		"textPlain": plain,
		"metadata":  metadata,
	}, x.index)

	rawHeader, ok := msg.Section(SectionHeader)
	if !ok {
		return model.Item{}, x.handle(stepHeader, uid, &node.MalformedMessageError{
			ItemIndex: x.index, UID: uid, Part: SectionHeader,
		})
	}
	header, err := parseHeader(rawHeader)
	if err = x.handle(stepHeader, uid, err); err != nil {
		return model.Item{}, fmt.Errorf("parsing header of UID %d: %w", uid, err)
	}
	for _, field := range header {
		if len(field.values) == 0 || field.values[0] == "" {
			continue
		}
		if topLevelHeaders[field.key] {
			item.JSON[field.key] = field.values[0]
		} else {
			metadata[field.key] = field.values[0]
		}
	}

	if x.opts.DownloadAttachments {
		attachments, err := x.attachments(ctx, msg, parts)
		if err = x.handle(stepAttachment, uid, err); err != nil {
			return model.Item{}, err
		}
		if len(attachments) > 0 {
			item.Binary = make(map[string]model.BinaryData, len(attachments))
			for i, a := range attachments {
				item.Binary[fmt.Sprintf("%s%d", x.opts.AttachmentPrefix, i)] = a
			}
		}
	}

	return item, nil
}

// text fetches the first TEXT part with the given subtype.
func (x *extractor) text(ctx context.Context, msg *Message, parts []Part, subtype string) (string, error) {
	if msg.Structure == nil {
		return "", errPartAbsent
	}
	for _, p := range parts {
		if strings.EqualFold(p.Type, "text") && strings.EqualFold(p.Subtype, subtype) {
			body, err := x.session.FetchPart(ctx, msg, p)
			if err != nil {
				return "", err
			}
			return string(body), nil
		}
	}
	return "", errPartAbsent
}

func (x *extractor) attachments(ctx context.Context, msg *Message, parts []Part) ([]model.BinaryData, error) {
	var out []model.BinaryData
	for _, p := range parts {
		if !strings.EqualFold(p.Disposition, "attachment") {
			continue
		}
		data, err := x.session.FetchPart(ctx, msg, p)
		if err != nil {
			return nil, fmt.Errorf("fetching attachment %s of UID %d: %w", p.PartName(), msg.UID, err)
		}
		out = append(out, x.binary.PrepareBinaryData(data, decodeFilename(p.Filename()), p.MimeType()))
	}
	return out, nil
}

func (x *extractor) extractResolved(msg *Message) (model.Item, error) {
	uid := uint32(msg.UID)
	raw, ok := msg.Section(SectionMessage)
	if !ok {
		return model.Item{}, x.handle(stepWholeMessage, uid, &node.MalformedMessageError{
			ItemIndex: x.index, UID: uid, Part: SectionMessage,
		})
	}

	parsed, err := parseMessage(raw)
	if err = x.handle(stepWholeMessage, uid, err); err != nil {
		return model.Item{}, fmt.Errorf("parsing message UID %d: %w", uid, err)
	}

	item := model.NewItem(parsed.json(), x.index)
	if len(parsed.attachments) > 0 {
		item.Binary = make(map[string]model.BinaryData, len(parsed.attachments))
		for i, a := range parsed.attachments {
			item.Binary[fmt.Sprintf("%s%d", x.opts.AttachmentPrefix, i)] =
				x.binary.PrepareBinaryData(a.content, a.filename, a.contentType)
		}
	}
	return item, nil
}

// headerField is one header key with all of its decoded values.
type headerField struct {
	key    string
	values []string
}

// parseHeader reads a raw header block into fields keyed by lower-cased
// name, in order of first appearance. Encoded words are decoded.
func parseHeader(raw []byte) ([]headerField, error) {
	if !bytes.HasSuffix(raw, []byte("\r\n\r\n")) && !bytes.HasSuffix(raw, []byte("\n\n")) {
		raw = append(append([]byte(nil), raw...), "\r\n\r\n"...)
	}
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	h := message.Header{Header: th}
	index := map[string]int{}
	var fields []headerField

	f := h.Fields()
	for f.Next() {
		key := strings.ToLower(f.Key())
		value, err := f.Text()
		if err != nil {
			value = f.Value()
		}
		i, ok := index[key]
		if !ok {
			i = len(fields)
			index[key] = i
			fields = append(fields, headerField{key: key})
		}
		fields[i].values = append(fields[i].values, value)
	}
	return fields, nil
}

var encodedWordPattern = regexp.MustCompile(`(?i)=\?([\w-]+)\?Q\?.*\?=`)

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// decodeFilename decodes RFC 2047 Q-encoded file names.
func decodeFilename(name string) string {
	if !encodedWordPattern.MatchString(name) {
		return name
	}
	decoded, err := wordDecoder.DecodeHeader(name)
	if err != nil {
		return name
	}
	return decoded
}
