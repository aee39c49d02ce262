package email

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap/v2"
)

// Format is the fidelity level that controls how much of a message is
// fetched and how it is shaped into an output item.
type Format int

const (
	FormatSimple Format = iota
	FormatRaw
	FormatResolved
)

// ParseFormat maps the parameter value onto a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "simple", "":
		return FormatSimple, nil
	case "raw":
		return FormatRaw, nil
	case "resolved":
		return FormatResolved, nil
	default:
		return 0, fmt.Errorf("unsupported format %q", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatResolved:
		return "resolved"
	default:
		return "simple"
	}
}

// PostProcessAction is what happens to fetched messages once they have
// been converted.
type PostProcessAction int

const (
	ActionMarkRead PostProcessAction = iota
	ActionNothing
)

// ParsePostProcessAction maps the parameter value onto an action.
func ParsePostProcessAction(s string) (PostProcessAction, error) {
	switch s {
	case "read", "":
		return ActionMarkRead, nil
	case "nothing":
		return ActionNothing, nil
	default:
		return 0, fmt.Errorf("unsupported post-process action %q", s)
	}
}

// Credentials holds the IMAP credential set.
type Credentials struct {
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	Secure                 bool   `mapstructure:"secure"`
	AllowUnauthorizedCerts bool   `mapstructure:"allowUnauthorizedCerts"`
}

// Options holds the per-item settings of the read pipeline.
type Options struct {
	Mailbox             string
	Action              PostProcessAction
	Format              Format
	DownloadAttachments bool
	AttachmentPrefix    string
	Criteria            Criteria
	OutputUID           bool
	// MessageLimit caps emitted records; negative means unlimited.
	MessageLimit int
}

// Section names used to request and look up fetched body sections.
const (
	SectionText    = "TEXT"
	SectionHeader  = "HEADER"
	SectionMessage = ""
)

// Part is a flattened leaf or multipart node of a message's body structure.
type Part struct {
	// Path is the IMAP part number (e.g., [1, 2] for "1.2").
	Path              []int
	Type              string
	Subtype           string
	Params            map[string]string
	Encoding          string
	Disposition       string
	DispositionParams map[string]string
}

// PartName renders the IMAP part number of p.
func (p Part) PartName() string {
	names := make([]string, len(p.Path))
	for i, n := range p.Path {
		names[i] = fmt.Sprint(n)
	}
	return strings.Join(names, ".")
}

// MimeType returns the lower-cased declared content type of p, or "" when
// the body structure carries none.
func (p Part) MimeType() string {
	if p.Type == "" || p.Subtype == "" {
		return ""
	}
	return strings.ToLower(p.Type + "/" + p.Subtype)
}

// Filename returns the declared file name of the part, preferring the
// disposition parameter.
func (p Part) Filename() string {
	if name := lookupParam(p.DispositionParams, "filename"); name != "" {
		return name
	}
	return lookupParam(p.Params, "name")
}

func lookupParam(params map[string]string, key string) string {
	for k, v := range params {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Message is one fetched mailbox entry. It is never modified after fetch.
type Message struct {
	UID       imap.UID
	Structure imap.BodyStructure
	// Sections holds raw section bytes keyed by section name
	// (SectionText, SectionHeader, SectionMessage).
	Sections map[string][]byte
}

// Section returns the raw bytes of the named section.
func (m *Message) Section(name string) ([]byte, bool) {
	b, ok := m.Sections[name]
	return b, ok
}

// Parts flattens the body structure of m in depth-first order.
func (m *Message) Parts() []Part {
	if m.Structure == nil {
		return nil
	}

	var parts []Part
	m.Structure.Walk(func(path []int, bs imap.BodyStructure) bool {
		switch s := bs.(type) {
		case *imap.BodyStructureSinglePart:
			part := Part{
				Path:     append([]int(nil), path...),
				Type:     s.Type,
				Subtype:  s.Subtype,
				Params:   s.Params,
				Encoding: s.Encoding,
			}
			if s.Extended != nil && s.Extended.Disposition != nil {
				part.Disposition = s.Extended.Disposition.Value
				part.DispositionParams = s.Extended.Disposition.Params
			}
			parts = append(parts, part)
		case *imap.BodyStructureMultiPart:
			part := Part{
				Path:    append([]int(nil), path...),
				Type:    "multipart",
				Subtype: s.Subtype,
			}
			if s.Extended != nil {
				part.Params = s.Extended.Params
				if s.Extended.Disposition != nil {
					part.Disposition = s.Extended.Disposition.Value
					part.DispositionParams = s.Extended.Disposition.Params
				}
			}
			parts = append(parts, part)
		}
		return true
	})
	return parts
}
