package email

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/emersion/go-imap/v2"
)

// fakeMailbox is an in-memory mailbox shared by the sessions it dials.
type fakeMailbox struct {
	mu sync.Mutex

	messages []*Message
	// parts holds decoded part content keyed by UID and part name.
	parts   map[imap.UID]map[string][]byte
	partErr map[string]error
	seen    map[imap.UID]bool

	dialErr   error
	selectErr error
	searchErr error

	dials    int
	closes   int
	selected []string
	criteria []Criteria
	formats  []Format
	flagged  [][]imap.UID
}

func newFakeMailbox(messages ...*Message) *fakeMailbox {
	return &fakeMailbox{
		messages: messages,
		parts:    map[imap.UID]map[string][]byte{},
		partErr:  map[string]error{},
		seen:     map[imap.UID]bool{},
	}
}

func (b *fakeMailbox) setPart(uid imap.UID, name string, content string) {
	if b.parts[uid] == nil {
		b.parts[uid] = map[string][]byte{}
	}
	b.parts[uid][name] = []byte(content)
}

func (b *fakeMailbox) dial(_ context.Context, _ Credentials) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	return &fakeSession{box: b}, nil
}

type fakeSession struct {
	box *fakeMailbox
}

func (s *fakeSession) Select(_ context.Context, mailbox string) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.selected = append(s.box.selected, mailbox)
	return s.box.selectErr
}

func (s *fakeSession) Search(_ context.Context, criteria Criteria, format Format) ([]*Message, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.criteria = append(s.box.criteria, criteria)
	s.box.formats = append(s.box.formats, format)
	if s.box.searchErr != nil {
		return nil, s.box.searchErr
	}

	unseenOnly := slices.Contains([]any(criteria), any("UNSEEN"))
	var out []*Message
	for _, m := range s.box.messages {
		if unseenOnly && s.box.seen[m.UID] {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeSession) FetchPart(_ context.Context, msg *Message, part Part) ([]byte, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	key := fmt.Sprintf("%d/%s", msg.UID, part.PartName())
	if err := s.box.partErr[key]; err != nil {
		return nil, err
	}
	data, ok := s.box.parts[msg.UID][part.PartName()]
	if !ok {
		return nil, errors.New("no such part")
	}
	return data, nil
}

func (s *fakeSession) AddFlags(_ context.Context, uids []imap.UID, flags ...imap.Flag) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.flagged = append(s.box.flagged, append([]imap.UID(nil), uids...))
	if slices.Contains(flags, imap.FlagSeen) {
		for _, uid := range uids {
			s.box.seen[uid] = true
		}
	}
	return nil
}

func (s *fakeSession) ListMailboxes(_ context.Context) ([]string, error) {
	return []string{"INBOX"}, nil
}

func (s *fakeSession) Close() error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.closes++
	return nil
}

const testHeader = "Subject: Hello\r\n" +
	"From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Cc: \r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
	"X-Mailer: =?UTF-8?Q?M=C3=A4iler?=\r\n" +
	"Message-ID: <1@example.com>\r\n" +
	"\r\n"

// multipartStructure is mixed(alternative(plain, html), pdf attachment).
func multipartStructure(filename string) imap.BodyStructure {
	return &imap.BodyStructureMultiPart{
		Subtype: "mixed",
		Children: []imap.BodyStructure{
			&imap.BodyStructureMultiPart{
				Subtype: "alternative",
				Children: []imap.BodyStructure{
					&imap.BodyStructureSinglePart{
						Type: "text", Subtype: "plain",
						Params: map[string]string{"charset": "utf-8"},
					},
					&imap.BodyStructureSinglePart{Type: "TEXT", Subtype: "HTML"},
				},
			},
			&imap.BodyStructureSinglePart{
				Type: "application", Subtype: "pdf", Encoding: "base64",
				Extended: &imap.BodyStructureSinglePartExt{
					Disposition: &imap.BodyStructureDisposition{
						Value:  "ATTACHMENT",
						Params: map[string]string{"filename": filename},
					},
				},
			},
		},
	}
}

func simpleMessage(uid imap.UID) *Message {
	return &Message{
		UID:       uid,
		Structure: multipartStructure("report.pdf"),
		Sections: map[string][]byte{
			SectionText:   []byte(fmt.Sprintf("--b\r\nbody %d\r\n--b--", uid)),
			SectionHeader: []byte(testHeader),
		},
	}
}

// seedSimple stores a simple message and its part contents.
func (b *fakeMailbox) seedSimple(uid imap.UID) {
	b.messages = append(b.messages, simpleMessage(uid))
	b.setPart(uid, "1.1", fmt.Sprintf("plain %d", uid))
	b.setPart(uid, "1.2", fmt.Sprintf("<p>html %d</p>", uid))
	b.setPart(uid, "2", "%PDF-1.4 fake")
}
