package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// authTimeout bounds dialing and authentication of a session.
const authTimeout = 20 * time.Second

// Session is an authenticated mailbox connection. A Session is owned by
// exactly one pipeline task and must be closed by it.
type Session interface {
	// Select opens the mailbox every later call operates on.
	Select(ctx context.Context, mailbox string) error

	// Search returns the messages matching criteria, fetched with the
	// body sections the format requires. It never sets \Seen.
	Search(ctx context.Context, criteria Criteria, format Format) ([]*Message, error)

	// FetchPart returns the decoded content of a single body part.
	FetchPart(ctx context.Context, msg *Message, part Part) ([]byte, error)

	// AddFlags adds flags to every message in uids with one request.
	AddFlags(ctx context.Context, uids []imap.UID, flags ...imap.Flag) error

	// ListMailboxes returns the names of all mailboxes.
	ListMailboxes(ctx context.Context) ([]string, error)

	Close() error
}

// Dialer acquires an authenticated session for a credential set.
type Dialer func(ctx context.Context, creds Credentials) (Session, error)

// DialIMAP connects and logs in to the IMAP server described by creds.
func DialIMAP(ctx context.Context, creds Credentials) (Session, error) {
	host := strings.TrimSpace(creds.Host)
	addr := net.JoinHostPort(host, strconv.Itoa(creds.Port))

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if creds.Secure {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: creds.AllowUnauthorizedCerts,
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("TLS handshake with %s: %w", addr, err)
		}
		conn = tlsConn
	}

	// Abort the greeting/login exchange when the auth timeout expires.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	client := imapclient.New(conn, nil)
	if err := client.WaitGreeting(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("waiting for IMAP greeting: %w", err)
	}

	if err := client.Login(creds.User, creds.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", creds.User, err)
	}

	if !stop() {
		_ = client.Close()
		return nil, fmt.Errorf("authenticating to %s: %w", addr, ctx.Err())
	}

	return &imapSession{client: client}, nil
}

// imapSession implements Session on top of go-imap v2.
type imapSession struct {
	client *imapclient.Client
}

func (s *imapSession) Select(_ context.Context, mailbox string) error {
	if _, err := s.client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}
	return nil
}

// sectionsFor returns the body sections a format fetches. Every section
// uses BODY.PEEK so that fetching leaves \Seen untouched.
func sectionsFor(format Format) map[string]*imap.FetchItemBodySection {
	if format == FormatResolved {
		return map[string]*imap.FetchItemBodySection{
			SectionMessage: {Specifier: imap.PartSpecifierNone, Peek: true},
		}
	}
	return map[string]*imap.FetchItemBodySection{
		SectionText:   {Specifier: imap.PartSpecifierText, Peek: true},
		SectionHeader: {Specifier: imap.PartSpecifierHeader, Peek: true},
	}
}

func (s *imapSession) Search(
	_ context.Context, criteria Criteria, format Format,
) ([]*Message, error) {
	compiled, err := criteria.Compile()
	if err != nil {
		return nil, err
	}

	searchData, err := s.client.UIDSearch(compiled, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	sections := sectionsFor(format)
	fetchOpts := &imap.FetchOptions{
		UID:           true,
		BodyStructure: &imap.FetchItemBodyStructure{Extended: true},
	}
	for _, sec := range sections {
		fetchOpts.BodySection = append(fetchOpts.BodySection, sec)
	}

	bufs, err := s.client.Fetch(imap.UIDSetNum(uids...), fetchOpts).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	messages := make([]*Message, 0, len(bufs))
	for _, buf := range bufs {
		msg := &Message{
			UID:       buf.UID,
			Structure: buf.BodyStructure,
			Sections:  make(map[string][]byte, len(sections)),
		}
		for name, sec := range sections {
			if body := buf.FindBodySection(sec); body != nil {
				msg.Sections[name] = body
			}
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

func (s *imapSession) FetchPart(
	_ context.Context, msg *Message, part Part,
) ([]byte, error) {
	section := &imap.FetchItemBodySection{Part: part.Path, Peek: true}

	bufs, err := s.client.Fetch(imap.UIDSetNum(msg.UID), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching part %s of UID %d: %w", part.PartName(), msg.UID, err)
	}
	if len(bufs) == 0 {
		return nil, fmt.Errorf("message UID %d not found", msg.UID)
	}

	raw := bufs[0].FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("part %s of UID %d not returned", part.PartName(), msg.UID)
	}

	return decodePart(part, raw)
}

func (s *imapSession) AddFlags(
	_ context.Context, uids []imap.UID, flags ...imap.Flag,
) error {
	if len(uids) == 0 {
		return nil
	}
	storeCmd := s.client.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  flags,
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("storing flags: %w", err)
	}
	return nil
}

func (s *imapSession) ListMailboxes(_ context.Context) ([]string, error) {
	list, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}
	names := make([]string, 0, len(list))
	for _, mb := range list {
		names = append(names, mb.Mailbox)
	}
	return names, nil
}

func (s *imapSession) Close() error {
	logoutErr := s.client.Logout().Wait()
	closeErr := s.client.Close()
	if logoutErr != nil {
		return logoutErr
	}
	return closeErr
}

// decodePart undoes the transfer encoding of a fetched part and, for text
// parts, converts the charset to UTF-8.
func decodePart(part Part, raw []byte) ([]byte, error) {
	var h message.Header
	mediaType := strings.ToLower(part.Type + "/" + part.Subtype)
	h.Set("Content-Type", mime.FormatMediaType(mediaType, part.Params))
	if part.Encoding != "" {
		h.Set("Content-Transfer-Encoding", part.Encoding)
	}

	entity, err := message.New(h, bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("decoding part %s: %w", part.PartName(), err)
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, fmt.Errorf("reading part %s: %w", part.PartName(), err)
	}
	return body, nil
}

// closeSession releases a session, logging but not returning close errors.
func closeSession(s Session, logger *slog.Logger) {
	if err := s.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Debug("closing imap session", "err", err)
	}
}
