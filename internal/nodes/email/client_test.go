package email

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
	"github.com/rvs/workflow-nodes/tests/testutil"
)

const (
	memUser     = "bob"
	memPassword = "hunter2"
)

// memMailbox is an in-memory IMAP server with one user and an INBOX.
type memMailbox struct {
	user *imapmemserver.User
	port int
}

func startMemServer(t *testing.T, tlsConfig *tls.Config) *memMailbox {
	t.Helper()

	mem := imapmemserver.New()
	user := imapmemserver.NewUser(memUser, memPassword)
	require.NoError(t, user.Create("INBOX", nil))
	mem.AddUser(user)

	server := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
		InsecureAuth: true,
		Logger:       log.New(io.Discard, "", 0),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	return &memMailbox{user: user, port: ln.Addr().(*net.TCPAddr).Port}
}

func (m *memMailbox) append(t *testing.T, raw string) {
	t.Helper()
	_, err := m.user.Append("INBOX", bytes.NewReader([]byte(raw)), &imap.AppendOptions{})
	require.NoError(t, err)
}

func (m *memMailbox) unseen(t *testing.T) uint32 {
	t.Helper()
	data, err := m.user.Status("INBOX", &imap.StatusOptions{NumUnseen: true})
	require.NoError(t, err)
	require.NotNil(t, data.NumUnseen)
	return *data.NumUnseen
}

func (m *memMailbox) creds(password string) node.Credentials {
	return node.Credentials{
		"user":     memUser,
		"password": password,
		"host":     " 127.0.0.1 ",
		"port":     m.port,
		"secure":   false,
	}
}

func mixedMessage(n int) string {
	return "From: Alice <alice@example.com>\r\n" +
		"To: bob@example.com\r\n" +
		fmt.Sprintf("Subject: Hello %d\r\n", n) +
		fmt.Sprintf("Message-ID: <m%d@example.com>\r\n", n) +
		"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=BB\r\n" +
		"\r\n" +
		"--BB\r\n" +
		"Content-Type: multipart/alternative; boundary=AA\r\n" +
		"\r\n" +
		"--AA\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		fmt.Sprintf("caf=C3=A9 %d\r\n", n) +
		"--AA\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		fmt.Sprintf("<p>hi %d</p>\r\n", n) +
		"--AA--\r\n" +
		"\r\n" +
		"--BB\r\n" +
		"Content-Type: text/csv; name=\"data.csv\"\r\n" +
		"Content-Disposition: attachment; filename=\"data.csv\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"YSxiCjEsMgo=\r\n" +
		"--BB--\r\n"
}

func runIMAP(t *testing.T, creds node.Credentials, params node.Params) ([]model.Item, error) {
	t.Helper()
	ec := testutil.NewExecContext(testutil.Items(1), params)
	ec.Creds[CredentialType] = creds

	out, err := New().Execute(context.Background(), ec)
	if err != nil {
		return nil, err
	}
	require.Len(t, out, 1)
	return out[0], nil
}

func TestIMAP_SimplePeeksThenMarksEveryFetchedMessageRead(t *testing.T) {
	box := startMemServer(t, nil)
	for n := 1; n <= 3; n++ {
		box.append(t, mixedMessage(n))
	}

	items, err := runIMAP(t, box.creds(memPassword), node.Params{
		"postProcessAction":   "nothing",
		"downloadAttachments": true,
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, uint32(3), box.unseen(t), "fetching does not set \\Seen")

	var subjects []any
	for _, item := range items {
		subjects = append(subjects, item.JSON["subject"])
	}
	assert.ElementsMatch(t, []any{"Hello 1", "Hello 2", "Hello 3"}, subjects)

	first := items[0]
	n := strings.TrimPrefix(first.JSON["subject"].(string), "Hello ")
	assert.Equal(t, "café "+n, strings.TrimSpace(first.JSON["textPlain"].(string)))
	assert.Equal(t, "<p>hi "+n+"</p>", strings.TrimSpace(first.JSON["textHtml"].(string)))

	require.Contains(t, first.Binary, "attachment_0")
	bin := first.Binary["attachment_0"]
	assert.Equal(t, "data.csv", bin.FileName)
	assert.Equal(t, "text/csv", bin.MimeType)
	assert.Equal(t, "a,b\n1,2\n", string(bin.Data))

	items, err = runIMAP(t, box.creds(memPassword), node.Params{
		"postProcessAction": "read",
		"options":           map[string]any{"messageLimit": 1},
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, uint32(0), box.unseen(t), "messages past the limit are marked read too")

	items, err = runIMAP(t, box.creds(memPassword), node.Params{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIMAP_RawAndResolvedFormats(t *testing.T) {
	box := startMemServer(t, nil)
	box.append(t, mixedMessage(1))

	items, err := runIMAP(t, box.creds(memPassword), node.Params{
		"format": "raw", "postProcessAction": "nothing",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].JSON["raw"], "caf=C3=A9 1")
	assert.NotContains(t, items[0].JSON["raw"], "Subject:")

	items, err = runIMAP(t, box.creds(memPassword), node.Params{
		"format": "resolved", "postProcessAction": "nothing",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)

	rec := items[0]
	assert.Equal(t, "Hello 1", rec.JSON["subject"])
	assert.Equal(t, "m1@example.com", rec.JSON["messageId"])
	assert.Equal(t, "café 1", strings.TrimSpace(rec.JSON["text"].(string)))
	require.Contains(t, rec.Binary, "attachment_0")
	assert.Equal(t, "a,b\n1,2\n", string(rec.Binary["attachment_0"].Data))
	assert.Equal(t, uint32(1), box.unseen(t))
}

func TestIMAP_CustomCriteria(t *testing.T) {
	box := startMemServer(t, nil)
	for n := 1; n <= 3; n++ {
		box.append(t, mixedMessage(n))
	}

	items, err := runIMAP(t, box.creds(memPassword), node.Params{
		"postProcessAction": "nothing",
		"options": map[string]any{
			"customEmailConfig": `["ALL", ["SUBJECT", "Hello 2"]]`,
		},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Hello 2", items[0].JSON["subject"])
}

func TestIMAP_BadLoginIsConnectionError(t *testing.T) {
	box := startMemServer(t, nil)

	_, err := runIMAP(t, box.creds("wrong"), node.Params{})
	require.Error(t, err)
	assert.True(t, node.IsConnectionError(err))
	assert.Contains(t, err.Error(), "authentication failed for bob")
}

func TestIMAP_SelectFailureIsConnectionError(t *testing.T) {
	box := startMemServer(t, nil)

	_, err := runIMAP(t, box.creds(memPassword), node.Params{"mailbox": "Archive"})
	require.Error(t, err)
	assert.True(t, node.IsConnectionError(err))
	assert.Contains(t, err.Error(), "selecting Archive")
}

func TestIMAP_TestCredential(t *testing.T) {
	box := startMemServer(t, nil)

	res := New().TestCredential(context.Background(), box.creds(memPassword))
	assert.Equal(t, node.CredentialPassed(), res)

	res = New().TestCredential(context.Background(), box.creds("wrong"))
	assert.Equal(t, node.CredentialError, res.Status)
}

func selfSignedTLS(t *testing.T) *tls.Config {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}}}
}

func TestIMAP_TLSHonoursAllowUnauthorizedCerts(t *testing.T) {
	box := startMemServer(t, selfSignedTLS(t))
	box.append(t, mixedMessage(1))

	creds := box.creds(memPassword)
	creds["secure"] = true

	_, err := runIMAP(t, creds, node.Params{})
	require.Error(t, err)
	assert.True(t, node.IsConnectionError(err))
	assert.Contains(t, err.Error(), "TLS handshake")

	creds["allowUnauthorizedCerts"] = true
	items, err := runIMAP(t, creds, node.Params{"postProcessAction": "nothing"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDialIMAP_GivesUpWithoutGreeting(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	t.Cleanup(func() {
		select {
		case conn := <-accepted:
			_ = conn.Close()
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = DialIMAP(ctx, Credentials{
		Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port, User: memUser, Password: memPassword,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
