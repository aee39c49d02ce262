package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_InlineImageIsAttachment(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: Logo\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/related; boundary=RR\r\n" +
		"\r\n" +
		"--RR\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<img src=\"cid:logo@x\">\r\n" +
		"--RR\r\n" +
		"Content-Type: image/png\r\n" +
		"Content-Disposition: inline; filename=\"logo.png\"\r\n" +
		"Content-ID: <logo@x>\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"iVBORw0KGgo=\r\n" +
		"--RR\r\n" +
		"Content-Type: image/gif\r\n" +
		"Content-Disposition: inline\r\n" +
		"Content-ID: <spacer@x>\r\n" +
		"\r\n" +
		"GIF89a\r\n" +
		"--RR--\r\n"

	p, err := parseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, `<img src="cid:logo@x">`, p.html)

	require.Len(t, p.attachments, 2)
	assert.Equal(t, "logo.png", p.attachments[0].filename)
	assert.Equal(t, "image/png", p.attachments[0].contentType)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), p.attachments[0].content)

	assert.Equal(t, "spacer@x", p.attachments[1].filename)
	assert.Equal(t, "image/gif", p.attachments[1].contentType)
}

func TestParseMessage_UnknownTransferEncodingKeepsRawBody(t *testing.T) {
	raw := "Subject: Old client\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=UU\r\n" +
		"\r\n" +
		"--UU\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"body\r\n" +
		"--UU\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment; filename=\"a.bin\"\r\n" +
		"Content-Transfer-Encoding: x-uuencode\r\n" +
		"\r\n" +
		"begin 644 a.bin\r\n" +
		"--UU--\r\n"

	p, err := parseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "body", p.text)
	require.Len(t, p.attachments, 1)
	assert.Equal(t, "a.bin", p.attachments[0].filename)
	assert.Equal(t, "begin 644 a.bin", string(p.attachments[0].content))
}

func TestParseMessage_RepeatedHeaderKeepsLast(t *testing.T) {
	raw := "Received: from first\r\n" +
		"Received: from second\r\n" +
		"Subject: x\r\n" +
		"\r\n" +
		"hi\r\n"

	p, err := parseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Received: from second", p.headers["received"])
	assert.Equal(t, "hi\r\n", p.text)
}
