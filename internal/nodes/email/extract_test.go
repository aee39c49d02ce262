package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageParts(t *testing.T) {
	msg := &Message{UID: 1, Structure: multipartStructure("a.pdf")}
	parts := msg.Parts()

	var names []string
	for _, p := range parts {
		names = append(names, p.PartName())
	}
	assert.Contains(t, names, "1.1")
	assert.Contains(t, names, "1.2")
	assert.Contains(t, names, "2")

	for _, p := range parts {
		if p.PartName() == "2" {
			assert.Equal(t, "a.pdf", p.Filename())
			assert.Equal(t, "ATTACHMENT", p.Disposition)
		}
	}
}

func TestPartFilenameFallsBackToName(t *testing.T) {
	p := Part{Params: map[string]string{"NAME": "scan.png"}}
	assert.Equal(t, "scan.png", p.Filename())
}

func TestDecodePart(t *testing.T) {
	tests := []struct {
		name string
		part Part
		raw  string
		want string
	}{
		{
			name: "quoted printable latin1",
			part: Part{
				Path: []int{1}, Type: "TEXT", Subtype: "PLAIN",
				Params:   map[string]string{"charset": "iso-8859-1"},
				Encoding: "QUOTED-PRINTABLE",
			},
			raw:  "caf=E9 cr=E8me",
			want: "café crème",
		},
		{
			name: "base64 binary",
			part: Part{Path: []int{2}, Type: "application", Subtype: "octet-stream", Encoding: "base64"},
			raw:  "aGVsbG8gd29ybGQ=",
			want: "hello world",
		},
		{
			name: "seven bit",
			part: Part{Path: []int{1}, Type: "text", Subtype: "html", Encoding: "7bit"},
			raw:  "<b>hi</b>",
			want: "<b>hi</b>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodePart(tt.part, []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestParseHeader(t *testing.T) {
	raw := "Subject: =?UTF-8?Q?Gr=C3=BC=C3=9Fe?=\r\n" +
		"Received: from a\r\n" +
		"received: from b\r\n"

	fields, err := parseHeader([]byte(raw))
	require.NoError(t, err)
	require.Len(t, fields, 2)

	byKey := map[string][]string{}
	for _, f := range fields {
		byKey[f.key] = f.values
	}
	assert.Equal(t, []string{"Grüße"}, byKey["subject"])
	assert.Len(t, byKey["received"], 2)
}

func TestDecodeFilename(t *testing.T) {
	assert.Equal(t, "plain.txt", decodeFilename("plain.txt"))
	assert.Equal(t, "Übersicht.xlsx", decodeFilename("=?utf-8?q?=C3=9Cbersicht.xlsx?="))
	assert.Equal(t, "=?UTF-8?B?w5w=?=", decodeFilename("=?UTF-8?B?w5w=?="), "only Q encoding is decoded")
}
