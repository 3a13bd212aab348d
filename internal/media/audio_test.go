package media

import (
	"bytes"
	"strings"
	"testing"
)

func TestRepairPreservesPayloadExactly(t *testing.T) {
	raw := []byte{0xff, 0xfb, 0x90, 0x00, 0x11, 0x22, 0x33}
	out := NewAudioRepairer(nil).Repair(raw, "audio/mpeg", "track.mp3")

	if !bytes.Equal(out.Payload, raw) {
		t.Fatalf("audio payload must never change")
	}
	decoded, err := DecodeDataURL(out.DataURL)
	if err != nil {
		t.Fatalf("descriptor not decodable: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("descriptor payload differs from input")
	}
}

func TestRepairRewritesGenericContentType(t *testing.T) {
	cases := []struct {
		name     string
		declared string
		fileName string
		want     string
	}{
		{name: "generic with wav suffix", declared: "application/octet-stream", fileName: "loop.wav", want: "audio/wav"},
		{name: "empty with ogg suffix", declared: "", fileName: "theme.ogg", want: "audio/ogg"},
		{name: "generic unknown suffix defaults", declared: "application/octet-stream", fileName: "mystery", want: "audio/mpeg"},
		{name: "declared audio kept", declared: "audio/flac", fileName: "song.wav", want: "audio/flac"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := NewAudioRepairer(nil).Repair([]byte("pcm"), tc.declared, tc.fileName)
			if out.Mime != tc.want {
				t.Fatalf("repaired mime = %q, want %q", out.Mime, tc.want)
			}
		})
	}
}

func TestRepairAddsCharsetHintForNonLatinName(t *testing.T) {
	out := NewAudioRepairer(nil).Repair([]byte("pcm"), "audio/mpeg", "главная-тема.mp3")
	if !strings.Contains(out.DataURL, ";charset=utf-8;") {
		t.Fatalf("descriptor missing charset hint: %q", out.DataURL[:48])
	}

	plain := NewAudioRepairer(nil).Repair([]byte("pcm"), "audio/mpeg", "main-theme.mp3")
	if strings.Contains(plain.DataURL, "charset=") {
		t.Fatalf("latin name should not get a charset hint")
	}
}
