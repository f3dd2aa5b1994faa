package imagemeta_test

import (
	"testing"

	"reflow/internal/imagemeta"
	"reflow/internal/testsupport"
)

func TestProbeReadsDimensions(t *testing.T) {
	meta := imagemeta.Probe(testsupport.PNG(t, 320, 240), "")
	if meta.Width != 320 || meta.Height != 240 {
		t.Fatalf("unexpected dimensions %dx%d", meta.Width, meta.Height)
	}
	if meta.MIMEType != "image/png" {
		t.Fatalf("expected sniffed mime type, got %q", meta.MIMEType)
	}
}

func TestProbePrefersDeclaredMIME(t *testing.T) {
	meta := imagemeta.Probe(testsupport.PNG(t, 10, 10), "image/x-custom")
	if meta.MIMEType != "image/x-custom" {
		t.Fatalf("declared mime type not honored: %q", meta.MIMEType)
	}
}

func TestProbeNeverFails(t *testing.T) {
	meta := imagemeta.Probe([]byte("definitely not an image"), "application/pdf")
	if meta.Width != 0 || meta.Height != 0 {
		t.Fatalf("garbage input should yield zero dimensions, got %+v", meta)
	}
	if meta.MIMEType != "application/pdf" {
		t.Fatalf("declared mime type lost on garbage input: %q", meta.MIMEType)
	}
}
