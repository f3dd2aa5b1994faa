// Package imagemeta sniffs page image dimensions and MIME type from raw
// upload bytes. A probe never fails: undecodable data yields metadata with
// only the declared MIME type, matching upload tolerance elsewhere.
package imagemeta

import (
	"bytes"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"reflow/internal/session"
)

// Probe inspects data and returns page metadata. declaredMIME is the
// content type reported by the uploader and wins over the sniffed format
// when present.
func Probe(data []byte, declaredMIME string) session.PageMetadata {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return session.PageMetadata{MIMEType: declaredMIME}
	}

	mimeType := declaredMIME
	if mimeType == "" {
		mimeType = mimeForFormat(format)
	}
	return session.PageMetadata{
		Width:    cfg.Width,
		Height:   cfg.Height,
		MIMEType: mimeType,
	}
}

func mimeForFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return ""
	}
}
