package testsupport

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// PNG renders a white page of the given size with a dark band across the
// middle, so layout analysis has something to find, and returns it encoded.
func PNG(t testing.TB, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	bandTop := height / 3
	bandBottom := bandTop + height/4
	for y := bandTop; y < bandBottom && y < height; y++ {
		for x := width / 8; x < width-width/8; x++ {
			img.Set(x, y, color.Black)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture png: %v", err)
	}
	return buf.Bytes()
}

// DecodePNG decodes fixture bytes back into an image.
func DecodePNG(t testing.TB, data []byte) image.Image {
	t.Helper()

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode fixture png: %v", err)
	}
	return img
}

// ZipWithoutManifest builds a syntactically valid zip that lacks the session
// manifest, for exercising archive validation.
func ZipWithoutManifest(t testing.TB) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("pages/stray.png")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := entry.Write([]byte("stray")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
