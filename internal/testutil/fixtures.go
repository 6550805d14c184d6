// fixtures.go - Sample upload bodies for tests
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
)

// PNGBytes returns an encoded w x h PNG.
func PNGBytes(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEGBytes returns an encoded w x h JPEG.
func JPEGBytes(w, h int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PDFBytes returns a minimal PDF document.
func PDFBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n")
}

// HEICBytes returns the leading ftyp box of a HEIC file.
func HEICBytes() []byte {
	return []byte{
		0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
		'h', 'e', 'i', 'c', 0x00, 0x00, 0x00, 0x00,
		'm', 'i', 'f', '1', 'h', 'e', 'i', 'c',
	}
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	return img
}
