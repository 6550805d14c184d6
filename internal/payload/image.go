package payload

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned when bytes are not a recognised image.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Image describes a decoded image header.
type Image struct {
	Format   string
	MIMEType string
	Width    int
	Height   int
}

// DecodeFunc decodes enough of an image to identify it.
type DecodeFunc func(data []byte) (*Image, error)

var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// HEIF family brands, see ISO/IEC 23008-12.
var heifBrands = map[string]string{
	"heic": "image/heic",
	"heix": "image/heic",
	"hevc": "image/heic",
	"hevx": "image/heic",
	"heim": "image/heif",
	"heis": "image/heif",
	"hevm": "image/heif",
	"hevs": "image/heif",
	"mif1": "image/heif",
	"msf1": "image/heif",
}

// DecodeImage identifies JPEG, PNG, GIF and WebP by decoding their header,
// and HEIC/HEIF by the ISO-BMFF ftyp box. HEIF dimensions are not read.
func DecodeImage(data []byte) (*Image, error) {
	if mt, ok := sniffHEIF(data); ok {
		format := "heif"
		if mt == "image/heic" {
			format = "heic"
		}
		return &Image{Format: format, MIMEType: mt}, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedImage
		}
		return nil, err
	}

	mt, ok := formatMIME[format]
	if !ok {
		return nil, ErrUnsupportedImage
	}
	return &Image{Format: format, MIMEType: mt, Width: cfg.Width, Height: cfg.Height}, nil
}

func sniffHEIF(data []byte) (string, bool) {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return "", false
	}
	if mt, ok := heifBrands[string(data[8:12])]; ok {
		return mt, true
	}
	// Compatible brands follow the minor version.
	size := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	if size > len(data) {
		size = len(data)
	}
	for off := 16; off+4 <= size; off += 4 {
		if mt, ok := heifBrands[string(data[off:off+4])]; ok {
			return mt, true
		}
	}
	return "", false
}
