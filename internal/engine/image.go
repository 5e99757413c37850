package engine

import (
	"bytes"
	"image/png"
	"log"
	"path"
	"strings"

	"golang.org/x/image/bmp"
)

// minImageSize is the minimum payload size (1KB) for extracted images.
// Smaller blobs are filtered out as likely icons or bullets.
const minImageSize = 1024

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	gifMagic  = []byte("GIF8")
	bmpMagic  = []byte("BM")
)

// sniffImageFormat returns the format tag for raw image bytes, or "" when
// the data does not look like a supported raster format.
func sniffImageFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "png"
	case bytes.HasPrefix(data, jpegMagic):
		return "jpeg"
	case bytes.HasPrefix(data, gifMagic):
		return "gif"
	case bytes.HasPrefix(data, bmpMagic):
		return "bmp"
	default:
		return ""
	}
}

// formatFromName derives a format tag from a media file name, normalizing
// jpg to jpeg. Unknown or unconvertible formats (emf, wmf) return "".
func formatFromName(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	switch ext {
	case "jpg", "jpeg":
		return "jpeg"
	case "png", "gif", "bmp":
		return ext
	default:
		return ""
	}
}

// normalizeImage re-encodes BMP payloads as PNG before they are embedded;
// data URIs with image/bmp render inconsistently across Markdown viewers.
// Other formats pass through untouched. A BMP that fails to decode keeps
// its original bytes.
func normalizeImage(data []byte, format string) ([]byte, string) {
	if format != "bmp" {
		return data, format
	}
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("Warning: BMP decode failed, embedding as-is: %v", err)
		return data, format
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return data, format
	}
	return buf.Bytes(), "png"
}
