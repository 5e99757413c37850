package engine

import "bytes"

// maxScannedRasters caps how many embedded images a signature scan will
// pull out of one file; past this point the file is more likely a scan
// artifact dump than a document worth mirroring image-for-image.
const maxScannedRasters = 50

var (
	jpegEOI = []byte{0xFF, 0xD9}
	pngIEND = []byte("IEND")
)

// scanEmbeddedRasters finds JPEG and PNG payloads embedded in raw file
// bytes by signature, for containers without a parsable object model
// around their images. Items come back unpositioned, in byte order.
func scanEmbeddedRasters(data []byte) []ContentItem {
	var items []ContentItem
	pos := 0
	for pos < len(data) && len(items) < maxScannedRasters {
		jpegAt := bytes.Index(data[pos:], jpegMagic)
		pngAt := bytes.Index(data[pos:], pngMagic)
		if jpegAt < 0 && pngAt < 0 {
			break
		}

		if pngAt >= 0 && (jpegAt < 0 || pngAt < jpegAt) {
			start := pos + pngAt
			end := pngEnd(data, start)
			if end < 0 {
				pos = start + len(pngMagic)
				continue
			}
			if blob := data[start:end]; len(blob) >= minImageSize {
				items = append(items, ContentItem{Kind: KindImage, Data: blob, Format: "png"})
			}
			pos = end
			continue
		}

		start := pos + jpegAt
		end := jpegEnd(data, start)
		if end < 0 {
			pos = start + len(jpegMagic)
			continue
		}
		if blob := data[start:end]; len(blob) >= minImageSize {
			items = append(items, ContentItem{Kind: KindImage, Data: blob, Format: "jpeg"})
		}
		pos = end
	}
	return items
}

// pngEnd returns the exclusive end offset of the PNG starting at start:
// the IEND chunk plus its trailing CRC. -1 when the stream is truncated.
func pngEnd(data []byte, start int) int {
	idx := bytes.Index(data[start:], pngIEND)
	if idx < 0 {
		return -1
	}
	end := start + idx + len(pngIEND) + 4
	if end > len(data) {
		return -1
	}
	return end
}

// jpegEnd returns the exclusive end offset of the JPEG starting at start,
// located by its EOI marker. -1 when the stream is truncated.
func jpegEnd(data []byte, start int) int {
	idx := bytes.Index(data[start+len(jpegMagic):], jpegEOI)
	if idx < 0 {
		return -1
	}
	return start + len(jpegMagic) + idx + len(jpegEOI)
}
