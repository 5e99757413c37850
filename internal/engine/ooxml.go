package engine

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
)

// OOXML documents (xlsx, pptx, docx) are ZIP archives of XML parts wired
// together by relationship files. The helpers here are shared by the three
// archive-walking extractors.

// emuPerPoint converts English Metric Units, the OOXML drawing coordinate
// unit, to points (914400 EMU per inch, 72 points per inch).
const emuPerPoint = 12700

func emuToPoints(emu int64) float64 {
	return float64(emu) / emuPerPoint
}

// openArchive opens in-memory OOXML bytes as a ZIP archive.
func openArchive(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return zr, nil
}

// readArchiveFile returns the content of one named part, or an error when
// the part does not exist.
func readArchiveFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("%s: no such archive part", name)
}

// relTarget is one resolved relationship: where it points and whether the
// target is external to the archive (a hyperlink rather than a part).
type relTarget struct {
	Target   string
	External bool
}

// parseRels parses a .rels part into a relationship-id lookup table.
func parseRels(data []byte) (map[string]relTarget, error) {
	var rels struct {
		Relationships []struct {
			ID         string `xml:"Id,attr"`
			Target     string `xml:"Target,attr"`
			TargetMode string `xml:"TargetMode,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("parse rels: %w", err)
	}
	out := make(map[string]relTarget, len(rels.Relationships))
	for _, r := range rels.Relationships {
		out[r.ID] = relTarget{Target: r.Target, External: r.TargetMode == "External"}
	}
	return out, nil
}

// loadRels reads and parses the relationship part for partName, e.g.
// xl/worksheets/sheet1.xml -> xl/worksheets/_rels/sheet1.xml.rels. A part
// with no relationships yields an empty table, not an error.
func loadRels(zr *zip.Reader, partName string) map[string]relTarget {
	relsName := path.Join(path.Dir(partName), "_rels", path.Base(partName)+".rels")
	data, err := readArchiveFile(zr, relsName)
	if err != nil {
		return map[string]relTarget{}
	}
	rels, err := parseRels(data)
	if err != nil {
		return map[string]relTarget{}
	}
	return rels
}

// resolvePartPath resolves a relationship target relative to the directory
// of the part that declared it ("../media/image1.png" from
// "xl/drawings/drawing1.xml" becomes "xl/media/image1.png").
func resolvePartPath(partName, target string) string {
	return path.Clean(path.Join(path.Dir(partName), target))
}
