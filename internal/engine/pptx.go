package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	goppt "github.com/VantageDataChat/GoPPT"
)

// slidePathRE matches the canonical slide parts inside a pptx archive,
// capturing the slide number for numeric sort.
var slidePathRE = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// convertPPTX reconstructs a slide deck: one section per slide, text items
// per shape with text and image items per picture shape, both anchored by
// the shape's vertical offset. Shape-level hyperlinks become link regions
// resolved geometrically; run-level hyperlinks are inlined at extraction
// time. Slides the archive parser cannot read fall back to the plain-text
// presentation reader.
func (e *Engine) convertPPTX(ctx context.Context, data []byte, title, srcPath string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("pptx parse panic: %v", r)
		}
	}()

	zr, err := openArchive(data)
	if err != nil {
		return e.fallbackPPTX(data, title)
	}

	type slideEntry struct {
		num  int
		part string
	}
	var entries []slideEntry
	for _, f := range zr.File {
		if m := slidePathRE.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			entries = append(entries, slideEntry{num: n, part: f.Name})
		}
	}
	if len(entries) == 0 {
		return e.fallbackPPTX(data, title)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].num < entries[j].num })

	hasCharts := false
	slides := make([]slideContent, 0, len(entries))
	for _, entry := range entries {
		sc := parseSlide(zr, entry.part)
		if sc.hasChart {
			hasCharts = true
		}
		slides = append(slides, sc)
	}

	var renders map[int][]byte
	if hasCharts {
		renders = e.renderPages(ctx, srcPath)
	}

	doc = &Document{Title: title}
	dd := newDeduper()
	for i, sc := range slides {
		items := sc.items
		if sc.hasChart {
			if pngData, ok := renders[i]; ok {
				label := sc.chartTitle
				if label == "" {
					label = "Chart"
				}
				items = append(items, ContentItem{
					Kind:   KindChart,
					Data:   pngData,
					Format: "png",
					Anchor: sc.chartAnchor,
					Label:  "Chart: " + label,
				})
			}
		}
		items = dd.filter(items)
		resolveLinks(items, sc.regions)
		doc.Sections = append(doc.Sections, Section{
			Name:  fmt.Sprintf("Slide %d", i+1),
			Items: orderItems(items),
		})
	}

	// Media the slide walk did not reference (theme images, embedded
	// object previews) surfaces in a trailing container; duplicates of
	// already-embedded assets were just consumed by the deduper above.
	if extra := archiveMedia(zr, "ppt/media/", dd); len(extra) > 0 {
		doc.Sections = append(doc.Sections, Section{Name: "Additional Media", Items: extra})
	}

	return doc, nil
}

// slideContent is the parsed content of one slide part.
type slideContent struct {
	items       []ContentItem
	regions     []LinkRegion
	hasChart    bool
	chartAnchor Anchor
	chartTitle  string
}

type slideXfrmXML struct {
	Off struct {
		X int64 `xml:"x,attr"`
		Y int64 `xml:"y,attr"`
	} `xml:"off"`
	Ext struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	} `xml:"ext"`
}

// rect converts the EMU offset/extent pair to a point-unit rectangle.
func (x *slideXfrmXML) rect() Rect {
	x0 := emuToPoints(x.Off.X)
	y0 := emuToPoints(x.Off.Y)
	return NewRect(x0, y0, x0+emuToPoints(x.Ext.Cx), y0+emuToPoints(x.Ext.Cy))
}

type slideCNvPrXML struct {
	Name  string `xml:"name,attr"`
	Hlink *struct {
		RID string `xml:"id,attr"`
	} `xml:"hlinkClick"`
}

type slideXML struct {
	SpTree struct {
		Sp []struct {
			NvSpPr struct {
				CNvPr slideCNvPrXML `xml:"cNvPr"`
			} `xml:"nvSpPr"`
			SpPr struct {
				Xfrm *slideXfrmXML `xml:"xfrm"`
			} `xml:"spPr"`
			TxBody *struct {
				Paragraphs []struct {
					Runs []struct {
						RPr *struct {
							Hlink *struct {
								RID string `xml:"id,attr"`
							} `xml:"hlinkClick"`
						} `xml:"rPr"`
						T string `xml:"t"`
					} `xml:"r"`
				} `xml:"p"`
			} `xml:"txBody"`
		} `xml:"sp"`
		Pic []struct {
			NvPicPr struct {
				CNvPr slideCNvPrXML `xml:"cNvPr"`
			} `xml:"nvPicPr"`
			BlipFill struct {
				Blip struct {
					Embed string `xml:"embed,attr"`
				} `xml:"blip"`
			} `xml:"blipFill"`
			SpPr struct {
				Xfrm *slideXfrmXML `xml:"xfrm"`
			} `xml:"spPr"`
		} `xml:"pic"`
		GraphicFrame []struct {
			Xfrm *slideXfrmXML `xml:"xfrm"`
			Graphic struct {
				GraphicData struct {
					Chart *struct {
						RID string `xml:"id,attr"`
					} `xml:"chart"`
				} `xml:"graphicData"`
			} `xml:"graphic"`
		} `xml:"graphicFrame"`
	} `xml:"cSld>spTree"`
}

// parseSlide extracts one slide's items and link regions. A slide that
// fails to parse contributes nothing; the deck keeps converting.
func parseSlide(zr *zip.Reader, part string) slideContent {
	var sc slideContent

	data, err := readArchiveFile(zr, part)
	if err != nil {
		log.Printf("Warning: %s unreadable, skipping: %v", part, err)
		return sc
	}
	var slide slideXML
	if err := xml.Unmarshal(data, &slide); err != nil {
		log.Printf("Warning: %s parse failed, skipping: %v", part, err)
		return sc
	}
	rels := loadRels(zr, part)

	linkFor := func(rid string) string {
		if rel, ok := rels[rid]; ok && rel.External {
			return rel.Target
		}
		return ""
	}

	for _, sp := range slide.SpTree.Sp {
		anchor := Anchor{}
		var bounds *Rect
		if sp.SpPr.Xfrm != nil {
			anchor = OffsetAnchor(emuToPoints(sp.SpPr.Xfrm.Off.Y))
			r := sp.SpPr.Xfrm.rect()
			bounds = &r
		}
		if sp.NvSpPr.CNvPr.Hlink != nil && bounds != nil {
			if target := linkFor(sp.NvSpPr.CNvPr.Hlink.RID); target != "" {
				sc.regions = append(sc.regions, LinkRegion{Rect: *bounds, Target: target})
			}
		}
		if sp.TxBody == nil {
			continue
		}
		var paras []string
		for _, p := range sp.TxBody.Paragraphs {
			var runs []string
			for _, r := range p.Runs {
				text := r.T
				if r.RPr != nil && r.RPr.Hlink != nil {
					if target := linkFor(r.RPr.Hlink.RID); target != "" {
						text = "[" + text + "](" + target + ")"
					}
				}
				runs = append(runs, text)
			}
			if line := strings.TrimSpace(strings.Join(runs, "")); line != "" {
				paras = append(paras, line)
			}
		}
		if len(paras) == 0 {
			continue
		}
		sc.items = append(sc.items, ContentItem{
			Kind:   KindText,
			Text:   strings.Join(paras, "\n"),
			Anchor: anchor,
			Bounds: bounds,
		})
	}

	for _, pic := range slide.SpTree.Pic {
		rel, ok := rels[pic.BlipFill.Blip.Embed]
		if !ok {
			continue
		}
		blob, err := readArchiveFile(zr, resolvePartPath(part, rel.Target))
		if err != nil || len(blob) < minImageSize {
			continue
		}
		format := formatFromName(rel.Target)
		if format == "" {
			format = sniffImageFormat(blob)
		}
		if format == "" {
			continue
		}
		anchor := Anchor{}
		var bounds *Rect
		if pic.SpPr.Xfrm != nil {
			anchor = OffsetAnchor(emuToPoints(pic.SpPr.Xfrm.Off.Y))
			r := pic.SpPr.Xfrm.rect()
			bounds = &r
		}
		payload, format := normalizeImage(blob, format)
		item := ContentItem{
			Kind:   KindImage,
			Data:   payload,
			Format: format,
			Anchor: anchor,
			Bounds: bounds,
		}
		if pic.NvPicPr.CNvPr.Hlink != nil {
			item.Link = linkFor(pic.NvPicPr.CNvPr.Hlink.RID)
		}
		sc.items = append(sc.items, item)
	}

	for _, frame := range slide.SpTree.GraphicFrame {
		if frame.Graphic.GraphicData.Chart == nil {
			continue
		}
		sc.hasChart = true
		if frame.Xfrm != nil {
			sc.chartAnchor = OffsetAnchor(emuToPoints(frame.Xfrm.Off.Y))
		}
		if rel, ok := rels[frame.Graphic.GraphicData.Chart.RID]; ok {
			if chartData, err := readArchiveFile(zr, resolvePartPath(part, rel.Target)); err == nil {
				sc.chartTitle = chartTitle(chartData)
			}
		}
		break // one chart render per slide; the bridge rasterizes whole slides
	}

	return sc
}

// archiveMedia collects raster media under prefix that survived the deduper,
// as unpositioned image items in archive order.
func archiveMedia(zr *zip.Reader, prefix string, dd *deduper) []ContentItem {
	var items []ContentItem
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		format := formatFromName(f.Name)
		if format == "" {
			continue
		}
		blob, err := readArchiveFile(zr, f.Name)
		if err != nil || len(blob) < minImageSize {
			continue
		}
		payload, format := normalizeImage(blob, format)
		items = append(items, ContentItem{Kind: KindImage, Data: payload, Format: format})
	}
	return dd.filter(items)
}

// fallbackPPTX extracts slide text with the plain presentation reader when
// the archive cannot be walked. Items carry sequence anchors; there is no
// geometry to recover on this path.
func (e *Engine) fallbackPPTX(data []byte, title string) (*Document, error) {
	pres, err := goppt.ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pptx parse: %w", err)
	}
	doc := &Document{Title: title}
	for i, slide := range pres.Slides() {
		var items []ContentItem
		if text := strings.TrimSpace(slide.ExtractText()); text != "" {
			items = append(items, ContentItem{Kind: KindText, Text: text, Anchor: SeqAnchor(0)})
		}
		doc.Sections = append(doc.Sections, Section{
			Name:  fmt.Sprintf("Slide %d", i+1),
			Items: items,
		})
	}
	return doc, nil
}
