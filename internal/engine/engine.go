package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"mdforge/internal/render"
)

// Engine converts office documents and PDFs to Markdown. Extraction keeps
// every item's source position so that text, tables, images, and chart
// renders come out in reading order regardless of the order the source
// format stores them in. Conversion of one file touches no shared state, so
// a single Engine is safe for concurrent use.
type Engine struct {
	renderer render.Renderer
}

// New returns an Engine using the given renderer for chart rasterization.
// A nil renderer disables chart output; documents still convert.
func New(renderer render.Renderer) *Engine {
	if renderer == nil {
		renderer = render.Unavailable{}
	}
	return &Engine{renderer: renderer}
}

func (e *Engine) Name() string { return "engine" }

// Extensions lists the source formats Convert accepts, without dots.
func (e *Engine) Extensions() []string {
	return []string{"xlsx", "xlsm", "xlsb", "xls", "pdf", "pptx", "ppt", "docx", "doc"}
}

// Convert reads srcPath, reconstructs it as Markdown, and writes
// <outDir>/<stem>.md. It returns the output path.
func (e *Engine) Convert(ctx context.Context, srcPath, outDir string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(srcPath), "."))

	var doc *Document
	switch ext {
	case "xlsx", "xlsm", "xlsb":
		doc, err = e.convertExcel(ctx, data, stem, srcPath)
	case "xls":
		doc, err = e.convertXLS(data, stem)
	case "pdf":
		doc, err = e.convertPDF(data, stem)
	case "pptx":
		doc, err = e.convertPPTX(ctx, data, stem, srcPath)
	case "ppt":
		doc, err = e.convertPPT(data, stem)
	case "docx":
		doc, err = e.convertDocx(data, stem)
	case "doc":
		doc, err = e.convertDoc(data, stem)
	default:
		return "", fmt.Errorf("unsupported format %q: supported formats are %s",
			ext, strings.Join(e.Extensions(), ", "))
	}
	if err != nil {
		return "", err
	}

	outPath := filepath.Join(outDir, stem+".md")
	if err := os.WriteFile(outPath, []byte(renderDocument(doc)), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}
	return outPath, nil
}

// renderPages rasterizes the whole source document and returns the pages
// keyed by zero-based index. Render failure is not a conversion failure:
// the caller just converts without chart images.
func (e *Engine) renderPages(ctx context.Context, srcPath string) map[int][]byte {
	rendered, err := e.renderer.Render(ctx, srcPath)
	if err != nil {
		log.Printf("Warning: chart render failed for %s: %v", filepath.Base(srcPath), err)
		return nil
	}
	pages := make(map[int][]byte, len(rendered))
	for _, r := range rendered {
		pages[r.Page] = r.PNG
	}
	return pages
}
