package convert

import (
	"context"
	"fmt"
	"log"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gen2brain/go-fitz"
)

// FitzBackend converts PDF and XPS files through MuPDF's per-page HTML
// rendering. It preserves less structure than the reconstruction engine but
// handles files whose object model the engine cannot read, so it registers
// behind the engine as a second-chance PDF converter.
type FitzBackend struct{}

func NewFitzBackend() *FitzBackend { return &FitzBackend{} }

func (f *FitzBackend) Name() string { return "fitzmd" }

func (f *FitzBackend) Extensions() []string { return []string{"pdf", "xps", "epub"} }

func (f *FitzBackend) Convert(ctx context.Context, srcPath, outDir string) (string, error) {
	doc, err := fitz.New(srcPath)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		html, err := doc.HTML(i, true)
		if err != nil {
			log.Printf("Warning: page %d html extraction failed, skipping: %v", i+1, err)
			continue
		}
		markdown, err := htmltomarkdown.ConvertString(html)
		if err != nil {
			log.Printf("Warning: page %d markdown conversion failed, skipping: %v", i+1, err)
			continue
		}
		markdown = strings.TrimSpace(markdown)
		if markdown == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## Page %d\n\n%s", i+1, markdown)
	}

	return writeMarkdown(srcPath, outDir, sb.String()+"\n")
}
