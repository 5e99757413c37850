// Package convert holds the auxiliary converter backends that sit alongside
// the reconstruction engine in the registry: an HTML-to-Markdown converter
// and a rasterizer-backed converter that goes through per-page HTML.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// HTMLBackend converts HTML files to Markdown.
type HTMLBackend struct{}

func NewHTMLBackend() *HTMLBackend { return &HTMLBackend{} }

func (h *HTMLBackend) Name() string { return "htmlmd" }

func (h *HTMLBackend) Extensions() []string { return []string{"html", "htm"} }

func (h *HTMLBackend) Convert(ctx context.Context, srcPath, outDir string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}

	return writeMarkdown(srcPath, outDir, markdown)
}

// writeMarkdown writes content as <outDir>/<stem of srcPath>.md.
func writeMarkdown(srcPath, outDir, content string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	outPath := filepath.Join(outDir, stem+".md")
	if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}
	return outPath, nil
}
