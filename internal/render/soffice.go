package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
)

const (
	// DefaultTimeout bounds one external rendering invocation.
	DefaultTimeout = 120 * time.Second
	// DefaultDPI is the rasterization resolution for rendered pages.
	DefaultDPI = 150
)

// binaryNames are the conventional names and locations tried when resolving
// the headless LibreOffice binary.
var binaryNames = []string{
	"soffice",
	"libreoffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
}

// executor abstracts binary lookup and subprocess execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Soffice renders documents by converting the whole source file to PDF with
// headless LibreOffice in a temporary directory, then rasterizing each page
// of that PDF. It is the engine's only call out of the process; the timeout
// is enforced on every invocation.
type Soffice struct {
	Timeout time.Duration
	DPI     float64
	exec    executor
}

// NewSoffice returns a renderer with the default timeout and resolution.
func NewSoffice() *Soffice {
	return &Soffice{Timeout: DefaultTimeout, DPI: DefaultDPI, exec: osExecutor{}}
}

// Render implements Renderer. Any failure (binary not found, non-zero exit,
// timeout, unreadable output) is returned as an error; callers degrade to
// "no rendered output" rather than failing the conversion.
func (s *Soffice) Render(ctx context.Context, srcPath string) ([]Rendered, error) {
	bin, err := s.findBinary()
	if err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp("", "mdforge-render-")
	if err != nil {
		return nil, fmt.Errorf("render temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.exec.Run(ctx, bin, convertArgs(tmp, srcPath)...); err != nil {
		return nil, fmt.Errorf("headless convert of %s: %w", filepath.Base(srcPath), err)
	}

	base := filepath.Base(srcPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	pdfPath := filepath.Join(tmp, stem+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("renderer produced no output for %s: %w", base, err)
	}

	dpi := s.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return rasterize(pdfPath, dpi)
}

// convertArgs builds the headless conversion invocation. The isolated user
// profile keeps concurrent invocations from fighting over the default one.
func convertArgs(outDir, srcPath string) []string {
	return []string{
		"--headless",
		"--norestore",
		"-env:UserInstallation=file://" + filepath.Join(outDir, "profile"),
		"--convert-to", "pdf",
		"--outdir", outDir,
		srcPath,
	}
}

func (s *Soffice) findBinary() (string, error) {
	for _, name := range binaryNames {
		if path, err := s.exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no headless renderer found (tried %s)", strings.Join(binaryNames, ", "))
}

// rasterize opens the page-oriented intermediate output and encodes one PNG
// per page. A page that fails to rasterize is skipped, not fatal.
func rasterize(pdfPath string, dpi float64) ([]Rendered, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open rendered pdf: %w", err)
	}
	defer doc.Close()

	var out []Rendered
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, dpi)
		if err != nil {
			log.Printf("Warning: rasterize page %d of %s failed: %v", n+1, filepath.Base(pdfPath), err)
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			log.Printf("Warning: encode page %d of %s failed: %v", n+1, filepath.Base(pdfPath), err)
			continue
		}
		out = append(out, Rendered{Page: n, PNG: buf.Bytes()})
	}
	return out, nil
}
