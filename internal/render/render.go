// Package render invokes an external headless document renderer as a
// subprocess to rasterize vector content (charts, embedded drawings) that
// the native extractors cannot convert. The capability is injectable: the
// engine depends on the Renderer interface and callers may substitute
// Unavailable (or a fake) so the graceful-degradation path is testable
// without the actual tool.
package render

import "context"

// Rendered is one rasterized page of the source document. Page is the
// zero-based index in the renderer's page-oriented output, which callers
// map positionally onto their containers (sheet, slide).
type Rendered struct {
	Page int
	PNG  []byte
}

// Renderer produces one raster image per page of a source document.
// Implementations must be bounded by a timeout and must never be required
// for a conversion to succeed: callers treat any error as "no rendered
// output" and continue.
type Renderer interface {
	Render(ctx context.Context, srcPath string) ([]Rendered, error)
}

// Unavailable is the default no-tool implementation: it renders nothing
// and reports no error.
type Unavailable struct{}

// Render implements Renderer.
func (Unavailable) Render(context.Context, string) ([]Rendered, error) {
	return nil, nil
}
