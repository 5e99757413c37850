// Package registry routes conversion requests to converter backends by
// source extension. Several backends may claim the same extension; they are
// tried in registration order until one succeeds.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Backend converts one source file into a Markdown file under outDir and
// returns the output path.
type Backend interface {
	Name() string
	Extensions() []string
	Convert(ctx context.Context, srcPath, outDir string) (string, error)
}

// Registry is a fixed set of backends assembled at startup. It is not safe
// to register backends after serving begins.
type Registry struct {
	backends []Backend
	byExt    map[string][]Backend
}

func New() *Registry {
	return &Registry{byExt: make(map[string][]Backend)}
}

// Register adds a backend. Registration order decides priority for
// extensions claimed by more than one backend.
func (r *Registry) Register(b Backend) {
	r.backends = append(r.backends, b)
	for _, ext := range b.Extensions() {
		ext = strings.ToLower(ext)
		r.byExt[ext] = append(r.byExt[ext], b)
	}
}

// Backend returns a registered backend by name.
func (r *Registry) Backend(name string) (Backend, bool) {
	for _, b := range r.backends {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// Supported maps each extension to the backend names that handle it, in
// priority order, sorted by extension for stable output.
func (r *Registry) Supported() []ExtensionSupport {
	out := make([]ExtensionSupport, 0, len(r.byExt))
	for ext, backends := range r.byExt {
		names := make([]string, len(backends))
		for i, b := range backends {
			names[i] = b.Name()
		}
		out = append(out, ExtensionSupport{Extension: ext, Backends: names})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Extension < out[j].Extension })
	return out
}

// ExtensionSupport lists the backends handling one extension.
type ExtensionSupport struct {
	Extension string   `json:"extension"`
	Backends  []string `json:"backends"`
}

// Convert runs srcPath through a backend. With converter empty, backends
// claiming the extension run in priority order and the first success wins;
// with a named converter, only that backend runs, and it must claim the
// extension.
func (r *Registry) Convert(ctx context.Context, srcPath, outDir, converter string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(srcPath), "."))

	if converter != "" {
		b, ok := r.Backend(converter)
		if !ok {
			return "", fmt.Errorf("unknown converter: %s", converter)
		}
		if !claims(b, ext) {
			return "", fmt.Errorf("converter %s does not handle .%s files", converter, ext)
		}
		return b.Convert(ctx, srcPath, outDir)
	}

	backends := r.byExt[ext]
	if len(backends) == 0 {
		return "", fmt.Errorf("no converter for .%s files", ext)
	}

	var errs []error
	for _, b := range backends {
		out, err := b.Convert(ctx, srcPath, outDir)
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}
	return "", fmt.Errorf("all converters failed for .%s: %w", ext, errors.Join(errs...))
}

func claims(b Backend, ext string) bool {
	for _, e := range b.Extensions() {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
