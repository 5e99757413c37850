package engine

import "github.com/cespare/xxhash/v2"

// deduper collapses repeated embedded binary assets within one document
// conversion. Two images with equal xxhash64 are treated as the same asset:
// the first occurrence is kept, later ones are dropped outright (their slot
// in the reading order simply has no image). The hash set lives for exactly
// one conversion call; nothing is shared between documents.
type deduper struct {
	seen map[uint64]bool
}

func newDeduper() *deduper {
	return &deduper{seen: make(map[uint64]bool)}
}

// filter returns items with duplicate Image/Chart payloads removed. It runs
// before the composer, so the positions of dropped duplicates are never
// needed.
func (d *deduper) filter(items []ContentItem) []ContentItem {
	kept := items[:0:0]
	for _, it := range items {
		if it.Kind == KindImage || it.Kind == KindChart {
			h := xxhash.Sum64(it.Data)
			if d.seen[h] {
				continue
			}
			d.seen[h] = true
		}
		kept = append(kept, it)
	}
	return kept
}
