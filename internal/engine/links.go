package engine

// resolveLinks associates free-floating link regions with the text and image
// items they geometrically cover. Regions are tested in source order and the
// first intersecting one wins; multiple overlapping links on one item are a
// documented limitation, not an error. Items without bounds, items that
// already carry a link from extraction time, and items with no intersecting
// region pass through unmodified.
func resolveLinks(items []ContentItem, regions []LinkRegion) {
	if len(regions) == 0 {
		return
	}
	for i := range items {
		it := &items[i]
		if it.Bounds == nil || it.Link != "" {
			continue
		}
		if it.Kind != KindText && it.Kind != KindImage {
			continue
		}
		for _, reg := range regions {
			if it.Bounds.Intersects(reg.Rect) {
				it.Link = reg.Target
				break
			}
		}
	}
}
