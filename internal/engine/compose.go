package engine

import "sort"

// orderItems establishes the reading order for one container: positioned
// items strictly by anchor, unpositioned items appended afterwards in their
// original extraction order. The sort must be stable so that items with
// equal anchors keep their relative extraction order; output determinism
// depends on it.
func orderItems(items []ContentItem) []ContentItem {
	ordered := make([]ContentItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Anchor.Less(ordered[j].Anchor)
	})
	return ordered
}
