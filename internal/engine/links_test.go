package engine

import "testing"

func boundedText(text string, r Rect) ContentItem {
	return ContentItem{Kind: KindText, Text: text, Bounds: &r}
}

func TestResolveLinks_FirstRegionInSourceOrderWins(t *testing.T) {
	items := []ContentItem{boundedText("covered", NewRect(10, 10, 50, 20))}
	regions := []LinkRegion{
		{Rect: NewRect(0, 0, 100, 100), Target: "https://first.example"},
		{Rect: NewRect(0, 0, 100, 100), Target: "https://second.example"},
	}

	resolveLinks(items, regions)
	if items[0].Link != "https://first.example" {
		t.Errorf("Link = %q, want the first matching region", items[0].Link)
	}
}

func TestResolveLinks_NoIntersection(t *testing.T) {
	items := []ContentItem{boundedText("far away", NewRect(200, 200, 210, 210))}
	regions := []LinkRegion{{Rect: NewRect(0, 0, 50, 50), Target: "https://example.com"}}

	resolveLinks(items, regions)
	if items[0].Link != "" {
		t.Errorf("Link = %q, want empty for disjoint geometry", items[0].Link)
	}
}

func TestResolveLinks_TouchingEdgeCounts(t *testing.T) {
	items := []ContentItem{boundedText("edge", NewRect(50, 0, 60, 10))}
	regions := []LinkRegion{{Rect: NewRect(0, 0, 50, 50), Target: "https://example.com"}}

	resolveLinks(items, regions)
	if items[0].Link != "https://example.com" {
		t.Error("touching boundaries should count as intersection")
	}
}

func TestResolveLinks_ExistingLinkNotOverwritten(t *testing.T) {
	r := NewRect(0, 0, 10, 10)
	items := []ContentItem{{Kind: KindText, Text: "t", Bounds: &r, Link: "https://original.example"}}
	regions := []LinkRegion{{Rect: NewRect(0, 0, 100, 100), Target: "https://other.example"}}

	resolveLinks(items, regions)
	if items[0].Link != "https://original.example" {
		t.Errorf("Link = %q, extraction-time link must win", items[0].Link)
	}
}

func TestResolveLinks_SkipsItemsWithoutBounds(t *testing.T) {
	items := []ContentItem{{Kind: KindText, Text: "no geometry"}}
	regions := []LinkRegion{{Rect: NewRect(0, 0, 100, 100), Target: "https://example.com"}}

	resolveLinks(items, regions)
	if items[0].Link != "" {
		t.Error("item without bounds must not receive a link")
	}
}

func TestResolveLinks_OnlyTextAndImages(t *testing.T) {
	r := NewRect(0, 0, 10, 10)
	items := []ContentItem{
		{Kind: KindTable, Cells: []string{"a"}, Bounds: &r},
		{Kind: KindChart, Data: []byte("c"), Bounds: &r},
		{Kind: KindImage, Data: []byte("i"), Bounds: &r},
	}
	regions := []LinkRegion{{Rect: NewRect(0, 0, 100, 100), Target: "https://example.com"}}

	resolveLinks(items, regions)
	if items[0].Link != "" || items[1].Link != "" {
		t.Error("tables and charts must not receive links")
	}
	if items[2].Link != "https://example.com" {
		t.Error("image inside region did not receive link")
	}
}
