package chapter

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/dgallion1/pagequiz/internal/document"
)

// Titles reported when the draw is not chapter-aware.
const (
	NoOutlineTitle  = "Unknown Chapter (No ToC)"
	RandomPageTitle = "Random Page"
)

// MaxLevel is the deepest outline level treated as a chapter boundary.
const MaxLevel = 2

// Source is the part of a document the selector reads.
type Source interface {
	PageCount() int
	Outline() []document.OutlineEntry
}

// Range is a chapter's inclusive, zero-based page span.
type Range struct {
	Title string `json:"title"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Selection is the outcome of one draw. Chapter is the index into Ranges,
// or -1 when the whole document was sampled.
type Selection struct {
	Page    int    `json:"page"`
	Title   string `json:"title"`
	Chapter int    `json:"chapter"`
}

// Ranges derives chapter spans from consecutive outline entries of level
// MaxLevel or shallower. Bounds are clamped into [0, pageCount) and every
// span has End >= Start.
func Ranges(outline []document.OutlineEntry, pageCount int) []Range {
	if pageCount <= 0 {
		return nil
	}
	var entries []document.OutlineEntry
	for _, e := range outline {
		if e.Level <= MaxLevel {
			entries = append(entries, e)
		}
	}

	ranges := make([]Range, 0, len(entries))
	for i, e := range entries {
		start := clamp(e.Page-1, 0, pageCount-1)
		end := pageCount - 1
		if i < len(entries)-1 {
			end = clamp(entries[i+1].Page-2, 0, pageCount-1)
		}
		if end < start {
			end = start
		}
		title := strings.TrimSpace(e.Title)
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		ranges = append(ranges, Range{Title: title, Start: start, End: end})
	}
	return ranges
}

// Select draws a page: a uniform chapter, then a uniform page inside it.
// Without a usable outline it draws uniformly over the whole document.
// src must have at least one page.
func Select(src Source, rng *rand.Rand) Selection {
	n := src.PageCount()
	outline := src.Outline()
	if len(outline) == 0 {
		return Selection{Page: rng.IntN(n), Title: NoOutlineTitle, Chapter: -1}
	}

	ranges := Ranges(outline, n)
	if len(ranges) == 0 {
		return Selection{Page: rng.IntN(n), Title: RandomPageTitle, Chapter: -1}
	}

	i := rng.IntN(len(ranges))
	r := ranges[i]
	return Selection{
		Page:    r.Start + rng.IntN(r.End-r.Start+1),
		Title:   r.Title,
		Chapter: i,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
