// Package testpdf builds small, well-formed PDF files in memory for tests.
//
// Every page carries one line of text ("Page N", 1-based) in Helvetica so the
// text layer can be extracted, and an optional outline is written with
// explicit page destinations.
package testpdf

import (
	"bytes"
	"fmt"
	"strings"
)

// Entry is one outline item. Level starts at 1, Page is 1-based.
type Entry struct {
	Level int
	Title string
	Page  int
}

// Spec describes the document to build.
type Spec struct {
	Pages   int
	Width   int // points; default 200
	Height  int // points; default 300
	Outline []Entry
}

type outlineNode struct {
	entry    Entry
	num      int
	parent   int
	children []*outlineNode
}

// Build returns the bytes of a PDF matching spec.
func Build(spec Spec) []byte {
	if spec.Pages <= 0 {
		spec.Pages = 1
	}
	if spec.Width <= 0 {
		spec.Width = 200
	}
	if spec.Height <= 0 {
		spec.Height = 300
	}

	// Object numbers: 1 catalog, 2 pages, 3 font, then page/content pairs,
	// then the outline root and its items.
	pageNum := func(i int) int { return 4 + 2*i }
	contentNum := func(i int) int { return 5 + 2*i }
	next := 4 + 2*spec.Pages

	objs := map[int]string{}

	var roots []*outlineNode
	outlineRoot := 0
	if len(spec.Outline) > 0 {
		outlineRoot = next
		next++
		var stack []*outlineNode
		for _, e := range spec.Outline {
			n := &outlineNode{entry: e, num: next}
			next++
			for len(stack) > 0 && stack[len(stack)-1].entry.Level >= e.Level {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				n.parent = outlineRoot
				roots = append(roots, n)
			} else {
				p := stack[len(stack)-1]
				n.parent = p.num
				p.children = append(p.children, n)
			}
			stack = append(stack, n)
		}
	}

	catalog := "<< /Type /Catalog /Pages 2 0 R"
	if outlineRoot != 0 {
		catalog += fmt.Sprintf(" /Outlines %d 0 R /PageMode /UseOutlines", outlineRoot)
	}
	objs[1] = catalog + " >>"

	kids := make([]string, spec.Pages)
	for i := range spec.Pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageNum(i))
	}
	objs[2] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), spec.Pages)
	objs[3] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"

	for i := range spec.Pages {
		objs[pageNum(i)] = fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			spec.Width, spec.Height, contentNum(i))
		stream := fmt.Sprintf("BT /F1 12 Tf 20 %d Td (Page %d) Tj ET", spec.Height/2, i+1)
		objs[contentNum(i)] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)
	}

	if outlineRoot != 0 {
		objs[outlineRoot] = fmt.Sprintf("<< /Type /Outlines /First %d 0 R /Last %d 0 R /Count %d >>",
			roots[0].num, roots[len(roots)-1].num, countNodes(roots))
		writeOutline(objs, roots, spec.Pages, pageNum)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, next)
	for n := 1; n < next; n++ {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, objs[n])
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", next)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n < next; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", next, xref)
	return buf.Bytes()
}

func writeOutline(objs map[int]string, nodes []*outlineNode, pages int, pageNum func(int) int) {
	for i, n := range nodes {
		target := n.entry.Page - 1
		if target < 0 {
			target = 0
		}
		if target >= pages {
			target = pages - 1
		}
		var b strings.Builder
		fmt.Fprintf(&b, "<< /Title (%s) /Parent %d 0 R /Dest [%d 0 R /Fit]", escape(n.entry.Title), n.parent, pageNum(target))
		if i > 0 {
			fmt.Fprintf(&b, " /Prev %d 0 R", nodes[i-1].num)
		}
		if i < len(nodes)-1 {
			fmt.Fprintf(&b, " /Next %d 0 R", nodes[i+1].num)
		}
		if len(n.children) > 0 {
			fmt.Fprintf(&b, " /First %d 0 R /Last %d 0 R /Count %d",
				n.children[0].num, n.children[len(n.children)-1].num, countNodes(n.children))
			writeOutline(objs, n.children, pages, pageNum)
		}
		b.WriteString(" >>")
		objs[n.num] = b.String()
	}
}

func countNodes(nodes []*outlineNode) int {
	c := len(nodes)
	for _, n := range nodes {
		c += countNodes(n.children)
	}
	return c
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	return strings.ReplaceAll(s, ")", `\)`)
}
