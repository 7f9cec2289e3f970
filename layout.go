package underlog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Layout turns a parsed document into an ordered sequence of pages.
//
// It runs two passes over the same counter-advancing algorithm: a
// numbering pre-pass that computes the final display text of every
// heading and collects the table-of-contents entries, then a rendering
// pass that replays the identical numbering in lockstep and
// back-patches each entry's page as its heading is placed. Running the
// same algorithm twice guarantees the texts match byte for byte.
//
// The pass is synchronous and deterministic: unresolved images are
// laid out with placeholder dimensions and their resolution is kicked
// off in the background; a later, independent Layout call picks up the
// resolved sizes. A finished layout is never patched in place.
func Layout(doc *Document, cfg *Config, m TextMeasurer, images *DimensionCache) ([]*Page, []TOCEntry) {
	e := &layoutEngine{cfg: cfg, m: m, images: images, tocPage: -1}
	e.newPage()

	e.collectTOC(doc)
	e.render(doc)
	e.renderTOC()

	return e.pages, e.toc
}

type layoutEngine struct {
	cfg    *Config
	m      TextMeasurer
	images *DimensionCache

	pages []*Page
	y     float64

	headingCounters []int
	imageCounter    int
	chapter         int

	toc     []TOCEntry
	tocPage int

	lastHeadingNumbered bool
}

// Geometry helpers.

func (e *layoutEngine) contentLeft() float64  { return e.cfg.MarginLeft }
func (e *layoutEngine) contentRight() float64 { return e.cfg.PageWidth - e.cfg.MarginRight }
func (e *layoutEngine) contentWidth() float64 { return e.contentRight() - e.contentLeft() }
func (e *layoutEngine) bottomLimit() float64 {
	return e.cfg.PageHeight - e.cfg.MarginBottom - e.cfg.lineHeight(e.cfg.FontSize)
}

func (e *layoutEngine) page() *Page { return e.pages[len(e.pages)-1] }

func (e *layoutEngine) newPage() {
	e.pages = append(e.pages, &Page{Width: e.cfg.PageWidth, Height: e.cfg.PageHeight})
	e.y = e.cfg.MarginTop
}

// pageNumber maps a zero-based physical page index onto the displayed
// number, shifted by the front-matter offset.
func (e *layoutEngine) pageNumber(index int) int {
	return index + e.cfg.PageNumberOffset
}

// breakPage finalizes the current page and starts a fresh one. A
// non-empty page whose most recently rendered heading was numbered
// gets a centered page-number footer.
func (e *layoutEngine) breakPage() {
	p := e.page()
	if len(p.Primitives) > 0 && e.lastHeadingNumbered {
		size := e.cfg.FontSize * 0.75
		num := strconv.Itoa(e.pageNumber(len(e.pages) - 1))
		width := e.m.Measure(num, size, "normal", e.cfg.FontFamily)
		p.Primitives = append(p.Primitives, TextRun{
			X:        e.contentLeft() + (e.contentWidth()-width)/2,
			Y:        e.cfg.PageHeight - e.cfg.MarginBottom/2,
			FontSize: size,
			Family:   e.cfg.FontFamily,
			Weight:   "normal",
			Content:  num,
		})
	}
	e.newPage()
}

// ensureBounds breaks the page when the cursor plus the upcoming
// element would cross the bottom margin minus one line height. Content
// taller than a whole page is placed anyway after a single break.
func (e *layoutEngine) ensureBounds(needed float64) {
	if e.y+needed > e.bottomLimit() && e.y > e.cfg.MarginTop {
		e.breakPage()
	}
}

func (e *layoutEngine) atTopMargin() bool { return e.y <= e.cfg.MarginTop }

// emitLine places one wrapped line at the cursor and advances it.
func (e *layoutEngine) emitLine(ln wrappedLine, fontSize float64, weight string, family string) {
	e.page().Primitives = append(e.page().Primitives, TextRun{
		X:           ln.X,
		Y:           e.y + fontSize, // baseline
		FontSize:    fontSize,
		Family:      family,
		Weight:      weight,
		WordSpacing: ln.WordSpacing,
		Content:     ln.Text,
	})
	e.y += e.cfg.lineHeight(fontSize)
}

// Heading numbering. advanceCounters extends the sequence with zeros
// until it covers the level, increments the level's slot, and zeroes
// everything deeper.
func advanceCounters(counters []int, level int) []int {
	for len(counters) < level {
		counters = append(counters, 0)
	}
	counters[level-1]++
	for i := level; i < len(counters); i++ {
		counters[i] = 0
	}
	return counters
}

func counterPrefix(counters []int, level int) string {
	parts := make([]string, level)
	for i := 0; i < level; i++ {
		parts[i] = strconv.Itoa(counters[i])
	}
	return strings.Join(parts, ".")
}

// headingDisplay advances the counters for a numbered heading and
// returns its final display text: hierarchical prefix, a space, the
// raw text, all uppercased at level 1.
func headingDisplay(counters []int, level int, text string) ([]int, string) {
	counters = advanceCounters(counters, level)
	display := counterPrefix(counters, level) + " " + text
	if level == 1 {
		display = strings.ToUpper(display)
	}
	return counters, display
}

func headingLevel(n *Node) int {
	level, err := strconv.Atoi(n.Attr("level"))
	if err != nil || level < 1 {
		return 1
	}
	return level
}

// collectTOC is the numbering pre-pass: it walks heading nodes only,
// replaying the numbering algorithm, and appends one unresolved entry
// per heading that is not a TOC marker.
func (e *layoutEngine) collectTOC(doc *Document) {
	var counters []int
	for _, n := range doc.Nodes {
		if n.Kind != KindHeading {
			continue
		}
		if n.Attr("type") == "%" {
			continue
		}
		level := headingLevel(n)
		text := n.textChild()
		numbered := n.Attr("numbered") == "true"
		if numbered {
			counters, text = headingDisplay(counters, level, text)
		}
		e.toc = append(e.toc, TOCEntry{Text: text, Numbered: numbered, Level: level, Page: -1})
	}
}

// backpatchTOC resolves the first unresolved entry matching the tuple.
// Duplicated headings therefore bind pages in order of occurrence.
func (e *layoutEngine) backpatchTOC(text string, numbered bool, level int) {
	for i := range e.toc {
		t := &e.toc[i]
		if t.Page == -1 && t.Text == text && t.Numbered == numbered && t.Level == level {
			t.Page = e.pageNumber(len(e.pages) - 1)
			return
		}
	}
}

// render is the rendering pass over all nodes in document order.
func (e *layoutEngine) render(doc *Document) {
	e.headingCounters = nil
	e.imageCounter = 0
	e.chapter = 0

	for _, n := range doc.Nodes {
		switch n.Kind {
		case KindHeading:
			e.renderHeading(n)
		case KindParagraph:
			e.renderParagraph(n)
		case KindCodeBlock:
			e.renderCodeBlock(n)
		case KindOrderedList, KindUnorderedList:
			e.renderList(n)
		case KindTable:
			e.renderTable(n)
		case KindImage:
			e.renderImage(n)
		}
	}
}

func (e *layoutEngine) renderHeading(n *Node) {
	level := headingLevel(n)
	text := n.textChild()

	switch n.Attr("type") {
	case "%":
		// TOC marker: no visible text; it designates the page the
		// table of contents is drawn on, on a fresh page when the
		// current one already has content.
		if len(e.page().Primitives) > 0 {
			e.breakPage()
		}
		e.tocPage = len(e.pages) - 1
		e.newPage() // reserve the whole page; content continues on the next
		return

	case "@":
		if !e.atTopMargin() {
			e.breakPage()
		}
		size := e.cfg.headingSize(1)
		for _, ln := range e.wrapRun(text, size, "bold", e.contentLeft(), e.contentWidth(), true) {
			e.ensureBounds(e.cfg.lineHeight(size))
			e.emitLine(ln, size, "bold", e.cfg.FontFamily)
		}
		e.backpatchTOC(text, false, level)
		e.lastHeadingNumbered = false
		return
	}

	var display string
	e.headingCounters, display = headingDisplay(e.headingCounters, level, text)
	if level == 1 {
		e.chapter++
		e.imageCounter = 0
		if !e.atTopMargin() {
			e.breakPage()
		}
	}

	size := e.cfg.headingSize(level)
	for _, ln := range e.wrapRun(display, size, "bold", e.contentLeft(), e.contentWidth(), false) {
		e.ensureBounds(e.cfg.lineHeight(size))
		e.emitLine(ln, size, "bold", e.cfg.FontFamily)
	}
	e.backpatchTOC(display, true, level)
	e.lastHeadingNumbered = true
}

func (e *layoutEngine) renderParagraph(n *Node) {
	lines := e.wrapRun(n.textChild(), e.cfg.FontSize, "normal", e.contentLeft(), e.contentWidth(), false)
	for _, ln := range lines {
		e.ensureBounds(e.cfg.lineHeight(e.cfg.FontSize))
		e.emitLine(ln, e.cfg.FontSize, "normal", e.cfg.FontFamily)
	}
	if len(lines) > 0 {
		e.y += e.cfg.lineHeight(e.cfg.FontSize) * 0.5 // paragraph gap
	}
}

func (e *layoutEngine) renderCodeBlock(n *Node) {
	e.y += e.cfg.CodePadding
	for _, line := range n.Children {
		if line.Kind != KindCodeLine {
			continue
		}
		e.ensureBounds(e.cfg.CodeLineHeight)
		e.page().Primitives = append(e.page().Primitives, TextRun{
			X:        e.contentLeft(),
			Y:        e.y + e.cfg.CodeFontSize,
			FontSize: e.cfg.CodeFontSize,
			Family:   "monospace",
			Weight:   "normal",
			Content:  line.Attr("content"),
		})
		e.y += e.cfg.CodeLineHeight
	}
	e.y += e.cfg.CodePadding
}

func (e *layoutEngine) renderList(list *Node) {
	lh := e.cfg.lineHeight(e.cfg.FontSize)
	var counters []int // reset per list node

	for _, item := range list.Children {
		if item.Kind != KindListItem {
			continue
		}
		level := headingLevel(item)

		var label string
		if list.Kind == KindOrderedList {
			counters = advanceCounters(counters, level)
			label = counterPrefix(counters, level) + "."
		} else {
			label = e.cfg.BulletGlyph
		}

		labelX := e.contentLeft() + float64(level-1)*e.cfg.ListIndent
		textX := labelX + e.cfg.ListTextIndent
		avail := e.contentRight() - textX

		e.ensureBounds(lh)
		e.page().Primitives = append(e.page().Primitives, TextRun{
			X:        labelX,
			Y:        e.y + e.cfg.FontSize,
			FontSize: e.cfg.FontSize,
			Family:   e.cfg.FontFamily,
			Weight:   "normal",
			Content:  label,
		})

		lines := e.wrapRun(item.textChild(), e.cfg.FontSize, "normal", textX, avail, false)
		if len(lines) == 0 {
			// The justifier emits nothing for empty content; an item
			// still occupies its line.
			e.y += lh
			continue
		}
		for i, ln := range lines {
			if i > 0 {
				e.ensureBounds(lh)
			}
			e.emitLine(ln, e.cfg.FontSize, "normal", e.cfg.FontFamily)
		}
	}
}

func (e *layoutEngine) renderTable(table *Node) {
	rows := table.Children
	if len(rows) == 0 || len(rows[0].Children) == 0 {
		return
	}
	colWidth := e.contentWidth() / float64(len(rows[0].Children))

	for _, row := range rows {
		if row.Kind != KindTableRow {
			continue
		}
		e.ensureBounds(e.cfg.TableRowHeight)
		for i, cell := range row.Children {
			e.page().Primitives = append(e.page().Primitives, TextRun{
				X:        e.contentLeft() + float64(i)*colWidth,
				Y:        e.y + e.cfg.FontSize,
				FontSize: e.cfg.FontSize,
				Family:   e.cfg.FontFamily,
				Weight:   "normal",
				Content:  cell.Attr("content"),
			})
		}
		e.y += e.cfg.TableRowHeight
	}
}

func (e *layoutEngine) renderImage(n *Node) {
	name := n.Attr("name")
	caption := n.Attr("caption")

	dims, state := e.images.Lookup(name)

	var aspect float64
	var href string
	switch state {
	case StateResolved:
		if dims.Width > 0 {
			aspect = float64(dims.Height) / float64(dims.Width)
		} else {
			aspect = e.cfg.PlaceholderAspect
		}
		href = e.cfg.ImageHrefPrefix + name
	case StateFailed:
		aspect = e.cfg.BrokenAspect
		_, err := e.images.State(name)
		if errors.Is(err, ErrImageNotFound) {
			href = "#missing-image"
		} else {
			href = "#broken-image"
		}
	default:
		// Pending or just requested: a deterministic placeholder keeps
		// the pass stable until a re-run sees the resolved size.
		aspect = e.cfg.PlaceholderAspect
		href = "#pending-image"
	}

	width := e.contentWidth() * e.cfg.ImageWidthFraction
	height := width * aspect
	lh := e.cfg.lineHeight(e.cfg.FontSize)

	needed := height
	if caption != "" {
		needed += lh
	}
	e.ensureBounds(needed)

	e.page().Primitives = append(e.page().Primitives, ImageRef{
		X:      e.contentLeft() + (e.contentWidth()-width)/2,
		Y:      e.y,
		Width:  width,
		Height: height,
		Href:   href,
	})
	e.y += height

	if caption != "" {
		e.imageCounter++
		text := fmt.Sprintf("%d.%d %s", e.chapter, e.imageCounter, caption)
		for _, ln := range e.wrapRun(text, e.cfg.FontSize, "normal", e.contentLeft(), e.contentWidth(), true) {
			e.ensureBounds(lh)
			e.emitLine(ln, e.cfg.FontSize, "normal", e.cfg.FontFamily)
		}
	}
}

// renderTOC draws the collected entries onto the designated page after
// the main pass, once every page number is known. Entries that do not
// fit are dropped (single-page TOC only).
func (e *layoutEngine) renderTOC() {
	if e.tocPage < 0 || len(e.toc) == 0 {
		return
	}
	page := e.pages[e.tocPage]
	lh := e.cfg.lineHeight(e.cfg.FontSize)
	y := e.cfg.MarginTop

	for _, entry := range e.toc {
		if y+lh > e.cfg.PageHeight-e.cfg.MarginBottom {
			break
		}
		num := strconv.Itoa(entry.Page)
		numWidth := e.m.Measure(num, e.cfg.FontSize, "normal", e.cfg.FontFamily)
		page.Primitives = append(page.Primitives,
			TextRun{
				X:        e.contentLeft() + float64(entry.Level-1)*e.cfg.ListIndent,
				Y:        y + e.cfg.FontSize,
				FontSize: e.cfg.FontSize,
				Family:   e.cfg.FontFamily,
				Weight:   "normal",
				Content:  entry.Text,
			},
			TextRun{
				X:        e.contentRight() - numWidth,
				Y:        y + e.cfg.FontSize,
				FontSize: e.cfg.FontSize,
				Family:   e.cfg.FontFamily,
				Weight:   "normal",
				Content:  num,
			},
		)
		y += lh
	}
}

// wrapRun invokes the justifier with the engine's measurer and config.
func (e *layoutEngine) wrapRun(text string, fontSize float64, weight string, x, width float64, centered bool) []wrappedLine {
	return wrapText(text, wrapParams{
		Measurer:         e.m,
		FontSize:         fontSize,
		Weight:           weight,
		Family:           e.cfg.FontFamily,
		X:                x,
		Width:            width,
		Centered:         centered,
		JustifyLastRatio: e.cfg.JustifyLastLineRatio,
	})
}
