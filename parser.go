package underlog

import (
	"fmt"
	"strings"
)

// Structural markers of the input grammar.
const (
	codeFence      = "```"
	imagePrefix    = "image::"
	tableDelimiter = "|==="
)

// lineClass is the result of classifying one non-blank line.
type lineClass int

const (
	classParagraph lineClass = iota
	classHeading
	classImage
	classCodeFence
	classTable
	classList
)

// classify decides which structural rule applies to a line. First match
// wins; the order is part of the grammar and disambiguates prefixes
// (e.g. "image::" before paragraphs, "." lists after code fences).
func classify(line string) lineClass {
	switch {
	case strings.HasPrefix(line, "#"):
		return classHeading
	case strings.HasPrefix(line, imagePrefix):
		return classImage
	case strings.HasPrefix(line, codeFence):
		return classCodeFence
	case strings.HasPrefix(line, "[") || line == tableDelimiter:
		return classTable
	case isListItem(line):
		return classList
	default:
		return classParagraph
	}
}

// isListItem reports whether a line opens a list item.
func isListItem(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, ".")
}

// lineCursor walks an immutable slice of input lines.
type lineCursor struct {
	lines []string
	pos   int
}

func (c *lineCursor) done() bool {
	return c.pos >= len(c.lines)
}

func (c *lineCursor) peek() string {
	return c.lines[c.pos]
}

func (c *lineCursor) next() string {
	line := c.lines[c.pos]
	c.pos++
	return line
}

// lineno returns the 1-based number of the current line.
func (c *lineCursor) lineno() int {
	return c.pos + 1
}

// Parse converts raw markup into a Document. It is a total function:
// it never fails, and malformed input degrades to best-effort nodes
// plus diagnostics on the returned Document.
func Parse(text string) *Document {
	doc := &Document{}
	cur := &lineCursor{lines: strings.Split(normalizeNewlines(text), "\n")}

	for !cur.done() {
		if strings.TrimSpace(cur.peek()) == "" {
			cur.next()
			continue
		}
		switch classify(cur.peek()) {
		case classHeading:
			doc.Nodes = append(doc.Nodes, parseHeading(cur))
		case classImage:
			doc.Nodes = append(doc.Nodes, parseImage(cur, doc))
		case classCodeFence:
			doc.Nodes = append(doc.Nodes, parseCodeBlock(cur))
		case classTable:
			doc.Nodes = append(doc.Nodes, parseTable(cur, doc))
		case classList:
			doc.Nodes = append(doc.Nodes, parseList(cur))
		default:
			doc.Nodes = append(doc.Nodes, parseParagraph(cur))
		}
	}
	return doc
}

// normalizeNewlines converts \r\n and bare \r to \n.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// parseHeading consumes one heading line. "#@" and "#%" introduce
// unnumbered headings whose discriminator is kept as the "type"
// attribute; otherwise the number of leading '#' characters is the
// level.
func parseHeading(cur *lineCursor) *Node {
	line := cur.next()
	n := &Node{Kind: KindHeading}

	if len(line) >= 2 && (line[1] == '@' || line[1] == '%') {
		n.setAttr("type", string(line[1]))
		n.setAttr("level", "1")
		n.setAttr("numbered", "false")
		n.Children = []*Node{newTextNode(strings.TrimSpace(line[2:]))}
		return n
	}

	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	n.setAttr("level", fmt.Sprintf("%d", level))
	n.setAttr("numbered", "true")
	n.Children = []*Node{newTextNode(strings.TrimSpace(line[level:]))}
	return n
}

// parseImage consumes an "image::<name>[<caption>]" declaration.
// The name runs to the first '[' or end of line; the caption is the
// text strictly between that '[' and the next ']'.
func parseImage(cur *lineCursor, doc *Document) *Node {
	lineno := cur.lineno()
	rest := cur.next()[len(imagePrefix):]

	n := &Node{Kind: KindImage}
	open := strings.IndexByte(rest, '[')
	if open < 0 {
		n.setAttr("name", rest)
		n.setAttr("caption", "")
		return n
	}
	n.setAttr("name", rest[:open])

	closing := strings.IndexByte(rest[open+1:], ']')
	if closing < 0 {
		doc.Diagnostics = append(doc.Diagnostics, Diagnostic{
			Line:    lineno,
			Message: "unterminated image caption, missing ']'",
		})
		n.setAttr("caption", rest[open+1:])
		return n
	}
	n.setAttr("caption", rest[open+1:open+1+closing])
	return n
}

// parseCodeBlock consumes a fenced code block. Content lines are kept
// verbatim; the closing fence, when present, is consumed but not
// included.
func parseCodeBlock(cur *lineCursor) *Node {
	opening := cur.next()
	n := &Node{Kind: KindCodeBlock}
	n.setAttr("lang", strings.TrimSpace(opening[len(codeFence):]))

	for !cur.done() {
		if strings.HasPrefix(cur.peek(), codeFence) {
			cur.next()
			break
		}
		line := &Node{Kind: KindCodeLine}
		line.setAttr("content", cur.next())
		n.Children = append(n.Children, line)
	}
	return n
}

// parseTable consumes an optional bracketed options line followed by a
// delimited row region. Rows are '|'-prefixed lines; anything else
// inside the region is silently skipped.
func parseTable(cur *lineCursor, doc *Document) *Node {
	n := &Node{Kind: KindTable}

	if strings.HasPrefix(cur.peek(), "[") {
		lineno := cur.lineno()
		opts, err := ParseOptions(cur.next())
		if err != nil {
			doc.Diagnostics = append(doc.Diagnostics, Diagnostic{Line: lineno, Message: err.Error()})
		}
		for k, v := range opts {
			n.setAttr(k, v)
		}
	}

	if cur.done() || cur.peek() != tableDelimiter {
		doc.Diagnostics = append(doc.Diagnostics, Diagnostic{
			Line:    cur.lineno(),
			Message: fmt.Sprintf("expected table delimiter %q", tableDelimiter),
		})
		return n
	}
	cur.next() // opening delimiter

	for !cur.done() {
		line := cur.next()
		if line == tableDelimiter {
			break
		}
		if !strings.HasPrefix(line, "|") {
			continue
		}
		n.Children = append(n.Children, parseTableRow(line))
	}
	return n
}

// parseTableRow splits a row line into trimmed cells on '|' boundaries.
func parseTableRow(line string) *Node {
	row := &Node{Kind: KindTableRow}
	parts := strings.Split(line, "|")
	// The leading '|' produces an empty first element; a trailing '|'
	// produces an empty last one. Neither is a cell.
	parts = parts[1:]
	if len(parts) > 0 && strings.HasSuffix(line, "|") {
		parts = parts[:len(parts)-1]
	}
	for _, p := range parts {
		cell := &Node{Kind: KindTableCell}
		cell.setAttr("content", strings.TrimSpace(p))
		row.Children = append(row.Children, cell)
	}
	return row
}

// parseList groups a contiguous run of list-item lines into one list
// node. The kind is fixed by the first item's marker even when later
// items use the other marker character.
func parseList(cur *lineCursor) *Node {
	kind := KindUnorderedList
	if cur.peek()[0] == '.' {
		kind = KindOrderedList
	}
	list := &Node{Kind: kind}

	for !cur.done() && isListItem(cur.peek()) {
		line := cur.next()
		marker := line[0]
		level := 0
		for level < len(line) && line[level] == marker {
			level++
		}
		item := &Node{Kind: KindListItem}
		item.setAttr("level", fmt.Sprintf("%d", level))
		item.Children = []*Node{newTextNode(strings.TrimSpace(line[level:]))}
		list.Children = append(list.Children, item)
	}
	return list
}

// parseParagraph accumulates consecutive plain lines, trims each, and
// joins them with single spaces. It stops at blank lines and at any
// line a structural rule would claim.
func parseParagraph(cur *lineCursor) *Node {
	var parts []string
	for !cur.done() {
		line := cur.peek()
		if strings.TrimSpace(line) == "" || classify(line) != classParagraph {
			break
		}
		parts = append(parts, strings.TrimSpace(cur.next()))
	}
	n := &Node{Kind: KindParagraph}
	n.Children = []*Node{newTextNode(strings.Join(parts, " "))}
	return n
}
