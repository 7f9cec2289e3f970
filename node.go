package underlog

// Kind identifies the structural role of a Node.
type Kind string

// Node kinds produced by the parser.
const (
	KindHeading       Kind = "heading"
	KindText          Kind = "text"
	KindImage         Kind = "image"
	KindCodeBlock     Kind = "codeblock"
	KindCodeLine      Kind = "code-line"
	KindOrderedList   Kind = "ordered-list"
	KindUnorderedList Kind = "unordered-list"
	KindListItem      Kind = "list-item"
	KindTable         Kind = "table"
	KindTableRow      Kind = "table-row"
	KindTableCell     Kind = "table-cell"
	KindParagraph     Kind = "paragraph"
)

// Node is a tagged element of the document tree. Leaf kinds (text,
// code-line, table-cell) carry their payload in the "content" attribute
// and never have children; heading, paragraph and list-item wrap their
// text in a child text node instead. Downstream consumers rely on this
// asymmetry, so it must not be normalized away.
type Node struct {
	Kind     Kind
	Attrs    map[string]string
	Children []*Node
}

// Attr returns the named attribute or "" when absent.
func (n *Node) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// setAttr assigns an attribute, allocating the map on first use.
func (n *Node) setAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

// textChild returns the content of the first child text node, or "".
func (n *Node) textChild() string {
	for _, c := range n.Children {
		if c.Kind == KindText {
			return c.Attr("content")
		}
	}
	return ""
}

// newTextNode wraps raw text in a leaf text node.
func newTextNode(content string) *Node {
	return &Node{Kind: KindText, Attrs: map[string]string{"content": content}}
}

// Clone returns a structural deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind}
	if n.Attrs != nil {
		out.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Diagnostic records a non-fatal parse problem. The parser never fails;
// malformed input degrades to best-effort nodes plus one of these.
type Diagnostic struct {
	Line    int // 1-based source line
	Message string
}

// Document is the ordered sequence of top-level nodes produced by one
// Parse call. It is immutable after parsing; the layout engine only
// reads it.
type Document struct {
	Nodes       []*Node
	Diagnostics []Diagnostic
}
