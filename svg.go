package underlog

import (
	"fmt"
	"strings"
)

// The emitted attribute set is consumed bit-for-bit by the downstream
// svg2pdf/ghostscript pipeline; do not reorder or rename attributes.

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// SerializePage renders one page as a standalone SVG document: a
// fixed-size white background rectangle followed by one element per
// draw primitive, in order.
func SerializePage(p *Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">`,
		p.Width, p.Height, p.Width, p.Height)
	b.WriteByte('\n')
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%.0f" height="%.0f" fill="#ffffff"/>`, p.Width, p.Height)
	b.WriteByte('\n')

	for _, prim := range p.Primitives {
		switch v := prim.(type) {
		case TextRun:
			fmt.Fprintf(&b,
				`<text x="%.2f" y="%.2f" font-size="%.2f" font-family="%s" font-weight="%s" word-spacing="%.2f">%s</text>`,
				v.X, v.Y, v.FontSize, attrEscaper.Replace(v.Family), attrEscaper.Replace(v.Weight),
				v.WordSpacing, textEscaper.Replace(v.Content))
			b.WriteByte('\n')
		case ImageRef:
			fmt.Fprintf(&b,
				`<image x="%.2f" y="%.2f" width="%.2f" height="%.2f" href="%s"/>`,
				v.X, v.Y, v.Width, v.Height, attrEscaper.Replace(v.Href))
			b.WriteByte('\n')
		}
	}

	b.WriteString("</svg>")
	return b.String()
}

// SerializePages renders every page and joins them with newlines into
// the multi-page markup the conversion pipeline splits back apart.
func SerializePages(pages []*Page) string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = SerializePage(p)
	}
	return strings.Join(out, "\n")
}

// SplitPages cuts a multi-page markup string back into one document
// per "<svg" opening tag. Content before the first tag is discarded.
func SplitPages(svg string) []string {
	var pages []string
	for {
		start := strings.Index(svg, "<svg")
		if start < 0 {
			return pages
		}
		svg = svg[start:]
		end := strings.Index(svg[1:], "<svg")
		if end < 0 {
			pages = append(pages, strings.TrimSpace(svg))
			return pages
		}
		pages = append(pages, strings.TrimSpace(svg[:end+1]))
		svg = svg[end+1:]
	}
}
