package underlog

import "strings"

// wrappedLine is one laid-out line of a text run. WordSpacing is the
// extra spacing distributed into each inter-word gap on top of the
// natural single space; Natural is the unjustified line width.
type wrappedLine struct {
	Text        string
	X           float64
	WordSpacing float64
	Natural     float64
}

// wrapParams carries everything the justifier needs for one run.
type wrapParams struct {
	Measurer         TextMeasurer
	FontSize         float64
	Weight           string
	Family           string
	X                float64 // left edge of the run
	Width            float64 // available width
	FirstIndent      float64 // extra leading indent on the first line
	Centered         bool
	JustifyLastRatio float64 // natural/available threshold for the final line
}

// wrapText splits a run on whitespace and greedily packs words into
// lines. Every line except a short final remainder is stretched so its
// inter-word gaps fill the available width; the final line keeps
// natural spacing unless it already covers the configured fraction of
// the width. Centered runs always keep natural spacing and recompute
// their starting X. An empty run emits zero lines.
func wrapText(text string, p wrapParams) []wrappedLine {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	measure := func(s string) float64 {
		return p.Measurer.Measure(s, p.FontSize, p.Weight, p.Family)
	}
	spaceWidth := measure(" ")

	var lines []wrappedLine
	i := 0
	first := true
	for i < len(words) {
		indent := 0.0
		if first {
			indent = p.FirstIndent
		}
		avail := p.Width - indent

		// Greedy packing: accumulate word-plus-trailing-space widths,
		// accepting a word while the line's natural extent still fits.
		var packed float64
		n := 0
		for i+n < len(words) {
			w := words[i+n]
			if n > 0 && packed+measure(w) > avail {
				break
			}
			packed += measure(w + " ")
			n++
		}

		lineWords := words[i : i+n]
		i += n

		natural := float64(len(lineWords)-1) * spaceWidth
		for _, w := range lineWords {
			natural += measure(w)
		}

		line := wrappedLine{
			Text:    strings.Join(lineWords, " "),
			X:       p.X + indent,
			Natural: natural,
		}

		last := i >= len(words)
		gaps := len(lineWords) - 1
		switch {
		case p.Centered:
			line.X = p.X + indent + (avail-natural)/2
		case gaps == 0:
			// single word, nothing to stretch
		case last && natural < p.JustifyLastRatio*avail:
			// short remainder keeps natural spacing
		default:
			line.WordSpacing = (avail - natural) / float64(gaps)
		}

		lines = append(lines, line)
		first = false
	}
	return lines
}
