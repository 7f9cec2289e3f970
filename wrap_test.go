package underlog

import (
	"math"
	"testing"
)

// fixedMeasurer gives every byte the same width, which makes wrap
// geometry exactly predictable in tests.
type fixedMeasurer struct {
	charWidth float64
}

func (m fixedMeasurer) Measure(text string, _ float64, _, _ string) float64 {
	return float64(len(text)) * m.charWidth
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestWrapText_EmptyRun(t *testing.T) {
	t.Parallel()

	p := wrapParams{Measurer: fixedMeasurer{10}, Width: 100, JustifyLastRatio: 0.8}
	if got := wrapText("", p); got != nil {
		t.Errorf("empty text produced %d lines, want none", len(got))
	}
	if got := wrapText("   \t ", p); got != nil {
		t.Errorf("whitespace text produced %d lines, want none", len(got))
	}
}

func TestWrapText_ExactFitStaysOnOneLine(t *testing.T) {
	t.Parallel()

	// "aa bb cc" at 10px per byte has natural width 80: exactly the
	// available width. It must pack onto one line with no extra spacing.
	p := wrapParams{
		Measurer:         fixedMeasurer{10},
		Width:            80,
		JustifyLastRatio: 0.8,
		X:                5,
	}
	lines := wrapText("aa bb cc", p)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].Text != "aa bb cc" {
		t.Errorf("line text = %q", lines[0].Text)
	}
	if !approx(lines[0].WordSpacing, 0) {
		t.Errorf("WordSpacing = %f, want 0 for an exact fit", lines[0].WordSpacing)
	}
	if !approx(lines[0].X, 5) {
		t.Errorf("X = %f, want 5", lines[0].X)
	}
}

func TestWrapText_GreedyBreakAndJustify(t *testing.T) {
	t.Parallel()

	// Width 50 takes "aa bb" (natural 50) on the first line; "cc"
	// remains. The first line is justified (zero stretch here, it
	// already fills), the single-word remainder gets no spacing.
	p := wrapParams{
		Measurer:         fixedMeasurer{10},
		Width:            50,
		JustifyLastRatio: 0.8,
	}
	lines := wrapText("aa bb cc", p)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Text != "aa bb" || lines[1].Text != "cc" {
		t.Errorf("lines = %q, %q", lines[0].Text, lines[1].Text)
	}
	if !approx(lines[0].WordSpacing, 0) {
		t.Errorf("first line WordSpacing = %f, want 0", lines[0].WordSpacing)
	}
	if !approx(lines[1].WordSpacing, 0) {
		t.Errorf("single-word remainder WordSpacing = %f, want 0", lines[1].WordSpacing)
	}
}

func TestWrapText_LastLineThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		width       float64
		wantSpacing float64
	}{
		{
			// natural 80 >= 0.8*100: the final line is stretched like
			// any other, 20 extra across 2 gaps.
			name: "at threshold justified", width: 100, wantSpacing: 10,
		},
		{
			// natural 80 < 0.8*110 = 88: stays at natural spacing.
			name: "below threshold natural", width: 110, wantSpacing: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := wrapParams{
				Measurer:         fixedMeasurer{10},
				Width:            tt.width,
				JustifyLastRatio: 0.8,
			}
			lines := wrapText("aa bb cc", p)
			if len(lines) != 1 {
				t.Fatalf("got %d lines, want 1", len(lines))
			}
			if !approx(lines[0].WordSpacing, tt.wantSpacing) {
				t.Errorf("WordSpacing = %f, want %f", lines[0].WordSpacing, tt.wantSpacing)
			}
		})
	}
}

func TestWrapText_InteriorLinesJustified(t *testing.T) {
	t.Parallel()

	// Width 55: "aa bb" packs (next word would reach 80), natural 50,
	// 5 extra into one gap.
	p := wrapParams{
		Measurer:         fixedMeasurer{10},
		Width:            55,
		JustifyLastRatio: 0.8,
	}
	lines := wrapText("aa bb cc dd", p)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !approx(lines[0].WordSpacing, 5) {
		t.Errorf("interior line WordSpacing = %f, want 5", lines[0].WordSpacing)
	}
	if !approx(lines[0].Natural, 50) {
		t.Errorf("Natural = %f, want 50", lines[0].Natural)
	}
}

func TestWrapText_Centered(t *testing.T) {
	t.Parallel()

	p := wrapParams{
		Measurer:         fixedMeasurer{10},
		Width:            100,
		X:                20,
		Centered:         true,
		JustifyLastRatio: 0.8,
	}
	lines := wrapText("aa", p)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	// natural 20, centered inside 100 starting at 20: X = 20 + 40.
	if !approx(lines[0].X, 60) {
		t.Errorf("X = %f, want 60", lines[0].X)
	}
	if !approx(lines[0].WordSpacing, 0) {
		t.Errorf("centered line must keep natural spacing, got %f", lines[0].WordSpacing)
	}
}

func TestWrapText_FirstIndent(t *testing.T) {
	t.Parallel()

	// The indent narrows only the first line; later lines use the full
	// width and the original X.
	p := wrapParams{
		Measurer:         fixedMeasurer{10},
		Width:            50,
		X:                10,
		FirstIndent:      20,
		JustifyLastRatio: 0.8,
	}
	lines := wrapText("aa bb cc", p)
	if len(lines) < 2 {
		t.Fatalf("got %d lines, want at least 2", len(lines))
	}
	if !approx(lines[0].X, 30) {
		t.Errorf("first line X = %f, want 30", lines[0].X)
	}
	if lines[0].Text != "aa" {
		t.Errorf("first line = %q, want single word in narrowed width", lines[0].Text)
	}
	if !approx(lines[1].X, 10) {
		t.Errorf("second line X = %f, want 10", lines[1].X)
	}
}

func TestWrapText_OverlongWordPlacedAlone(t *testing.T) {
	t.Parallel()

	// A word wider than the line is never split; it occupies its own
	// line and overflows.
	p := wrapParams{
		Measurer:         fixedMeasurer{10},
		Width:            30,
		JustifyLastRatio: 0.8,
	}
	lines := wrapText("aaaaaa bb", p)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Text != "aaaaaa" {
		t.Errorf("first line = %q, want the overlong word alone", lines[0].Text)
	}
}
