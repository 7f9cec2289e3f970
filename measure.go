package underlog

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// TextMeasurer reports the advance width of a text run in pixels.
// Implementations are platform metrics providers; results are not
// required to be bit-exact across environments (document renderers and
// browsers shape text differently), only stable within one process.
type TextMeasurer interface {
	Measure(text string, fontSize float64, weight, family string) float64
}

// GoFontMeasurer measures text with the embedded Go fonts
// (regular, bold, mono) through x/image opentype faces. Faces are
// cached per (font, size) pair. Safe for concurrent use.
type GoFontMeasurer struct {
	mu    sync.Mutex
	fonts map[string]*sfnt.Font
	faces map[faceKey]font.Face
}

type faceKey struct {
	font string
	size float64
}

// NewGoFontMeasurer parses the embedded font set.
func NewGoFontMeasurer() (*GoFontMeasurer, error) {
	m := &GoFontMeasurer{
		fonts: make(map[string]*sfnt.Font, 3),
		faces: make(map[faceKey]font.Face),
	}
	for name, ttf := range map[string][]byte{
		"regular": goregular.TTF,
		"bold":    gobold.TTF,
		"mono":    gomono.TTF,
	} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("parsing %s font: %w", name, err)
		}
		m.fonts[name] = f
	}
	return m, nil
}

// Measure returns the advance width of text at the given size.
func (m *GoFontMeasurer) Measure(text string, fontSize float64, weight, family string) float64 {
	face, err := m.face(pickFont(weight, family), fontSize)
	if err != nil {
		// Face creation over the embedded fonts does not fail in
		// practice; fall back to a crude approximation anyway.
		return float64(len(text)) * fontSize * 0.5
	}
	return float64(font.MeasureString(face, text)) / 64
}

// pickFont maps (weight, family) onto one of the embedded fonts.
func pickFont(weight, family string) string {
	if strings.Contains(strings.ToLower(family), "mono") {
		return "mono"
	}
	if strings.EqualFold(weight, "bold") {
		return "bold"
	}
	return "regular"
}

func (m *GoFontMeasurer) face(name string, size float64) (font.Face, error) {
	key := faceKey{font: name, size: size}

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.faces[key]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(m.fonts[name], &opentype.FaceOptions{
		Size:    size,
		DPI:     72, // 1pt == 1px so Size is the pixel size
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	m.faces[key] = f
	return f, nil
}
