package underlog

import "time"

// Page is one fixed-size output page: a bounds rectangle plus an
// ordered sequence of draw primitives. Pages are created by the layout
// engine and never mutated afterwards.
type Page struct {
	Width      float64
	Height     float64
	Primitives []Primitive
}

// Clone returns a structural deep copy of the page.
func (p *Page) Clone() *Page {
	out := &Page{Width: p.Width, Height: p.Height}
	out.Primitives = make([]Primitive, len(p.Primitives))
	copy(out.Primitives, p.Primitives)
	return out
}

// Primitive is a tagged variant over the drawable element types.
// Exactly TextRun and ImageRef implement it.
type Primitive interface {
	isPrimitive()
}

// TextRun is one absolutely positioned line of text.
type TextRun struct {
	X           float64
	Y           float64
	FontSize    float64
	Family      string
	Weight      string
	WordSpacing float64 // extra per-gap spacing on top of the natural space
	Content     string
}

func (TextRun) isPrimitive() {}

// ImageRef is one absolutely positioned image reference. Href is a
// usable handle for resolved images and a distinguishable placeholder
// ("#missing-image", "#broken-image", "#pending-image") otherwise.
type ImageRef struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Href   string
}

func (ImageRef) isPrimitive() {}

// TOCEntry is one table-of-contents line. Page stays -1 until the
// rendering pass back-patches it; entries are matched by their
// (Text, Numbered, Level) tuple, first unresolved occurrence wins.
type TOCEntry struct {
	Text     string
	Numbered bool
	Level    int
	Page     int
}

// Input carries per-render parameters.
type Input struct {
	Markup    string // raw markup (may be empty; yields one blank page)
	ProjectID int64  // selects the image namespace; 0 means none
	HrefBase  string // prefix for resolved image hrefs (optional)
}

// Result is the outcome of one full layout pass.
type Result struct {
	Document *Document
	Pages    []*Page
	TOC      []TOCEntry
	SVG      string
}

// Option configures a Service.
type Option func(*Service)

// serviceConfig holds internal configuration for Service.
type serviceConfig struct {
	timeout time.Duration
}

// defaultTimeout bounds a single PDF conversion.
const defaultTimeout = 60 * time.Second

// WithTimeout sets the PDF conversion timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("underlog: WithTimeout duration must be positive")
	}
	return func(s *Service) {
		s.cfg.timeout = d
	}
}

// WithConfig replaces the default layout configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Service) {
		s.layout = *cfg
	}
}

// WithMeasurer replaces the default text measurer.
func WithMeasurer(m TextMeasurer) Option {
	return func(s *Service) {
		s.measurer = m
	}
}

// WithImageResolver sets the factory producing the dimension resolver
// for a given project. The default resolver reports every image as
// not found.
func WithImageResolver(factory func(projectID int64) ImageResolver) Option {
	return func(s *Service) {
		s.resolverFor = factory
	}
}

// WithConverter overrides the downstream SVG-to-PDF converter
// (e.g. by tests).
func WithConverter(c PDFConverter) Option {
	return func(s *Service) {
		s.converter = c
	}
}
