package underlog

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Page geometry defaults: A4 at 96 dpi, in CSS pixels.
const (
	DefaultPageWidth  = 794.0
	DefaultPageHeight = 1123.0
	DefaultMargin     = 72.0
)

// Config holds every layout parameter, including the tunables the
// engine historically hardcoded (last-line justification threshold,
// front-matter page offset, image width fraction).
type Config struct {
	PageWidth  float64 `yaml:"pageWidth"`
	PageHeight float64 `yaml:"pageHeight"`

	MarginTop    float64 `yaml:"marginTop"`
	MarginBottom float64 `yaml:"marginBottom"`
	MarginLeft   float64 `yaml:"marginLeft"`
	MarginRight  float64 `yaml:"marginRight"`

	FontSize   float64 `yaml:"fontSize"`   // body text, px
	FontFamily string  `yaml:"fontFamily"` // e.g. "serif"

	// Heading font sizes as multiples of FontSize, index = level-1.
	// Levels beyond the slice use the last entry.
	HeadingScales []float64 `yaml:"headingScales"`

	CodeFontSize   float64 `yaml:"codeFontSize"`
	CodeLineHeight float64 `yaml:"codeLineHeight"`
	CodePadding    float64 `yaml:"codePadding"` // top and bottom of a block

	// A final wrapped line whose natural width covers at least this
	// fraction of the available width is justified like any other.
	JustifyLastLineRatio float64 `yaml:"justifyLastLineRatio"`

	// Added to the physical page index for footers and TOC entries,
	// accounting for front-matter pages produced outside this flow.
	PageNumberOffset int `yaml:"pageNumberOffset"`

	ImageWidthFraction float64 `yaml:"imageWidthFraction"` // of the line width
	PlaceholderAspect  float64 `yaml:"placeholderAspect"`  // height/width while unresolved
	BrokenAspect       float64 `yaml:"brokenAspect"`       // height/width after a failure

	ListIndent     float64 `yaml:"listIndent"`     // per nesting level
	ListTextIndent float64 `yaml:"listTextIndent"` // marker-to-text gap
	BulletGlyph    string  `yaml:"bulletGlyph"`

	TableRowHeight float64 `yaml:"tableRowHeight"`

	// Prefix prepended to resolved image hrefs ("" keeps bare names).
	ImageHrefPrefix string `yaml:"imageHrefPrefix"`
}

// DefaultConfig returns the layout parameters matching the original
// renderer.
func DefaultConfig() *Config {
	return &Config{
		PageWidth:            DefaultPageWidth,
		PageHeight:           DefaultPageHeight,
		MarginTop:            DefaultMargin,
		MarginBottom:         DefaultMargin,
		MarginLeft:           DefaultMargin,
		MarginRight:          DefaultMargin,
		FontSize:             16,
		FontFamily:           "serif",
		HeadingScales:        []float64{2.0, 1.5, 1.25, 1.1},
		CodeFontSize:         13,
		CodeLineHeight:       17,
		CodePadding:          10,
		JustifyLastLineRatio: 0.8,
		PageNumberOffset:     1,
		ImageWidthFraction:   0.8,
		PlaceholderAspect:    0.75,
		BrokenAspect:         0.5,
		ListIndent:           24,
		ListTextIndent:       20,
		BulletGlyph:          "•",
		TableRowHeight:       28,
		ImageHrefPrefix:      "",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.PageWidth <= 0 || c.PageHeight <= 0 {
		return fmt.Errorf("%w: %.1fx%.1f", ErrInvalidPageSize, c.PageWidth, c.PageHeight)
	}
	if c.MarginTop < 0 || c.MarginBottom < 0 || c.MarginLeft < 0 || c.MarginRight < 0 {
		return fmt.Errorf("%w: margins must be non-negative", ErrInvalidMargin)
	}
	if c.MarginLeft+c.MarginRight >= c.PageWidth || c.MarginTop+c.MarginBottom >= c.PageHeight {
		return fmt.Errorf("%w: margins leave no printable area", ErrInvalidMargin)
	}
	if c.FontSize <= 0 || c.CodeFontSize <= 0 {
		return fmt.Errorf("%w: font sizes must be positive", ErrInvalidFontSize)
	}
	if c.JustifyLastLineRatio <= 0 || c.JustifyLastLineRatio > 1 {
		return fmt.Errorf("%w: justifyLastLineRatio %.2f (must be in (0,1])", ErrInvalidRatio, c.JustifyLastLineRatio)
	}
	if c.ImageWidthFraction <= 0 || c.ImageWidthFraction > 1 {
		return fmt.Errorf("%w: imageWidthFraction %.2f (must be in (0,1])", ErrInvalidRatio, c.ImageWidthFraction)
	}
	if c.PlaceholderAspect <= 0 || c.BrokenAspect <= 0 {
		return fmt.Errorf("%w: placeholder aspects must be positive", ErrInvalidRatio)
	}
	return nil
}

// LoadConfig reads a YAML layout configuration. Absent fields keep
// their defaults; unknown fields are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// lineHeight is the vertical advance for one wrapped text line.
func (c *Config) lineHeight(fontSize float64) float64 {
	return fontSize * 1.5
}

// headingSize returns the font size for a heading level.
func (c *Config) headingSize(level int) float64 {
	scales := c.HeadingScales
	if len(scales) == 0 {
		return c.FontSize
	}
	if level < 1 {
		level = 1
	}
	if level > len(scales) {
		level = len(scales)
	}
	return c.FontSize * scales[level-1]
}
