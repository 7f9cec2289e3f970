package underlog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "zero page width",
			mutate:  func(c *Config) { c.PageWidth = 0 },
			wantErr: ErrInvalidPageSize,
		},
		{
			name:    "negative margin",
			mutate:  func(c *Config) { c.MarginLeft = -1 },
			wantErr: ErrInvalidMargin,
		},
		{
			name:    "margins swallow the page",
			mutate:  func(c *Config) { c.MarginLeft = 400; c.MarginRight = 400 },
			wantErr: ErrInvalidMargin,
		},
		{
			name:    "zero font size",
			mutate:  func(c *Config) { c.FontSize = 0 },
			wantErr: ErrInvalidFontSize,
		},
		{
			name:    "justify ratio above one",
			mutate:  func(c *Config) { c.JustifyLastLineRatio = 1.5 },
			wantErr: ErrInvalidRatio,
		},
		{
			name:    "justify ratio zero",
			mutate:  func(c *Config) { c.JustifyLastLineRatio = 0 },
			wantErr: ErrInvalidRatio,
		},
		{
			name:    "image fraction zero",
			mutate:  func(c *Config) { c.ImageWidthFraction = 0 },
			wantErr: ErrInvalidRatio,
		},
		{
			name:    "placeholder aspect zero",
			mutate:  func(c *Config) { c.PlaceholderAspect = 0 },
			wantErr: ErrInvalidRatio,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	writeFile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "layout.yaml")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("partial file keeps defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfig(writeFile(t, "fontSize: 20\npageNumberOffset: 3\n"))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.FontSize != 20 {
			t.Errorf("FontSize = %f, want 20", cfg.FontSize)
		}
		if cfg.PageNumberOffset != 3 {
			t.Errorf("PageNumberOffset = %d, want 3", cfg.PageNumberOffset)
		}
		if cfg.PageWidth != DefaultPageWidth {
			t.Errorf("PageWidth = %f, want default", cfg.PageWidth)
		}
		if cfg.JustifyLastLineRatio != 0.8 {
			t.Errorf("JustifyLastLineRatio = %f, want default", cfg.JustifyLastLineRatio)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig(writeFile(t, "fontSize: 20\nnotAField: 1\n"))
		if !errors.Is(err, ErrConfigParse) {
			t.Errorf("error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig(writeFile(t, "justifyLastLineRatio: 2.0\n"))
		if !errors.Is(err, ErrInvalidRatio) {
			t.Errorf("error = %v, want ErrInvalidRatio", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})
}

func TestHeadingSize(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	tests := []struct {
		level int
		want  float64
	}{
		{level: 1, want: 32},   // 16 * 2.0
		{level: 2, want: 24},   // 16 * 1.5
		{level: 4, want: 17.6}, // 16 * 1.1
		{level: 9, want: 17.6}, // clamped to the deepest scale
		{level: 0, want: 32},   // clamped up to level 1
	}
	for _, tt := range tests {
		if got := cfg.headingSize(tt.level); got != tt.want {
			t.Errorf("headingSize(%d) = %f, want %f", tt.level, got, tt.want)
		}
	}
}

func TestLineHeight(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if got := cfg.lineHeight(16); got != 24 {
		t.Errorf("lineHeight(16) = %f, want 24", got)
	}
}
