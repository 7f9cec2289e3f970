package underlog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeConverter records its input and returns canned bytes.
type fakeConverter struct {
	pages []string
	pdf   []byte
	err   error
}

func (c *fakeConverter) ToPDF(_ context.Context, svgPages []string) ([]byte, error) {
	c.pages = svgPages
	return c.pdf, c.err
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{WithMeasurer(fixedMeasurer{1})}
	svc, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	if svc.cfg.timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", svc.cfg.timeout, defaultTimeout)
	}
	if svc.converter == nil || svc.resolverFor == nil {
		t.Error("defaults not populated")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.PageWidth = 0
	if _, err := New(WithConfig(cfg)); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("error = %v, want ErrInvalidPageSize", err)
	}
}

func TestWithTimeout_PanicsOnNonPositive(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("want panic for non-positive timeout")
		}
	}()
	WithTimeout(0)
}

func TestService_RenderEmptyMarkup(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	result, err := svc.Render(context.Background(), Input{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Pages) != 1 {
		t.Fatalf("got %d pages, want 1 blank page", len(result.Pages))
	}
	if !strings.Contains(result.SVG, "<svg") {
		t.Error("SVG output missing page markup")
	}
	if len(result.Document.Nodes) != 0 {
		t.Errorf("document has %d nodes", len(result.Document.Nodes))
	}
}

func TestService_RenderPipeline(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	result, err := svc.Render(context.Background(), Input{
		Markup: "# Title\n\nA paragraph.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.TOC) != 1 || result.TOC[0].Text != "1 TITLE" {
		t.Errorf("TOC = %+v", result.TOC)
	}
	if !strings.Contains(result.SVG, ">1 TITLE</text>") {
		t.Error("heading missing from serialized output")
	}
	if !strings.Contains(result.SVG, ">A paragraph.</text>") {
		t.Error("paragraph missing from serialized output")
	}
}

func TestService_RenderHrefBase(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, WithImageResolver(func(int64) ImageResolver {
		return staticResolver{Dimensions{100, 100}}
	}))

	// Warm the cache so the second pass sees resolved dimensions.
	doc := Parse("image::a.png[]")
	if err := svc.ResolveImages(context.Background(), 7, doc); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Render(context.Background(), Input{
		Markup:    "image::a.png[]",
		ProjectID: 7,
		HrefBase:  "/api/projects/7/images/",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.SVG, `href="/api/projects/7/images/a.png"`) {
		t.Errorf("href base not applied:\n%s", result.SVG)
	}
}

func TestService_RenderInFlightDropped(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	svc.rendering.Store(true) // simulate a pass in progress

	_, err := svc.Render(context.Background(), Input{Markup: "text"})
	if !errors.Is(err, ErrRenderInFlight) {
		t.Fatalf("error = %v, want ErrRenderInFlight", err)
	}

	// The guard clears with the in-flight pass, not the dropped one.
	svc.rendering.Store(false)
	if _, err := svc.Render(context.Background(), Input{Markup: "text"}); err != nil {
		t.Fatalf("render after release: %v", err)
	}
}

func TestService_RenderCancelledContext(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Render(ctx, Input{Markup: "text"}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	// A rejected call must not leave the guard set.
	if svc.rendering.Load() {
		t.Error("render guard left set after context rejection")
	}
}

func TestService_ResolveImagesTerminalStates(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, WithImageResolver(func(int64) ImageResolver {
		return notFoundResolver{}
	}))

	doc := Parse("image::a.png[]\n\nimage::b.png[]")
	if err := svc.ResolveImages(context.Background(), 1, doc); err != nil {
		t.Fatal(err)
	}
	cache := svc.cacheFor(1)
	for _, name := range []string{"a.png", "b.png"} {
		state, err := cache.State(name)
		if state != StateFailed {
			t.Errorf("%s state = %v, want failed", name, state)
		}
		if !errors.Is(err, ErrImageNotFound) {
			t.Errorf("%s error = %v, want ErrImageNotFound", name, err)
		}
	}
}

func TestService_InvalidateImages(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, WithImageResolver(func(int64) ImageResolver {
		return staticResolver{Dimensions{10, 10}}
	}))
	cache := svc.cacheFor(3)
	if _, err := cache.Resolve(context.Background(), "a.png"); err != nil {
		t.Fatal(err)
	}

	svc.InvalidateImages(3, "a.png")
	if state, _ := cache.State("a.png"); state != StateAbsent {
		t.Errorf("state = %v, want absent after invalidation", state)
	}

	// Unknown project is a no-op.
	svc.InvalidateImages(99, "a.png")
}

func TestService_ProjectCachesAreIsolated(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, WithImageResolver(func(int64) ImageResolver {
		return staticResolver{Dimensions{10, 10}}
	}))
	a := svc.cacheFor(1)
	b := svc.cacheFor(2)
	if a == b {
		t.Fatal("distinct projects share a cache")
	}
	if again := svc.cacheFor(1); again != a {
		t.Error("repeated cacheFor returns a different cache")
	}
}

func TestService_ConvertPDF(t *testing.T) {
	t.Parallel()

	fake := &fakeConverter{pdf: []byte("%PDF-1.5 fake")}
	svc := newTestService(t, WithConverter(fake), WithTimeout(time.Second))

	svg := "<svg>a</svg>\n<svg>b</svg>"
	pdf, err := svc.ConvertPDF(context.Background(), svg)
	if err != nil {
		t.Fatal(err)
	}
	if string(pdf) != "%PDF-1.5 fake" {
		t.Errorf("pdf = %q", pdf)
	}
	if len(fake.pages) != 2 {
		t.Errorf("converter received %d pages, want 2", len(fake.pages))
	}
}

func TestService_ConvertPDFNoPages(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, WithConverter(&fakeConverter{}))
	if _, err := svc.ConvertPDF(context.Background(), "no svg here"); !errors.Is(err, ErrNoPages) {
		t.Errorf("error = %v, want ErrNoPages", err)
	}
}

func TestService_ConvertPDFErrorPropagates(t *testing.T) {
	t.Parallel()

	fake := &fakeConverter{err: ErrPDFConversion}
	svc := newTestService(t, WithConverter(fake))
	if _, err := svc.ConvertPDF(context.Background(), "<svg/>"); !errors.Is(err, ErrPDFConversion) {
		t.Errorf("error = %v, want ErrPDFConversion", err)
	}
}
