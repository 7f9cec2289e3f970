package underlog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Service orchestrates the markup-to-pages pipeline: parse, layout,
// serialize, and optionally the downstream PDF conversion. One Service
// is shared by all requests; dimension caches are process-wide and
// keyed per project.
type Service struct {
	cfg         serviceConfig
	layout      Config
	measurer    TextMeasurer
	converter   PDFConverter
	resolverFor func(projectID int64) ImageResolver

	mu     sync.Mutex
	caches map[int64]*DimensionCache

	rendering atomic.Bool
}

// New creates a Service with default configuration.
// Use options to customize behavior (e.g., WithConfig, WithTimeout).
func New(opts ...Option) (*Service, error) {
	s := &Service{
		cfg:    serviceConfig{timeout: defaultTimeout},
		layout: *DefaultConfig(),
		caches: make(map[int64]*DimensionCache),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.layout.Validate(); err != nil {
		return nil, err
	}
	if s.measurer == nil {
		m, err := NewGoFontMeasurer()
		if err != nil {
			return nil, fmt.Errorf("creating measurer: %w", err)
		}
		s.measurer = m
	}
	if s.converter == nil {
		s.converter = newExecPDFConverter()
	}
	if s.resolverFor == nil {
		s.resolverFor = func(int64) ImageResolver { return notFoundResolver{} }
	}
	return s, nil
}

// Render runs one full layout pass: parse, layout, serialize. Passes
// are serialized by an in-flight guard; a call arriving while another
// pass runs is dropped with ErrRenderInFlight rather than queued; the
// caller's next periodic trigger picks up the latest content. A pass
// is never cancelled mid-flight: pagination and TOC integrity depend
// on it completing atomically over the whole document.
func (s *Service) Render(ctx context.Context, input Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.rendering.CompareAndSwap(false, true) {
		return nil, ErrRenderInFlight
	}
	defer s.rendering.Store(false)

	doc := Parse(input.Markup)

	cfg := s.layout
	if input.HrefBase != "" {
		cfg.ImageHrefPrefix = input.HrefBase
	}

	pages, toc := Layout(doc, &cfg, s.measurer, s.cacheFor(input.ProjectID))
	return &Result{
		Document: doc,
		Pages:    pages,
		TOC:      toc,
		SVG:      SerializePages(pages),
	}, nil
}

// ResolveImages blocks until every image declared in the document has
// a terminal cache state (resolved or failed), so that a subsequent
// Render sees final dimensions. Failures are not errors here; they
// render as placeholders.
func (s *Service) ResolveImages(ctx context.Context, projectID int64, doc *Document) error {
	cache := s.cacheFor(projectID)
	for _, n := range doc.Nodes {
		if n.Kind != KindImage {
			continue
		}
		if _, err := cache.Resolve(ctx, n.Attr("name")); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Resolution failures stay in the cache as failed entries.
		}
	}
	return nil
}

// InvalidateImages drops cached dimensions after an image is renamed,
// replaced or deleted.
func (s *Service) InvalidateImages(projectID int64, names ...string) {
	s.mu.Lock()
	cache, ok := s.caches[projectID]
	s.mu.Unlock()
	if ok {
		cache.Invalidate(names...)
	}
}

// ConvertPDF feeds serialized SVG pages to the downstream conversion
// pipeline and returns the merged PDF bytes.
func (s *Service) ConvertPDF(ctx context.Context, svg string) ([]byte, error) {
	pages := SplitPages(svg)
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.timeout)
	defer cancel()

	pdf, err := s.converter.ToPDF(ctx, pages)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// cacheFor returns the project's dimension cache, creating it with the
// configured resolver on first use.
func (s *Service) cacheFor(projectID int64) *DimensionCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.caches[projectID]
	if !ok {
		cache = NewDimensionCache(s.resolverFor(projectID))
		s.caches[projectID] = cache
	}
	return cache
}
