// Package underlog converts a line-oriented markup language into
// fixed-size, absolutely positioned pages suitable for vector-graphics
// rendering and paged PDF export.
//
// # Quick Start
//
// Create a service and render markup into pages:
//
//	svc, err := underlog.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := svc.Render(ctx, underlog.Input{
//	    Markup: "# Introduction\n\nHello, world.",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("pages.svg", []byte(result.SVG), 0644)
//
// The result carries the parsed Document, the positioned Pages, the
// table-of-contents entries, and the serialized multi-page SVG.
//
// # Pipeline
//
// Rendering follows these stages:
//
//  1. Parsing: a line classifier dispatches to per-rule parsers
//     (headings, images, fenced code, tables, lists, paragraphs).
//     Parsing is total; malformed input degrades to best-effort nodes
//     plus diagnostics.
//  2. Layout: a numbering pre-pass computes heading display texts and
//     collects TOC entries, then a rendering pass replays the same
//     numbering while placing primitives and back-patching TOC pages.
//  3. Serialization: each page becomes one SVG document with a
//     background rectangle, text elements and image references.
//  4. Optional PDF conversion through the external svg2pdf and
//     ghostscript tool chain.
//
// # Images
//
// Image dimensions are resolved asynchronously through a per-project
// cache with single-flight deduplication. A pass never blocks on an
// unresolved image: it lays out a deterministic placeholder and a
// later Render picks up the resolved size. Use ResolveImages to block
// until all declarations have terminal states before re-rendering.
//
// # Configuration
//
// Layout parameters (page geometry, fonts, the justification
// threshold, the front-matter page offset) live in Config, loadable
// from YAML via LoadConfig. Customize the service with functional
// options:
//
//	svc, err := underlog.New(
//	    underlog.WithConfig(cfg),
//	    underlog.WithTimeout(2 * time.Minute),
//	)
//
// # Text Metrics
//
// The default measurer uses the embedded Go fonts through x/image
// opentype faces. Widths are stable within a process but not bit-exact
// against browser text shaping; layouts produced here and in a browser
// editor may paginate slightly differently.
package underlog
