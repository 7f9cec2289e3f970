package underlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// PDFConverter turns serialized SVG pages into a single paged PDF.
// The production implementation shells out to svg2pdf and ghostscript;
// it is abstracted so tests run without the binaries.
type PDFConverter interface {
	ToPDF(ctx context.Context, svgPages []string) ([]byte, error)
}

// CommandRunner abstracts command execution to enable testing without
// real subprocesses. Commands run with dir as the working directory.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout string, stderr string, err error)
}

// execPDFConverter converts pages with the external tool chain: one
// svg2pdf invocation per page, then a ghostscript merge.
type execPDFConverter struct {
	runner CommandRunner
}

// newExecPDFConverter creates a converter using a real command runner.
func newExecPDFConverter() *execPDFConverter {
	return &execPDFConverter{runner: &execRunner{}}
}

// gsArgs are the merge flags; changing them changes the output PDFs.
var gsArgs = []string{
	"-sDEVICE=pdfwrite",
	"-dCompatibilityLevel=1.5",
	"-dPDFSETTINGS=/default",
	"-dNOPAUSE", "-dQUIET", "-dBATCH",
	"-dDetectDuplicateImages",
	"-dCompressFonts=true",
	"-r150",
	"-sOutputFile=out.pdf",
}

// ToPDF writes each page to a temp directory, converts page by page,
// and merges the results. The temp directory is always cleaned up.
func (c *execPDFConverter) ToPDF(ctx context.Context, svgPages []string) ([]byte, error) {
	if len(svgPages) == 0 {
		return nil, ErrNoPages
	}

	tempDir, err := os.MkdirTemp("", "underlog-pdf-")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	pdfNames := make([]string, 0, len(svgPages))
	for i, svg := range svgPages {
		svgName := fmt.Sprintf("input_%d.svg", i+1)
		pdfName := fmt.Sprintf("input_%d.pdf", i+1)
		if err := os.WriteFile(filepath.Join(tempDir, svgName), []byte(svg), 0o600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", svgName, err)
		}
		if _, stderr, err := c.runner.Run(ctx, tempDir, "svg2pdf", svgName, pdfName); err != nil {
			return nil, fmt.Errorf("%w: converting page %d: %s: %v", ErrPDFConversion, i+1, stderr, err)
		}
		pdfNames = append(pdfNames, pdfName)
	}

	args := append(append([]string{}, gsArgs...), pdfNames...)
	if _, stderr, err := c.runner.Run(ctx, tempDir, "gs", args...); err != nil {
		return nil, fmt.Errorf("%w: merging pages: %s: %v", ErrPDFConversion, stderr, err)
	}

	pdf, err := os.ReadFile(filepath.Join(tempDir, "out.pdf"))
	if err != nil {
		return nil, fmt.Errorf("%w: reading merged output: %v", ErrPDFConversion, err)
	}
	return pdf, nil
}
