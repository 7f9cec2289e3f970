package underlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner records invocations and simulates the tool chain: each
// svg2pdf call writes its output file, the gs call writes out.pdf.
type fakeRunner struct {
	calls   []string
	failOn  string // command name that should fail, "" for none
	pdfBody []byte
}

func (r *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (string, string, error) {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	if name == r.failOn {
		return "", "simulated failure", errors.New("exit status 1")
	}
	switch name {
	case "svg2pdf":
		out := args[len(args)-1]
		if err := os.WriteFile(filepath.Join(dir, out), []byte("page"), 0o600); err != nil {
			return "", "", err
		}
	case "gs":
		if err := os.WriteFile(filepath.Join(dir, "out.pdf"), r.pdfBody, 0o600); err != nil {
			return "", "", err
		}
	}
	return "", "", nil
}

func TestExecPDFConverter_ToPDF(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{pdfBody: []byte("%PDF merged")}
	c := &execPDFConverter{runner: runner}

	pdf, err := c.ToPDF(context.Background(), []string{"<svg>1</svg>", "<svg>2</svg>"})
	if err != nil {
		t.Fatal(err)
	}
	if string(pdf) != "%PDF merged" {
		t.Errorf("pdf = %q", pdf)
	}

	if len(runner.calls) != 3 {
		t.Fatalf("calls = %v, want 2 conversions plus 1 merge", runner.calls)
	}
	if runner.calls[0] != "svg2pdf input_1.svg input_1.pdf" {
		t.Errorf("first call = %q", runner.calls[0])
	}
	if runner.calls[1] != "svg2pdf input_2.svg input_2.pdf" {
		t.Errorf("second call = %q", runner.calls[1])
	}
	merge := runner.calls[2]
	if !strings.HasPrefix(merge, "gs ") {
		t.Fatalf("merge call = %q", merge)
	}
	for _, want := range []string{"-sDEVICE=pdfwrite", "-sOutputFile=out.pdf", "input_1.pdf input_2.pdf"} {
		if !strings.Contains(merge, want) {
			t.Errorf("merge call missing %q: %q", want, merge)
		}
	}
}

func TestExecPDFConverter_EmptyInput(t *testing.T) {
	t.Parallel()

	c := &execPDFConverter{runner: &fakeRunner{}}
	if _, err := c.ToPDF(context.Background(), nil); !errors.Is(err, ErrNoPages) {
		t.Errorf("error = %v, want ErrNoPages", err)
	}
}

func TestExecPDFConverter_ToolFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		failOn string
	}{
		{name: "page conversion fails", failOn: "svg2pdf"},
		{name: "merge fails", failOn: "gs"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := &execPDFConverter{runner: &fakeRunner{failOn: tt.failOn}}
			_, err := c.ToPDF(context.Background(), []string{"<svg/>"})
			if !errors.Is(err, ErrPDFConversion) {
				t.Fatalf("error = %v, want ErrPDFConversion", err)
			}
			if !strings.Contains(err.Error(), "simulated failure") {
				t.Errorf("stderr not surfaced: %v", err)
			}
		})
	}
}

func TestExecPDFConverter_CleansTempFiles(t *testing.T) {
	t.Parallel()

	var dirs []string
	runner := &fakeRunner{pdfBody: []byte("x")}
	c := &execPDFConverter{runner: runnerFunc(func(ctx context.Context, dir, name string, args ...string) (string, string, error) {
		dirs = append(dirs, dir)
		return runner.Run(ctx, dir, name, args...)
	})}

	if _, err := c.ToPDF(context.Background(), []string{"<svg/>"}); err != nil {
		t.Fatal(err)
	}
	if len(dirs) == 0 {
		t.Fatal("runner never invoked")
	}
	if _, err := os.Stat(dirs[0]); !os.IsNotExist(err) {
		t.Errorf("temp directory %s not removed: %v", dirs[0], err)
	}
}

// runnerFunc adapts a function to CommandRunner.
type runnerFunc func(ctx context.Context, dir, name string, args ...string) (string, string, error)

func (f runnerFunc) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	return f(ctx, dir, name, args...)
}

func TestGsArgsStable(t *testing.T) {
	t.Parallel()

	// The merge flags are part of the output contract.
	joined := strings.Join(gsArgs, " ")
	for _, want := range []string{
		"-dCompatibilityLevel=1.5",
		"-dDetectDuplicateImages",
		"-r150",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("gsArgs missing %q", want)
		}
	}
	if fmt.Sprint(gsArgs[len(gsArgs)-1]) != "-sOutputFile=out.pdf" {
		t.Errorf("output flag must come last before the page list, got %q", gsArgs[len(gsArgs)-1])
	}
}
