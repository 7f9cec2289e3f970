package underlog

import (
	"bytes"
	"context"
	"os/exec"
)

// execRunner implements CommandRunner using os/exec. The context
// bounds the subprocess lifetime.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
