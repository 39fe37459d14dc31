package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs cmdString splitting arguments on whitespace, no shell involved.
// The trailing newline is trimmed from the output.
func Command(ctx context.Context, cmdString string) (string, error) {
	nameCmd := strings.SplitN(strings.TrimSpace(cmdString), " ", 2)
	if len(nameCmd) != 2 {
		return "", errors.New("wrong cmd: " + cmdString)
	}

	name := nameCmd[0]
	arg := strings.Fields(nameCmd[1])

	return run(exec.CommandContext(ctx, name, arg...))
}

// CommandPipe runs cmdString through bash, so pipes and redirections work.
func CommandPipe(ctx context.Context, cmdString string) (string, error) {
	return run(exec.CommandContext(ctx, "bash", "-c", cmdString))
}

func run(cmd *exec.Cmd) (string, error) {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var stout bytes.Buffer
	cmd.Stdout = &stout

	err := cmd.Run()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSuffix(stout.String(), "\n")
	return out, nil
}
