package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultCommandTimeout = 10 * time.Second

// Command pipes the transcript through an external program: text on stdin,
// normalized text on stdout.
type Command struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

func NewCommand(commandLine string) (*Command, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("normalizer command must not be empty")
	}
	return &Command{Name: fields[0], Args: fields[1:], Timeout: defaultCommandTimeout}, nil
}

func (c *Command) Normalize(ctx context.Context, text string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("normalizer command timed out: %w", runCtx.Err())
		}
		return "", fmt.Errorf("normalizer command: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" && strings.TrimSpace(text) != "" {
		return "", errors.New("normalizer command produced no output")
	}
	return out, nil
}
