// Package execx runs external commands synchronously, capturing their full
// stdout and stderr before returning control to the caller.
package execx

import (
	"bytes"
	"fmt"
	"os/exec"
)

// Result holds the captured output of a completed command.
type Result struct {
	Stdout string
	Stderr string
}

// Command is a shell command plus its captured output after execution.
type Command struct {
	cmdLine string
	result  Result
}

// NewCommand returns a Command which will run cmdLine through the shell.
func NewCommand(cmdLine string) *Command {
	return &Command{cmdLine: cmdLine}
}

// String returns the command line.
func (c *Command) String() string {
	return c.cmdLine
}

// Stdout returns the captured standard output of the last execution.
func (c *Command) Stdout() string {
	return c.result.Stdout
}

// Stderr returns the captured standard error of the last execution.
func (c *Command) Stderr() string {
	return c.result.Stderr
}

// Execute runs the command and waits for it to complete. Output is captured
// in full regardless of the outcome. A nonzero exit status is returned as an
// error wrapping the underlying exec error.
func (c *Command) Execute() error {
	cmd := exec.Command("sh", "-c", c.cmdLine)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	c.result = Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		return fmt.Errorf("command %q failed: %w", c.cmdLine, err)
	}

	return nil
}
