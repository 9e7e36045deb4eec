package execx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommand_Execute(t *testing.T) {
	cmd := NewCommand("echo hello world")
	assert.NoError(t, cmd.Execute())
	assert.Equal(t, "hello world\n", cmd.Stdout())
	assert.Empty(t, cmd.Stderr())
}

func TestCommand_ShellFeatures(t *testing.T) {
	// Pipelines and redirection run through the shell
	cmd := NewCommand("echo one && echo two 1>&2")
	assert.NoError(t, cmd.Execute())
	assert.Equal(t, "one\n", cmd.Stdout())
	assert.Equal(t, "two\n", cmd.Stderr())
}

func TestCommand_NonzeroExit(t *testing.T) {
	cmd := NewCommand("echo failing output; exit 3")
	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed")

	// Output is captured even when the command fails
	assert.Equal(t, "failing output\n", cmd.Stdout())
}

func TestCommand_String(t *testing.T) {
	cmd := NewCommand("true")
	assert.Equal(t, "true", cmd.String())
}
