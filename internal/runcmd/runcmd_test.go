package runcmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/ember/internal/runcmd"
)

func newStdio(stdin string) (mainer.Stdio, *bytes.Buffer, *bytes.Buffer) {
	var out, errs bytes.Buffer
	return mainer.Stdio{
		Stdin:  strings.NewReader(stdin),
		Stdout: &out,
		Stderr: &errs,
	}, &out, &errs
}

func TestRunFileSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.ember")
	require.NoError(t, os.WriteFile(path, []byte("print 1 + 2;\n"), 0o600))

	stdio, out, errs := newStdio("")
	var c runcmd.Cmd
	code := c.Main([]string{"ember", path}, stdio)

	assert.Equal(t, mainer.Success, code)
	assert.Equal(t, "3\n", out.String())
	assert.Empty(t, errs.String())
}

func TestRunFileCompileError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ember")
	require.NoError(t, os.WriteFile(path, []byte("print ;\n"), 0o600))

	stdio, _, errs := newStdio("")
	var c runcmd.Cmd
	code := c.Main([]string{"ember", path}, stdio)

	assert.EqualValues(t, 65, code)
	assert.NotEmpty(t, errs.String())
}

func TestRunFileRuntimeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ember")
	require.NoError(t, os.WriteFile(path, []byte("print x;\n"), 0o600))

	stdio, _, errs := newStdio("")
	var c runcmd.Cmd
	code := c.Main([]string{"ember", path}, stdio)

	assert.EqualValues(t, 70, code)
	assert.Contains(t, errs.String(), "Undefined variable 'x'")
}

func TestRunMissingFileIsIOError(t *testing.T) {
	stdio, _, errs := newStdio("")
	var c runcmd.Cmd
	code := c.Main([]string{"ember", filepath.Join(t.TempDir(), "missing.ember")}, stdio)

	assert.EqualValues(t, 74, code)
	assert.NotEmpty(t, errs.String())
}

func TestTooManyArgumentsIsUsageError(t *testing.T) {
	stdio, _, errs := newStdio("")
	var c runcmd.Cmd
	code := c.Main([]string{"ember", "a.ember", "b.ember"}, stdio)

	assert.EqualValues(t, 64, code)
	assert.NotEmpty(t, errs.String())
}

func TestREPLEchoesEachLineIndependently(t *testing.T) {
	stdio, out, errs := newStdio("print 1 + 1;\nprint 2 + 2;\n")
	var c runcmd.Cmd
	code := c.Main([]string{"ember"}, stdio)

	assert.Equal(t, mainer.Success, code)
	assert.Equal(t, ">> 2\n>> 4\n>> \n", out.String())
	assert.Empty(t, errs.String())
}

func TestVersionFlag(t *testing.T) {
	stdio, out, _ := newStdio("")
	c := runcmd.Cmd{BuildVersion: "1.0.0", BuildDate: "2026-07-31"}
	code := c.Main([]string{"ember", "-v"}, stdio)

	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, out.String(), "1.0.0")
}
