package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_DefaultSingleCycle(t *testing.T) {
	out, err := executeCommand(t, "run", "testdata/gate.ir.json")
	require.NoError(t, err)

	assert.Equal(t, "cycle 1\n  coils: c=false\n", out)
}

func TestRun_Script_Text(t *testing.T) {
	out, err := executeCommand(t, "run", "testdata/gate.ir.json", "--inputs", "testdata/script.yaml")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "run-script-text", []byte(out))
}

func TestRun_Script_JSON(t *testing.T) {
	out, err := executeCommand(t, "run", "--format", "json", "testdata/gate.ir.json", "--inputs", "testdata/script.yaml")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "run-script-json", []byte(out))
}

func TestRun_MissingProgram(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.ir.json")

	out, err := executeCommand(t, "run", missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E003")
}

func TestRun_InvalidProgram(t *testing.T) {
	out, err := executeCommand(t, "run", "testdata/undriven.ir.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E003")
}

func TestRun_MissingScript(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	out, err := executeCommand(t, "run", "testdata/gate.ir.json", "--inputs", missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E001")
}

func TestRun_ScriptWithUnknownSignal(t *testing.T) {
	out, err := executeCommand(t, "run", "testdata/gate.ir.json", "--inputs", "testdata/bad-signal.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E004")
	assert.Contains(t, out, "ghost")
}
