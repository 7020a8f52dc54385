package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with the given args and returns
// captured stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestValidate_ValidProgram_Text(t *testing.T) {
	out, err := executeCommand(t, "validate", "testdata/gate.ir.json")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "validate-gate-text", []byte(out))
}

func TestValidate_ValidProgram_JSON(t *testing.T) {
	out, err := executeCommand(t, "validate", "--format", "json", "testdata/gate.ir.json")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "validate-gate-json", []byte(out))
}

func TestValidate_UndrivenCoil_Text(t *testing.T) {
	out, err := executeCommand(t, "validate", "testdata/undriven.ir.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	newGoldie(t).Assert(t, "validate-undriven-text", []byte(out))
}

func TestValidate_UndrivenCoil_JSON(t *testing.T) {
	out, err := executeCommand(t, "validate", "--format", "json", "testdata/undriven.ir.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	newGoldie(t).Assert(t, "validate-undriven-json", []byte(out))
}

func TestValidate_MalformedPayload(t *testing.T) {
	out, err := executeCommand(t, "validate", "testdata/malformed.ir.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E002")
}

func TestValidate_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.ir.json")

	out, err := executeCommand(t, "validate", missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E001")
}

func TestValidate_InvalidFormatFlag(t *testing.T) {
	_, err := executeCommand(t, "validate", "--format", "xml", "testdata/gate.ir.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
