package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicProgram = `{
	"version": "0.1.0",
	"module": {
		"name": "basic",
		"signals": [{"name": "input_signal"}],
		"coils": [{"name": "output_coil"}],
		"rungs": [
			{
				"name": "r1",
				"guard": {"type": "contact", "name": "input_signal", "contact_type": "NO"},
				"actions": [{"type": "energise", "coil": "output_coil"}]
			}
		]
	}
}`

func TestLoad_BasicProgram(t *testing.T) {
	p, err := Load([]byte(basicProgram))
	require.NoError(t, err)

	assert.Equal(t, "basic", p.Name())
	assert.Equal(t, "0.1.0", p.Version())
	assert.Equal(t, []string{"input_signal"}, p.SignalNames())
	assert.Equal(t, []string{"output_coil"}, p.CoilNames())
	assert.Equal(t, 1, p.RungCount())
	assert.True(t, p.HasSignal("input_signal"))
	assert.True(t, p.HasCoil("output_coil"))
	assert.False(t, p.HasSignal("output_coil"))
	assert.False(t, p.HasCoil("nope"))
}

func TestLoad_InvalidJSON(t *testing.T) {
	_, err := Load([]byte("not json at all"))
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr), "syntax failure should be a ParseError, got %T", err)
}

func TestLoad_WrongShape(t *testing.T) {
	// Well-formed JSON whose shape the schema rejects.
	payloads := map[string]string{
		"missing module":    `{"version": "0.1.0"}`,
		"signals not list":  `{"version": "0.1.0", "module": {"name": "m", "signals": {}, "coils": [], "rungs": []}}`,
		"rung name numeric": `{"version": "0.1.0", "module": {"name": "m", "signals": [], "coils": [], "rungs": [{"name": 7, "guard": {"type": "const", "value": true}, "actions": []}]}}`,
	}

	for label, payload := range payloads {
		t.Run(label, func(t *testing.T) {
			_, err := Load([]byte(payload))
			require.Error(t, err)

			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr), "shape failure should be a ParseError, got %T", err)
		})
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode string
	}{
		{
			name: "duplicate signal",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}, {"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "contact", "name": "a"}, "actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeDuplicateSignal,
		},
		{
			name: "duplicate coil",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}, {"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "contact", "name": "a"}, "actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeDuplicateCoil,
		},
		{
			name: "unknown contact",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "contact", "name": "ghost"}, "actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeUnknownContact,
		},
		{
			name: "unknown action coil",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "contact", "name": "a"}, "actions": [{"type": "energise", "coil": "c"}, {"type": "energise", "coil": "ghost"}]}]}}`,
			wantCode: ErrCodeUnknownCoil,
		},
		{
			name: "undriven coil",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}, {"name": "orphan"}],
				"rungs": [{"name": "r", "guard": {"type": "contact", "name": "a"}, "actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeUndrivenCoil,
		},
		{
			name: "unknown guard type",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "nand"}, "actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeBadGuard,
		},
		{
			name: "unknown contact type",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "contact", "name": "a", "contact_type": "XX"}, "actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeBadGuard,
		},
		{
			name: "and without operands",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "and"}, "actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeBadGuard,
		},
		{
			name: "and mixing operands with left/right",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "and",
					"operands": [{"type": "contact", "name": "a"}],
					"left": {"type": "contact", "name": "a"},
					"right": {"type": "contact", "name": "a"}},
					"actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeBadGuard,
		},
		{
			name: "and missing right side",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "and",
					"left": {"type": "contact", "name": "a"}},
					"actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeBadGuard,
		},
		{
			name: "not without operand",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "not"}, "actions": [{"type": "energise", "coil": "c"}]}]}}`,
			wantCode: ErrCodeBadGuard,
		},
		{
			name: "unknown action type",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [{"name": "c"}],
				"rungs": [{"name": "r", "guard": {"type": "contact", "name": "a"}, "actions": [{"type": "explode", "coil": "c"}]}]}}`,
			wantCode: ErrCodeBadAction,
		},
		{
			name: "rung without actions",
			payload: `{"version": "0.1.0", "module": {"name": "m",
				"signals": [{"name": "a"}],
				"coils": [],
				"rungs": [{"name": "r", "guard": {"type": "contact", "name": "a"}, "actions": []}]}}`,
			wantCode: ErrCodeBadAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.payload))
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "want *LoadError, got %T: %v", err, err)
			assert.Equal(t, tt.wantCode, loadErr.Code)
		})
	}
}

func TestLoad_CyclicCoilDependency(t *testing.T) {
	// r1 reads coil y and drives x; r2 reads coil x and drives y.
	payload := `{"version": "0.1.0", "module": {"name": "m",
		"signals": [],
		"coils": [{"name": "x"}, {"name": "y"}],
		"rungs": [
			{"name": "r1", "guard": {"type": "contact", "name": "y"}, "actions": [{"type": "energise", "coil": "x"}]},
			{"name": "r2", "guard": {"type": "contact", "name": "x"}, "actions": [{"type": "energise", "coil": "y"}]}
		]}}`

	_, err := Load([]byte(payload))
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeRungCycle, loadErr.Code)
	assert.Contains(t, loadErr.Message, "->")
}

func TestLoad_SelfDependency(t *testing.T) {
	payload := `{"version": "0.1.0", "module": {"name": "m",
		"signals": [],
		"coils": [{"name": "x"}],
		"rungs": [
			{"name": "r1", "guard": {"type": "contact", "name": "x"}, "actions": [{"type": "energise", "coil": "x"}]}
		]}}`

	_, err := Load([]byte(payload))
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeRungCycle, loadErr.Code)
}

func TestLoad_PlanReordersForwardReference(t *testing.T) {
	// In document order, "reader" precedes "driver" but reads the coil
	// that "driver" energises. The plan must run driver first.
	payload := `{"version": "0.1.0", "module": {"name": "m",
		"signals": [{"name": "go"}],
		"coils": [{"name": "stage1"}, {"name": "stage2"}],
		"rungs": [
			{"name": "reader", "guard": {"type": "contact", "name": "stage1"}, "actions": [{"type": "energise", "coil": "stage2"}]},
			{"name": "driver", "guard": {"type": "contact", "name": "go"}, "actions": [{"type": "energise", "coil": "stage1"}]}
		]}}`

	p, err := Load([]byte(payload))
	require.NoError(t, err)

	plan := p.Plan()
	require.Len(t, plan, 2)
	assert.Equal(t, "driver", plan[0].Name)
	assert.Equal(t, "reader", plan[1].Name)
}

func TestLoad_PlanKeepsDeclarationOrderForIndependentRungs(t *testing.T) {
	payload := `{"version": "0.1.0", "module": {"name": "m",
		"signals": [{"name": "a"}, {"name": "b"}],
		"coils": [{"name": "x"}, {"name": "y"}],
		"rungs": [
			{"name": "first", "guard": {"type": "contact", "name": "a"}, "actions": [{"type": "energise", "coil": "x"}]},
			{"name": "second", "guard": {"type": "contact", "name": "b"}, "actions": [{"type": "energise", "coil": "y"}]}
		]}}`

	p, err := Load([]byte(payload))
	require.NoError(t, err)

	plan := p.Plan()
	require.Len(t, plan, 2)
	assert.Equal(t, "first", plan[0].Name)
	assert.Equal(t, "second", plan[1].Name)
}

func TestLoad_NormalizesNamesToNFC(t *testing.T) {
	// "\u00e9" declared decomposed (U+0065 U+0301) and referenced
	// precomposed (U+00E9) must resolve to one entry.
	payload := `{"version": "0.1.0", "module": {"name": "m",
		"signals": [{"name": "cafe\u0301"}],
		"coils": [{"name": "c"}],
		"rungs": [{"name": "r", "guard": {"type": "contact", "name": "caf\u00e9"}, "actions": [{"type": "energise", "coil": "c"}]}]}}`

	p, err := Load([]byte(payload))
	require.NoError(t, err)

	assert.True(t, p.HasSignal("caf\u00e9"), "precomposed lookup")
	assert.True(t, p.HasSignal("cafe\u0301"), "decomposed lookup")
	assert.Equal(t, []string{"caf\u00e9"}, p.SignalNames())
}

func TestProgram_AccessorsCopy(t *testing.T) {
	p, err := Load([]byte(basicProgram))
	require.NoError(t, err)

	names := p.SignalNames()
	names[0] = "mutated"
	assert.Equal(t, []string{"input_signal"}, p.SignalNames(), "SignalNames must return a copy")

	coils := p.CoilNames()
	coils[0] = "mutated"
	assert.Equal(t, []string{"output_coil"}, p.CoilNames(), "CoilNames must return a copy")
}
