package ir

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// Raw document types mirroring the IR JSON shape. These exist only for
// decoding; Load compiles them into the immutable Program form.

type document struct {
	Version string    `json:"version"`
	Module  moduleDoc `json:"module"`
}

type moduleDoc struct {
	Name    string    `json:"name"`
	Signals []declDoc `json:"signals"`
	Coils   []declDoc `json:"coils"`
	Rungs   []rungDoc `json:"rungs"`
}

type declDoc struct {
	Name string `json:"name"`
}

type rungDoc struct {
	Name    string      `json:"name"`
	Guard   *guardDoc   `json:"guard"`
	Actions []actionDoc `json:"actions"`
}

// guardDoc is the union of every guard node shape. The original
// compiler emits binary gates in two spellings - an "operands" list or
// a "left"/"right" pair - and both must decode.
type guardDoc struct {
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	ContactType string     `json:"contact_type"`
	Value       *bool      `json:"value"`
	Operands    []guardDoc `json:"operands"`
	Left        *guardDoc  `json:"left"`
	Right       *guardDoc  `json:"right"`
	Operand     *guardDoc  `json:"operand"`
}

type actionDoc struct {
	Type string `json:"type"`
	Coil string `json:"coil"`
}

// Load parses, vets, and validates an IR payload.
//
// Syntax and shape failures return *ParseError; semantic failures
// return *LoadError. On success the returned Program is immutable and
// carries its evaluation plan.
func Load(payload []byte) (*Program, error) {
	if err := vetShape(payload); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &ParseError{Message: err.Error(), Cause: err}
	}

	return compile(&doc)
}

// vetShape checks the payload against the embedded CUE schema.
//
// The schema is compiled once per call; documents are small enough that
// caching the context is not worth the shared-state it would introduce.
func vetShape(payload []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		// The schema is embedded and fixed; failing to compile it is a
		// programming error, not a payload error.
		return fmt.Errorf("compile embedded IR schema: %w", err)
	}

	expr, err := cuejson.Extract("payload", payload)
	if err != nil {
		return &ParseError{Message: err.Error(), Cause: err}
	}

	val := ctx.BuildExpr(expr)
	if err := val.Err(); err != nil {
		return &ParseError{Message: err.Error(), Cause: err}
	}

	unified := schema.LookupPath(cue.ParsePath("#Document")).Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ParseError{Message: err.Error(), Cause: err}
	}

	return nil
}
