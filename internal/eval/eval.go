// Package eval computes one scan cycle: given a compiled program and
// the current signal values, it produces a value for every declared
// coil.
//
// RunCycle is a pure function of its inputs. All mutation of durable VM
// state happens in the caller; the evaluator works on its own scratch
// snapshot and hands it back.
package eval

import (
	"fmt"

	"github.com/charta-io/charta/internal/ir"
	"github.com/charta-io/charta/internal/state"
)

// InternalError reports an inconsistency the load-time validator should
// have made impossible, such as a contact resolving to nothing at
// runtime. It indicates a bug in validation, not a bad program.
type InternalError struct {
	Rung    string
	Message string
}

func (e *InternalError) Error() string {
	if e.Rung != "" {
		return fmt.Sprintf("internal evaluation fault in rung %q: %s", e.Rung, e.Message)
	}
	return fmt.Sprintf("internal evaluation fault: %s", e.Message)
}

// RunCycle evaluates every rung of the program once, in the program's
// precomputed plan order, and returns the resulting coil snapshot.
//
// Coils start the cycle false; a rung whose guard is true energises its
// target coils. Because the plan respects coil data dependencies, a
// contact reading a coil always sees the value driven earlier in the
// same cycle. Identical inputs produce identical snapshots.
func RunCycle(p *ir.Program, signals map[string]bool) (state.Snapshot, error) {
	coils := make(state.Snapshot, len(p.CoilNames()))
	for _, name := range p.CoilNames() {
		coils[name] = false
	}

	for _, rung := range p.Plan() {
		on, err := evalGuard(rung.Name, rung.Guard, signals, coils)
		if err != nil {
			return nil, err
		}
		if !on {
			continue
		}
		for _, coil := range rung.Coils {
			coils[coil] = true
		}
	}

	return coils, nil
}

// evalGuard resolves a guard tree to a boolean.
//
// Contact resolution prefers coils over signals: a name declared in
// both sets refers to the derived value computed this cycle.
func evalGuard(rungName string, g ir.Guard, signals map[string]bool, coils state.Snapshot) (bool, error) {
	switch node := g.(type) {
	case ir.Contact:
		value, ok := coils[node.Name]
		if !ok {
			value, ok = signals[node.Name]
		}
		if !ok {
			return false, &InternalError{
				Rung:    rungName,
				Message: fmt.Sprintf("contact %q resolved to neither coil nor signal", node.Name),
			}
		}
		if node.Closed {
			return !value, nil
		}
		return value, nil

	case ir.AndGate:
		for _, op := range node.Operands {
			on, err := evalGuard(rungName, op, signals, coils)
			if err != nil {
				return false, err
			}
			if !on {
				return false, nil
			}
		}
		return true, nil

	case ir.OrGate:
		for _, op := range node.Operands {
			on, err := evalGuard(rungName, op, signals, coils)
			if err != nil {
				return false, err
			}
			if on {
				return true, nil
			}
		}
		return false, nil

	case ir.XorGate:
		result := false
		for _, op := range node.Operands {
			on, err := evalGuard(rungName, op, signals, coils)
			if err != nil {
				return false, err
			}
			if on {
				result = !result
			}
		}
		return result, nil

	case ir.NotGate:
		on, err := evalGuard(rungName, node.Operand, signals, coils)
		if err != nil {
			return false, err
		}
		return !on, nil

	case ir.Const:
		return node.Value, nil

	default:
		return false, &InternalError{
			Rung:    rungName,
			Message: fmt.Sprintf("unknown guard node %T", g),
		}
	}
}
