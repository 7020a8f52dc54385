package ir

import "fmt"

// compile builds a validated Program from a decoded document.
//
// Validation order: declarations first (duplicates), then per-rung
// guards and actions (references, arity), then whole-module rules
// (coil coverage, dependency cycles). The first violation aborts the
// load; no partially-built Program ever escapes.
func compile(doc *document) (*Program, error) {
	p := &Program{
		name:      doc.Module.Name,
		version:   doc.Version,
		signalSet: make(map[string]struct{}, len(doc.Module.Signals)),
		coilSet:   make(map[string]struct{}, len(doc.Module.Coils)),
	}

	for _, d := range doc.Module.Signals {
		name := Normalize(d.Name)
		if _, dup := p.signalSet[name]; dup {
			return nil, &LoadError{
				Code:    ErrCodeDuplicateSignal,
				Message: fmt.Sprintf("signal %q declared more than once", name),
			}
		}
		p.signalSet[name] = struct{}{}
		p.signals = append(p.signals, name)
	}

	for _, d := range doc.Module.Coils {
		name := Normalize(d.Name)
		if _, dup := p.coilSet[name]; dup {
			return nil, &LoadError{
				Code:    ErrCodeDuplicateCoil,
				Message: fmt.Sprintf("coil %q declared more than once", name),
			}
		}
		p.coilSet[name] = struct{}{}
		p.coils = append(p.coils, name)
	}

	driven := make(map[string]bool, len(p.coils))

	for _, rd := range doc.Module.Rungs {
		rung, err := compileRung(p, &rd)
		if err != nil {
			return nil, err
		}
		for _, coil := range rung.Coils {
			driven[coil] = true
		}
		p.rungs = append(p.rungs, rung)
	}

	// Every declared coil must be driven so a cycle always produces a
	// value for it. Checked in declaration order for a stable message.
	for _, coil := range p.coils {
		if !driven[coil] {
			return nil, &LoadError{
				Code:    ErrCodeUndrivenCoil,
				Message: fmt.Sprintf("coil %q is not driven by any rung", coil),
			}
		}
	}

	plan, err := buildPlan(p)
	if err != nil {
		return nil, err
	}
	p.plan = plan

	return p, nil
}

func compileRung(p *Program, rd *rungDoc) (Rung, error) {
	rung := Rung{Name: rd.Name}

	if rd.Guard == nil {
		return Rung{}, &LoadError{
			Code:    ErrCodeBadGuard,
			Message: "rung has no guard",
			Rung:    rd.Name,
		}
	}

	guard, err := compileGuard(p, rd.Name, rd.Guard)
	if err != nil {
		return Rung{}, err
	}
	rung.Guard = guard

	if len(rd.Actions) == 0 {
		return Rung{}, &LoadError{
			Code:    ErrCodeBadAction,
			Message: "rung has no actions",
			Rung:    rd.Name,
		}
	}

	for _, ad := range rd.Actions {
		if ad.Type != "energise" {
			return Rung{}, &LoadError{
				Code:    ErrCodeBadAction,
				Message: fmt.Sprintf("unknown action type %q", ad.Type),
				Rung:    rd.Name,
			}
		}
		coil := Normalize(ad.Coil)
		if _, ok := p.coilSet[coil]; !ok {
			return Rung{}, &LoadError{
				Code:    ErrCodeUnknownCoil,
				Message: fmt.Sprintf("action energises undeclared coil %q", coil),
				Rung:    rd.Name,
			}
		}
		rung.Coils = append(rung.Coils, coil)
	}

	return rung, nil
}

// compileGuard recursively compiles a guard node, resolving contact
// references against the declared sets as it goes.
func compileGuard(p *Program, rungName string, g *guardDoc) (Guard, error) {
	switch g.Type {
	case "contact":
		name := Normalize(g.Name)
		if name == "" {
			return nil, &LoadError{
				Code:    ErrCodeBadGuard,
				Message: "contact has no name",
				Rung:    rungName,
			}
		}
		_, isCoil := p.coilSet[name]
		_, isSignal := p.signalSet[name]
		if !isCoil && !isSignal {
			return nil, &LoadError{
				Code:    ErrCodeUnknownContact,
				Message: fmt.Sprintf("contact references undeclared name %q", name),
				Rung:    rungName,
			}
		}
		switch g.ContactType {
		case "", "NO":
			return Contact{Name: name}, nil
		case "NC":
			return Contact{Name: name, Closed: true}, nil
		default:
			return nil, &LoadError{
				Code:    ErrCodeBadGuard,
				Message: fmt.Sprintf("contact %q has unknown contact_type %q", name, g.ContactType),
				Rung:    rungName,
			}
		}

	case "and", "or", "xor":
		operands, err := compileOperands(p, rungName, g)
		if err != nil {
			return nil, err
		}
		switch g.Type {
		case "and":
			return AndGate{Operands: operands}, nil
		case "or":
			return OrGate{Operands: operands}, nil
		default:
			return XorGate{Operands: operands}, nil
		}

	case "not":
		if g.Operand == nil {
			return nil, &LoadError{
				Code:    ErrCodeBadGuard,
				Message: "not guard has no operand",
				Rung:    rungName,
			}
		}
		inner, err := compileGuard(p, rungName, g.Operand)
		if err != nil {
			return nil, err
		}
		return NotGate{Operand: inner}, nil

	case "const":
		if g.Value == nil {
			return nil, &LoadError{
				Code:    ErrCodeBadGuard,
				Message: "const guard has no value",
				Rung:    rungName,
			}
		}
		return Const{Value: *g.Value}, nil

	default:
		return nil, &LoadError{
			Code:    ErrCodeBadGuard,
			Message: fmt.Sprintf("unknown guard type %q", g.Type),
			Rung:    rungName,
		}
	}
}

// compileOperands gathers the children of a binary gate. The compiler
// front-end emits either an "operands" list or a "left"/"right" pair;
// a node carrying both is ambiguous and rejected.
func compileOperands(p *Program, rungName string, g *guardDoc) ([]Guard, error) {
	hasList := len(g.Operands) > 0
	hasPair := g.Left != nil || g.Right != nil

	if hasList && hasPair {
		return nil, &LoadError{
			Code:    ErrCodeBadGuard,
			Message: fmt.Sprintf("%s guard mixes operands list with left/right pair", g.Type),
			Rung:    rungName,
		}
	}

	var raw []*guardDoc
	switch {
	case hasList:
		for i := range g.Operands {
			raw = append(raw, &g.Operands[i])
		}
	case hasPair:
		if g.Left == nil || g.Right == nil {
			return nil, &LoadError{
				Code:    ErrCodeBadGuard,
				Message: fmt.Sprintf("%s guard is missing one side of its left/right pair", g.Type),
				Rung:    rungName,
			}
		}
		raw = []*guardDoc{g.Left, g.Right}
	default:
		return nil, &LoadError{
			Code:    ErrCodeBadGuard,
			Message: fmt.Sprintf("%s guard has no operands", g.Type),
			Rung:    rungName,
		}
	}

	operands := make([]Guard, 0, len(raw))
	for _, child := range raw {
		compiled, err := compileGuard(p, rungName, child)
		if err != nil {
			return nil, err
		}
		operands = append(operands, compiled)
	}
	return operands, nil
}
