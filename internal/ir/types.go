package ir

import "golang.org/x/text/unicode/norm"

// Guard is a compiled boolean expression over signal and coil contacts.
//
// Guards form a tree. The evaluator walks the tree with a type switch;
// ir itself assigns no behaviour beyond structure.
type Guard interface {
	guard()
}

// Contact reads a named boolean from the current cycle's scope.
//
// Resolution order is coil first, then signal: a name declared in both
// sets refers to the coil value computed earlier in the same cycle.
type Contact struct {
	Name string
	// Closed marks a normally-closed (NC) contact, which inverts the
	// value it reads. Normally-open (NO) contacts pass it through.
	Closed bool
}

// AndGate is true when every operand is true.
type AndGate struct {
	Operands []Guard
}

// OrGate is true when at least one operand is true.
type OrGate struct {
	Operands []Guard
}

// XorGate is true when an odd number of operands are true.
type XorGate struct {
	Operands []Guard
}

// NotGate inverts its operand.
type NotGate struct {
	Operand Guard
}

// Const is a literal boolean.
type Const struct {
	Value bool
}

func (Contact) guard() {}
func (AndGate) guard() {}
func (OrGate) guard()  {}
func (XorGate) guard() {}
func (NotGate) guard() {}
func (Const) guard()   {}

// Rung pairs a guard with the coils it energises.
type Rung struct {
	Name  string
	Guard Guard
	// Coils lists the energise targets in declaration order.
	Coils []string
}

// Program is an immutable compiled IR module.
//
// Construction goes through Load; a Program that exists has passed
// structural validation and carries a precomputed evaluation plan.
type Program struct {
	name    string
	version string

	signals []string // declaration order, NFC-normalized
	coils   []string // declaration order, NFC-normalized
	rungs   []Rung   // declaration order

	signalSet map[string]struct{}
	coilSet   map[string]struct{}

	// plan holds rung indices in dependency-respecting evaluation order.
	plan []int
}

// Name returns the module name from the IR document.
func (p *Program) Name() string { return p.name }

// Version returns the IR document version string.
func (p *Program) Version() string { return p.version }

// SignalNames returns the declared signal names in declaration order.
// The returned slice is a copy.
func (p *Program) SignalNames() []string {
	out := make([]string, len(p.signals))
	copy(out, p.signals)
	return out
}

// CoilNames returns the declared coil names in declaration order.
// The returned slice is a copy.
func (p *Program) CoilNames() []string {
	out := make([]string, len(p.coils))
	copy(out, p.coils)
	return out
}

// HasSignal reports whether name is a declared signal.
// The name is normalized before the lookup.
func (p *Program) HasSignal(name string) bool {
	_, ok := p.signalSet[Normalize(name)]
	return ok
}

// HasCoil reports whether name is a declared coil.
// The name is normalized before the lookup.
func (p *Program) HasCoil(name string) bool {
	_, ok := p.coilSet[Normalize(name)]
	return ok
}

// RungCount returns the number of rungs in the module.
func (p *Program) RungCount() int { return len(p.rungs) }

// Plan returns the rungs in evaluation order.
//
// The order respects coil data dependencies: a rung that reads a coil
// runs after every rung that drives it. Ties are broken by declaration
// order, so the plan is deterministic for a given document.
func (p *Program) Plan() []Rung {
	out := make([]Rung, len(p.plan))
	for i, idx := range p.plan {
		out[i] = p.rungs[idx]
	}
	return out
}

// Normalize canonicalizes a signal or coil name to NFC.
//
// Every name crossing the package boundary (declarations at load time,
// lookups at run time) goes through the same normalization, so two
// Unicode spellings of the same name cannot alias distinct entries.
func Normalize(name string) string {
	return norm.NFC.String(name)
}
