package charta

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/charta-io/charta/internal/eval"
	"github.com/charta-io/charta/internal/event"
	"github.com/charta-io/charta/internal/ir"
	"github.com/charta-io/charta/internal/state"
)

// CoilHandler observes one coil transition: (name, old value, new value).
type CoilHandler = event.CoilHandler

// CycleHandler observes cycle completion with the full new coil snapshot.
type CycleHandler = event.CycleHandler

// Subscription is the deregistration handle returned by the On* methods.
type Subscription = event.Subscription

// VM is a Charta scan-cycle virtual machine.
//
// A VM owns one loaded program, one state store, and one callback
// registry. It starts unloaded; LoadProgram moves it to loaded, and
// every reload resets all signal and coil state.
//
// Thread-safety: all methods may be called from any goroutine. A single
// exclusive guard serializes cycles and accessors; callbacks run
// synchronously inside the guarded section of the cycle that triggered
// them, so a slow handler delays that cycle's completion and the next
// cycle's start. Once started, a cycle always runs to completion - the
// VM offers no cancellation or preemption of in-flight cycles.
type VM struct {
	mu       sync.Mutex
	program  *ir.Program
	store    *state.Store
	registry *event.Registry

	seq    atomic.Int64 // logical cycle counter, resets on load
	tokens TokenGenerator
	log    *slog.Logger
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithTokenGenerator overrides the cycle token source. Tests use
// NewFixedGenerator for deterministic log output.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(vm *VM) { vm.tokens = g }
}

// WithLogger overrides the VM's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(vm *VM) { vm.log = l }
}

// New creates an unloaded VM.
func New(opts ...Option) *VM {
	vm := &VM{
		store:  state.New(),
		tokens: UUIDv7Generator{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	// The registry shares the VM's logger, so WithLogger governs
	// handler panic reports too.
	vm.registry = event.NewRegistry(vm.log)
	return vm
}

// Loaded reports whether a program is currently loaded.
func (vm *VM) Loaded() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.program != nil
}

// LoadProgram parses, validates, and installs an IR payload.
//
// On success all signals and coils reset to false and the previous-
// snapshot baseline resets with them; no history from a prior program
// survives. On failure the VM keeps its previous program (or stays
// unloaded) - a half-loaded program is never observable.
func (vm *VM) LoadProgram(payload string) error {
	program, err := ir.Load([]byte(payload))
	if err != nil {
		return mapLoadError(err)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.program = program
	vm.store.Reset(program)
	vm.seq.Store(0)

	vm.log.Info("program loaded",
		"module", program.Name(),
		"version", program.Version(),
		"signals", len(program.SignalNames()),
		"coils", len(program.CoilNames()),
		"rungs", program.RungCount(),
	)
	return nil
}

// LoadProgramFromFile reads an IR file and delegates to LoadProgram.
// Read failures return an IO error, distinct from parse and load
// errors, so callers can tell transport problems from bad content.
func (vm *VM) LoadProgramFromFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return newError(CodeIO, err)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return newError(CodeIO, err)
	}
	return vm.LoadProgram(string(payload))
}

// SetSignal updates one declared input signal. It does not trigger
// evaluation.
func (vm *VM) SetSignal(name string, value bool) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.ensureLoaded("set_signal"); err != nil {
		return err
	}
	if err := vm.store.SetSignal(name, value); err != nil {
		return mapStateError(err)
	}
	return nil
}

// Signal returns the current value of a declared signal.
func (vm *VM) Signal(name string) (bool, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.ensureLoaded("get_signal"); err != nil {
		return false, err
	}
	value, err := vm.store.Signal(name)
	if err != nil {
		return false, mapStateError(err)
	}
	return value, nil
}

// Coil returns the current value of a declared coil.
func (vm *VM) Coil(name string) (bool, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.ensureLoaded("get_coil"); err != nil {
		return false, err
	}
	value, err := vm.store.Coil(name)
	if err != nil {
		return false, mapStateError(err)
	}
	return value, nil
}

// Signals returns a copy of the full signal mapping.
func (vm *VM) Signals() (map[string]bool, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.ensureLoaded("get_all_signals"); err != nil {
		return nil, err
	}
	return vm.store.Signals(), nil
}

// Coils returns a copy of the full coil mapping.
func (vm *VM) Coils() (map[string]bool, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.ensureLoaded("get_all_coils"); err != nil {
		return nil, err
	}
	return vm.store.Coils(), nil
}

// SignalNames returns the declared signal names in declaration order.
func (vm *VM) SignalNames() ([]string, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.ensureLoaded("signal_names"); err != nil {
		return nil, err
	}
	return vm.program.SignalNames(), nil
}

// CoilNames returns the declared coil names in declaration order.
func (vm *VM) CoilNames() ([]string, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.ensureLoaded("coil_names"); err != nil {
		return nil, err
	}
	return vm.program.CoilNames(), nil
}

// ExecuteCycle performs one scan cycle: evaluate every rung from the
// current signals, commit the new coil snapshot, and dispatch change
// and completion callbacks. Returns the new coil snapshot.
func (vm *VM) ExecuteCycle() (map[string]bool, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return vm.executeCycleLocked()
}

// ExecuteCycleWithInputs applies a batch of signal values and then
// performs one scan cycle.
//
// The batch is all-or-nothing: every name is validated against the
// declared signal set before any value is written, so an unknown name
// fails with a not-found error and leaves the store untouched.
func (vm *VM) ExecuteCycleWithInputs(inputs map[string]bool) (map[string]bool, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.ensureLoaded("execute_cycle_with_inputs"); err != nil {
		return nil, err
	}

	// Validate the whole batch before applying any of it. Names are
	// checked in sorted order so the failing name is deterministic.
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !vm.program.HasSignal(name) {
			return nil, errorf(CodeNotFound, "signal %q is not declared by the loaded program", name)
		}
	}

	for _, name := range names {
		if err := vm.store.SetSignal(name, inputs[name]); err != nil {
			return nil, mapStateError(err)
		}
	}

	return vm.executeCycleLocked()
}

// executeCycleLocked runs evaluation plus dispatch. Callers must hold
// vm.mu; the guard stays held through callback dispatch so cycles are
// strictly serialized and signals are never read in a torn state.
func (vm *VM) executeCycleLocked() (map[string]bool, error) {
	if err := vm.ensureLoaded("execute_cycle"); err != nil {
		return nil, err
	}

	seq := vm.seq.Add(1)
	token := vm.tokens.Generate()

	next, err := eval.RunCycle(vm.program, vm.store.Signals())
	if err != nil {
		// Load-time validation should make this unreachable; treat it
		// as an internal-consistency fault and leave state untouched.
		vm.log.Error("cycle evaluation failed",
			"cycle", token,
			"seq", seq,
			"error", err,
		)
		return nil, newError(CodeInternal, err)
	}

	vm.store.Commit(next)
	// Commit rotated the outgoing coil values into the previous
	// snapshot; change detection diffs against that.
	prev := vm.store.Previous()

	changed := 0
	for name, value := range next {
		if prev[name] != value {
			changed++
		}
	}

	vm.registry.Dispatch(vm.store.CoilOrder(), prev, next)

	vm.log.Debug("cycle complete",
		"cycle", token,
		"seq", seq,
		"changed", changed,
	)

	return next, nil
}

// OnCoilChange registers a handler for transitions of one declared
// coil. Registering against an unknown coil name is a usage error, not
// silently ignored.
func (vm *VM) OnCoilChange(coil string, h CoilHandler) (*Subscription, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := vm.ensureLoaded("on_coil_change"); err != nil {
		return nil, err
	}
	if !vm.program.HasCoil(coil) {
		return nil, errorf(CodeNotFound, "coil %q is not declared by the loaded program", coil)
	}
	return vm.registry.OnCoilChange(ir.Normalize(coil), h), nil
}

// OnAnyCoilChange registers a handler that fires for every coil
// transition. Name-free, so it may be registered before a program is
// loaded.
func (vm *VM) OnAnyCoilChange(h CoilHandler) *Subscription {
	return vm.registry.OnAnyCoilChange(h)
}

// OnCycleComplete registers a handler that fires exactly once per
// executed cycle with the full new coil snapshot, regardless of how
// many coils changed.
func (vm *VM) OnCycleComplete(h CycleHandler) *Subscription {
	return vm.registry.OnCycleComplete(h)
}

// ensureLoaded returns an invalid-operation error naming the attempted
// operation when no program is loaded. Callers must hold vm.mu.
func (vm *VM) ensureLoaded(op string) error {
	if vm.program == nil {
		return errorf(CodeInvalidOperation, "%s requires a loaded program", op)
	}
	return nil
}

// mapLoadError converts loader errors to the public taxonomy.
func mapLoadError(err error) error {
	var parseErr *ir.ParseError
	if errors.As(err, &parseErr) {
		return newError(CodeParse, err)
	}
	var loadErr *ir.LoadError
	if errors.As(err, &loadErr) {
		return newError(CodeIRLoad, err)
	}
	return newError(CodeIRLoad, err)
}

// mapStateError converts store errors to the public taxonomy.
func mapStateError(err error) error {
	var nf *state.NotFoundError
	if errors.As(err, &nf) {
		return newError(CodeNotFound, err)
	}
	return newError(CodeInternal, err)
}
