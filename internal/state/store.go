// Package state owns the boolean values behind a loaded program: every
// declared signal, every declared coil, and the coil snapshot from the
// previous completed cycle.
//
// The store does no locking of its own. The VM facade serializes all
// access behind its cycle guard; the store is the single-writer data
// structure inside that critical section.
package state

import (
	"fmt"

	"github.com/charta-io/charta/internal/ir"
)

// NotFoundError reports an accessor naming an undeclared signal or coil.
type NotFoundError struct {
	Kind string // "signal" or "coil"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q is not declared by the loaded program", e.Kind, e.Name)
}

// Snapshot is an immutable-by-convention mapping of coil name to value
// captured at the end of a cycle.
type Snapshot map[string]bool

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for name, value := range s {
		out[name] = value
	}
	return out
}

// Store holds the current signal values, current coil values, and the
// previous cycle's coil snapshot for change detection.
type Store struct {
	signals map[string]bool
	coils   map[string]bool
	// previous is the coil snapshot from the last completed cycle.
	// After Reset it is an all-false baseline, so the first cycle of a
	// fresh program diffs against false for every coil.
	previous Snapshot

	signalOrder []string
	coilOrder   []string
}

// New creates an empty store. Reset must be called with a loaded
// program before any accessor is useful.
func New() *Store {
	return &Store{}
}

// Reset re-declares the store's entries from a loaded program.
//
// All signals and coils start false, and the previous snapshot becomes
// an all-false baseline: no history from a prior program survives a
// reload.
func (s *Store) Reset(p *ir.Program) {
	s.signalOrder = p.SignalNames()
	s.coilOrder = p.CoilNames()

	s.signals = make(map[string]bool, len(s.signalOrder))
	for _, name := range s.signalOrder {
		s.signals[name] = false
	}

	s.coils = make(map[string]bool, len(s.coilOrder))
	s.previous = make(Snapshot, len(s.coilOrder))
	for _, name := range s.coilOrder {
		s.coils[name] = false
		s.previous[name] = false
	}
}

// Signal returns the current value of a declared signal.
func (s *Store) Signal(name string) (bool, error) {
	value, ok := s.signals[ir.Normalize(name)]
	if !ok {
		return false, &NotFoundError{Kind: "signal", Name: name}
	}
	return value, nil
}

// SetSignal updates one declared signal. It never creates an entry and
// never triggers evaluation.
func (s *Store) SetSignal(name string, value bool) error {
	key := ir.Normalize(name)
	if _, ok := s.signals[key]; !ok {
		return &NotFoundError{Kind: "signal", Name: name}
	}
	s.signals[key] = value
	return nil
}

// Coil returns the current value of a declared coil.
func (s *Store) Coil(name string) (bool, error) {
	value, ok := s.coils[ir.Normalize(name)]
	if !ok {
		return false, &NotFoundError{Kind: "coil", Name: name}
	}
	return value, nil
}

// Signals returns a copy of the full signal mapping.
func (s *Store) Signals() map[string]bool {
	out := make(map[string]bool, len(s.signals))
	for name, value := range s.signals {
		out[name] = value
	}
	return out
}

// Coils returns a copy of the full coil mapping.
func (s *Store) Coils() Snapshot {
	return Snapshot(s.coils).Clone()
}

// Previous returns the coil snapshot from the last completed cycle.
// The caller must treat it as read-only.
func (s *Store) Previous() Snapshot {
	return s.previous
}

// Commit installs the coil snapshot produced by a completed cycle.
// The outgoing coil values rotate into the previous snapshot; anything
// older is discarded.
func (s *Store) Commit(next Snapshot) {
	s.previous = Snapshot(s.coils).Clone()
	for name, value := range next {
		s.coils[name] = value
	}
}

// CoilOrder returns the declared coil names in declaration order.
// Used by the dispatcher for deterministic change iteration.
func (s *Store) CoilOrder() []string {
	return s.coilOrder
}
