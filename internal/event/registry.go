// Package event implements the change-detection and callback-dispatch
// subsystem: an ordered registry of handlers and the dispatcher that
// fires them when coil states transition between cycles.
package event

import (
	"log/slog"
	"sync"

	"github.com/charta-io/charta/internal/state"
)

// CoilHandler observes one coil transition. It receives the coil name,
// the value from the previous cycle, and the value from the new cycle.
type CoilHandler func(name string, old, new bool)

// CycleHandler observes cycle completion. It receives the full new coil
// snapshot and must treat it as read-only.
type CycleHandler func(coils map[string]bool)

// Subscription is the deregistration handle returned by every
// registration call. Cancel is idempotent and safe from any goroutine;
// a cancelled handler never fires on a later dispatch.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel removes the registration from its registry.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

type coilEntry struct {
	id      int64
	handler CoilHandler
}

type cycleEntry struct {
	id      int64
	handler CycleHandler
}

// Registry holds callback registrations for the three event kinds:
// specific-coil change, any-coil change, and cycle completion.
//
// Registrations are additive and ordered; dispatch walks each list in
// registration order. The registry carries its own lock because Cancel
// may be called from outside the VM's cycle guard.
type Registry struct {
	mu       sync.Mutex
	nextID   int64
	perCoil  map[string][]coilEntry
	anyCoil  []coilEntry
	complete []cycleEntry

	log *slog.Logger
}

// NewRegistry creates an empty registry. Handler panics are reported
// through log; a nil log falls back to slog.Default().
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{perCoil: make(map[string][]coilEntry), log: log}
}

// OnCoilChange registers a handler for transitions of one coil.
// The caller is responsible for validating the coil name against the
// loaded program's declared set.
func (r *Registry) OnCoilChange(coil string, h CoilHandler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.perCoil[coil] = append(r.perCoil[coil], coilEntry{id: id, handler: h})

	return &Subscription{cancel: func() { r.removeCoil(coil, id) }}
}

// OnAnyCoilChange registers a handler that fires for every coil
// transition, after the transitioning coil's own handlers.
func (r *Registry) OnAnyCoilChange(h CoilHandler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.anyCoil = append(r.anyCoil, coilEntry{id: id, handler: h})

	return &Subscription{cancel: func() { r.removeAny(id) }}
}

// OnCycleComplete registers a handler that fires exactly once per
// completed cycle, after all per-coil notifications.
func (r *Registry) OnCycleComplete(h CycleHandler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.complete = append(r.complete, cycleEntry{id: id, handler: h})

	return &Subscription{cancel: func() { r.removeComplete(id) }}
}

func (r *Registry) removeCoil(coil string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.perCoil[coil]
	for i, e := range entries {
		if e.id == id {
			r.perCoil[coil] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

func (r *Registry) removeAny(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.anyCoil {
		if e.id == id {
			r.anyCoil = append(r.anyCoil[:i:i], r.anyCoil[i+1:]...)
			return
		}
	}
}

func (r *Registry) removeComplete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.complete {
		if e.id == id {
			r.complete = append(r.complete[:i:i], r.complete[i+1:]...)
			return
		}
	}
}

// Dispatch compares the previous and new coil snapshots and invokes the
// registered handlers.
//
// Changed coils are visited in the program's declared coil order, which
// makes notification order deterministic for a given program and pair
// of snapshots. For each changed coil the per-coil handlers fire first,
// then the any-coil handlers, each list in registration order. After
// all per-coil notifications, every cycle-complete handler fires once
// with the full new snapshot - including when zero coils changed.
//
// A handler panic is recovered and logged; it never aborts the
// remaining dispatch, and the cycle still completes.
func (r *Registry) Dispatch(coilOrder []string, prev, next state.Snapshot) {
	// Snapshot the lists so a handler registering or cancelling during
	// dispatch cannot mutate the iteration underway.
	r.mu.Lock()
	perCoil := make(map[string][]coilEntry, len(r.perCoil))
	for coil, entries := range r.perCoil {
		perCoil[coil] = append([]coilEntry(nil), entries...)
	}
	anyCoil := append([]coilEntry(nil), r.anyCoil...)
	complete := append([]cycleEntry(nil), r.complete...)
	r.mu.Unlock()

	for _, coil := range coilOrder {
		oldValue := prev[coil]
		newValue := next[coil]
		if oldValue == newValue {
			continue
		}
		for _, e := range perCoil[coil] {
			r.invokeCoil(e.handler, coil, oldValue, newValue)
		}
		for _, e := range anyCoil {
			r.invokeCoil(e.handler, coil, oldValue, newValue)
		}
	}

	if len(complete) == 0 {
		return
	}
	snapshot := next.Clone()
	for _, e := range complete {
		r.invokeCycle(e.handler, snapshot)
	}
}

func (r *Registry) invokeCoil(h CoilHandler, name string, oldValue, newValue bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("coil change handler panicked",
				"coil", name,
				"old", oldValue,
				"new", newValue,
				"panic", rec,
			)
		}
	}()
	h(name, oldValue, newValue)
}

func (r *Registry) invokeCycle(h CycleHandler, coils map[string]bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("cycle complete handler panicked", "panic", rec)
		}
	}()
	h(coils)
}
