package ir

import (
	"fmt"
	"strings"
)

// buildPlan computes the evaluation order for a program's rungs.
//
// An edge runs from rung A to rung B when B's guard reads a coil that A
// drives: A must execute first so B sees the value produced this cycle.
// The order is a stable topological sort (Kahn's algorithm, smallest
// declaration index first among ready rungs), so two loads of the same
// document always produce the same plan.
//
// A cyclic coil dependency cannot be scheduled and is a load-time
// error. The cycle path in the message is reconstructed with Tarjan's
// strongly-connected-components algorithm.
func buildPlan(p *Program) ([]int, error) {
	n := len(p.rungs)

	// Map each coil to the rungs that drive it.
	drivers := make(map[string][]int, len(p.coils))
	for i, rung := range p.rungs {
		for _, coil := range rung.Coils {
			drivers[coil] = append(drivers[coil], i)
		}
	}

	// adj[a] lists rungs that must run after rung a.
	adj := make([][]int, n)
	indegree := make([]int, n)
	for i, rung := range p.rungs {
		for _, coil := range coilReads(p, rung.Guard) {
			for _, driver := range drivers[coil] {
				if driver == i {
					// A rung reading a coil it also drives is a
					// self-dependency: the value is not resolvable
					// within the cycle.
					return nil, cycleError([]string{rung.Name, rung.Name})
				}
				adj[driver] = append(adj[driver], i)
				indegree[i]++
			}
		}
	}

	plan := make([]int, 0, n)
	for len(plan) < n {
		next := -1
		for i := 0; i < n; i++ {
			if indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, cycleError(findCyclePath(p, adj, indegree))
		}
		indegree[next] = -1 // consumed
		plan = append(plan, next)
		for _, succ := range adj[next] {
			indegree[succ]--
		}
	}

	return plan, nil
}

// coilReads collects the coil names a guard reads, in guard order.
// Signal contacts are excluded: signals are fixed for the duration of a
// cycle and impose no ordering.
func coilReads(p *Program, g Guard) []string {
	var reads []string
	var walk func(Guard)
	walk = func(g Guard) {
		switch node := g.(type) {
		case Contact:
			if _, ok := p.coilSet[node.Name]; ok {
				reads = append(reads, node.Name)
			}
		case AndGate:
			for _, op := range node.Operands {
				walk(op)
			}
		case OrGate:
			for _, op := range node.Operands {
				walk(op)
			}
		case XorGate:
			for _, op := range node.Operands {
				walk(op)
			}
		case NotGate:
			walk(node.Operand)
		case Const:
		}
	}
	walk(g)
	return reads
}

func cycleError(path []string) *LoadError {
	return &LoadError{
		Code:    ErrCodeRungCycle,
		Message: fmt.Sprintf("cyclic coil dependency: %s", strings.Join(path, " -> ")),
	}
}

// findCyclePath locates a dependency cycle among the rungs that Kahn's
// algorithm could not schedule, using Tarjan's SCC algorithm, and
// returns it as a rung-name path for the error message.
func findCyclePath(p *Program, adj [][]int, indegree []int) []string {
	n := len(p.rungs)

	var (
		index   int
		stack   []int
		indices = make([]int, n)
		lowlink = make([]int, n)
		onStack = make([]bool, n)
		scc     []int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if indices[w] == -1 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var component []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			if scc == nil && len(component) > 1 {
				scc = component
			}
		}
	}

	for v := 0; v < n; v++ {
		// Only unscheduled rungs can participate in the cycle.
		if indegree[v] > 0 && indices[v] == -1 {
			strongConnect(v)
		}
	}

	if scc == nil {
		// Should be unreachable: a stuck Kahn pass implies a cycle.
		return []string{"<unresolved>"}
	}

	// Reconstruct a traversal through the component back to its start.
	inSCC := make(map[int]bool, len(scc))
	for _, v := range scc {
		inSCC[v] = true
	}
	start := scc[len(scc)-1]
	path := []string{p.rungs[start].Name}
	visited := map[int]bool{start: true}
	current := start
	for {
		next := -1
		for _, w := range adj[current] {
			if inSCC[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == -1 {
			break
		}
		path = append(path, p.rungs[next].Name)
		if next == start {
			break
		}
		visited[next] = true
		current = next
	}
	return path
}
