// SPDX-License-Identifier: MPL-2.0

// Package dag orders the steps of a playbook. Each step names the steps it
// follows through its parent identifiers; the resulting graph must be
// acyclic for the playbook to be importable.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError reports the steps left over once every orderable step has
	// been removed. Each of them lies on, or downstream of, a cycle.
	CycleError struct {
		Steps []string
	}

	// Graph is a directed graph of step identifiers. An edge from parent to
	// child means the child runs after the parent.
	Graph struct {
		children map[string][]string
		parents  map[string]int
		// order keeps first-seen insertion order for deterministic output.
		order []string
		known map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("step cycle detected: %s", strings.Join(e.Steps, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		children: make(map[string][]string),
		parents:  make(map[string]int),
		known:    make(map[string]bool),
	}
}

// AddStep adds a step. Adding a known step is a no-op.
func (g *Graph) AddStep(id string) {
	if g.known[id] {
		return
	}
	g.known[id] = true
	g.order = append(g.order, id)
}

// Has reports whether id was added.
func (g *Graph) Has(id string) bool {
	return g.known[id]
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	return len(g.order)
}

// Link records that child follows parent. Both steps are added if missing.
func (g *Graph) Link(parent, child string) {
	g.AddStep(parent)
	g.AddStep(child)
	g.children[parent] = append(g.children[parent], child)
	g.parents[child]++
}

// Roots returns the steps without parents in insertion order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if g.parents[id] == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Order returns the steps in execution order using Kahn's algorithm. Steps
// that become ready together keep their insertion order. A *CycleError is
// returned when some steps can never become ready.
func (g *Graph) Order() ([]string, error) {
	if len(g.order) == 0 {
		return nil, nil
	}

	pending := make(map[string]int, len(g.order))
	for _, id := range g.order {
		pending[id] = g.parents[id]
	}

	queue := g.Roots()
	out := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)

		for _, child := range g.children[id] {
			pending[child]--
			if pending[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(out) == len(g.order) {
		return out, nil
	}
	var stuck []string
	for _, id := range g.order {
		if pending[id] > 0 {
			stuck = append(stuck, id)
		}
	}
	return nil, &CycleError{Steps: stuck}
}
