// Package dag models the ancestor graph implied by lineage paths.
// It supports cycle detection, depth levels and reach queries used to
// validate lineage tables and to report which nodes an override touches.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrUnknownNode is returned when an edge references a node that was never added.
var ErrUnknownNode = errors.New("unknown node")

// Node is a vertex of the lineage graph.
type Node struct {
	// ID is the row identifier
	ID string
	// Overridden reports whether the row carries a user override
	Overridden bool
}

// Graph is a directed graph where an edge points from an ancestor to a descendant.
type Graph struct {
	nodes    map[string]*Node
	children map[string][]string // ancestor -> descendants
	parents  map[string][]string // descendant -> ancestors
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Adding an existing id updates its flag.
func (g *Graph) AddNode(id string, overridden bool) {
	if n, exists := g.nodes[id]; exists {
		n.Overridden = overridden
		return
	}
	g.nodes[id] = &Node{ID: id, Overridden: overridden}
	g.children[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge records that child descends from parent.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("ancestor %q: %w", parentID, ErrUnknownNode)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("descendant %q: %w", childID, ErrUnknownNode)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !slices.Contains(g.children[parentID], childID) {
		g.children[parentID] = append(g.children[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// GetParents returns the ancestors recorded for a node.
func (g *Graph) GetParents(id string) []string {
	return g.parents[id]
}

// GetChildren returns the descendants recorded for a node.
func (g *Graph) GetChildren(id string) []string {
	return g.children[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, c := range g.children {
		count += len(c)
	}
	return count
}

// sortedIDs returns node ids in lexical order so traversals are deterministic.
func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindCycle returns the first cycle found as a closed path (first id repeated
// at the end), or nil if the graph is acyclic.
func (g *Graph) FindCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.nodes))
	from := make(map[string]string)
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = onStack
		for _, child := range g.children[id] {
			switch state[child] {
			case unvisited:
				from[child] = id
				if dfs(child) {
					return true
				}
			case onStack:
				cycle = []string{child}
				for curr := id; curr != child; curr = from[curr] {
					cycle = append(cycle, curr)
				}
				slices.Reverse(cycle[1:])
				cycle = append(cycle, child)
				return true
			}
		}
		state[id] = done
		return false
	}

	for _, id := range g.sortedIDs() {
		if state[id] == unvisited && dfs(id) {
			return cycle
		}
	}
	return nil
}

// GetLevels groups nodes by depth. Level 0 holds the roots; a node sits one
// level below its deepest ancestor.
func (g *Graph) GetLevels() ([][]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, fmt.Errorf("cycle detected: %v", cycle)
	}

	assigned := make(map[string]int, len(g.nodes))
	var depth func(id string) int
	depth = func(id string) int {
		if d, ok := assigned[id]; ok {
			return d
		}
		d := 0
		for _, p := range g.parents[id] {
			if pd := depth(p) + 1; pd > d {
				d = pd
			}
		}
		assigned[id] = d
		return d
	}

	maxLevel := -1
	for _, id := range g.sortedIDs() {
		if d := depth(id); d > maxLevel {
			maxLevel = d
		}
	}

	levels := make([][]string, maxLevel+1)
	for id, d := range assigned {
		levels[d] = append(levels[d], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// GetAffectedNodes returns the given nodes plus everything downstream of them.
func (g *Graph) GetAffectedNodes(ids []string) []string {
	affected := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, c := range g.children[id] {
			mark(c)
		}
	}

	for _, id := range ids {
		if _, ok := g.nodes[id]; ok {
			mark(id)
		}
	}
	return sortedKeys(affected)
}

// GetRoots returns nodes without ancestors.
func (g *Graph) GetRoots() []string {
	var roots []string
	for _, id := range g.sortedIDs() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// GetLeaves returns nodes without descendants.
func (g *Graph) GetLeaves() []string {
	var leaves []string
	for _, id := range g.sortedIDs() {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// GetOverridden returns the ids of nodes flagged as overridden.
func (g *Graph) GetOverridden() []string {
	var ids []string
	for _, id := range g.sortedIDs() {
		if g.nodes[id].Overridden {
			ids = append(ids, id)
		}
	}
	return ids
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
