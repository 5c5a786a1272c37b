package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/covenanthq/covenant/internal/pact"
)

// RecursionWarning reports a group of commitments whose conditions or
// references depend on each other's computed liabilities.
//
// Recursion is a warning, not an error, because the optimistic seed usually
// resolves it to a self-supporting fixed point. The warning exists so an
// author can spot accidental feedback loops, which are the typical cause of
// non-convergence at solve time.
type RecursionWarning struct {
	Commitments []string `json:"commitments"` // cycle members, sorted
	Path        []string `json:"path"`        // one cycle traversal: ["c-a", "c-b", "c-a"]
	Message     string   `json:"message"`
}

// AnalyzeRecursion performs static dependency analysis on a commitment set.
//
// It builds a reads-from graph and reports strongly connected components:
//   - Edge A → B when A's conditions or promise references read a slot
//     that one of B's promises writes
//   - Tarjan's algorithm finds the SCCs
//   - Each SCC with more than one member, or a single self-reading
//     commitment, becomes a warning
//
// A commitment set with no mutual dependence returns an empty list.
func AnalyzeRecursion(commitments []pact.Commitment) []RecursionWarning {
	if len(commitments) == 0 {
		return []RecursionWarning{}
	}

	graph := buildReadsFromGraph(commitments)
	sccs := tarjanSCC(graph)

	var warnings []RecursionWarning
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, sccToWarning(scc, graph))
		}
	}

	// Tarjan emits SCCs in reverse topological order of discovery, which
	// depends on map iteration. Sort for stable CLI output.
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Commitments[0] < warnings[j].Commitments[0]
	})
	return warnings
}

// DependencyEdges exposes the reads-from adjacency for diagnostic output:
// edges[a] lists the commitments whose promised slots a's conditions or
// proportional references read. Adjacency lists are sorted.
func DependencyEdges(commitments []pact.Commitment) map[string][]string {
	return buildReadsFromGraph(commitments)
}

// dependencyGraph maps commitment id → commitments it reads liabilities from.
type dependencyGraph map[string][]string

// slotRead is one liability read: a slot plus which member's value is read.
// An empty user means a sum over members; excludeCreator narrows that sum
// the way aggregate conditions do.
type slotRead struct {
	slot           pact.Slot
	user           pact.UserID
	excludeCreator bool
}

// buildReadsFromGraph constructs the reads-from graph.
//
// For each commitment, the slots it reads are its condition slots plus any
// promise reference slots. The slots it writes are its promise slots,
// attributed to its creator. An edge runs from a reader to a writer only
// when the writer's creator falls inside the read's member scope, so a
// condition on alice's work never creates an edge to bob's promise.
func buildReadsFromGraph(commitments []pact.Commitment) dependencyGraph {
	// slot → writing commitments with their creators
	type writer struct {
		id      string
		creator pact.UserID
	}
	writers := make(map[pact.Slot][]writer)
	for _, c := range commitments {
		for _, p := range c.Promises {
			writers[p.Slot()] = append(writers[p.Slot()], writer{id: c.ID, creator: c.Creator})
		}
	}

	graph := make(dependencyGraph)
	for _, c := range commitments {
		if graph[c.ID] == nil {
			graph[c.ID] = []string{}
		}

		var reads []slotRead
		for _, cond := range c.Conditions {
			reads = append(reads, slotRead{
				slot:           cond.Slot(),
				user:           cond.Target,
				excludeCreator: cond.Aggregate(),
			})
		}
		for _, p := range c.Promises {
			if p.Reference != nil {
				reads = append(reads, slotRead{
					slot: pact.Slot{Action: p.Reference.Action, Unit: p.Reference.Unit},
					user: p.Reference.User,
				})
			}
		}

		seen := make(map[string]bool)
		for _, read := range reads {
			for _, w := range writers[read.slot] {
				if read.user != "" && w.creator != read.user {
					continue
				}
				if read.excludeCreator && w.creator == c.Creator {
					continue
				}
				if !seen[w.id] {
					seen[w.id] = true
					graph[c.ID] = append(graph[c.ID], w.id)
				}
			}
		}
		sort.Strings(graph[c.ID])
	}

	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of commitment ids.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is an SCC root: pop the stack down to v
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	// Visit nodes in sorted order so discovery order is deterministic.
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// sccToWarning converts an SCC to a RecursionWarning.
func sccToWarning(scc []string, graph dependencyGraph) RecursionWarning {
	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)

	if len(scc) == 1 {
		id := scc[0]
		return RecursionWarning{
			Commitments: sorted,
			Path:        []string{id, id},
			Message:     fmt.Sprintf("commitment %s reads a slot its own promises write", id),
		}
	}

	path := reconstructCyclePath(sorted[0], scc, graph)
	return RecursionWarning{
		Commitments: sorted,
		Path:        path,
		Message:     fmt.Sprintf("mutually recursive commitments: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath builds one cycle traversal through an SCC, starting
// and ending at start.
func reconstructCyclePath(start string, scc []string, graph dependencyGraph) []string {
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
