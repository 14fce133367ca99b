package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var errNilFile = errors.New("cannot build graph from a nil task file")

// Graph captures the needs-edges between tasks and their execution order.
type Graph struct {
	tasks   map[string]*TaskSpec
	needs   map[string][]string
	reverse map[string][]string
	order   []string
}

// BuildGraph derives the execution graph from a task file and validates
// acyclicity.
func BuildGraph(doc *File) (*Graph, error) {
	if doc == nil {
		return nil, errNilFile
	}

	g := &Graph{
		tasks:   make(map[string]*TaskSpec, len(doc.Tasks)),
		needs:   make(map[string][]string, len(doc.Tasks)),
		reverse: make(map[string][]string, len(doc.Tasks)),
	}
	for name, task := range doc.Tasks {
		g.tasks[name] = task
		if _, ok := g.needs[name]; !ok {
			g.needs[name] = nil
		}
		if task == nil {
			continue
		}
		for _, dep := range task.Needs {
			g.needs[name] = append(g.needs[name], dep)
			g.reverse[dep] = append(g.reverse[dep], name)
			if _, ok := g.needs[dep]; !ok {
				g.needs[dep] = nil
			}
		}
	}

	order, err := topoSort(g.needs)
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// Tasks returns task names in execution order: every task appears after all
// of its needs. Ties break alphabetically so the order is stable.
func (g *Graph) Tasks() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Dependents returns tasks that need the provided task.
func (g *Graph) Dependents(name string) []string {
	deps := g.reverse[name]
	out := make([]string, len(deps))
	copy(out, deps)
	sort.Strings(out)
	return out
}

// Closure returns name plus everything it transitively needs, in execution
// order.
func (g *Graph) Closure(names ...string) ([]string, error) {
	wanted := make(map[string]bool)
	var visit func(string) error
	visit = func(name string) error {
		if wanted[name] {
			return nil
		}
		if _, ok := g.tasks[name]; !ok {
			return fmt.Errorf("unknown task %q", name)
		}
		wanted[name] = true
		for _, dep := range g.needs[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(wanted))
	for _, name := range g.order {
		if wanted[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

// Batches groups the execution order into waves whose members have no
// needs-edges between them, so each wave can run concurrently once the
// previous wave has finished.
func (g *Graph) Batches() [][]string {
	depth := make(map[string]int, len(g.order))
	maxDepth := 0
	for _, name := range g.order {
		d := 0
		for _, dep := range g.needs[name] {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[name] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	batches := make([][]string, maxDepth+1)
	for _, name := range g.order {
		batches[depth[name]] = append(batches[depth[name]], name)
	}
	return batches
}

func topoSort(needs map[string][]string) ([]string, error) {
	pending := make(map[string]int, len(needs))
	for name, deps := range needs {
		pending[name] = len(deps)
	}

	ready := make([]string, 0, len(pending))
	for name, count := range pending {
		if count == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	dependents := make(map[string][]string)
	for name, deps := range needs {
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	order := make([]string, 0, len(pending))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		unblocked := make([]string, 0)
		for _, next := range dependents[name] {
			pending[next]--
			if pending[next] == 0 {
				unblocked = append(unblocked, next)
			}
		}
		sort.Strings(unblocked)
		ready = append(ready, unblocked...)
	}

	if len(order) != len(pending) {
		cycle := detectCycle(needs)
		return nil, fmt.Errorf("dependency cycle detected: %s", strings.Join(cycle, " -> "))
	}
	return order, nil
}

func detectCycle(edges map[string][]string) []string {
	visited := make(map[string]bool)
	stack := make([]string, 0)

	var dfs func(string) []string
	dfs = func(node string) []string {
		visited[node] = true
		stack = append(stack, node)
		for _, next := range edges[node] {
			onStack := false
			for _, cur := range stack {
				if cur == next {
					onStack = true
					break
				}
			}
			if onStack {
				return appendStack(stack, next)
			}
			if !visited[next] {
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		return nil
	}

	names := make([]string, 0, len(edges))
	for node := range edges {
		names = append(names, node)
	}
	sort.Strings(names)
	for _, node := range names {
		if !visited[node] {
			if cycle := dfs(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func appendStack(stack []string, target string) []string {
	idx := -1
	for i, node := range stack {
		if node == target {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	out := make([]string, 0, len(stack)-idx+1)
	out = append(out, stack[idx:]...)
	out = append(out, target)
	return out
}
