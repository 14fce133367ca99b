package config

import (
	"reflect"
	"strings"
	"testing"
)

func fileWithNeeds(needs map[string][]string) *File {
	tasks := make(map[string]*TaskSpec, len(needs))
	for name, deps := range needs {
		tasks[name] = &TaskSpec{Command: []string{"/bin/true"}, Needs: deps}
	}
	return &File{Tasks: tasks}
}

func TestBuildGraphOrdersNeedsFirst(t *testing.T) {
	doc := fileWithNeeds(map[string][]string{
		"migrate": nil,
		"seed":    {"migrate"},
		"serve":   {"migrate", "seed"},
	})

	graph, err := BuildGraph(doc)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	want := []string{"migrate", "seed", "serve"}
	if got := graph.Tasks(); !reflect.DeepEqual(got, want) {
		t.Fatalf("order mismatch: got %v want %v", got, want)
	}
}

func TestBuildGraphOrderIsDeterministic(t *testing.T) {
	doc := fileWithNeeds(map[string][]string{
		"c": nil,
		"a": nil,
		"b": nil,
	})

	graph, err := BuildGraph(doc)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	want := []string{"a", "b", "c"}
	if got := graph.Tasks(); !reflect.DeepEqual(got, want) {
		t.Fatalf("independent tasks not sorted: %v", got)
	}
}

func TestBuildGraphDetectsCycles(t *testing.T) {
	doc := fileWithNeeds(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	})

	_, err := BuildGraph(doc)
	if err == nil {
		t.Fatal("expected cycle to be rejected")
	}
	if !strings.Contains(err.Error(), "dependency cycle detected") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "->") {
		t.Fatalf("cycle path missing from error: %v", err)
	}
}

func TestGraphBatches(t *testing.T) {
	doc := fileWithNeeds(map[string][]string{
		"lint":    nil,
		"vet":     nil,
		"build":   {"lint", "vet"},
		"test":    {"build"},
		"package": {"build"},
	})

	graph, err := BuildGraph(doc)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	want := [][]string{
		{"lint", "vet"},
		{"build"},
		{"package", "test"},
	}
	if got := graph.Batches(); !reflect.DeepEqual(got, want) {
		t.Fatalf("batches mismatch: got %v want %v", got, want)
	}
}

func TestGraphClosure(t *testing.T) {
	doc := fileWithNeeds(map[string][]string{
		"migrate": nil,
		"seed":    {"migrate"},
		"serve":   {"seed"},
		"docs":    nil,
	})

	graph, err := BuildGraph(doc)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	got, err := graph.Closure("serve")
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	want := []string{"migrate", "seed", "serve"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("closure mismatch: got %v want %v", got, want)
	}

	if _, err := graph.Closure("nope"); err == nil {
		t.Fatal("expected unknown task to be rejected")
	}
}

func TestGraphDependents(t *testing.T) {
	doc := fileWithNeeds(map[string][]string{
		"base":  nil,
		"one":   {"base"},
		"two":   {"base"},
		"other": nil,
	})

	graph, err := BuildGraph(doc)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	want := []string{"one", "two"}
	if got := graph.Dependents("base"); !reflect.DeepEqual(got, want) {
		t.Fatalf("dependents mismatch: got %v want %v", got, want)
	}
}
