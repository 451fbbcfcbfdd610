package planner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bub-build/bub/internal/buberr"
)

func TestIssueIfReadyWaitsOnOutstandingDependency(t *testing.T) {
	p := newTestPlanner()
	dep := &Node{Kind: KindGenerated}
	out := &Node{Kind: KindGenerated}
	a := NewAction(buberr.Origin{}, "out", "", p.nextActionNumber(), []*Node{dep}, []*Node{out}, nil)
	out.Action = a
	p.Outstanding[dep] = struct{}{}

	if err := p.IssueIfReady(out); err != nil {
		t.Fatalf("IssueIfReady: %v", err)
	}
	if a.Issued {
		t.Fatalf("action must not be issued while a dependency is outstanding")
	}
}

func TestIssueIfReadyRespectsGeneratorFence(t *testing.T) {
	p := newTestPlanner()
	out := &Node{Kind: KindGenerated}
	num := p.nextActionNumber()
	a := NewAction(buberr.Origin{}, "out", "", num, nil, []*Node{out}, nil)
	out.Action = a
	p.fence = num - 1

	if err := p.IssueIfReady(out); err != nil {
		t.Fatalf("IssueIfReady: %v", err)
	}
	if a.Issued {
		t.Fatalf("action must not be issued past the generator fence")
	}
}

func TestIssueIfReadyPushesDirtyAction(t *testing.T) {
	p := newTestPlanner()
	out := &Node{Kind: KindGenerated} // Built defaults to false: always dirty
	a := NewAction(buberr.Origin{}, "out", "", p.nextActionNumber(), nil, []*Node{out}, nil)
	out.Action = a

	if err := p.IssueIfReady(out); err != nil {
		t.Fatalf("IssueIfReady: %v", err)
	}
	if !a.Issued || p.Queue.Len() != 1 {
		t.Fatalf("expected a never-built action to be queued, Issued=%v Len=%d", a.Issued, p.Queue.Len())
	}
}

func TestIssueIfReadyMarksCleanActionUpToDate(t *testing.T) {
	p := newTestPlanner()
	now := time.Unix(1000, 0)
	out := &Node{Kind: KindGenerated, Built: true, ModTime: now}
	a := NewAction(buberr.Origin{}, "out", "", p.nextActionNumber(), nil, []*Node{out}, nil)
	out.Action = a

	if err := p.IssueIfReady(out); err != nil {
		t.Fatalf("IssueIfReady: %v", err)
	}
	if a.Issued {
		t.Fatalf("a clean action must not be issued to a worker")
	}
	if !a.Done {
		t.Fatalf("a clean action must be marked done directly")
	}
	if p.Queue.Len() != 0 {
		t.Fatalf("a clean action must not be queued")
	}
}

func TestFinishActionWakesReverseEdges(t *testing.T) {
	p := newTestPlanner()
	base := &Node{Kind: KindGenerated, Built: true, ModTime: time.Unix(1000, 0), DependedBy: make(map[*Node]struct{})}
	baseAction := NewAction(buberr.Origin{}, "base", "", p.nextActionNumber(), nil, []*Node{base}, nil)
	base.Action = baseAction
	p.Outstanding[base] = struct{}{}

	dependent := &Node{Kind: KindGenerated, Built: true, ModTime: time.Unix(2000, 0)}
	dependentAction := NewAction(buberr.Origin{}, "dependent", "", p.nextActionNumber(), []*Node{base}, []*Node{dependent}, nil)
	dependent.Action = dependentAction
	p.Outstanding[dependent] = struct{}{}
	base.DependedBy[dependent] = struct{}{}

	// dependent can't issue yet: base is still outstanding.
	if err := p.IssueIfReady(dependent); err != nil {
		t.Fatalf("IssueIfReady(dependent): %v", err)
	}
	if dependentAction.Done {
		t.Fatalf("dependent must not finish before base does")
	}

	delete(p.Outstanding, base)
	if err := p.finishAction(baseAction); err != nil {
		t.Fatalf("finishAction(base): %v", err)
	}
	if !dependentAction.Done {
		t.Fatalf("finishing base should wake and finish the now-clean dependent")
	}
}

func TestParseDepsFileHandlesContinuationsAndParens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "DEPENDENCIES-1")
	content := "obj/a.o: (a.h \\\nb.h c.h)"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	deps, err := parseDepsFile(path)
	if err != nil {
		t.Fatalf("parseDepsFile: %v", err)
	}
	want := []string{"a.h", "b.h", "c.h"}
	if len(deps) != len(want) {
		t.Fatalf("deps = %v, want %v", deps, want)
	}
	for i := range want {
		if deps[i] != want[i] {
			t.Fatalf("deps[%d] = %q, want %q", i, deps[i], want[i])
		}
	}
}

func TestParseDepsFileMissingIsEmpty(t *testing.T) {
	deps, err := parseDepsFile(filepath.Join(t.TempDir(), "DEPENDENCIES-9"))
	if err != nil {
		t.Fatalf("parseDepsFile: %v", err)
	}
	if len(deps) != 0 {
		t.Fatalf("expected no deps for a missing deps file, got %v", deps)
	}
}

func TestUpdatedRejectsScannedDependencyOutsideVisibility(t *testing.T) {
	p := newTestPlanner()
	dir := t.TempDir()
	p.SrcDir = dir

	top := mkPkg(p.Root, "top", Public)
	owner := mkPkg(top, "owner", Public)
	consumer := mkPkg(top, "consumer", Public)

	hidden := p.newFileNode(owner, "hidden.h", KindSource, Private)
	hidden.Path = filepath.Join(dir, "hidden.h")
	hidden.DependedBy = make(map[*Node]struct{})
	p.registerFile(hidden)

	out := p.newFileNode(consumer, "out.o", KindGenerated, Private)
	out.Path = filepath.Join(p.BuildDir, "out.o")
	out.Number = hidden.Number + 1
	a := NewAction(buberr.Origin{}, "out", "", p.nextActionNumber(), nil, []*Node{out}, nil)
	out.Action = a
	a.DepsPath = filepath.Join(dir, "DEPENDENCIES-x")
	if err := os.WriteFile(a.DepsPath, []byte("hidden.h\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := p.Updated(a); err == nil {
		t.Fatalf("expected Updated to reject a scanned dependency not visible to the consumer")
	}
}
