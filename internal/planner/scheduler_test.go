package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bub-build/bub/internal/buberr"
	"github.com/bub-build/bub/internal/worker"
)

func TestCleanupRemovesStaleFilesAndEmptyDirs(t *testing.T) {
	p := newTestPlanner()
	dir := t.TempDir()
	p.BuildDir = dir

	objDir := filepath.Join(dir, "obj", "p")
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(objDir, "keep.o")
	stale := filepath.Join(objDir, "stale.o")
	for _, f := range []string{keep, stale} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p.allBuilt[keep] = true

	emptyDir := filepath.Join(dir, "obj", "empty")
	if err := os.MkdirAll(emptyDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := p.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("expected kept file to survive cleanup: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale file to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(emptyDir); !os.IsNotExist(err) {
		t.Fatalf("expected empty directory to be removed, stat err = %v", err)
	}
}

func TestPrimeIssuesOutstandingFiles(t *testing.T) {
	p := newTestPlanner()
	out := &Node{Kind: KindGenerated} // never built: always dirty
	a := NewAction(buberr.Origin{}, "out", "", p.nextActionNumber(), nil, []*Node{out}, nil)
	out.Action = a
	p.Outstanding[out] = struct{}{}

	if err := p.Prime(); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if !a.Issued || p.Queue.Len() != 1 {
		t.Fatalf("expected Prime to queue the dirty outstanding action")
	}
}

func TestSummaryReportsCounts(t *testing.T) {
	p := newTestPlanner()
	p.seenCount, p.builtCount, p.updatedCount = 3, 2, 1
	p.Outstanding[&Node{}] = struct{}{}

	s := p.Summary()
	if s.Seen != 3 || s.Built != 2 || s.Updated != 1 || s.Outstanding != 1 {
		t.Fatalf("Summary = %+v, want {3 2 1 1}", s)
	}
}

func TestRunEndToEnd(t *testing.T) {
	p := newTestPlanner()
	dir := t.TempDir()
	p.BuildDir = dir

	target := filepath.Join(dir, "out.txt")
	out := &Node{Kind: KindGenerated, Path: target, DependedBy: make(map[*Node]struct{})}
	a := NewAction(buberr.Origin{}, target, "touch ${OUTPUT}", p.nextActionNumber(), nil, []*Node{out}, nil)
	a.DepsPath = filepath.Join(dir, "DEPENDENCIES-none")
	out.Action = a
	p.Outstanding[out] = struct{}{}

	if err := p.Prime(); err != nil {
		t.Fatalf("Prime: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool := worker.New(ctx, 2, dir)
	pool.Start()

	if err := p.Run(ctx, pool); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := pool.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if len(p.Outstanding) != 0 {
		t.Fatalf("expected no outstanding files after a clean run, got %d", len(p.Outstanding))
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected the action's output to exist: %v", err)
	}
	if p.Summary().Built != 1 {
		t.Fatalf("Summary().Built = %d, want 1", p.Summary().Built)
	}
}
