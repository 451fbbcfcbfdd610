package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPoolRunsSuccessfulCommand(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")

	pool := New(context.Background(), 1, dir)
	pool.Start()
	defer pool.Shutdown()

	pool.Submit(WorkItem{
		ActionName:  "write-out",
		Command:     "echo hello > " + target,
		TargetPaths: []string{target},
	})

	select {
	case res := <-pool.Results():
		if res.Err != nil {
			t.Fatalf("unexpected error: %v (stderr=%s)", res.Err, res.Stderr)
		}
		if res.ActionName != "write-out" {
			t.Fatalf("ActionName = %q, want write-out", res.ActionName)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected target to exist: %v", err)
	}
}

func TestPoolDeletesPartialOutputsOnFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "partial.txt")

	pool := New(context.Background(), 1, dir)
	pool.Start()
	defer pool.Shutdown()

	pool.Submit(WorkItem{
		ActionName:  "fail",
		Command:     "echo partial > " + target + " && exit 1",
		TargetPaths: []string{target},
	})

	select {
	case res := <-pool.Results():
		if res.Err == nil {
			t.Fatalf("expected a command failure")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected partial output to be deleted, stat err = %v", err)
	}
}

func TestPoolCancelStopsDispatch(t *testing.T) {
	pool := New(context.Background(), 1, t.TempDir())
	pool.Start()
	pool.Cancel()

	// Submit must not block forever once the pool is cancelled.
	done := make(chan struct{})
	go func() {
		pool.Submit(WorkItem{ActionName: "never-runs", Command: "true"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit did not return after Cancel")
	}
	if err := pool.Shutdown(); err != nil {
		t.Fatalf("Shutdown after Cancel: %v", err)
	}
}

func TestJoinTargets(t *testing.T) {
	got := JoinTargets([]string{"a", "b", "c"})
	if got != "a|b|c" {
		t.Fatalf("JoinTargets = %q, want a|b|c", got)
	}
}

func TestSize(t *testing.T) {
	pool := New(context.Background(), 4, t.TempDir())
	if pool.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", pool.Size())
	}
}

func TestScratchDirsAreNamespacedPerRun(t *testing.T) {
	dir := t.TempDir()
	a := New(context.Background(), 1, dir)
	b := New(context.Background(), 1, dir)
	if a.scratchDir(0) == b.scratchDir(0) {
		t.Fatalf("two pools sharing a build dir must not share a scratch directory")
	}
}
