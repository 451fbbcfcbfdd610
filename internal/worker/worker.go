// Package worker implements the executor pool of spec §5: a fixed
// number of worker goroutines exchanging typed messages with the
// Planner over channels, with no shared mutable state. The Planner
// remains the sole owner of build state; workers only run shell
// commands and report back.
//
// The worker executor PROCESS itself is out of scope (spec §1: "a
// process that receives (action-name, command, target-paths) messages,
// runs a shell command, captures stderr, reports success/failure. We
// specify only the message contract."); this package implements exactly
// that contract in-process via goroutines rather than subprocess
// workers, using golang.org/x/sync/errgroup the way the teacher drives
// its own concurrent downloads/builds.
package worker

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// WorkItem is the Planner->worker message: an action name, its fully
// resolved shell command line, and its target paths (as a slice;
// JoinTargets renders them "|"-joined) so a failing worker can delete
// partial outputs (spec §5).
type WorkItem struct {
	ActionName  string
	Command     string
	TargetPaths []string
}

// Result is the worker->Planner completion message.
type Result struct {
	WorkerID   int
	ActionName string
	Err        error
	Stderr     string
}

// Pool is a fixed-size pool of worker goroutines. Submit and Results are
// the only blocking points (spec §5: "only the Planner's receive-from-
// workers call blocks").
type Pool struct {
	n        int
	buildDir string
	runID    string
	work     chan WorkItem
	results  chan Result
	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a Pool of n workers rooted at buildDir (each gets its own
// tmp/run-<uuid>/worker-<i> scratch directory, spec §5 "Resource
// policy"). The per-run uuid keeps scratch directories from two
// concurrent or crash-interrupted invocations sharing the same build
// directory from colliding.
func New(parent context.Context, n int, buildDir string) *Pool {
	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	return &Pool{
		n:        n,
		buildDir: buildDir,
		runID:    uuid.NewString(),
		work:     make(chan WorkItem),
		results:  make(chan Result, n),
		group:    group,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Size reports how many worker goroutines this pool runs.
func (p *Pool) Size() int { return p.n }

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.n; i++ {
		id := i
		p.group.Go(func() error {
			return p.run(id)
		})
	}
}

func (p *Pool) scratchDir(id int) string {
	return filepath.Join(p.buildDir, "tmp", "run-"+p.runID, "worker-"+strconv.Itoa(id))
}

func (p *Pool) run(id int) error {
	scratch := p.scratchDir(id)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return err
	}
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case item, ok := <-p.work:
			if !ok {
				return nil
			}
			res := p.execute(id, scratch, item)
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				return nil
			}
		}
	}
}

func (p *Pool) execute(id int, scratch string, item WorkItem) Result {
	for _, target := range item.TargetPaths {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return Result{WorkerID: id, ActionName: item.ActionName, Err: err}
		}
	}

	cmd := exec.CommandContext(p.ctx, "sh", "-c", item.Command)
	cmd.Dir = scratch
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		deletePartialOutputs(item.TargetPaths)
		return Result{WorkerID: id, ActionName: item.ActionName, Err: err, Stderr: stderr.String()}
	}
	return Result{WorkerID: id, ActionName: item.ActionName}
}

func deletePartialOutputs(paths []string) {
	for _, path := range paths {
		os.Remove(path)
	}
}

// Submit enqueues a work item for any idle worker to pick up.
func (p *Pool) Submit(item WorkItem) {
	select {
	case p.work <- item:
	case <-p.ctx.Done():
	}
}

// Results returns the channel of worker completion messages.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Cancel stops dispatching and signals every worker to abandon its
// current command (spec §5 cancellation path).
func (p *Pool) Cancel() {
	p.cancel()
}

// Shutdown closes the work channel (a clean "no more work" sentinel) and
// waits for every worker goroutine to exit.
func (p *Pool) Shutdown() error {
	close(p.work)
	return p.group.Wait()
}

// JoinTargets renders target paths for a WorkItem the way the message
// contract names them: "|"-joined (spec §4.7).
func JoinTargets(paths []string) string {
	return strings.Join(paths, "|")
}
