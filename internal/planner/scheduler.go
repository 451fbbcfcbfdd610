package planner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bub-build/bub/internal/buberr"
	"github.com/bub-build/bub/internal/msg"
	"github.com/bub-build/bub/internal/worker"
)

// Cleanup walks the build tree's obj/priv/dist subtrees and deletes any
// file not in allBuilt, then any directory left empty, per spec §4.7's
// "Cleanup pass": run after the tree is built, before scheduling, so
// stale outputs from a prior run can never masquerade as fresh.
func (p *Planner) Cleanup() error {
	for _, sub := range []string{"obj", "priv", "dist"} {
		root := filepath.Join(p.BuildDir, sub)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		if err := p.cleanSubtree(root); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) cleanSubtree(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if !p.allBuilt[path] {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return rmErr
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	// remove empty directories deepest-first
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, rdErr := os.ReadDir(dirs[i])
		if rdErr != nil {
			continue
		}
		if len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}
	return nil
}

// Prime runs IssueIfReady over every outstanding File, per spec §4.7
// "For every built File, call issueIfReady" at startup.
func (p *Planner) Prime() error {
	pending := make([]*Node, 0, len(p.Outstanding))
	for f := range p.Outstanding {
		pending = append(pending, f)
	}
	for _, f := range pending {
		if err := p.IssueIfReady(f); err != nil {
			return err
		}
	}
	return nil
}

// Run is the Planner/scheduler main loop of spec §4.7: dispatch queued
// actions to idle workers, apply worker results, until Outstanding is
// empty or a fatal error occurs.
func (p *Planner) Run(ctx context.Context, pool *worker.Pool) error {
	actionsByName := make(map[string]*Action)
	inFlight := 0

	dispatch := func() {
		for p.Queue.Len() > 0 {
			a := p.Queue.Pop()
			actionsByName[a.Name] = a
			item := worker.WorkItem{
				ActionName:  a.Name,
				Command:     a.ResolveCommand(p.Opts.Vars),
				TargetPaths: a.TargetPaths(),
			}
			pool.Submit(item)
			inFlight++
			msg.Trace("dispatched %s (#%d)", a.Name, a.Number)
		}
	}

	dispatch()
	for len(p.Outstanding) > 0 {
		if inFlight == 0 {
			return &buberr.SchedulerInvariant{Msg: "no action in flight or queued while files remain outstanding"}
		}
		select {
		case res := <-pool.Results():
			inFlight--
			a := actionsByName[res.ActionName]
			if res.Err != nil {
				pool.Cancel()
				return &buberr.ActionFailure{ActionName: res.ActionName, Stderr: res.Stderr, Err: res.Err}
			}
			if err := p.Updated(a); err != nil {
				pool.Cancel()
				return err
			}
			p.builtCount++
			dispatch()
		case <-ctx.Done():
			pool.Cancel()
			return ctx.Err()
		}
	}
	return nil
}

// Summary reports the files-seen/built/updated counts of spec §4.7
// "Shutdown: ... emit counts of files seen, built, and updated."
type Summary struct {
	Seen, Built, Updated, Outstanding int
}

func (p *Planner) Summary() Summary {
	return Summary{Seen: p.seenCount, Built: p.builtCount, Updated: p.updatedCount, Outstanding: len(p.Outstanding)}
}
