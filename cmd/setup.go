package cmd

import (
	"path/filepath"
	"runtime"

	"github.com/bub-build/bub/internal/cache"
	"github.com/bub-build/bub/internal/options"
	"github.com/bub-build/bub/internal/planner"
)

// newPlanner loads the options file and dependency cache from dir, walks
// the Bubfile tree rooted at <dir>/src/Bubfile, runs the stale-output
// cleanup pass, and primes the File state machine (spec §4.7
// "Startup"). dir is the configured build directory produced by the
// (out-of-scope) bootstrap tool.
func newPlanner(dir string) (*planner.Planner, error) {
	opts, err := options.ParseFile(filepath.Join(dir, "options"))
	if err != nil {
		return nil, err
	}
	depCache, err := cache.Load(filepath.Join(dir, "dependency-cache"))
	if err != nil {
		return nil, err
	}

	p := planner.New(opts, depCache, dir, runtime.GOOS, runtime.GOARCH)
	if err := p.ProcessRoot(filepath.Join(dir, "src", "Bubfile")); err != nil {
		return nil, err
	}
	if err := p.Cleanup(); err != nil {
		return nil, err
	}
	if err := p.Prime(); err != nil {
		return nil, err
	}
	return p, nil
}
