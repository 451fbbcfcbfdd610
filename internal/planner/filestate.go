package planner

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bub-build/bub/internal/buberr"
	"github.com/bub-build/bub/internal/msg"
	"github.com/bub-build/bub/internal/scanner"
)

// IssueIfReady drives one step of the File state machine (spec §4.5) for
// the action that builds f. It is idempotent and safe to call any
// number of times; it only makes progress when preconditions are met.
func (p *Planner) IssueIfReady(f *Node) error {
	a := f.Action
	if a == nil || a.Done || a.Issued {
		return nil
	}
	if !a.DependsClean(p.Outstanding) {
		return nil // depends-pending
	}
	if a.Number > p.fence {
		return nil // blocked by the generator fence
	}

	if !a.augmented {
		a.augmented = true
		added, err := p.augmentAction(f)
		if err != nil {
			return err
		}
		if added {
			return p.IssueIfReady(f) // re-enters depends-pending with the new deps
		}
	}

	if !p.isDirty(a) {
		return p.markActionUpToDate(a)
	}

	a.Issued = true
	p.Queue.Push(a)
	return nil
}

// augmentAction is the File state machine's extension point (spec §4.5):
// a no-op for every File kind except DynamicLib, Exe and TestResult (the
// output of a test-exe), which run the library-inference pass (§4.6) the
// first time their objects are clean.
func (p *Planner) augmentAction(f *Node) (addedDeps bool, err error) {
	switch f.Kind {
	case KindDynamicLib, KindExe, KindTestResult:
		return p.inferLibraries(f)
	default:
		return false, nil
	}
}

// isDirty implements the maybe-issue test: any depend modTime newer than
// a build's own modTime, the action's accumulated newest, or a never-
// built output, forces a rebuild.
func (p *Planner) isDirty(a *Action) bool {
	if a.ForceDirty {
		return true
	}
	for _, b := range a.Builds {
		if !b.Built {
			return true
		}
		if a.Newest.After(b.ModTime) {
			return true
		}
	}
	for dep := range a.Depends {
		for _, b := range a.Builds {
			if dep.ModTime.After(b.ModTime) {
				return true
			}
		}
	}
	return false
}

// markActionUpToDate handles the maybe-issue -> up-to-date edge directly
// (no worker dispatch needed): clears outstanding status for every build
// and wakes reverse edges, without touching the cache (it is already
// accurate from a prior run).
func (p *Planner) markActionUpToDate(a *Action) error {
	return p.finishAction(a)
}

func (p *Planner) finishAction(a *Action) error {
	a.Done = true
	for _, b := range a.Builds {
		delete(p.Outstanding, b)
		b.Action = nil
	}
	if a.IsGenerator {
		p.completedGenerators[a.Number] = true
		p.recomputeFence()
		for outstanding := range p.Outstanding {
			if err := p.IssueIfReady(outstanding); err != nil {
				return err
			}
		}
	}
	for _, b := range a.Builds {
		for rev := range b.DependedBy {
			if err := p.IssueIfReady(rev); err != nil {
				return err
			}
		}
	}
	return nil
}

var parenRe = regexp.MustCompile(`\(([^)]*)\)`)

// parseDepsFile reads a deps file written by an action's command, per
// spec §6: whitespace tokens, backslash-newline continuations dropped,
// and if parentheses appear anywhere only their content is relevant
// (some compilers emit Makefile rule syntax like "obj: (a b c)").
func parseDepsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	text := strings.ReplaceAll(string(data), "\\\n", " ")
	if strings.Contains(text, "(") {
		var parts []string
		for _, m := range parenRe.FindAllStringSubmatch(text, -1) {
			parts = append(parts, m[1])
		}
		text = strings.Join(parts, " ")
	}
	return strings.Fields(text), nil
}

// scanInputsForDeps runs spec §2's Include/import scanner directly over
// an action's source inputs, extracting in-project include/import
// candidates from the text itself. This is the scanner's real job: a
// compile command's own deps file (if it writes one at all) only
// reflects what the underlying compiler understands, while the scanner
// gives bub an independent, compiler-agnostic reading of the same
// source so library inference still works for tools that emit no deps
// file.
func (p *Planner) scanInputsForDeps(a *Action) ([]string, error) {
	var found []string
	for in := range a.Inputs {
		if in.Kind != KindSource {
			continue
		}
		f, err := os.Open(in.Path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		candidates, scanErr := scanner.Scan(f, scanner.FamilyForExt(ext(in.Name)), p.externalImports)
		f.Close()
		if scanErr != nil {
			return nil, scanErr
		}
		found = append(found, candidates...)
	}
	return found, nil
}

// Updated implements spec §4.5's updated(action, declared_inputs):
// called once a worker reports an action's success.
func (p *Planner) Updated(a *Action) error {
	deps, err := parseDepsFile(a.DepsPath)
	if err != nil {
		return err
	}
	scanned, err := p.scanInputsForDeps(a)
	if err != nil {
		return err
	}
	deps = append(deps, scanned...)

	declared := make(map[string]bool, len(a.Inputs))
	for in := range a.Inputs {
		declared[in.Path] = true
	}

	seen := make(map[string]bool, len(deps))
	var newCacheEntry []string
	for _, dep := range deps {
		if declared[dep] || seen[dep] {
			continue
		}
		seen[dep] = true
		newCacheEntry = append(newCacheEntry, dep)
		if filepath.IsAbs(dep) {
			continue // system dep: recorded, not resolved to a File
		}
		resolved := filepath.Join(p.SrcDir, dep)
		depFile, ok := p.ByPath[resolved]
		if !ok {
			return buberr.NewUnknownEntity(a.Origin, "action %s: scanned dependency %q does not resolve to a known file", a.Name, dep)
		}
		for _, b := range a.Builds {
			if err := p.MayDependOn(b, depFile); err != nil {
				return err
			}
			depFile.DependedBy[b] = struct{}{}
			if len(a.Builds) == 1 {
				if err := a.AddDependency(depFile); err != nil {
					return err
				}
			}
		}
	}

	for _, b := range a.Builds {
		p.Cache.Set(b.Path, newCacheEntry)
		info, statErr := os.Stat(b.Path)
		if statErr == nil {
			b.ModTime = info.ModTime()
		}
		b.Built = true
	}
	p.updatedCount++
	msg.Trace("updated %s", a.Name)
	return p.finishAction(a)
}
