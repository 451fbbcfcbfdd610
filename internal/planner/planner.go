package planner

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bub-build/bub/internal/buberr"
	"github.com/bub-build/bub/internal/bubfile"
	"github.com/bub-build/bub/internal/cache"
	"github.com/bub-build/bub/internal/options"
)

// Planner owns every piece of mutable state for one build: the Node
// tree, the indices that used to be package-level globals in the
// teacher (spec §9's "cross-linked ownership tree" design note), the
// action queue, and the dependency cache. It is single-threaded; see
// internal/worker for the concurrent executor pool it drives.
type Planner struct {
	Root *Node

	ByTrail map[string]*Node // every Node, by trail
	ByPath  map[string]*Node // Files, by on-disk path

	SysLibs      map[string]*SysLib
	sysLibNumber int

	Queue       *ActionQueue
	Outstanding map[*Node]struct{}

	Cache *cache.Cache
	Opts  *options.Options

	BuildDir string
	SrcDir   string

	actionNumber int
	fileNumber   int

	generators          []int
	completedGenerators map[int]bool
	fence               int

	allBuilt map[string]bool

	binaryByContent map[*Node]*Binary // object/source Node -> owning Binary
	dynLibByContent map[*Node]*Binary // StaticLib Node -> DynamicLib Binary that packages it

	externalImports map[string]bool

	TargetOS, TargetArch string

	seenCount, builtCount, updatedCount int

	// AllActions records every Action ever constructed, in declaration
	// order, for "bub graph" to walk after Node.Action references are
	// cleared on completion.
	AllActions []*Action
}

// New constructs a Planner rooted at buildDir, with opts already loaded
// and dep short reads from the cache file already consumed (spec §4.7
// "Startup").
func New(opts *options.Options, depCache *cache.Cache, buildDir, targetOS, targetArch string) *Planner {
	p := &Planner{
		Root:                NewRoot(),
		ByTrail:             make(map[string]*Node),
		ByPath:              make(map[string]*Node),
		SysLibs:             make(map[string]*SysLib),
		Queue:               NewActionQueue(),
		Outstanding:         make(map[*Node]struct{}),
		Cache:               depCache,
		Opts:                opts,
		BuildDir:            buildDir,
		SrcDir:              filepath.Join(buildDir, "src"),
		completedGenerators: make(map[int]bool),
		fence:               math.MaxInt,
		allBuilt:            make(map[string]bool),
		binaryByContent:     make(map[*Node]*Binary),
		dynLibByContent:     make(map[*Node]*Binary),
		externalImports:     make(map[string]bool),
		TargetOS:            targetOS,
		TargetArch:          targetArch,
	}
	p.ByTrail[""] = p.Root
	if ext, ok := opts.Vars["external-imports"]; ok {
		for _, e := range ext {
			p.externalImports[e] = true
		}
	}
	return p
}

func (p *Planner) nextActionNumber() int {
	p.actionNumber++
	return p.actionNumber
}

func (p *Planner) nextFileNumber() int {
	p.fileNumber++
	return p.fileNumber
}

// sysLib returns the SysLib for name, creating it on first reference.
func (p *Planner) sysLib(name string) *SysLib {
	if s, ok := p.SysLibs[name]; ok {
		return s
	}
	p.sysLibNumber++
	s := &SysLib{Name: name, Number: p.sysLibNumber}
	p.SysLibs[name] = s
	return s
}

// registerFile places a newly built File into every index the rest of
// the planner needs: ByTrail, ByPath, Outstanding (if built), allBuilt.
// For a File with an on-disk output, it also hydrates Built/ModTime from
// a prior invocation (spec §9's zero-byte-as-nonexistent policy) so a
// second immediate run sees the same up-to-date state the first run
// left behind instead of treating every output as unbuilt.
func (p *Planner) registerFile(n *Node) {
	p.ByTrail[n.Trail] = n
	if n.Path != "" {
		p.ByPath[n.Path] = n
	}
	p.seenCount++
	if n.Kind.IsBuilt() {
		p.Outstanding[n] = struct{}{}
		if n.Path != "" {
			p.allBuilt[n.Path] = true
			p.hydrateBuiltState(n)
		}
	}
}

// hydrateBuiltState stats n's on-disk path and, if it exists and is
// nonzero size, marks n as already built with that modTime.
func (p *Planner) hydrateBuiltState(n *Node) {
	info, err := os.Stat(n.Path)
	if err != nil || info.Size() == 0 {
		return
	}
	n.Built = true
	n.ModTime = info.ModTime()
}

// MayDependOn implements spec §4.3 question 3: may file a depend on file
// b? Requires forward declaration order (or b a descendant of a),
// package non-strict-descendance, and visibility from the common
// ancestor.
func (p *Planner) MayDependOn(a, b *Node) error {
	if !(a.Number > b.Number || b.IsDescendantOf(a)) {
		return buberr.NewRuleViolation(buberr.Origin{}, "forward reference: %s (#%d) may not depend on %s (#%d)", a.Trail, a.Number, b.Trail, b.Number)
	}
	apkg, bpkg := a.NearestPackage(), b.NearestPackage()
	if apkg.IsStrictDescendantOf(bpkg) {
		return buberr.NewRuleViolation(buberr.Origin{}, "package %s is a strict descendant of package %s", apkg.Trail, bpkg.Trail)
	}
	anc := CommonAncestor(a, b)
	if anc == nil {
		return buberr.NewRuleViolation(buberr.Origin{}, "%s and %s share no common ancestor", a.Trail, b.Trail)
	}
	if !IsVisibleFrom(b, anc) {
		return buberr.NewRuleViolation(buberr.Origin{}, "%s is not visible from %s (common ancestor of %s and %s)", b.Trail, anc.Trail, a.Trail, b.Trail)
	}
	return nil
}

// checkCircular bounds a refers-list walk per spec §9 (validated at
// insertion time, not query time).
func checkCircular(from, to *Node) error {
	cur := to
	for depth := 0; cur != nil; depth++ {
		if depth > maxWalkDepth {
			return buberr.NewRuleViolation(buberr.Origin{}, "circular reference detected starting at %s", from.Trail)
		}
		if cur == from {
			return buberr.NewRuleViolation(buberr.Origin{}, "circular reference: %s -> %s", from.Trail, to.Trail)
		}
		if len(cur.Refers) == 0 {
			return nil
		}
		cur = cur.Refers[0]
	}
	return nil
}

// AddRefer records an explicit outbound non-ownership edge, rejecting
// cycles immediately (spec §9).
func (p *Planner) AddRefer(from, to *Node) error {
	if err := checkCircular(from, to); err != nil {
		return err
	}
	from.Refers = append(from.Refers, to)
	return nil
}

// ProcessRoot reads and recursively processes the root Bubfile, the
// entry point of spec §4.7's "construct the tree" phase.
func (p *Planner) ProcessRoot(rootBubfile string) error {
	return p.processPackage(p.Root, rootBubfile)
}

func (p *Planner) processPackage(pkg *Node, bubfilePath string) error {
	pkg.BubfilePath = bubfilePath
	env := bubfile.NewEnv(p.TargetOS, p.TargetArch, p.Opts.Vars)
	eval := bubfile.NewEvaluator(env)

	stmts, err := bubfile.ParseFile(bubfilePath, eval, p.Opts.Vars)
	if err != nil {
		return err
	}

	bubfileNode := p.newFileNode(pkg, filepath.Base(bubfilePath), KindSource, Public)
	bubfileNode.Path = bubfilePath
	p.registerFile(bubfileNode)
	pkg.Bubfile = bubfileNode

	for i := range stmts {
		st := &stmts[i]
		if err := p.applyStatement(pkg, st); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) applyStatement(pkg *Node, st *bubfile.Statement) error {
	switch st.Rule {
	case "contain":
		return p.applyContain(pkg, st)
	case "static-lib", "public-lib":
		return p.applyStaticLib(pkg, st, st.Rule == "public-lib")
	case "dynamic-lib":
		return p.applyDynamicLib(pkg, st)
	case "dist-exe":
		return p.applyExe(pkg, st, ExeDist)
	case "priv-exe":
		return p.applyExe(pkg, st, ExePriv)
	case "test-exe":
		return p.applyExe(pkg, st, ExeTest)
	case "misc":
		return p.applyMisc(pkg, st)
	case "generate":
		return p.applyGenerate(pkg, st)
	default:
		return buberr.NewConfigError(st.Origin, "unknown rule %q", st.Rule)
	}
}

func (p *Planner) applyContain(pkg *Node, st *bubfile.Statement) error {
	privacy := Public
	if st.NArgs >= 1 && len(st.Arg(1)) > 0 {
		pr, ok := ParsePrivacy(st.Arg(1)[0])
		if !ok {
			return buberr.NewConfigError(st.Origin, "invalid privacy %q", st.Arg(1)[0])
		}
		privacy = pr
	}
	for _, name := range st.Targets {
		child := &Node{Name: name, Kind: KindPackage, Privacy: privacy}
		pkg.AddChild(child)
		p.ByTrail[child.Trail] = child
		childDir := filepath.Join(filepath.Dir(pkg.BubfilePath), name)
		bf := filepath.Join(childDir, "Bubfile")
		if err := p.processPackage(child, bf); err != nil {
			return err
		}
	}
	return nil
}

// resolveGlobs expands each pattern against the package's source
// directory, via doublestar (SPEC_FULL.md DOMAIN-1: Bubfile target
// patterns may use ** and brace globs).
func (p *Planner) resolveGlobs(pkg *Node, patterns []string) ([]string, error) {
	dir := filepath.Dir(pkg.BubfilePath)
	var out []string
	for _, pat := range patterns {
		if !strings.ContainsAny(pat, "*?[{") {
			out = append(out, pat)
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(dir), pat)
		if err != nil {
			return nil, buberr.NewConfigError(buberr.Origin{}, "bad glob %q in package %s: %v", pat, pkg.Trail, err)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

// newFileNode allocates a File-kind Node as a child of parent.
func (p *Planner) newFileNode(parent *Node, name string, kind Kind, privacy Privacy) *Node {
	n := &Node{
		Name:       name,
		Kind:       kind,
		Privacy:    privacy,
		Number:     p.nextFileNumber(),
		DependedBy: make(map[*Node]struct{}),
	}
	parent.AddChild(n)
	return n
}

func ext(path string) string {
	e := filepath.Ext(path)
	return strings.TrimPrefix(e, ".")
}

func baseNoExt(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
