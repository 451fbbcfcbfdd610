package planner

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bub-build/bub/internal/buberr"
	"github.com/bub-build/bub/internal/bubfile"
	"github.com/bub-build/bub/internal/options"
)

func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// objDir/privDir/distLibDir/distBinDir mirror the directory layout of
// spec §6.
func (p *Planner) objDir(trail string) string  { return filepath.Join(p.BuildDir, "obj", trail) }
func (p *Planner) privDir(trail string) string { return filepath.Join(p.BuildDir, "priv", trail) }
func (p *Planner) distLibDir() string          { return filepath.Join(p.BuildDir, "dist", "lib") }
func (p *Planner) distBinDir() string          { return filepath.Join(p.BuildDir, "dist", "bin") }

// addSource registers a source or header File owned by binary, without
// compiling it (used for public-src header lists, and for any source
// whose extension has no compile/generate command).
func (p *Planner) addSource(pkg *Node, binary *Binary, path string, privacy Privacy) *Node {
	n := p.newFileNode(pkg, filepath.Base(path), KindSource, privacy)
	n.Path = filepath.Join(p.SrcDir, path)
	n.Used = true
	p.registerFile(n)
	binary.Sources = append(binary.Sources, n)
	p.binaryByContent[n] = binary
	if privacy == Public {
		binary.PublicSources[n] = struct{}{}
	}
	return n
}

// compileSource processes one compilable source file: dispatches to the
// options' compile command for its extension (or, failing that, its
// generate command, for IDL-style sources embedded directly in a source
// list, whose compilable outputs are then compiled), producing an
// object Node appended to binary.Objs.
func (p *Planner) compileSource(pkg *Node, binary *Binary, srcRelPath string, privacy Privacy, origin buberr.Origin) error {
	srcNode := p.addSource(pkg, binary, srcRelPath, privacy)
	e := ext(srcRelPath)

	if cmd, ok := p.Opts.Compile[e]; ok {
		return p.compileOne(pkg, binary, srcNode, cmd, origin)
	}
	if cmd, ok := p.Opts.Generate[e]; ok {
		generated, err := p.runGenerate(pkg, cmd, []*Node{srcNode}, origin, baseNoExt(srcRelPath))
		if err != nil {
			return err
		}
		for _, g := range generated {
			if compileCmd, ok := p.Opts.Compile[ext(g.Name)]; ok {
				if err := p.compileOne(pkg, binary, g, compileCmd, origin); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return buberr.NewConfigError(origin, "no compile or generate command for extension %q", e)
}

func (p *Planner) compileOne(pkg *Node, binary *Binary, srcNode *Node, cmd *options.Command, origin buberr.Origin) error {
	if err := p.checkSourceFamily(binary, ext(srcNode.Name)); err != nil {
		return err
	}
	objNode := p.newFileNode(pkg, baseNoExt(srcNode.Name)+".o", KindGenerated, Private)
	objNode.Path = filepath.Join(p.objDir(pkg.Trail), baseNoExt(srcNode.Name)+".o")
	p.binaryByContent[objNode] = binary

	num := p.nextActionNumber()
	name := objNode.Path
	a := NewAction(origin, name, cmd.Template, num, []*Node{srcNode}, []*Node{objNode}, pkg.Bubfile)
	p.finalizeAction(a, num)
	p.registerFile(objNode)
	binary.Objs = append(binary.Objs, objNode)
	return nil
}

func fmtDepsFile(n int) string {
	return "DEPENDENCIES-" + strconv.Itoa(n)
}

// finalizeAction completes Action construction per spec §4.4: assigns
// the per-action deps path, records the action in AllActions, scans the
// raw command template for tokens naming a previously declared built
// File (so a command invoking an in-project tool depends on it), and
// consults the dependency cache for the action's first build output to
// seed Newest/ForceDirty ahead of the first dirtiness check.
func (p *Planner) finalizeAction(a *Action, num int) {
	a.DepsPath = filepath.Join(p.BuildDir, "tmp", fmtDepsFile(num))
	p.AllActions = append(p.AllActions, a)
	p.scanTemplateForToolDeps(a)
	p.accumulateCachedDeps(a)
}

// scanTemplateForToolDeps implements spec §4.4's construction-time
// command scan: any whitespace-separated token in the action's raw
// command template that names a previously declared, already-built File
// is added as a dependency — this is how a command invoking a
// previously declared in-project tool gets rebuilt when that tool
// changes.
func (p *Planner) scanTemplateForToolDeps(a *Action) {
	for _, tok := range strings.Fields(a.Template) {
		file, ok := p.ByPath[tok]
		if !ok {
			file, ok = p.ByPath[filepath.Join(p.SrcDir, tok)]
		}
		if !ok {
			file, ok = p.ByPath[filepath.Join(p.BuildDir, tok)]
		}
		if !ok || !file.Kind.IsBuilt() {
			continue
		}
		if _, already := a.Depends[file]; already {
			continue
		}
		a.Depends[file] = struct{}{}
	}
}

// accumulateCachedDeps implements spec §4.4's construction-time cache
// consultation: the cached dependency list for the action's first build
// output is consulted once. A build-dir-relative entry that no longer
// resolves to a known File marks the action maximally dirty
// (ForceDirty); an absolute entry is stat'd once and its modTime folded
// into Newest.
func (p *Planner) accumulateCachedDeps(a *Action) {
	if len(a.Builds) == 0 {
		return
	}
	cached, ok := p.Cache.Get(a.Builds[0].Path)
	if !ok {
		return
	}
	for _, dep := range cached {
		if filepath.IsAbs(dep) {
			if info, err := os.Stat(dep); err == nil && info.ModTime().After(a.Newest) {
				a.Newest = info.ModTime()
			}
			continue
		}
		if _, known := p.ByPath[filepath.Join(p.SrcDir, dep)]; !known {
			a.ForceDirty = true
		}
	}
}

// checkSourceFamily enforces spec §3's StaticLib/Exe invariant: all objs
// share one language family except pure .c may mix with any other.
func (p *Planner) checkSourceFamily(binary *Binary, e string) error {
	if binary.SourceExt == "" {
		binary.SourceExt = e
		return nil
	}
	if e == binary.SourceExt || e == "c" || binary.SourceExt == "c" {
		return nil
	}
	return buberr.NewRuleViolation(buberr.Origin{}, "mismatched source-extension family: %q vs %q", e, binary.SourceExt)
}

func (p *Planner) applyStaticLib(pkg *Node, st *bubfile.Statement, forcePublic bool) error {
	if len(st.Targets) != 1 {
		return buberr.NewConfigError(st.Origin, "static-lib takes exactly one name")
	}
	name := st.Targets[0]
	privacy := Private
	if forcePublic {
		privacy = Public
	}
	node := p.newFileNode(pkg, name, KindStaticLib, privacy)
	binary := NewBinary(node, BinaryStaticLib)
	binary.Public = forcePublic

	pub, err := p.resolveGlobs(pkg, st.Arg(1))
	if err != nil {
		return err
	}
	for _, s := range pub {
		p.addSource(pkg, binary, s, Public)
	}

	prot, err := p.resolveGlobs(pkg, st.Arg(2))
	if err != nil {
		return err
	}
	for _, s := range prot {
		if err := p.compileSource(pkg, binary, s, Protected, st.Origin); err != nil {
			return err
		}
	}
	if len(binary.Objs) == 0 {
		return buberr.NewRuleViolation(st.Origin, "static-lib %s has no compiled objects", name)
	}
	for _, lib := range st.Arg(3) {
		binary.ReqSysLibs[lib] = p.sysLib(lib)
	}

	libFile := "lib" + strings.ReplaceAll(pkg.Trail, "/", "-") + "-" + name + "-s.a"
	var dest string
	if forcePublic {
		dest = filepath.Join(p.distLibDir(), libFile)
	} else {
		dest = filepath.Join(p.objDir(pkg.Trail), libFile)
	}
	cmd, ok := p.Opts.StaticLib[binary.SourceExt]
	if !ok {
		return buberr.NewConfigError(st.Origin, "no static-lib command for source extension %q", binary.SourceExt)
	}
	node.Path = dest
	num := p.nextActionNumber()
	a := NewAction(st.Origin, dest, cmd.Template, num, binary.Objs, []*Node{node}, pkg.Bubfile)
	p.finalizeAction(a, num)
	p.registerFile(node)
	p.binaryByContent[node] = binary
	return nil
}

func (p *Planner) applyDynamicLib(pkg *Node, st *bubfile.Statement) error {
	if len(st.Targets) != 1 {
		return buberr.NewConfigError(st.Origin, "dynamic-lib takes exactly one name")
	}
	name := st.Targets[0]
	node := p.newFileNode(pkg, name, KindDynamicLib, Public)
	binary := NewBinary(node, BinaryDynamicLib)

	for _, trail := range st.Arg(1) {
		slNode, ok := p.ByTrail[trail]
		if !ok || slNode.Kind != KindStaticLib {
			return buberr.NewUnknownEntity(st.Origin, "dynamic-lib %s references unknown static-lib %q", name, trail)
		}
		binary.Contains = append(binary.Contains, slNode)
		p.dynLibByContent[slNode] = binary
		binary.SourceExt = slNode.Binary.SourceExt
		for libName, lib := range slNode.Binary.ReqSysLibs {
			binary.ReqSysLibs[libName] = lib
		}
	}

	destDir := p.distLibDir()
	if d := st.Arg(2); len(d) > 0 {
		destDir = filepath.Join(p.BuildDir, d[0])
	}
	libFile := "lib" + name + ".so"
	node.Path = filepath.Join(destDir, libFile)

	cmd, ok := p.Opts.DynamicLib[binary.SourceExt]
	if !ok {
		return buberr.NewConfigError(st.Origin, "no dynamic-lib command for source extension %q", binary.SourceExt)
	}
	var inputs []*Node
	for _, sl := range binary.Contains {
		inputs = append(inputs, sl)
	}
	num := p.nextActionNumber()
	a := NewAction(st.Origin, node.Path, cmd.Template, num, inputs, []*Node{node}, pkg.Bubfile)
	p.finalizeAction(a, num)
	p.registerFile(node)
	p.binaryByContent[node] = binary
	return nil
}

func (p *Planner) applyExe(pkg *Node, st *bubfile.Statement, flavor ExeFlavor) error {
	if len(st.Targets) != 1 {
		return buberr.NewConfigError(st.Origin, "exe rule takes exactly one name")
	}
	name := st.Targets[0]
	kind := KindExe
	if flavor == ExeTest {
		kind = KindTestResult
	}
	node := p.newFileNode(pkg, name, kind, Private)
	binary := NewBinary(node, BinaryExe)
	binary.ExeFlavor = flavor

	srcs, err := p.resolveGlobs(pkg, st.Arg(1))
	if err != nil {
		return err
	}
	for _, s := range srcs {
		if err := p.compileSource(pkg, binary, s, Private, st.Origin); err != nil {
			return err
		}
	}
	if len(binary.Objs) == 0 {
		return buberr.NewRuleViolation(st.Origin, "exe %s has no compiled objects", name)
	}
	for _, lib := range st.Arg(2) {
		binary.ReqSysLibs[lib] = p.sysLib(lib)
	}
	if flavor == ExeTest {
		if t := st.Arg(3); len(t) > 0 {
			d, derr := parseDuration(t[0])
			if derr != nil {
				return buberr.NewConfigError(st.Origin, "bad test-exe timeout %q: %v", t[0], derr)
			}
			node.TestTimeout = d
			binary.Timeout = d
		}
	}

	var destDir string
	switch flavor {
	case ExeDist:
		destDir = p.distBinDir()
	default:
		destDir = p.privDir(pkg.Trail)
	}
	node.Path = filepath.Join(destDir, name)

	cmd, ok := p.Opts.Exe[binary.SourceExt]
	if !ok {
		return buberr.NewConfigError(st.Origin, "no exe command for source extension %q", binary.SourceExt)
	}
	num := p.nextActionNumber()
	a := NewAction(st.Origin, node.Path, cmd.Template, num, binary.Objs, []*Node{node}, pkg.Bubfile)
	p.finalizeAction(a, num)
	p.registerFile(node)
	p.binaryByContent[node] = binary
	return nil
}

func (p *Planner) applyMisc(pkg *Node, st *bubfile.Statement) error {
	paths, err := p.resolveGlobs(pkg, st.Targets)
	if err != nil {
		return err
	}
	for _, rel := range paths {
		n := p.newFileNode(pkg, filepath.Base(rel), KindSource, Public)
		n.Path = filepath.Join(p.SrcDir, rel)
		p.registerFile(n)
	}
	return nil
}

func (p *Planner) applyGenerate(pkg *Node, st *bubfile.Statement) error {
	if len(st.Arg(1)) != 1 {
		return buberr.NewConfigError(st.Origin, "generate expects exactly one command field")
	}
	template := st.Arg(1)[0]
	inputsRel, err := p.resolveGlobs(pkg, st.Arg(2))
	if err != nil {
		return err
	}
	var inputs []*Node
	for _, rel := range inputsRel {
		n := p.newFileNode(pkg, filepath.Base(rel), KindSource, Protected)
		n.Path = filepath.Join(p.SrcDir, rel)
		p.registerFile(n)
		inputs = append(inputs, n)
	}
	destDir := p.objDir(pkg.Trail)
	if d := st.Arg(3); len(d) > 0 {
		destDir = filepath.Join(p.BuildDir, d[0])
	}

	var builds []*Node
	for _, name := range st.Targets {
		n := p.newFileNode(pkg, name, KindGenerated, Protected)
		n.Path = filepath.Join(destDir, name)
		builds = append(builds, n)
	}
	num := p.nextActionNumber()
	a := NewAction(st.Origin, st.Targets[0], template, num, inputs, builds, pkg.Bubfile)
	p.finalizeAction(a, num)
	a.IsGenerator = hasSourceKindOutput(st.Targets)
	if a.IsGenerator {
		p.generators = append(p.generators, num)
		p.recomputeFence()
	}
	for _, n := range builds {
		p.registerFile(n)
	}
	return nil
}

// hasSourceKindOutput reports whether any generate target looks like a
// compile-family source file rather than a pure object, per spec §4.4's
// generator-fence trigger ("produces source-kind files").
func hasSourceKindOutput(targets []string) bool {
	for _, t := range targets {
		e := ext(t)
		if e != "obj" && e != "" {
			return true
		}
	}
	return false
}

// runGenerate dispatches an ad-hoc generate command for auto-dispatched
// sources (see compileSource), returning the produced Nodes.
func (p *Planner) runGenerate(pkg *Node, cmd *options.Command, inputs []*Node, origin buberr.Origin, baseName string) ([]*Node, error) {
	var builds []*Node
	for _, outExt := range cmd.OutputExts {
		n := p.newFileNode(pkg, baseName+"."+outExt, KindGenerated, Protected)
		n.Path = filepath.Join(p.objDir(pkg.Trail), baseName+"."+outExt)
		builds = append(builds, n)
	}
	num := p.nextActionNumber()
	a := NewAction(origin, builds[0].Path, cmd.Template, num, inputs, builds, pkg.Bubfile)
	p.finalizeAction(a, num)
	a.IsGenerator = hasSourceKindOutput(cmd.OutputExts)
	if a.IsGenerator {
		p.generators = append(p.generators, num)
		p.recomputeFence()
	}
	for _, n := range builds {
		p.registerFile(n)
	}
	return builds, nil
}
