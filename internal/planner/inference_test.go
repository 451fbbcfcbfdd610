package planner

import (
	"path/filepath"
	"testing"

	"github.com/bub-build/bub/internal/buberr"
)

// setupStaticLib builds a minimal static-lib Binary owning one public
// header and one compiled object, requiring sys-lib "m".
func setupStaticLib(p *Planner, pkg *Node) (slNode *Node, slBinary *Binary) {
	slNode = p.newFileNode(pkg, "libfoo", KindStaticLib, Private)
	slNode.Path = filepath.Join(p.BuildDir, "obj", "p", "libfoo-s.a")
	slBinary = NewBinary(slNode, BinaryStaticLib)
	slBinary.ReqSysLibs["m"] = p.sysLib("m")

	header := p.newFileNode(pkg, "foo.h", KindSource, Public)
	header.Path = filepath.Join(p.SrcDir, "foo.h")
	p.binaryByContent[header] = slBinary
	slBinary.Sources = append(slBinary.Sources, header)
	p.registerFile(header)

	slObj := p.newFileNode(pkg, "foo.o", KindGenerated, Private)
	slObj.Path = filepath.Join(p.BuildDir, "obj", "p", "foo.o")
	p.binaryByContent[slObj] = slBinary
	slBinary.Objs = append(slBinary.Objs, slObj)
	p.registerFile(slObj)
	p.registerFile(slNode)
	return slNode, slBinary
}

// setupExe builds a minimal exe Binary with one object and a link
// Action, whose cached dependency is the static lib's header.
func setupExe(p *Planner, pkg *Node, headerRelPath string) (exeNode *Node, action *Action) {
	exeNode = p.newFileNode(pkg, "prog", KindExe, Private)
	exeNode.Path = filepath.Join(p.BuildDir, "dist", "bin", "prog")
	exeBinary := NewBinary(exeNode, BinaryExe)

	mainObj := p.newFileNode(pkg, "main.o", KindGenerated, Private)
	mainObj.Path = filepath.Join(p.BuildDir, "obj", "p", "main.o")
	p.binaryByContent[mainObj] = exeBinary
	exeBinary.Objs = append(exeBinary.Objs, mainObj)
	p.registerFile(mainObj)
	p.registerFile(exeNode)

	p.Cache.Set(mainObj.Path, []string{headerRelPath})

	action = NewAction(buberr.Origin{}, exeNode.Path, "", p.nextActionNumber(), exeBinary.Objs, []*Node{exeNode}, nil)
	exeNode.Action = action
	return exeNode, action
}

func TestInferLibrariesResolvesStaticLib(t *testing.T) {
	p := newTestPlanner()
	pkg := mkPkg(p.Root, "p", Public)
	slNode, _ := setupStaticLib(p, pkg)
	exeNode, action := setupExe(p, pkg, "foo.h")

	addedDeps, err := p.inferLibraries(exeNode)
	if err != nil {
		t.Fatalf("inferLibraries: %v", err)
	}
	if !addedDeps {
		t.Fatalf("expected the static lib to be added as a new dependency")
	}
	if _, ok := action.Depends[slNode]; !ok {
		t.Fatalf("expected action to depend on the static lib after inference")
	}
	want := []string{slNode.Path, "m"}
	if len(action.Libs) != len(want) || action.Libs[0] != want[0] || action.Libs[1] != want[1] {
		t.Fatalf("action.Libs = %v, want %v", action.Libs, want)
	}
}

func TestInferLibrariesPrefersEarlierDynamicLib(t *testing.T) {
	p := newTestPlanner()
	pkg := mkPkg(p.Root, "p", Public)
	slNode, _ := setupStaticLib(p, pkg)

	dlNode := p.newFileNode(pkg, "libfoo.so", KindDynamicLib, Public)
	dlNode.Path = filepath.Join(p.BuildDir, "dist", "lib", "libfoo.so")
	dlBinary := NewBinary(dlNode, BinaryDynamicLib)
	dlBinary.Contains = append(dlBinary.Contains, slNode)
	p.dynLibByContent[slNode] = dlBinary
	p.registerFile(dlNode)

	exeNode, action := setupExe(p, pkg, "foo.h")

	if dlNode.Number >= exeNode.Number {
		t.Fatalf("test setup requires the dynamic lib to be declared before the exe")
	}

	addedDeps, err := p.inferLibraries(exeNode)
	if err != nil {
		t.Fatalf("inferLibraries: %v", err)
	}
	if !addedDeps {
		t.Fatalf("expected the dynamic lib to be added as a new dependency")
	}
	if _, ok := action.Depends[slNode]; ok {
		t.Fatalf("expected the bare static lib NOT to be linked once an earlier dynamic lib packages it")
	}
	if _, ok := action.Depends[dlNode]; !ok {
		t.Fatalf("expected action to depend on the dynamic lib")
	}
	want := []string{dlNode.Path, "m"}
	if len(action.Libs) != len(want) || action.Libs[0] != want[0] || action.Libs[1] != want[1] {
		t.Fatalf("action.Libs = %v, want %v", action.Libs, want)
	}
}

func TestInferLibrariesRejectsDynamicLibOverBareStatic(t *testing.T) {
	p := newTestPlanner()
	pkg := mkPkg(p.Root, "p", Public)
	_, _ = setupStaticLib(p, pkg)

	dlNode := p.newFileNode(pkg, "libbar.so", KindDynamicLib, Public)
	dlNode.Path = filepath.Join(p.BuildDir, "dist", "lib", "libbar.so")
	dlBinary := NewBinary(dlNode, BinaryDynamicLib)

	objNode := p.newFileNode(pkg, "bar.o", KindGenerated, Private)
	objNode.Path = filepath.Join(p.BuildDir, "obj", "p", "bar.o")
	p.binaryByContent[objNode] = dlBinary
	dlBinary.Objs = append(dlBinary.Objs, objNode)
	p.registerFile(objNode)
	p.registerFile(dlNode)

	p.Cache.Set(objNode.Path, []string{"foo.h"})
	action := NewAction(buberr.Origin{}, dlNode.Path, "", p.nextActionNumber(), dlBinary.Objs, []*Node{dlNode}, nil)
	dlNode.Action = action

	if _, err := p.inferLibraries(dlNode); err == nil {
		t.Fatalf("expected rejection: a dynamic lib may not link a bare static lib not yet packaged by an earlier dynamic lib")
	}
}
