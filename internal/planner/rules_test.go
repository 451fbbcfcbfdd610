package planner

import (
	"testing"
	"time"
)

func TestParseDurationAcceptsGoDurationsAndBareSeconds(t *testing.T) {
	d, err := parseDuration("2s")
	if err != nil || d != 2*time.Second {
		t.Fatalf("parseDuration(2s) = %v, %v", d, err)
	}
	d, err = parseDuration("30")
	if err != nil || d != 30*time.Second {
		t.Fatalf("parseDuration(30) = %v, %v", d, err)
	}
	if _, err := parseDuration("not-a-duration"); err == nil {
		t.Fatalf("expected an error for an unparseable duration")
	}
}

func TestFmtDepsFile(t *testing.T) {
	if got := fmtDepsFile(7); got != "DEPENDENCIES-7" {
		t.Fatalf("fmtDepsFile(7) = %q, want DEPENDENCIES-7", got)
	}
}

func TestHasSourceKindOutput(t *testing.T) {
	if hasSourceKindOutput([]string{"a.obj"}) {
		t.Fatalf("a plain .obj target should not trip the generator fence")
	}
	if !hasSourceKindOutput([]string{"a.c"}) {
		t.Fatalf("a .c target should trip the generator fence")
	}
}

func TestCheckSourceFamilyAllowsCMixing(t *testing.T) {
	p := newTestPlanner()
	b := &Binary{}

	if err := p.checkSourceFamily(b, "cc"); err != nil {
		t.Fatalf("first extension should always be accepted: %v", err)
	}
	if err := p.checkSourceFamily(b, "c"); err != nil {
		t.Fatalf("plain .c should be allowed alongside any family: %v", err)
	}
	if err := p.checkSourceFamily(b, "rs"); err == nil {
		t.Fatalf("expected rejection mixing .cc and .rs in the same binary")
	}
}

func TestCheckSourceFamilyRejectsMismatch(t *testing.T) {
	p := newTestPlanner()
	b := &Binary{SourceExt: "cc"}
	if err := p.checkSourceFamily(b, "rs"); err == nil {
		t.Fatalf("expected rejection for mismatched source extensions")
	}
}

func TestExtAndBaseNoExt(t *testing.T) {
	if got := ext("src/a.cc"); got != "cc" {
		t.Fatalf("ext = %q, want cc", got)
	}
	if got := ext("src/noext"); got != "" {
		t.Fatalf("ext(no extension) = %q, want empty", got)
	}
	if got := baseNoExt("src/sub/a.cc"); got != "a" {
		t.Fatalf("baseNoExt = %q, want a", got)
	}
}

func TestAddSourceRegistersIntoBinary(t *testing.T) {
	p := newTestPlanner()
	pkg := mkPkg(p.Root, "p", Public)
	b := NewBinary(&Node{Kind: KindStaticLib}, BinaryStaticLib)

	n := p.addSource(pkg, b, "a.h", Public)
	if n.Path == "" {
		t.Fatalf("addSource must set the File's on-disk path")
	}
	if len(b.Sources) != 1 || b.Sources[0] != n {
		t.Fatalf("addSource must append to binary.Sources")
	}
	if _, ok := b.PublicSources[n]; !ok {
		t.Fatalf("a Public source must be recorded in PublicSources")
	}
	if p.binaryByContent[n] != b {
		t.Fatalf("addSource must index the File into binaryByContent")
	}
}

