package scanner

import (
	"strings"
	"testing"
)

func TestScanCIncludesSkipsAngleBrackets(t *testing.T) {
	src := `#include <stdio.h>
#include "p/lo/lo.h"
  #include   "nested/path.h"
`
	got, err := Scan(strings.NewReader(src), FamilyC, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"p/lo/lo.h", "nested/path.h"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScanDImportsSkipsExternal(t *testing.T) {
	src := `import std.stdio;
import p.lo.lo;
`
	external := map[string]bool{"std.stdio": true}
	got, err := Scan(strings.NewReader(src), FamilyD, external)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 || got[0] != "p/lo/lo" {
		t.Fatalf("got %v, want [p/lo/lo]", got)
	}
}
