package planner

import "testing"

func TestNewBinaryWiresNodeAndInitializesMaps(t *testing.T) {
	node := &Node{Kind: KindStaticLib}
	b := NewBinary(node, BinaryStaticLib)

	if node.Binary != b {
		t.Fatalf("NewBinary must wire node.Binary")
	}
	if b.PublicSources == nil || b.ReqSysLibs == nil {
		t.Fatalf("NewBinary must initialize PublicSources and ReqSysLibs maps")
	}
	if b.Kind != BinaryStaticLib || b.Node != node {
		t.Fatalf("NewBinary did not set Kind/Node correctly")
	}
}
