package planner

import "time"

// BinaryKind distinguishes the three Binary variants of spec §3.
type BinaryKind int

const (
	BinaryStaticLib BinaryKind = iota
	BinaryDynamicLib
	BinaryExe
)

// ExeFlavor distinguishes the three Exe flavors spec §4.2 names:
// dist-exe, priv-exe, test-exe.
type ExeFlavor int

const (
	ExeDist ExeFlavor = iota
	ExePriv
	ExeTest
)

// Binary is the abstract "built File that aggregates source Files and
// their compiled objects" of spec §3. It is held in Node.Binary for
// Nodes of Kind StaticLib/DynamicLib/Exe/TestResult.
type Binary struct {
	Kind BinaryKind
	Node *Node // the built Node this Binary augments

	Sources []*Node
	Objs     []*Node
	SourceExt string // language-family signature of Sources[0], once known

	PublicSources map[*Node]struct{} // subset of Sources that are public headers

	ReqSysLibs map[string]*SysLib // declared sys-libs, by name

	Public bool // StaticLib only: distributable to dist/lib

	ExeFlavor ExeFlavor // valid when Kind == BinaryExe

	Contains []*Node // DynamicLib only: the StaticLib Nodes it packages

	Timeout     time.Duration // test-exe only
	RuntimeDeps []*Node       // test-exe only
}

// NewBinary allocates a Binary and wires it into node.Binary.
func NewBinary(node *Node, kind BinaryKind) *Binary {
	b := &Binary{
		Kind:          kind,
		Node:          node,
		PublicSources: make(map[*Node]struct{}),
		ReqSysLibs:    make(map[string]*SysLib),
	}
	node.Binary = b
	return b
}
