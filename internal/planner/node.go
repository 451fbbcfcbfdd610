// Package planner is the core of bub (spec §2-§9): Bubfile-driven
// construction of the package/file ownership tree, the visibility
// calculus, the action graph, the dirty-rebuild file state machine, the
// binary/library inference pass, and the scheduler that drives workers.
//
// Following spec §9's design note, all of the cross-linked indices that
// the original tool kept as globals (Node.byTrail, File.byPath,
// Binary.byContent, ...) are fields of a single Planner value (see
// planner.go) rather than package-level state.
package planner

import "time"

// Privacy is the three-level visibility attribute of spec §3/§4.3.
// Ordered so that comparisons (>, >=) express "more restrictive than".
type Privacy int

const (
	Public Privacy = iota
	Protected
	Private
)

func (p Privacy) String() string {
	switch p {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "invalid"
	}
}

// ParsePrivacy maps a Bubfile privacy keyword to a Privacy value. An
// empty string defaults to Public (spec §4.2's "contain targets [: privacy]").
func ParsePrivacy(s string) (Privacy, bool) {
	switch s {
	case "", "public":
		return Public, true
	case "protected":
		return Protected, true
	case "private":
		return Private, true
	default:
		return 0, false
	}
}

// Kind discriminates what a Node represents. Following the "sealed
// variant" design note (spec §9), a single Node struct carries the union
// of fields for every kind instead of an open inheritance hierarchy;
// Kind says which fields are meaningful.
type Kind int

const (
	KindPackage Kind = iota
	KindSource
	KindGenerated
	KindStaticLib
	KindDynamicLib
	KindExe
	KindTestResult
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindSource:
		return "source"
	case KindGenerated:
		return "generated"
	case KindStaticLib:
		return "static-lib"
	case KindDynamicLib:
		return "dynamic-lib"
	case KindExe:
		return "exe"
	case KindTestResult:
		return "test-result"
	default:
		return "invalid"
	}
}

// IsBuilt reports whether files of this kind are produced by an Action
// rather than being raw sources.
func (k Kind) IsBuilt() bool {
	switch k {
	case KindGenerated, KindStaticLib, KindDynamicLib, KindExe, KindTestResult:
		return true
	default:
		return false
	}
}

// Node is a vertex in the package ownership tree (spec §3). It doubles
// as the File data model: Files are Nodes with Kind != KindPackage.
type Node struct {
	// Tree fields, meaningful for every Node.
	Name     string
	Trail    string
	Parent   *Node
	Privacy  Privacy
	Children []*Node // insertion-ordered: determines declaration order
	Refers   []*Node // explicit outbound non-ownership edges

	Kind Kind

	// Package fields (Kind == KindPackage).
	BubfilePath string // on-disk path to this package's Bubfile
	Bubfile     *Node  // the File Node for the Bubfile itself (public)

	// File fields (Kind != KindPackage).
	Path       string // absolute-in-build-dir path
	Number     int    // monotonic creation order
	Built      bool
	ModTime    time.Time
	Action     *Action
	DependedBy map[*Node]struct{} // reverse edges
	Used       bool
	Augmented  bool

	// test-exe / TestResultFile-only (spec §3 DOMAIN-2).
	TestTimeout time.Duration
	RuntimeDeps []*Node

	// Binary-only (Kind in {KindStaticLib, KindDynamicLib, KindExe, KindTestResult}).
	Binary *Binary
}

func (n *Node) String() string {
	if n.Kind == KindPackage {
		return "package:" + n.Trail
	}
	return n.Kind.String() + ":" + n.Trail
}

// NewRoot creates the tree root: empty name, no parent, per spec §3
// invariant "root has empty name and no parent".
func NewRoot() *Node {
	return &Node{Kind: KindPackage, Privacy: Public}
}

// trailOf computes the slash-joined trail for a child of parent.
func trailOf(parent *Node, name string) string {
	if parent == nil || parent.Trail == "" {
		return name
	}
	return parent.Trail + "/" + name
}

// AddChild appends child to parent's children (insertion order defines
// declaration order, spec §3 invariant) and wires Parent/Trail.
func (parent *Node) AddChild(child *Node) {
	child.Parent = parent
	child.Trail = trailOf(parent, child.Name)
	parent.Children = append(parent.Children, child)
}

// IsDescendantOf reports whether n is a (reflexive) descendant of anc:
// true if n == anc or anc is reached by walking n's Parent chain.
func (n *Node) IsDescendantOf(anc *Node) bool {
	cur := n
	for cur != nil {
		if cur == anc {
			return true
		}
		cur = cur.Parent
	}
	return false
}

// IsStrictDescendantOf excludes the reflexive case.
func (n *Node) IsStrictDescendantOf(anc *Node) bool {
	return n != anc && n.IsDescendantOf(anc)
}

// NearestPackage walks up from n (inclusive) to the owning Package Node.
func (n *Node) NearestPackage() *Node {
	cur := n
	for cur != nil {
		if cur.Kind == KindPackage {
			return cur
		}
		cur = cur.Parent
	}
	return nil
}

// CommonAncestor returns the lowest common ancestor of a and b in the
// ownership tree, or nil if they belong to disjoint trees (should not
// happen for Nodes sharing one Planner).
func CommonAncestor(a, b *Node) *Node {
	ancestors := make(map[*Node]struct{})
	for cur := a; cur != nil; cur = cur.Parent {
		ancestors[cur] = struct{}{}
	}
	for cur := b; cur != nil; cur = cur.Parent {
		if _, ok := ancestors[cur]; ok {
			return cur
		}
	}
	return nil
}

// maxWalkDepth bounds reference-walks per spec §9's design note ("bound
// walk depth... and fail with a diagnostic naming the walk endpoints
// rather than rely on a visited-set alone").
const maxWalkDepth = 100

// IsVisibleFrom answers question 2 of spec §4.3: "is x visible from y's
// viewpoint?". x is the node being depended upon; y is (conventionally)
// the common ancestor of the two files involved in a dependency edge.
//
// x is trivially visible from itself, and always visible from its own
// owning package (home), regardless of its declared privacy. Beyond
// home, visibility is governed by how many package levels separate home
// from y: private never escapes home (0 levels), protected reaches
// exactly one level up (home's parent and, by extension, that parent's
// other descendants), public reaches arbitrarily far. That budget only
// applies along an unbroken chain of Public ancestor packages, though:
// each ancestor strictly between home (inclusive) and y (exclusive) also
// contributes its own declared privacy to the accumulation, and any
// ancestor that is not itself Public — Protected as much as Private —
// is an absolute wall, since transiting a non-Public package is exactly
// the kind of escape its own declared privacy excludes. None of x's
// contents are visible past such a wall regardless of x's own privacy.
func IsVisibleFrom(x, y *Node) bool {
	if x == y {
		return true
	}
	home := x.Parent
	if home == nil {
		return false
	}
	if home == y {
		return true
	}

	hops := 0
	cur := home
	for cur != y {
		if cur.Privacy != Public {
			return false
		}
		cur = cur.Parent
		hops++
		if cur == nil || hops > maxWalkDepth {
			return false
		}
	}

	switch x.Privacy {
	case Public:
		return true
	case Protected:
		return hops <= 1
	default: // Private
		return false
	}
}
