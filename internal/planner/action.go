package planner

import (
	"container/heap"
	"sort"
	"strings"
	"time"

	"github.com/bub-build/bub/internal/buberr"
	"github.com/bub-build/bub/internal/options"
)

// Action is a build step (spec §3 "Action", §4.4).
type Action struct {
	Origin   buberr.Origin
	Name     string
	Template string // raw command template, ${...} fences unresolved
	Number   int

	Inputs  map[*Node]struct{}
	Builds  []*Node
	Depends map[*Node]struct{}

	inputOrder []*Node // Inputs in declaration order, for ${INPUT} expansion

	Newest     time.Time // max system-file modTime learnt from the cache
	ForceDirty bool      // set when a cached dep resolves to an unknown File (spec §4.4)

	Libs []string // resolved by the library-inference pass, binary actions only

	Issued    bool
	Done      bool
	augmented bool   // augmentAction has run; see planner.issueIfReady
	DepsPath  string // DEPENDENCIES-<number>

	// IsGenerator marks an action whose output extension is not an
	// object file but which produces source-kind files (spec §4.4
	// "generator fence").
	IsGenerator bool
}

// NewAction allocates an Action. depends starts as inputs plus the
// owning package's build file, per spec §4.4.
func NewAction(origin buberr.Origin, name, template string, number int, inputs []*Node, builds []*Node, packageBubfile *Node) *Action {
	a := &Action{
		Origin:   origin,
		Name:     name,
		Template: template,
		Number:   number,
		Inputs:   make(map[*Node]struct{}, len(inputs)),
		Builds:   builds,
		Depends:  make(map[*Node]struct{}, len(inputs)+1),
	}
	for _, in := range inputs {
		a.Inputs[in] = struct{}{}
		a.Depends[in] = struct{}{}
	}
	a.inputOrder = append(a.inputOrder, inputs...)
	if packageBubfile != nil {
		a.Depends[packageBubfile] = struct{}{}
	}
	for _, b := range builds {
		b.Action = a
	}
	return a
}

// ResolveCommand expands the action's template with the builtin
// INPUT/OUTPUT/DEPS/LIBS variables (spec §4.1), joining the result into
// one shell command line.
func (a *Action) ResolveCommand(vars map[string][]string) string {
	inputs := make([]string, len(a.inputOrder))
	for i, n := range a.inputOrder {
		inputs[i] = n.Path
	}
	outputs := make([]string, len(a.Builds))
	for i, n := range a.Builds {
		outputs[i] = n.Path
	}
	builtins := map[string][]string{
		"INPUT":  inputs,
		"OUTPUT": outputs,
		"DEPS":   {a.DepsPath},
		"LIBS":   a.Libs,
	}
	tokens := options.Expand(a.Template, builtins, vars)
	return strings.Join(tokens, " ")
}

// TargetPaths returns the on-disk paths of every File this action builds.
func (a *Action) TargetPaths() []string {
	paths := make([]string, len(a.Builds))
	for i, n := range a.Builds {
		paths[i] = n.Path
	}
	return paths
}

// AddDependency implements spec §4.4's addDependency: legal only while
// the action builds a single File and has not yet been issued; adding
// an existing dependency is a no-op.
func (a *Action) AddDependency(file *Node) error {
	if len(a.Builds) != 1 {
		return buberr.NewRuleViolation(a.Origin, "addDependency on a frozen multi-output action "+a.Name)
	}
	if a.Issued {
		return buberr.NewRuleViolation(a.Origin, "addDependency after action "+a.Name+" was issued")
	}
	if _, ok := a.Depends[file]; ok {
		return nil
	}
	a.Depends[file] = struct{}{}
	return nil
}

// DependsClean reports whether every dependency is up-to-date (built
// with Action == nil and not in the outstanding set, or a pure source).
func (a *Action) DependsClean(outstanding map[*Node]struct{}) bool {
	for dep := range a.Depends {
		if _, busy := outstanding[dep]; busy {
			return false
		}
	}
	return true
}

// actionHeap is a container/heap.Interface ordering by ascending Number,
// implementing spec §3's "max-priority queue keyed so the lowest action
// number is dequeued first".
type actionHeap []*Action

func (h actionHeap) Len() int            { return len(h) }
func (h actionHeap) Less(i, j int) bool  { return h[i].Number < h[j].Number }
func (h actionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *actionHeap) Push(x any)         { *h = append(*h, x.(*Action)) }
func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// ActionQueue dispatches ready actions in declaration order.
type ActionQueue struct {
	h actionHeap
}

// NewActionQueue returns an empty, initialized queue.
func NewActionQueue() *ActionQueue {
	q := &ActionQueue{}
	heap.Init(&q.h)
	return q
}

// Push enqueues an action as ready to dispatch.
func (q *ActionQueue) Push(a *Action) {
	heap.Push(&q.h, a)
}

// Len reports the number of queued actions.
func (q *ActionQueue) Len() int { return q.h.Len() }

// Peek returns the lowest-numbered queued action without removing it,
// or nil if empty.
func (q *ActionQueue) Peek() *Action {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// Pop removes and returns the lowest-numbered queued action.
func (q *ActionQueue) Pop() *Action {
	return heap.Pop(&q.h).(*Action)
}

// Snapshot returns every queued action in dispatch order, without
// removing them (used by "bub plan" to report what would run).
func (q *ActionQueue) Snapshot() []*Action {
	out := make([]*Action, len(q.h))
	copy(out, q.h)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
