package planner

// SysLib is an external system library referenced via a Binary's
// sys-libs field (spec §3 "SysLib"). Only its declaration order matters;
// link-line position is otherwise unconstrained.
type SysLib struct {
	Name   string
	Number int
}
