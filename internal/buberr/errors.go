// Package buberr defines the typed error hierarchy used across the
// planner (spec §7): ConfigError, RuleViolation, UnknownEntity,
// ActionFailure and SchedulerInvariant. Each carries an optional origin
// (file/line) so the CLI can print the "<path>|<line>| ERROR: " prefix
// and pick an exit code without string-matching error text.
package buberr

import "fmt"

// Origin identifies the file/line a declarative statement came from, used
// to prefix user-visible error lines per spec §7.
type Origin struct {
	Path string
	Line int
}

func (o Origin) String() string {
	if o.Path == "" {
		return ""
	}
	return fmt.Sprintf("%s|%d|", o.Path, o.Line)
}

// ConfigError: malformed options or Bubfile, unknown rule, bad extension
// classification, reserved-extension misuse, duplicate variable definition.
type ConfigError struct {
	Origin Origin
	Msg    string
}

func (e *ConfigError) Error() string {
	if e.Origin.Path != "" {
		return fmt.Sprintf("%s ERROR: %s", e.Origin, e.Msg)
	}
	return "ERROR: " + e.Msg
}

func NewConfigError(origin Origin, format string, a ...any) *ConfigError {
	return &ConfigError{Origin: origin, Msg: fmt.Sprintf(format, a...)}
}

// RuleViolation: visibility breach, circular reference, forward reference,
// package-descendant dependency, Binary reusing a source already used,
// mismatched source-extension family.
type RuleViolation struct {
	Origin Origin
	Msg    string
}

func (e *RuleViolation) Error() string {
	if e.Origin.Path != "" {
		return fmt.Sprintf("%s ERROR: %s", e.Origin, e.Msg)
	}
	return "ERROR: " + e.Msg
}

func NewRuleViolation(origin Origin, format string, a ...any) *RuleViolation {
	return &RuleViolation{Origin: origin, Msg: fmt.Sprintf(format, a...)}
}

// UnknownEntity: include of an unknown in-project file, reference to an
// undefined static-lib trail, or (downgraded, non-fatal) a cached dep
// referencing an unknown path.
type UnknownEntity struct {
	Origin Origin
	Msg    string
}

func (e *UnknownEntity) Error() string {
	if e.Origin.Path != "" {
		return fmt.Sprintf("%s ERROR: %s", e.Origin, e.Msg)
	}
	return "ERROR: " + e.Msg
}

func NewUnknownEntity(origin Origin, format string, a ...any) *UnknownEntity {
	return &UnknownEntity{Origin: origin, Msg: fmt.Sprintf(format, a...)}
}

// ActionFailure: a worker reported a non-zero exit. Stderr is captured and
// partial outputs are deleted by the caller before this is constructed.
type ActionFailure struct {
	ActionName string
	Stderr     string
	Err        error
}

func (e *ActionFailure) Error() string {
	return fmt.Sprintf("action %q failed: %v\n%s", e.ActionName, e.Err, e.Stderr)
}

func (e *ActionFailure) Unwrap() error { return e.Err }

// SchedulerInvariant: all workers idle, work outstanding. Indicates a bug
// in the dependency graph (a deadlock), not a user error.
type SchedulerInvariant struct {
	Msg string
}

func (e *SchedulerInvariant) Error() string {
	return "scheduler invariant violated: " + e.Msg
}
