// Package options parses the build-directory options file (spec §4.1,
// §6): a line-oriented key=value store where keys beginning with "."
// describe build commands (compile / generate / static-lib / dynamic-lib
// / exe) classified by their output file extensions, and all other keys
// are variables available to ${NAME} expansion.
//
// This file is produced by the build-directory bootstrap tool, which is
// an external collaborator (spec §1) — this package only consumes it.
package options

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/bub-build/bub/internal/buberr"
)

// Kind classifies a "." key by the shape of its output extensions.
type Kind int

const (
	KindCompile Kind = iota
	KindGenerate
	KindStaticLib
	KindDynamicLib
	KindExe
)

func (k Kind) String() string {
	switch k {
	case KindCompile:
		return "compile"
	case KindGenerate:
		return "generate"
	case KindStaticLib:
		return "static-lib"
	case KindDynamicLib:
		return "dynamic-lib"
	case KindExe:
		return "exe"
	default:
		return "unknown"
	}
}

var reservedExts = map[string]Kind{
	"obj":  KindCompile,
	"slib": KindStaticLib,
	"dlib": KindDynamicLib,
	"exe":  KindExe,
}

// Command is one classified "." entry: an input extension mapped to a
// command template and, for generate commands, the side-suffix output
// extensions it produces.
type Command struct {
	Kind       Kind
	InputExt   string
	OutputExts []string // for KindGenerate: the produced suffixes; otherwise len==1 ("obj"/"slib"/"dlib"/"exe")
	Template   string
	Origin     buberr.Origin
}

// Options is the fully parsed and classified options file.
type Options struct {
	Vars       map[string][]string
	Compile    map[string]*Command // keyed by input extension
	Generate   map[string]*Command // keyed by input extension
	StaticLib  map[string]*Command // keyed by input (object) extension
	DynamicLib map[string]*Command
	Exe        map[string]*Command

	path string
}

func newOptions(path string) *Options {
	return &Options{
		Vars:       make(map[string][]string),
		Compile:    make(map[string]*Command),
		Generate:   make(map[string]*Command),
		StaticLib:  make(map[string]*Command),
		DynamicLib: make(map[string]*Command),
		Exe:        make(map[string]*Command),
		path:       path,
	}
}

// Parse reads an options file from r. path is used only for diagnostics.
func Parse(r io.Reader, path string) (*Options, error) {
	opts := newOptions(path)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		origin := buberr.Origin{Path: path, Line: lineNo}

		sep := strings.Index(line, " = ")
		if sep < 0 {
			return nil, buberr.NewConfigError(origin, "malformed line, expected \"key = value\": %q", line)
		}
		key := strings.TrimSpace(line[:sep])
		value := strings.TrimSpace(line[sep+3:])
		if key == "" {
			return nil, buberr.NewConfigError(origin, "empty key")
		}

		if strings.HasPrefix(key, ".") {
			if err := opts.addCommand(origin, key, value); err != nil {
				return nil, err
			}
			continue
		}

		if _, dup := opts.Vars[key]; dup {
			return nil, buberr.NewConfigError(origin, "duplicate variable definition: %q", key)
		}
		opts.Vars[key] = strings.Fields(value)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return opts, nil
}

// ParseFile opens and parses an options file from disk.
func ParseFile(path string) (*Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(bufio.NewReader(f), path)
}

func (o *Options) addCommand(origin buberr.Origin, key, value string) error {
	parts := strings.Split(strings.TrimPrefix(key, "."), ".")
	if len(parts) < 2 || parts[0] == "" {
		return buberr.NewConfigError(origin, "build command key %q needs an input extension and at least one output extension", key)
	}
	inputExt := parts[0]
	outputExts := parts[1:]
	for _, e := range outputExts {
		if e == "" {
			return buberr.NewConfigError(origin, "build command key %q has an empty output extension", key)
		}
	}

	cmd := &Command{InputExt: inputExt, OutputExts: outputExts, Template: value, Origin: origin}

	if len(outputExts) == 1 {
		if kind, reserved := reservedExts[outputExts[0]]; reserved {
			cmd.Kind = kind
			return o.registerReserved(origin, kind, inputExt, cmd)
		}
	}

	// multi-output or non-reserved single-output: a generate command.
	for _, e := range outputExts {
		if _, reserved := reservedExts[e]; reserved {
			return buberr.NewConfigError(origin, "reserved output extension %q may only appear alone as a compile or link command", e)
		}
	}
	cmd.Kind = KindGenerate
	if existing, ok := firstOwner(o, inputExt); ok {
		return buberr.NewConfigError(origin, "input extension %q already owns a compile-or-generate command (%s)", inputExt, existing)
	}
	o.Generate[inputExt] = cmd
	return nil
}

func (o *Options) registerReserved(origin buberr.Origin, kind Kind, inputExt string, cmd *Command) error {
	switch kind {
	case KindCompile:
		if existing, ok := firstOwner(o, inputExt); ok {
			return buberr.NewConfigError(origin, "input extension %q already owns a compile-or-generate command (%s)", inputExt, existing)
		}
		o.Compile[inputExt] = cmd
	case KindStaticLib:
		if _, dup := o.StaticLib[inputExt]; dup {
			return buberr.NewConfigError(origin, "duplicate static-lib command for input extension %q", inputExt)
		}
		o.StaticLib[inputExt] = cmd
	case KindDynamicLib:
		if _, dup := o.DynamicLib[inputExt]; dup {
			return buberr.NewConfigError(origin, "duplicate dynamic-lib command for input extension %q", inputExt)
		}
		o.DynamicLib[inputExt] = cmd
	case KindExe:
		if _, dup := o.Exe[inputExt]; dup {
			return buberr.NewConfigError(origin, "duplicate exe command for input extension %q", inputExt)
		}
		o.Exe[inputExt] = cmd
	}
	return nil
}

// firstOwner reports whether inputExt already owns a compile or generate
// command, and names which kind, per spec §4.1 ("An input extension may
// own at most one compile-or-generate command").
func firstOwner(o *Options, inputExt string) (string, bool) {
	if _, ok := o.Compile[inputExt]; ok {
		return "compile", true
	}
	if _, ok := o.Generate[inputExt]; ok {
		return "generate", true
	}
	return "", false
}

var fenceRe = regexp.MustCompile(`\$\{[^}]*\}`)

// Expand resolves ${NAME} fences in a command template per spec §4.1:
// the template is tokenized on whitespace, each token is expanded
// independently, and builtins (INPUT/OUTPUT/DEPS/LIBS) take precedence
// over the options' own variables. A token with no fence is emitted
// unchanged; an undefined name expands to nothing.
func Expand(template string, builtins map[string][]string, vars map[string][]string) []string {
	lookup := func(name string) []string {
		if v, ok := builtins[name]; ok {
			return v
		}
		if v, ok := vars[name]; ok {
			return v
		}
		return nil
	}

	var out []string
	for _, tok := range strings.Fields(template) {
		out = append(out, expandToken(tok, lookup)...)
	}
	return out
}

func expandToken(tok string, lookup func(string) []string) []string {
	loc := fenceRe.FindStringIndex(tok)
	if loc == nil {
		return []string{tok}
	}
	prefix := tok[:loc[0]]
	suffix := tok[loc[1]:]
	name := tok[loc[0]+2 : loc[1]-1]

	values := lookup(name)
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = prefix + v + suffix
	}
	return out
}
