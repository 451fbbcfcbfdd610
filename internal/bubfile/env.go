package bubfile

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// NewEnv builds the expression environment "[tag](...)" conditionals are
// evaluated against (SPEC_FULL.md DOMAIN-4), grounded on the teacher's
// expr-lang ConfigEnv used for Qobs.toml's "{{ }}"/conditional sections.
// Each option variable is exposed by name as a string, joined with a
// space if it has multiple values, so a tag can read e.g.
// `target_os == "linux"`. A bare variable name is a string, not a bool,
// and is rejected by the evaluator.
func NewEnv(targetOS, targetArch string, vars map[string][]string) map[string]any {
	env := map[string]any{
		"target_os":   targetOS,
		"target_arch": targetArch,
	}
	for k, v := range vars {
		env[k] = strings.Join(v, " ")
	}
	return env
}

// NewEvaluator compiles and runs each conditional tag as a boolean
// expr-lang expression against env. A tag that fails to compile or does
// not evaluate to a bool is rejected (spec §4.2: "tag ∈ CONDITIONALS").
func NewEvaluator(env map[string]any) Evaluator {
	return func(tag string) (bool, error) {
		program, err := expr.Compile(tag, expr.Env(env), expr.AsBool())
		if err != nil {
			return false, err
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return false, err
		}
		b, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("does not evaluate to a bool")
		}
		return b, nil
	}
}
