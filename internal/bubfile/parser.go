package bubfile

import (
	"os"

	"github.com/bub-build/bub/internal/buberr"
)

// Statement is one parsed "rule targets : arg1 : arg2 : arg3 ;" line,
// per spec §4.2. Targets and each Arg are token lists (already expanded
// and conditional-filtered); NArgs records how many ":"-separated arg
// fields were actually present (0-3).
type Statement struct {
	Rule    string
	Targets []string
	Args    [3][]string
	NArgs   int
	Origin  buberr.Origin
}

// Arg returns the nth (1-based) arg field, or nil if it wasn't present.
func (s *Statement) Arg(n int) []string {
	if n < 1 || n > s.NArgs {
		return nil
	}
	return s.Args[n-1]
}

// ParseFile tokenizes and parses a Bubfile from disk.
func ParseFile(path string, eval Evaluator, vars map[string][]string) ([]Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, string(data), eval, vars)
}

// Parse tokenizes and parses Bubfile source already read into memory.
func Parse(path, src string, eval Evaluator, vars map[string][]string) ([]Statement, error) {
	lx := newLexer(path, src, eval, vars)
	toks, err := lx.tokenize()
	if err != nil {
		return nil, err
	}
	return parseStatements(path, toks)
}

func parseStatements(path string, toks []token) ([]Statement, error) {
	var stmts []Statement
	i := 0
	for i < len(toks) {
		if toks[i].Kind != tokWord {
			return nil, buberr.NewConfigError(buberr.Origin{Path: path, Line: toks[i].Line}, "expected a rule name, found %q", toks[i].Text)
		}
		origin := buberr.Origin{Path: path, Line: toks[i].Line}
		rule := toks[i].Text
		i++

		var fields [][]string
		cur := []string{}
		terminated := false
		for i < len(toks) {
			switch toks[i].Kind {
			case tokSemicolon:
				fields = append(fields, cur)
				i++
				terminated = true
			case tokColon:
				fields = append(fields, cur)
				cur = []string{}
				i++
				continue
			default:
				cur = append(cur, toks[i].Text)
				i++
				continue
			}
			break
		}
		if !terminated {
			return nil, buberr.NewConfigError(origin, "statement for rule %q is missing a terminating ';'", rule)
		}

		if len(fields) > 4 {
			return nil, buberr.NewConfigError(origin, "statement for rule %q has too many ':'-separated fields (max 4 after the rule name)", rule)
		}
		if len(fields) == 0 || len(fields[0]) == 0 {
			return nil, buberr.NewConfigError(origin, "statement for rule %q is missing targets", rule)
		}

		st := Statement{Rule: rule, Targets: fields[0], Origin: origin}
		for idx, f := range fields[1:] {
			st.Args[idx] = f
		}
		st.NArgs = len(fields) - 1
		stmts = append(stmts, st)
	}
	return stmts, nil
}
