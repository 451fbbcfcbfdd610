// Package scanner extracts in-project include/import dependencies from
// source text (spec §2 "Include/import scanner", §4.5 step 1). It only
// extracts syntactic candidates; resolving them to known Files and
// checking visibility is the File state machine's job (internal/planner).
package scanner

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// Family distinguishes the two include/import styles the spec names.
type Family int

const (
	FamilyC Family = iota // #include "..."
	FamilyD                // import foo.bar;
)

// FamilyForExt guesses the source family from a file extension (without
// the leading dot), defaulting to FamilyC for anything unrecognized.
func FamilyForExt(ext string) Family {
	switch ext {
	case "d":
		return FamilyD
	default:
		return FamilyC
	}
}

var cIncludeRe = regexp.MustCompile(`^\s*#\s*include\s*"([^"]+)"`)
var cAngleIncludeRe = regexp.MustCompile(`^\s*#\s*include\s*<([^>]+)>`)
var dImportRe = regexp.MustCompile(`^\s*import\s+([A-Za-z_][\w.]*)\s*(?::[^;]*)?;`)

// Scan extracts quoted C-family #include targets, or D-family import
// module paths, from r. Angle-bracket C includes are always skipped
// (spec §2: "skip angle-bracket ... imports"); externalImports names D
// import paths that are configured as external and should also be
// skipped (e.g. standard-library modules).
func Scan(r io.Reader, family Family, externalImports map[string]bool) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch family {
		case FamilyC:
			if m := cIncludeRe.FindStringSubmatch(line); m != nil {
				out = append(out, m[1])
				continue
			}
			// angle-bracket includes are intentionally not collected
			_ = cAngleIncludeRe
		case FamilyD:
			if m := dImportRe.FindStringSubmatch(line); m != nil {
				path := m[1]
				if externalImports[path] {
					continue
				}
				out = append(out, strings.ReplaceAll(path, ".", "/"))
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
