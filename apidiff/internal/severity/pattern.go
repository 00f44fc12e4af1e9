package severity

import (
	"fmt"
	"regexp"
	"strings"
)

// RegexPrefix marks a pattern as a regular expression instead of a substring.
const RegexPrefix = "re:"

// pattern is a compiled field pattern: a case-insensitive substring or a
// regular expression.
type pattern struct {
	sub string
	re  *regexp.Regexp
}

func compilePattern(p string) (pattern, error) {
	if expr, ok := strings.CutPrefix(p, RegexPrefix); ok {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return pattern{}, fmt.Errorf("severity: pattern %q: %w", p, err)
		}
		return pattern{re: re}, nil
	}
	return pattern{sub: strings.ToLower(p)}, nil
}

func (p pattern) match(s string) bool {
	if p.re != nil {
		return p.re.MatchString(s)
	}
	return p.sub != "" && strings.Contains(strings.ToLower(s), p.sub)
}

// compileAll keeps the patterns that compile and returns the errors of the
// others.
func compileAll(raw []string) ([]pattern, []error) {
	out := make([]pattern, 0, len(raw))
	var errs []error
	for _, s := range raw {
		p, err := compilePattern(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errs
}

func matchAny(ps []pattern, s string) bool {
	for _, p := range ps {
		if p.match(s) {
			return true
		}
	}
	return false
}
