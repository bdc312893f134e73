package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/gobwas/glob"
)

// globPattern adapts a compiled glob to Pattern.
type globPattern struct {
	source string
	g      glob.Glob
}

func (p globPattern) MatchString(s string) bool { return p.g.Match(s) }

func (p globPattern) String() string { return p.source }

// CompileGlob compiles a glob where * and ? stay inside one path segment and
// ** crosses segments.
func CompileGlob(value any) (Pattern, error) {
	source, err := graphql.UnmarshalString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: glob: %v", ErrInvalidPattern, err)
	}
	g, err := glob.Compile(source, '/')
	if err != nil {
		return nil, fmt.Errorf("%w: glob %q: %v", ErrInvalidPattern, source, err)
	}
	return globPattern{source: source, g: g}, nil
}

// CompileRegex compiles a regex given either as /pattern/flags or as a bare
// pattern. Flags i, m and s map to Go inline flags; g, u and y have no
// meaning for a single match test and are ignored.
func CompileRegex(value any) (Pattern, error) {
	if re, ok := value.(*regexp.Regexp); ok {
		return re, nil
	}
	source, err := graphql.UnmarshalString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: regex: %v", ErrInvalidPattern, err)
	}

	pattern, flags := splitRegexLiteral(source)
	var inline strings.Builder
	for _, flag := range flags {
		switch flag {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline.String(), flag) {
				inline.WriteRune(flag)
			}
		case 'g', 'u', 'y':
		default:
			return nil, fmt.Errorf("%w: regex %q: unknown flag %q", ErrInvalidPattern, source, flag)
		}
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: regex %q: %v", ErrInvalidPattern, source, err)
	}
	return re, nil
}

func splitRegexLiteral(source string) (pattern string, flags string) {
	if len(source) < 2 || source[0] != '/' {
		return source, ""
	}
	last := strings.LastIndex(source, "/")
	if last == 0 {
		return source, ""
	}
	return source[1:last], source[last+1:]
}
