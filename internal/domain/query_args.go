package domain

import "strings"

// PathSeparator is the alternative segment separator accepted in field paths
// (frontmatter___date is frontmatter.date).
const PathSeparator = "___"

// QueryArgs holds the declarative part of a query.
type QueryArgs struct {
	Filter   Filter   `json:"filter,omitempty"`
	Sort     *Sort    `json:"sort,omitempty"`
	Group    []string `json:"group,omitempty"`
	Distinct string   `json:"distinct,omitempty"`
}

// SplitPath splits a dotted or ___-separated field path into segments.
func SplitPath(path string) []string {
	path = strings.ReplaceAll(path, PathSeparator, ".")
	if path == "" {
		return nil
	}
	segments := strings.Split(path, ".")
	result := segments[:0]
	for _, segment := range segments {
		if segment != "" {
			result = append(result, segment)
		}
	}
	return result
}
