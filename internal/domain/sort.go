package domain

import "strings"

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// ParseSortDirection accepts asc/desc in any case. Anything else orders
// ascending.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDirectionDesc)) {
		return SortDirectionDesc
	}
	return SortDirectionAsc
}

// Sort captures ordering preferences for a collection query. Fields[i] is
// ordered by Order[i].
type Sort struct {
	Fields []string `json:"fields"`
	Order  []string `json:"order,omitempty"`
}

// Direction returns the direction for the i-th sort field.
func (s Sort) Direction(i int) SortDirection {
	if i < len(s.Order) {
		return ParseSortDirection(s.Order[i])
	}
	return SortDirectionAsc
}

// IsEmpty reports whether the sort carries no fields.
func (s *Sort) IsEmpty() bool {
	return s == nil || len(s.Fields) == 0
}
