package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/nodequery/internal/domain"
)

func parseFilter(t *testing.T, raw string) domain.Filter {
	t.Helper()
	var f domain.Filter
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	return f
}

func TestTranslateKeepsTopLevelOrder(t *testing.T) {
	clauses, err := Translate(parseFilter(t, `{"title":{"eq":"a"},"id":{"ne":"x"},"date":{"gt":1}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "id", "date"}, Fields(clauses))
	require.Len(t, clauses, 3)
	assert.Equal(t, `title:{$eq:a}`, clauses[0].String())
	assert.Equal(t, OpNe, clauses[1].Children[0].Kind)
	assert.Equal(t, OpGt, clauses[2].Children[0].Kind)
}

func TestTranslateEmptyFilter(t *testing.T) {
	clauses, err := Translate(nil)
	require.NoError(t, err)
	assert.Empty(t, clauses)
}

func TestTranslateNestedFields(t *testing.T) {
	clauses, err := Translate(parseFilter(t, `{"frontmatter":{"author":{"name":{"eq":"kim"}}}}`))
	require.NoError(t, err)
	require.Len(t, clauses, 1)

	root := clauses[0]
	assert.Equal(t, OpField, root.Kind)
	assert.Equal(t, "frontmatter", root.Name)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "author", root.Children[0].Name)
	assert.Equal(t, "frontmatter:{author:{name:{$eq:kim}}}", root.String())
}

func TestTranslateElemMatch(t *testing.T) {
	clauses, err := Translate(parseFilter(t, `{"authors":{"elemMatch":{"name":{"eq":"kim"}}}}`))
	require.NoError(t, err)

	elem := clauses[0].Children[0]
	assert.Equal(t, OpElemMatch, elem.Kind)
	assert.False(t, elem.IsLeaf())
	assert.Equal(t, "name", elem.Children[0].Name)
}

func TestTranslateCoercesInValues(t *testing.T) {
	clauses, err := Translate(domain.Filter{
		{Key: "tags", Value: domain.Filter{{Key: "in", Value: "go"}}},
		{Key: "kind", Value: domain.Filter{{Key: "nin", Value: []any{"a", "b"}}}},
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"go"}, clauses[0].Children[0].Value)
	assert.Equal(t, []any{"a", "b"}, clauses[1].Children[0].Value)
}

func TestTranslateFromMap(t *testing.T) {
	clauses, err := Translate(domain.FilterFromMap(map[string]any{
		"b": map[string]any{"eq": 1},
		"a": map[string]any{"exists": true},
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, Fields(clauses))
	assert.Equal(t, OpExists, clauses[0].Children[0].Kind)
}

func TestTranslateUnsupportedOperator(t *testing.T) {
	clauses, err := Translate(parseFilter(t, `{"title":{"near":"x"}}`))
	require.NoError(t, err)

	op := clauses[0].Children[0]
	assert.Equal(t, OpUnsupported, op.Kind)
	assert.Equal(t, "$near", op.Operator())

	err = Validate(clauses)
	require.ErrorIs(t, err, ErrUnsupportedOperator)
	assert.Contains(t, err.Error(), "$near")
}

func TestTranslateInvalidPattern(t *testing.T) {
	_, err := Translate(parseFilter(t, `{"title":{"regex":"/a(/"}}`))
	require.ErrorIs(t, err, ErrInvalidPattern)
	assert.Contains(t, err.Error(), "title")
}

func TestOperatorNames(t *testing.T) {
	cases := map[OpKind]string{
		OpEq:        "$eq",
		OpNe:        "$ne",
		OpIn:        "$in",
		OpNin:       "$nin",
		OpGt:        "$gt",
		OpGte:       "$gte",
		OpLt:        "$lt",
		OpLte:       "$lte",
		OpRegex:     "$regex",
		OpExists:    "$exists",
		OpElemMatch: "$elemMatch",
	}
	for kind, name := range cases {
		assert.Equal(t, name, kind.String())
	}
	assert.True(t, IsLeafOperator("glob"))
	assert.False(t, IsLeafOperator("elemMatch"))
}
