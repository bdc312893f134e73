package match

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/filter"
)

func clauses(t *testing.T, raw string) []*filter.Node {
	t.Helper()
	var f domain.Filter
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	translated, err := filter.Translate(f)
	require.NoError(t, err)
	return translated
}

func post(id string, fields map[string]any) *domain.Node {
	return domain.NewNode(id, "Post", fields)
}

func TestMatchesOperators(t *testing.T) {
	node := post("p1", map[string]any{
		"title":  "Hello Go",
		"views":  42,
		"draft":  false,
		"tags":   []any{"go", "db"},
		"date":   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		"author": map[string]any{"name": "kim", "age": 30},
	})

	tests := []struct {
		name   string
		filter string
		want   bool
	}{
		{name: "eq string", filter: `{"title":{"eq":"Hello Go"}}`, want: true},
		{name: "eq number across kinds", filter: `{"views":{"eq":42}}`, want: true},
		{name: "eq id", filter: `{"id":{"eq":"p1"}}`, want: true},
		{name: "eq internal type", filter: `{"internal":{"type":{"eq":"Post"}}}`, want: true},
		{name: "eq mismatch", filter: `{"title":{"eq":"other"}}`, want: false},
		{name: "eq type mismatch", filter: `{"views":{"eq":"42"}}`, want: false},
		{name: "eq null matches missing", filter: `{"subtitle":{"eq":null}}`, want: true},
		{name: "eq null on present", filter: `{"title":{"eq":null}}`, want: false},
		{name: "ne", filter: `{"title":{"ne":"other"}}`, want: true},
		{name: "ne missing field", filter: `{"subtitle":{"ne":"x"}}`, want: true},
		{name: "array eq element", filter: `{"tags":{"eq":"db"}}`, want: true},
		{name: "array ne element", filter: `{"tags":{"ne":"db"}}`, want: false},
		{name: "in", filter: `{"tags":{"in":["rust","go"]}}`, want: true},
		{name: "in miss", filter: `{"tags":{"in":["rust"]}}`, want: false},
		{name: "nin", filter: `{"tags":{"nin":["rust"]}}`, want: true},
		{name: "nin hit", filter: `{"tags":{"nin":["go"]}}`, want: false},
		{name: "gt", filter: `{"views":{"gt":41}}`, want: true},
		{name: "gte equal", filter: `{"views":{"gte":42}}`, want: true},
		{name: "lt", filter: `{"views":{"lt":42}}`, want: false},
		{name: "lte", filter: `{"views":{"lte":42}}`, want: true},
		{name: "gt string never matches number", filter: `{"views":{"gt":"a"}}`, want: false},
		{name: "lt strings", filter: `{"title":{"lt":"Z"}}`, want: true},
		{name: "regex", filter: `{"title":{"regex":"/^hello/i"}}`, want: true},
		{name: "regex on array", filter: `{"tags":{"regex":"^d"}}`, want: true},
		{name: "regex on number", filter: `{"views":{"regex":"42"}}`, want: false},
		{name: "glob", filter: `{"title":{"glob":"Hello*"}}`, want: true},
		{name: "exists", filter: `{"author":{"exists":true}}`, want: true},
		{name: "not exists", filter: `{"subtitle":{"exists":false}}`, want: true},
		{name: "exists false on present", filter: `{"title":{"exists":false}}`, want: false},
		{name: "nested", filter: `{"author":{"name":{"eq":"kim"},"age":{"gte":18}}}`, want: true},
		{name: "nested miss", filter: `{"author":{"name":{"eq":"lee"}}}`, want: false},
		{name: "bool", filter: `{"draft":{"eq":false}}`, want: true},
		{name: "and of clauses", filter: `{"title":{"eq":"Hello Go"},"views":{"gt":100}}`, want: false},
		{name: "range on one field", filter: `{"views":{"gt":40,"lt":50}}`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Matches(clauses(t, tt.filter), node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestMatchesTimeComparison(t *testing.T) {
	node := post("p1", map[string]any{"date": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)})

	gt := []*filter.Node{{Kind: filter.OpField, Name: "date", Children: []*filter.Node{
		{Kind: filter.OpGt, Value: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}}
	ok, err := Matches(gt, node)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesElemMatch(t *testing.T) {
	node := post("p1", map[string]any{
		"authors": []any{
			map[string]any{"name": "kim", "role": "editor"},
			map[string]any{"name": "lee", "role": "writer"},
		},
		"meta": map[string]any{"name": "kim", "role": "writer"},
	})

	// Both conditions must hold on the same element.
	ok, err := Matches(clauses(t, `{"authors":{"elemMatch":{"name":{"eq":"kim"},"role":{"eq":"writer"}}}}`), node)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Matches(clauses(t, `{"authors":{"elemMatch":{"name":{"eq":"lee"},"role":{"eq":"writer"}}}}`), node)
	require.NoError(t, err)
	assert.True(t, ok)

	// A plain object is tested directly.
	ok, err = Matches(clauses(t, `{"meta":{"elemMatch":{"name":{"eq":"kim"},"role":{"eq":"writer"}}}}`), node)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesPathThroughList(t *testing.T) {
	node := post("p1", map[string]any{
		"authors": []any{
			map[string]any{"name": "kim"},
			map[string]any{"name": "lee"},
		},
	})

	ok, err := Matches(clauses(t, `{"authors":{"name":{"eq":"lee"}}}`), node)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesUnsupportedOperator(t *testing.T) {
	_, err := Matches(clauses(t, `{"title":{"near":"x"}}`), post("p1", nil))
	require.ErrorIs(t, err, filter.ErrUnsupportedOperator)
}

func TestMatchesExistsRequiresBool(t *testing.T) {
	_, err := Matches(clauses(t, `{"title":{"exists":"yes"}}`), post("p1", nil))
	require.Error(t, err)
}

func TestFirst(t *testing.T) {
	nodes := []*domain.Node{
		post("a", map[string]any{"n": 1}),
		post("b", map[string]any{"n": 2}),
		post("c", map[string]any{"n": 2}),
	}

	index, err := First(clauses(t, `{"n":{"eq":2}}`), nodes)
	require.NoError(t, err)
	assert.Equal(t, 1, index)

	index, err = First(clauses(t, `{"n":{"eq":3}}`), nodes)
	require.NoError(t, err)
	assert.Equal(t, -1, index)

	index, err = First(nil, nodes)
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	index, err = First(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, index)
}

func TestAll(t *testing.T) {
	nodes := []*domain.Node{
		post("a", map[string]any{"n": 1}),
		post("b", map[string]any{"n": 2}),
		post("c", map[string]any{"n": 3}),
	}

	matched, err := All(clauses(t, `{"n":{"gte":2}}`), nodes)
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "b", matched[0].ID)
	assert.Equal(t, "c", matched[1].ID)

	all, err := All(nil, nodes)
	require.NoError(t, err)
	assert.Equal(t, nodes, all)
}

// Values read back from a node compare equal to what was stored.
func TestEqualityRoundTrip(t *testing.T) {
	values := []any{"x", 1, 1.5, true, json.Number("7"), []any{"a"}, map[string]any{"k": "v"}}
	for _, value := range values {
		node := post("p", map[string]any{"v": value})
		stored, ok := ValueAt(node, "v")
		require.True(t, ok)
		assert.True(t, Equal(stored, value), "%v", value)
	}
	assert.True(t, Equal(int64(3), float64(3)))
	assert.False(t, Equal(nil, 0))
	assert.False(t, Equal("1", 1))
}

func TestValueAt(t *testing.T) {
	node := post("p", map[string]any{
		"frontmatter": map[string]any{"date": "2024"},
		"authors": []any{
			map[string]any{"name": "kim"},
			map[string]any{"name": "lee"},
			map[string]any{},
		},
	})

	value, ok := ValueAt(node, "frontmatter___date")
	require.True(t, ok)
	assert.Equal(t, "2024", value)

	names, ok := ValueAt(node, "authors.name")
	require.True(t, ok)
	assert.Equal(t, []any{"kim", "lee"}, names)

	_, ok = ValueAt(node, "frontmatter.missing")
	assert.False(t, ok)
}

func TestCompareAndRank(t *testing.T) {
	cmp, ok := Compare(1, 2.5)
	require.True(t, ok)
	assert.Equal(t, -1, cmp)

	cmp, ok = Compare(true, false)
	require.True(t, ok)
	assert.Equal(t, 1, cmp)

	_, ok = Compare("a", 1)
	assert.False(t, ok)

	assert.Less(t, Rank(false), Rank(1))
	assert.Less(t, Rank(1), Rank("a"))
	assert.Less(t, Rank("a"), Rank(time.Now()))
	assert.Less(t, Rank(time.Now()), Rank(map[string]any{}))
}
