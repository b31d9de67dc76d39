package pathexpr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/resource-graph-catalog-ingester/value"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{name: "single segment", text: "name", expected: []string{"name"}},
		{name: "dotted", text: "properties.provisioningState", expected: []string{"properties", "provisioningState"}},
		{name: "hyphenated key", text: "tags.test-tag", expected: []string{"tags", "test-tag"}},
		{name: "single quoted bracket", text: "tags['catalog.owner']", expected: []string{"tags", "catalog.owner"}},
		{name: "double quoted bracket", text: `tags["a/b.c"]`, expected: []string{"tags", "a/b.c"}},
		{name: "leading bracket", text: "['x.y'].z", expected: []string{"x.y", "z"}},
		{name: "chained brackets", text: "a['b']['c']", expected: []string{"a", "b", "c"}},
		{name: "dot before bracket", text: "a.['b.c']", expected: []string{"a", "b.c"}},
		{name: "bracket keeps other quote", text: `tags["it's"]`, expected: []string{"tags", "it's"}},
		{name: "empty bracket key", text: "tags['']", expected: []string{"tags", ""}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			expr, err := Parse(test.text)
			require.NoError(t, err)
			assert.Equal(t, test.expected, expr.Segments())
			assert.Equal(t, test.text, expr.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		text   string
		offset int
	}{
		{text: "", offset: 0},
		{text: ".a", offset: 0},
		{text: "a..b", offset: 2},
		{text: "a.", offset: 2},
		{text: "tags['catalog.owner'", offset: 20},
		{text: "tags['catalog.owner", offset: 5},
		{text: "tags[", offset: 4},
		{text: "tags[owner]", offset: 5},
		{text: "tags['a']b", offset: 9},
	}

	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			_, err := Parse(test.text)
			require.Error(t, err)

			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.Equal(t, test.offset, syntaxErr.Offset)
			assert.Equal(t, test.text, syntaxErr.Expression)
		})
	}
}

func TestFromSegmentsString(t *testing.T) {
	assert.Equal(t, "tags['catalog.owner'].x", FromSegments("tags", "catalog.owner", "x").String())
	assert.Equal(t, "a.b", FromSegments("a", "b").String())
}

func TestResolve(t *testing.T) {
	record := value.MustFromAny(map[string]any{
		"name": "foo",
		"tags": map[string]any{
			"a":             nil,
			"catalog.owner": "team-a",
		},
		"properties": map[string]any{
			"sku":   map[string]any{"tier": "Standard"},
			"zones": []any{"1", "2"},
		},
	})

	t.Run("nested object", func(t *testing.T) {
		resolved, ok := Resolve(record, MustParse("properties.sku.tier"))
		assert.True(t, ok)
		assert.True(t, value.Equal(value.String("Standard"), resolved))
	})

	t.Run("bracket key with dot", func(t *testing.T) {
		resolved, ok := Resolve(record, MustParse("tags['catalog.owner']"))
		assert.True(t, ok)
		assert.True(t, value.Equal(value.String("team-a"), resolved))
	})

	t.Run("explicit null is present", func(t *testing.T) {
		resolved, ok := Resolve(record, MustParse("tags.a"))
		assert.True(t, ok)
		assert.True(t, resolved.IsNull())
	})

	t.Run("missing key is absent", func(t *testing.T) {
		_, ok := Resolve(record, MustParse("tags.b"))
		assert.False(t, ok)
	})

	t.Run("missing intermediate is absent", func(t *testing.T) {
		_, ok := Resolve(record, MustParse("spec.owner.name"))
		assert.False(t, ok)
	})

	t.Run("walking through a scalar is absent", func(t *testing.T) {
		_, ok := Resolve(record, MustParse("name.length"))
		assert.False(t, ok)
	})

	t.Run("walking through null is absent", func(t *testing.T) {
		_, ok := Resolve(record, MustParse("tags.a.b"))
		assert.False(t, ok)
	})

	t.Run("arrays are not indexed", func(t *testing.T) {
		_, ok := Resolve(record, MustParse("properties.zones.0"))
		assert.False(t, ok)
	})

	t.Run("whole object", func(t *testing.T) {
		resolved, ok := Resolve(record, MustParse("properties.sku"))
		assert.True(t, ok)
		assert.Equal(t, value.KindObject, resolved.Kind())
	})
}

func TestResolveMatchesSequentialIndexing(t *testing.T) {
	record := value.MustFromAny(map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1.0}},
	})
	paths := [][]string{{"a"}, {"a", "b"}, {"a", "b", "c"}, {"a", "x"}, {"a", "b", "c", "d"}}

	for _, segments := range paths {
		expected, expectedOk := record, true
		for _, segment := range segments {
			next, ok := expected.Get(segment)
			if !ok {
				expectedOk = false
				break
			}
			expected = next
		}

		resolved, ok := Resolve(record, FromSegments(segments...))
		assert.Equal(t, expectedOk, ok, segments)
		if expectedOk {
			assert.True(t, value.Equal(expected, resolved), segments)
		}
	}
}

func TestResolveString(t *testing.T) {
	record := value.MustFromAny(map[string]any{"name": "foo"})

	resolved, ok, err := ResolveString(record, "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, value.Equal(value.String("foo"), resolved))

	_, _, err = ResolveString(record, "name[")
	assert.Error(t, err)
}
