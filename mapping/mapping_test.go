package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeExtendsDropsParentConstructorWhenChildDeclaresOne(t *testing.T) {
	parent := &ResultMap{
		ID: "P",
		Mappings: []ResultMapping{
			{Property: "id", Column: "pk", Flags: []ResultFlag{FlagID}},
			{Property: "name", Column: "name"},
			{Property: "x", Column: "x", Flags: []ResultFlag{FlagConstructor}},
		},
	}
	child := &ResultMap{
		ID:      "C",
		Extends: "P",
		Mappings: []ResultMapping{
			{Property: "email", Column: "email"},
			{Property: "y", Column: "y", Flags: []ResultFlag{FlagConstructor}},
		},
	}

	merged := MergeExtends(child, parent)

	var props []string
	for _, m := range merged {
		props = append(props, m.Property)
	}
	assert.Equal(t, []string{"email", "y", "id", "name"}, props)
}

func TestMergeExtendsChildOverridesSameProperty(t *testing.T) {
	parent := &ResultMap{Mappings: []ResultMapping{{Property: "name", Column: "old_name"}}}
	child := &ResultMap{Mappings: []ResultMapping{{Property: "name", Column: "new_name"}}}

	merged := MergeExtends(child, parent)
	require.Len(t, merged, 1)
	assert.Equal(t, "new_name", merged[0].Column)
}

func TestParseCompositeColumnNameOddTokensRejected(t *testing.T) {
	_, err := ParseCompositeColumnName("prop=col,extra")
	require.Error(t, err)
}

func TestParseCompositeColumnNameEvenTokensOK(t *testing.T) {
	mappings, err := ParseCompositeColumnName("prop1=col1,prop2=col2")
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, "prop1", mappings[0].Property)
	assert.Equal(t, "col2", mappings[1].Column)
}

func TestInlineID(t *testing.T) {
	assert.Equal(t, "ns.stmt-Inline", InlineID("ns.stmt"))
}

func TestCacheableFalseWithoutAttachedCache(t *testing.T) {
	ms := &MappedStatement{SQLCommandKind: SQLSelect, UseCache: true, Cache: nil}
	assert.False(t, ms.Cacheable(), "no cache attached yet")
}
