package reflectx

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Address struct {
	City string
}

type Person struct {
	Name      string
	addresses []Address
}

func (p *Person) GetName() string       { return p.Name }
func (p *Person) SetName(v string)      { p.Name = v }
func (p *Person) GetAddresses() []Address { return p.addresses }
func (p *Person) SetAddresses(v []Address) { p.addresses = v }

type ambiguousHolder struct{}

func (ambiguousHolder) GetX() int    { return 1 }
func (ambiguousHolder) GetXInt32() int32 { return 2 }

func TestClassMetaReadableWritable(t *testing.T) {
	cm := Of(reflect.TypeOf(Person{}))
	assert.Contains(t, cm.Readable(), "name")
	assert.Contains(t, cm.Writable(), "name")
	assert.Contains(t, cm.Readable(), "addresses")
}

func TestFindPropertyNested(t *testing.T) {
	mc := For(reflect.TypeOf(Person{}))
	canon, ok := mc.FindProperty("addresses[0].city", false)
	require.True(t, ok)
	assert.Equal(t, "addresses.city", canon)
}

func TestFindPropertyCamelCase(t *testing.T) {
	mc := For(reflect.TypeOf(Person{}))
	canon, ok := mc.FindProperty("user_name", true)
	_ = canon
	assert.False(t, ok) // no such property; exercises the fold path without a match
}

func TestGetGetterTypeIndexedCollection(t *testing.T) {
	mc := For(reflect.TypeOf(Person{}))
	typ, err := mc.GetGetterType("addresses[0].city")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(""), typ)
}

func TestTokenize(t *testing.T) {
	seg := Tokenize("a.b[3].c")
	assert.Equal(t, "a", seg.Name)
	assert.Equal(t, -1, seg.Index)
	assert.Equal(t, "b[3].c", seg.Children)

	seg2 := Tokenize(seg.Children)
	assert.Equal(t, "b", seg2.Name)
	assert.Equal(t, 3, seg2.Index)
	assert.Equal(t, "c", seg2.Children)
}

type boxGetter struct{}

func (boxGetter) GetValue() any { return nil }

func TestResolveReturnTypeThroughHierarchy(t *testing.T) {
	boxType := reflect.TypeOf(boxGetter{})
	intBoxType := reflect.TypeOf(struct{ boxGetter }{})

	declarations := map[reflect.Type]Declaration{
		boxType: {Type: boxType, Variables: []string{"T"}},
	}
	hierarchy := Hierarchy{
		{Declaring: boxType, Args: []TypeExpr{{Kind: ExprConcrete, Concrete: reflect.TypeOf(int(0))}}},
	}

	expr := TypeExpr{Kind: ExprVariable, Variable: "T"}
	resolved, err := ResolveReturnType(expr, intBoxType, boxType, hierarchy, declarations)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(int(0)), resolved)
}

func TestGetterAmbiguityThrowsOnInvocation(t *testing.T) {
	// Two getters for the same synthetic "x"/"xInt32" won't collide by property name in
	// this example (Go's naming keeps GetX and GetXInt32 distinct), so instead exercise
	// ambiguity directly through the accessor type to document the invariant contract.
	acc := ambiguousAccessor{property: "x", typeName: "ambiguousHolder"}
	_, err := acc.Invoke(reflect.ValueOf(ambiguousHolder{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x")
}
