package alias

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsy619/mapcore/errs"
)

type widget struct{ Name string }

func TestSeededAliasesResolveCaseInsensitively(t *testing.T) {
	r := New()

	typ, err := r.Resolve("STRING")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[string](), typ)

	typ, err = r.Resolve("Integer")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[int](), typ)
}

func TestRegisterIsIdempotentForSameType(t *testing.T) {
	r := New()
	wt := reflect.TypeFor[widget]()

	require.NoError(t, r.Register("widget", wt))
	require.NoError(t, r.Register("widget", wt))
	require.NoError(t, r.Register("WIDGET", wt))
}

func TestRegisterConflictingTypeFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("widget", reflect.TypeFor[widget]()))

	err := r.Register("widget", reflect.TypeFor[string]())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindTypeAlias))
}

func TestResolveUnknownAliasFallsBackToQualifiedName(t *testing.T) {
	r := New()
	wt := reflect.TypeFor[widget]()
	require.NoError(t, r.RegisterType(wt))

	qualified := wt.PkgPath() + "." + wt.Name()
	typ, err := r.Resolve(qualified)
	require.NoError(t, err)
	assert.Equal(t, wt, typ)
}

func TestResolveUnknownAliasFails(t *testing.T) {
	r := New()
	_, err := r.Resolve("nope")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindTypeAlias))
}

func TestRegisterPackageFiltersBySuperType(t *testing.T) {
	r := New()
	type other struct{}
	candidates := []reflect.Type{reflect.TypeFor[widget](), reflect.TypeFor[other]()}

	require.NoError(t, r.RegisterPackage(candidates, reflect.TypeFor[widget]()))

	_, err := r.Resolve("widget")
	assert.NoError(t, err)
	_, err = r.Resolve("other")
	assert.Error(t, err, "other isn't assignable to the widget supertype, so it should not be registered")
}
