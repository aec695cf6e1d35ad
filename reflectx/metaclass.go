package reflectx

import (
	"reflect"
	"strings"

	"github.com/zsy619/mapcore/errs"
)

// MetaClass is the façade combining a ClassMeta with path traversal, per §4.2.
type MetaClass struct {
	typ  reflect.Type
	meta *ClassMeta
}

// For builds (or fetches, via the ClassMeta cache) the MetaClass for t.
func For(t reflect.Type) *MetaClass {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return &MetaClass{typ: t, meta: Of(t)}
}

// Meta exposes the underlying ClassMeta.
func (m *MetaClass) Meta() *ClassMeta { return m.meta }

// FindProperty returns the canonical-cased dotted path for expression, or ("", false)
// if any segment is missing. When useCamelCaseMapping is true, each segment is folded
// through go-strcase's lower-camel conversion before lookup, so "user_name" and
// "userName" both resolve against a property registered as "userName".
func (m *MetaClass) FindProperty(expression string, useCamelCaseMapping bool) (string, bool) {
	return m.findProperty(m.typ, expression, useCamelCaseMapping)
}

func (m *MetaClass) findProperty(t reflect.Type, expression string, camel bool) (string, bool) {
	seg := Tokenize(expression)
	name := seg.Name
	if camel {
		name = camelFold(name)
	}

	meta := Of(t)
	canonical, ok := meta.canonical(name)
	if !ok {
		return "", false
	}

	if seg.Children == "" {
		return canonical, true
	}

	childType, ok := m.propertyTypeAt(t, canonical, seg.Index)
	if !ok {
		return "", false
	}
	childCanonical, ok := m.findProperty(childType, seg.Children, camel)
	if !ok {
		return "", false
	}
	return canonical + "." + childCanonical, true
}

// propertyTypeAt resolves the struct type reachable through property, peeling one
// level of slice/array/map when index >= 0, the way §4.2's getGetterType "peeks at the
// declared generic parameter to obtain the element type" for an indexed segment.
func (m *MetaClass) propertyTypeAt(t reflect.Type, property string, index int) (reflect.Type, bool) {
	meta := Of(t)
	gt, ok := meta.GetterType(property)
	if !ok {
		return nil, false
	}
	for gt.Kind() == reflect.Pointer {
		gt = gt.Elem()
	}
	if index >= 0 {
		switch gt.Kind() {
		case reflect.Slice, reflect.Array:
			gt = gt.Elem()
		case reflect.Map:
			gt = gt.Elem()
		}
		for gt.Kind() == reflect.Pointer {
			gt = gt.Elem()
		}
	}
	return gt, true
}

// GetGetterType walks expression's segments and returns the resolved Go type of the
// final property, applying the same indexed-collection peek as FindProperty.
func (m *MetaClass) GetGetterType(expression string) (reflect.Type, error) {
	return m.getGetterType(m.typ, expression)
}

func (m *MetaClass) getGetterType(t reflect.Type, expression string) (reflect.Type, error) {
	seg := Tokenize(expression)
	meta := Of(t)
	canonical, ok := meta.canonical(seg.Name)
	if !ok {
		return nil, errs.NewReflection("unknown property %q on %s", seg.Name, t)
	}

	gt, ok := meta.GetterType(canonical)
	if !ok {
		return nil, errs.NewReflection("property %q on %s has no getter", canonical, t)
	}

	if seg.Index >= 0 {
		for gt.Kind() == reflect.Pointer {
			gt = gt.Elem()
		}
		switch gt.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			gt = gt.Elem()
		default:
			return nil, errs.NewReflection("property %q on %s is indexed but not a collection", canonical, t)
		}
	}

	if seg.Children == "" {
		return gt, nil
	}

	childType := gt
	for childType.Kind() == reflect.Pointer {
		childType = childType.Elem()
	}
	return m.getGetterType(childType, seg.Children)
}

// IsEmptyPath reports whether expression names no segment at all.
func IsEmptyPath(expression string) bool { return strings.TrimSpace(expression) == "" }
