package reflectx

import (
	"reflect"

	"github.com/zsy619/mapcore/errs"
)

// Accessor is the tagged-sum invoker design note §9 asks for: every property accessor —
// a method getter/setter, a bare field getter/setter, or an ambiguous conflict — is
// reached through the same Invoke call, so the reflection engine never needs a type
// switch at the call site.
type Accessor interface {
	// Invoke reads (len(args)==0) or writes (len(args)==1) the property on target.
	Invoke(target reflect.Value, args ...reflect.Value) (reflect.Value, error)
	// Type is the accessor's declared value type (return type for a getter, parameter
	// type for a setter).
	Type() reflect.Type
}

type methodAccessor struct {
	name string
	typ  reflect.Type
}

func (a methodAccessor) Invoke(target reflect.Value, args ...reflect.Value) (reflect.Value, error) {
	m := target.MethodByName(a.name)
	if !m.IsValid() {
		return reflect.Value{}, errs.NewReflection("method %s not found on %s", a.name, target.Type())
	}
	out := m.Call(args)
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	return out[0], nil
}

func (a methodAccessor) Type() reflect.Type { return a.typ }

type fieldAccessor struct {
	index []int
	typ   reflect.Type
}

func fieldValue(target reflect.Value, index []int) reflect.Value {
	for target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	return target.FieldByIndex(index)
}

func (a fieldAccessor) Invoke(target reflect.Value, args ...reflect.Value) (reflect.Value, error) {
	fv := fieldValue(target, a.index)
	if len(args) == 0 {
		return fv, nil
	}
	if !fv.CanSet() {
		return reflect.Value{}, errs.NewReflection("field at index %v is not settable", a.index)
	}
	fv.Set(args[0])
	return reflect.Value{}, nil
}

func (a fieldAccessor) Type() reflect.Type { return a.typ }

// ambiguousAccessor is recorded for a property so FindProperty still reports it as
// known, but invoking it always fails — mirroring §4.2 step 5: "An ambiguous getter is
// still recorded but the stored accessor throws on invocation".
type ambiguousAccessor struct {
	property string
	typeName string
	typ      reflect.Type
}

func (a ambiguousAccessor) Invoke(reflect.Value, ...reflect.Value) (reflect.Value, error) {
	return reflect.Value{}, errs.NewReflection("ambiguous accessor for property %q on %s", a.property, a.typeName)
}

func (a ambiguousAccessor) Type() reflect.Type { return a.typ }
