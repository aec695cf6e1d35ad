package reflectx

import (
	"reflect"

	"github.com/zsy619/mapcore/errs"
)

// Go's reflect package never exposes an unresolved type parameter the way Java's
// java.lang.reflect.TypeVariable does for a still-generic ancestor: by the time a
// reflect.Type exists for an instantiated generic type, the compiler has already
// monomorphized it. Design note §9 anticipates exactly this case ("If the target
// language lacks runtime generic metadata... the reflection engine operates on a
// pre-extracted schema supplied by the caller") — TypeExpr and Hierarchy below are
// that schema, built once per mapped type from whatever declared the original
// interface (a language-driver front end, a schema file, or a thin wrapper the caller
// writes over their own generic Go declarations).

// ExprKind tags a TypeExpr's variant.
type ExprKind int

const (
	ExprConcrete ExprKind = iota
	ExprVariable
	ExprParameterized
	ExprGenericArray
	ExprWildcard
)

// TypeExpr is the data-driven type-expression variant the design notes call for:
// {TypeVariable, Parameterized, GenericArray, Wildcard, Concrete}.
type TypeExpr struct {
	Kind ExprKind

	Concrete reflect.Type // ExprConcrete
	Variable string       // ExprVariable

	Base reflect.Type // ExprParameterized: the raw generic type, e.g. Box
	Args []TypeExpr   // ExprParameterized: actual type arguments

	Elem *TypeExpr // ExprGenericArray

	Bounds []TypeExpr // ExprWildcard: declared bounds, first one wins (matches "extends")
}

// Declaration records one generic type's own type-variable names and their declared
// bounds (absent entries default to `any`, mirroring "Object" in the reference design).
type Declaration struct {
	Type      reflect.Type
	Variables []string
	Bounds    map[string]reflect.Type
}

// Binding is one level of "this type extends/implements Declaring<Args...>", with Args
// expressed in terms of the level below it (or concrete, if this is the outermost
// level already bound to real types).
type Binding struct {
	Declaring reflect.Type
	Args      []TypeExpr
}

// Hierarchy is source's walk up its generic supertypes/interfaces, index 0 nearest
// source, mirroring §4.2's "walk the source's generic superclass and interfaces".
type Hierarchy []Binding

// Concretize collapses a fully resolved TypeExpr down to a reflect.Type.
func (e TypeExpr) Concretize() reflect.Type {
	switch e.Kind {
	case ExprConcrete:
		return e.Concrete
	case ExprParameterized:
		return e.Base
	case ExprGenericArray:
		if e.Elem == nil {
			return reflect.TypeFor[any]()
		}
		return reflect.SliceOf(e.Elem.Concretize())
	case ExprWildcard:
		if len(e.Bounds) > 0 {
			return e.Bounds[0].Concretize()
		}
		return reflect.TypeFor[any]()
	case ExprVariable:
		return reflect.TypeFor[any]()
	default:
		return reflect.TypeFor[any]()
	}
}

func substitute(expr TypeExpr, env map[string]TypeExpr) TypeExpr {
	switch expr.Kind {
	case ExprVariable:
		if bound, ok := env[expr.Variable]; ok {
			return substitute(bound, env)
		}
		return expr
	case ExprParameterized:
		args := make([]TypeExpr, len(expr.Args))
		for i, a := range expr.Args {
			args[i] = substitute(a, env)
		}
		return TypeExpr{Kind: ExprParameterized, Base: expr.Base, Args: args}
	case ExprGenericArray:
		if expr.Elem == nil {
			return expr
		}
		r := substitute(*expr.Elem, env)
		return TypeExpr{Kind: ExprGenericArray, Elem: &r}
	case ExprWildcard:
		bounds := make([]TypeExpr, len(expr.Bounds))
		for i, b := range expr.Bounds {
			bounds[i] = substitute(b, env)
		}
		return TypeExpr{Kind: ExprWildcard, Bounds: bounds}
	default:
		return expr
	}
}

func bindingTable(decl Declaration, args []TypeExpr) map[string]TypeExpr {
	env := make(map[string]TypeExpr, len(decl.Variables))
	for i, v := range decl.Variables {
		if i < len(args) {
			env[v] = args[i]
		}
	}
	return env
}

// Resolve implements §4.2's generic resolution: for a type expression declared on
// declaring and observed from source (possibly source itself), produce a concrete
// reflect.Type.
//
//   - If source equals declaring, a bare type-variable resolves to its first declared
//     bound (or `any` if none) — there is nothing further up the hierarchy to translate
//     through.
//   - Otherwise, walk hierarchy from the nearest level outward, building a running
//     binding table by translating each level's own Args through the previous level's
//     table, until a level whose Declaring equals declaring is found; substitute expr
//     through that level's table.
func Resolve(expr TypeExpr, source, declaring reflect.Type, hierarchy Hierarchy, declarations map[reflect.Type]Declaration) (reflect.Type, error) {
	if source == declaring {
		if expr.Kind == ExprVariable {
			if decl, ok := declarations[declaring]; ok {
				if b, ok := decl.Bounds[expr.Variable]; ok {
					return b, nil
				}
			}
			return reflect.TypeFor[any](), nil
		}
		return expr.Concretize(), nil
	}

	env := map[string]TypeExpr{}
	for _, level := range hierarchy {
		resolvedArgs := make([]TypeExpr, len(level.Args))
		for i, a := range level.Args {
			resolvedArgs[i] = substitute(a, env)
		}

		if level.Declaring == declaring {
			decl, ok := declarations[declaring]
			if !ok {
				return nil, errs.NewReflection("no generic declaration registered for %s", declaring)
			}
			final := substitute(expr, bindingTable(decl, resolvedArgs))
			return final.Concretize(), nil
		}

		decl, ok := declarations[level.Declaring]
		if !ok {
			continue
		}
		env = bindingTable(decl, resolvedArgs)
	}

	return nil, errs.NewReflection("declaring type %s is not reachable from %s through the supplied hierarchy", declaring, source)
}

// ResolveFieldType resolves a field's declared type expression.
func ResolveFieldType(expr TypeExpr, source, declaring reflect.Type, hierarchy Hierarchy, declarations map[reflect.Type]Declaration) (reflect.Type, error) {
	return Resolve(expr, source, declaring, hierarchy, declarations)
}

// ResolveReturnType resolves a method's declared return-type expression.
func ResolveReturnType(expr TypeExpr, source, declaring reflect.Type, hierarchy Hierarchy, declarations map[reflect.Type]Declaration) (reflect.Type, error) {
	return Resolve(expr, source, declaring, hierarchy, declarations)
}

// ResolveParamTypes resolves each of a method's declared parameter-type expressions.
func ResolveParamTypes(exprs []TypeExpr, source, declaring reflect.Type, hierarchy Hierarchy, declarations map[reflect.Type]Declaration) ([]reflect.Type, error) {
	out := make([]reflect.Type, len(exprs))
	for i, e := range exprs {
		t, err := Resolve(e, source, declaring, hierarchy, declarations)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
