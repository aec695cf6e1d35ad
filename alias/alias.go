// Package alias implements the case-insensitive type-alias registry (§4.1): a
// string -> reflect.Type table seeded with primitives, collections and JDBC-adjacent
// types, consulted by the configuration builder and the reflection engine whenever a
// document spells a type by alias instead of by fully qualified name.
package alias

import (
	"database/sql"
	"math/big"
	"reflect"
	"strings"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/sirupsen/logrus"

	"github.com/zsy619/mapcore/errs"
)

var log = logrus.WithField("component", "alias")

// entry remembers both the type and the spelling it was registered under, so a
// same-type re-registration can be recognized as idempotent even when the casing of
// the new call differs from the original.
type entry struct {
	alias string
	typ   reflect.Type
}

// Registry is the alias -> type table. The zero value is not usable; call New.
//
// Go has no runtime enumeration of "every concrete type in a package" the way a JVM
// classloader does, so RegisterPackage below takes an explicit candidate list instead
// of a package name — callers supply the types they want scanned (typically produced by
// a small generated or hand-maintained slice), and assignability to superType is still
// checked exactly as the reference registry would.
type Registry struct {
	byAlias cmap.ConcurrentMap[string, entry]
	// byQualifiedName backs resolve's fallback: when an alias is unknown, the raw
	// string is tried against this index, keyed by PkgPath + "." + Name(), before
	// TypeAliasError is raised.
	byQualifiedName cmap.ConcurrentMap[string, reflect.Type]
}

// New returns a Registry pre-seeded the way §4.1 specifies: primitives and their
// boxed/array forms, date, decimal, bigdecimal, biginteger, object, map, hashmap,
// list, arraylist, collection, iterator, ResultSet.
func New() *Registry {
	r := &Registry{
		byAlias:         cmap.New[entry](),
		byQualifiedName: cmap.New[reflect.Type](),
	}
	r.seed()
	return r
}

func (r *Registry) seed() {
	seed := map[string]reflect.Type{
		"string":  reflect.TypeFor[string](),
		"byte":    reflect.TypeFor[byte](),
		"char":    reflect.TypeFor[rune](),
		"bool":    reflect.TypeFor[bool](),
		"boolean": reflect.TypeFor[bool](),
		"int":     reflect.TypeFor[int](),
		"integer": reflect.TypeFor[int](),
		"short":   reflect.TypeFor[int16](),
		"long":    reflect.TypeFor[int64](),
		"float":   reflect.TypeFor[float32](),
		"double":  reflect.TypeFor[float64](),

		"byte[]":  reflect.TypeFor[[]byte](),
		"char[]":  reflect.TypeFor[[]rune](),
		"int[]":   reflect.TypeFor[[]int](),
		"long[]":  reflect.TypeFor[[]int64](),
		"float[]": reflect.TypeFor[[]float32](),

		"date":        reflect.TypeFor[time.Time](),
		"decimal":     reflect.TypeFor[big.Float](),
		"bigdecimal":  reflect.TypeFor[big.Float](),
		"biginteger":  reflect.TypeFor[big.Int](),
		"object":      reflect.TypeFor[any](),
		"map":         reflect.TypeFor[map[string]any](),
		"hashmap":     reflect.TypeFor[map[string]any](),
		"list":        reflect.TypeFor[[]any](),
		"arraylist":   reflect.TypeFor[[]any](),
		"collection":  reflect.TypeFor[[]any](),
		"iterator":    reflect.TypeFor[[]any](),
		"resultset":   reflect.TypeFor[*sql.Rows](),
	}
	for a, t := range seed {
		r.byAlias.Set(a, entry{alias: a, typ: t})
		r.byQualifiedName.Set(qualifiedName(t), t)
	}
}

func qualifiedName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// deriveAlias produces the alias Register(type) uses when no explicit alias is given:
// the type's simple (unqualified) name, e.g. "User" for a package-qualified User struct.
func deriveAlias(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// Register binds alias (compared case-insensitively) to t. Re-registering the same
// alias with a different type is a TypeAliasError; re-registering with the same type
// is idempotent.
func (r *Registry) Register(alias string, t reflect.Type) error {
	key := strings.ToLower(alias)
	if existing, ok := r.byAlias.Get(key); ok {
		if existing.typ == t {
			return nil
		}
		return errs.WithContext(
			errs.NewTypeAlias("alias %q already registered to %s, cannot rebind to %s", alias, existing.typ, t),
			map[string]any{"alias": alias, "existing": existing.typ.String(), "incoming": t.String()},
		)
	}
	r.byAlias.Set(key, entry{alias: alias, typ: t})
	r.byQualifiedName.Set(qualifiedName(t), t)
	log.WithFields(logrus.Fields{"alias": alias, "type": t.String()}).Debug("registered type alias")
	return nil
}

// RegisterType registers t under its derived simple-name alias (§4.1's "register(type)").
func (r *Registry) RegisterType(t reflect.Type) error {
	return r.Register(deriveAlias(t), t)
}

// RegisterPackage registers every type in candidates assignable to superType (or every
// candidate, when superType is nil), under each candidate's derived alias. See the
// Registry doc comment for why this takes an explicit slice rather than a package name.
func (r *Registry) RegisterPackage(candidates []reflect.Type, superType reflect.Type) error {
	for _, t := range candidates {
		if superType != nil && !assignableTo(t, superType) {
			continue
		}
		if err := r.RegisterType(t); err != nil {
			return err
		}
	}
	return nil
}

func assignableTo(t, superType reflect.Type) bool {
	if superType.Kind() == reflect.Interface {
		return t.Implements(superType) || reflect.PointerTo(t).Implements(superType)
	}
	return t == superType || t.AssignableTo(superType)
}

// Resolve looks up alias case-insensitively. If unknown, it is tried once more as a
// fully qualified type name (PkgPath + "." + Name, as registered types are indexed);
// only if that also misses does Resolve raise a TypeAliasError.
func (r *Registry) Resolve(alias string) (reflect.Type, error) {
	if e, ok := r.byAlias.Get(strings.ToLower(alias)); ok {
		return e.typ, nil
	}
	if t, ok := r.byQualifiedName.Get(alias); ok {
		return t, nil
	}
	return nil, errs.WithContext(
		errs.NewTypeAlias("unknown type alias %q", alias),
		map[string]any{"alias": alias},
	)
}
