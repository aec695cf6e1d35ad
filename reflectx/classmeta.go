// Package reflectx implements the reflection engine (§4.2): per-type cached accessor
// metadata (ClassMeta), generic type-parameter resolution over a caller-supplied
// schema, a dotted property-path tokenizer, and the MetaClass path-walking façade.
package reflectx

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/sirupsen/logrus"
	strcase "github.com/stoewer/go-strcase"
)

var log = logrus.WithField("component", "reflectx")

// ClassMeta is the per-type cached accessor table described in §3/§4.2: readable and
// writable property names, the getter/setter for each, the declared type of each, and
// a case-insensitive index over property names.
type ClassMeta struct {
	typ reflect.Type

	readable []string
	writable []string
	getters  map[string]Accessor
	setters  map[string]Accessor

	// caseInsensitiveIndex maps a lowercased property name to its canonical spelling,
	// used by MetaClass.FindProperty.
	caseInsensitiveIndex map[string]string

	// hasDefaultConstructor mirrors §4.2 step 1. Go has no user constructors, so every
	// struct type is considered to have one (its zero value), matching the common case
	// the reference registry cares about (can the builder instantiate T on demand).
	hasDefaultConstructor bool
}

// Readable reports the canonical property names with a resolvable getter.
func (c *ClassMeta) Readable() []string { return append([]string(nil), c.readable...) }

// Writable reports the canonical property names with a resolvable setter.
func (c *ClassMeta) Writable() []string { return append([]string(nil), c.writable...) }

// HasDefaultConstructor reports whether the zero value of the type is usable directly.
func (c *ClassMeta) HasDefaultConstructor() bool { return c.hasDefaultConstructor }

// Getter returns the accessor for property, or (nil, false) if unknown.
func (c *ClassMeta) Getter(property string) (Accessor, bool) {
	a, ok := c.getters[property]
	return a, ok
}

// Setter returns the accessor for property, or (nil, false) if unknown.
func (c *ClassMeta) Setter(property string) (Accessor, bool) {
	a, ok := c.setters[property]
	return a, ok
}

// GetterType returns the declared type of property's getter.
func (c *ClassMeta) GetterType(property string) (reflect.Type, bool) {
	a, ok := c.getters[property]
	if !ok {
		return nil, false
	}
	return a.Type(), true
}

// canonical resolves a case-insensitive lookup to its recorded spelling.
func (c *ClassMeta) canonical(name string) (string, bool) {
	v, ok := c.caseInsensitiveIndex[strings.ToLower(name)]
	return v, ok
}

var classMetaCache sync.Map // reflect.Type -> *ClassMeta

// Of returns the cached ClassMeta for t, building it on first lookup. Concurrent
// misses may race; either built instance is equivalent, matching §5's "miss-path
// construction may race and either instance is acceptable".
func Of(t reflect.Type) *ClassMeta {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v, ok := classMetaCache.Load(t); ok {
		return v.(*ClassMeta)
	}
	cm := build(t)
	actual, _ := classMetaCache.LoadOrStore(t, cm)
	return actual.(*ClassMeta)
}

type getterCandidate struct {
	property string
	accessor methodAccessor
	isPrefix bool // true when the Go method name began with "Is"
}

type setterCandidate struct {
	property string
	accessor methodAccessor
}

func build(t reflect.Type) *ClassMeta {
	cm := &ClassMeta{
		typ:                   t,
		getters:               make(map[string]Accessor),
		setters:               make(map[string]Accessor),
		caseInsensitiveIndex:  make(map[string]string),
		hasDefaultConstructor: t.Kind() == reflect.Struct,
	}

	getterCandidates := map[string][]getterCandidate{}
	setterCandidates := map[string][]setterCandidate{}

	collectMethods(t, getterCandidates, setterCandidates)

	for property, cands := range getterCandidates {
		winner := resolveGetterConflict(property, t.String(), cands)
		cm.getters[property] = winner
	}
	for property, cands := range setterCandidates {
		getterType, getterUnambiguous := (reflect.Type)(nil), false
		if g, ok := cm.getters[property]; ok {
			if _, amb := g.(ambiguousAccessor); !amb {
				getterType, getterUnambiguous = g.Type(), true
			}
		}
		cm.setters[property] = resolveSetterConflict(property, t.String(), cands, getterType, getterUnambiguous)
	}

	walkFields(t, cm)

	for p := range cm.getters {
		cm.readable = append(cm.readable, p)
		cm.caseInsensitiveIndex[strings.ToLower(p)] = p
	}
	for p := range cm.setters {
		cm.writable = append(cm.writable, p)
		cm.caseInsensitiveIndex[strings.ToLower(p)] = p
	}
	sort.Strings(cm.readable)
	sort.Strings(cm.writable)

	return cm
}

// rejectedPropertyName reports names that are never registered as properties: §4.2 step 4.
func rejectedPropertyName(name string) bool {
	return strings.HasPrefix(name, "$") || name == "serialVersionUID" || name == "class"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func collectMethods(t reflect.Type, getters map[string][]getterCandidate, setters map[string][]setterCandidate) {
	seenSig := map[string]bool{}
	visit := func(mt reflect.Type) {
		for i := 0; i < mt.NumMethod(); i++ {
			m := mt.Method(i)
			sig := m.Type.String() + "#" + m.Name
			if seenSig[sig] {
				continue
			}
			seenSig[sig] = true

			switch {
			case m.Type.NumIn() == 1 && m.Type.NumOut() == 1 && strings.HasPrefix(m.Name, "Get") && len(m.Name) > 3:
				prop := lowerFirst(m.Name[3:])
				if rejectedPropertyName(prop) {
					continue
				}
				getters[prop] = append(getters[prop], getterCandidate{
					property: prop,
					accessor: methodAccessor{name: m.Name, typ: m.Type.Out(0)},
				})
			case m.Type.NumIn() == 1 && m.Type.NumOut() == 1 && strings.HasPrefix(m.Name, "Is") && len(m.Name) > 2:
				prop := lowerFirst(m.Name[2:])
				if rejectedPropertyName(prop) {
					continue
				}
				getters[prop] = append(getters[prop], getterCandidate{
					property: prop,
					accessor: methodAccessor{name: m.Name, typ: m.Type.Out(0)},
					isPrefix: true,
				})
			case m.Type.NumIn() == 2 && strings.HasPrefix(m.Name, "Set") && len(m.Name) > 3:
				prop := lowerFirst(m.Name[3:])
				if rejectedPropertyName(prop) {
					continue
				}
				setters[prop] = append(setters[prop], setterCandidate{
					property: prop,
					accessor: methodAccessor{name: m.Name, typ: m.Type.In(1)},
				})
			}
		}
	}
	visit(t)
	visit(reflect.PointerTo(t))
}

func isSubtype(a, b reflect.Type) bool {
	if a == b {
		return false
	}
	if b.Kind() == reflect.Interface {
		return a.Implements(b)
	}
	return false
}

func resolveGetterConflict(property, typeName string, cands []getterCandidate) Accessor {
	if len(cands) == 1 {
		return cands[0].accessor
	}
	winner := cands[0]
	ambiguous := false
	for _, c := range cands[1:] {
		switch {
		case winner.accessor.typ == c.accessor.typ:
			if winner.accessor.typ.Kind() == reflect.Bool {
				if c.isPrefix && !winner.isPrefix {
					winner = c
				}
				// else: keep current winner (already Is-prefixed, or neither is).
			} else {
				ambiguous = true
			}
		case isSubtype(winner.accessor.typ, c.accessor.typ):
			// winner's type is already the subtype; keep it.
		case isSubtype(c.accessor.typ, winner.accessor.typ):
			winner = c
		default:
			ambiguous = true
		}
	}
	if ambiguous {
		return ambiguousAccessor{property: property, typeName: typeName, typ: winner.accessor.typ}
	}
	return winner.accessor
}

func resolveSetterConflict(property, typeName string, cands []setterCandidate, getterType reflect.Type, getterUnambiguous bool) Accessor {
	if len(cands) == 1 {
		return cands[0].accessor
	}
	if getterUnambiguous {
		for _, c := range cands {
			if c.accessor.typ == getterType {
				return c.accessor
			}
		}
	}
	winner := cands[0]
	ambiguous := false
	for _, c := range cands[1:] {
		switch {
		case winner.accessor.typ == c.accessor.typ:
			// identical parameter types with no getter tie-break: ambiguous.
			ambiguous = true
		case isSupertype(c.accessor.typ, winner.accessor.typ):
			// c is the supertype, so c loses; keep winner.
		case isSupertype(winner.accessor.typ, c.accessor.typ):
			winner = c
		default:
			ambiguous = true
		}
	}
	if ambiguous {
		return ambiguousAccessor{property: property, typeName: typeName, typ: winner.accessor.typ}
	}
	return winner.accessor
}

func isSupertype(a, b reflect.Type) bool { return isSubtype(b, a) }

// walkFields implements §4.2 step 7: every declared field without an already
// registered accessor becomes one, descending into anonymous (embedded) fields the
// same way reflect.Type.FieldByIndex already promotes them.
func walkFields(t reflect.Type, cm *ClassMeta) {
	var walk func(t reflect.Type, prefix []int)
	walk = func(t reflect.Type, prefix []int) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			index := append(append([]int{}, prefix...), i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				walk(f.Type, index)
				continue
			}
			if !f.IsExported() {
				continue
			}
			prop := lowerFirst(f.Name)
			if rejectedPropertyName(prop) {
				continue
			}
			if _, ok := cm.getters[prop]; !ok {
				cm.getters[prop] = fieldAccessor{index: index, typ: f.Type}
			}
			if _, ok := cm.setters[prop]; !ok {
				cm.setters[prop] = fieldAccessor{index: index, typ: f.Type}
			}
		}
	}
	if t.Kind() == reflect.Struct {
		walk(t, nil)
	}
}

// camelFold is the underscore-removal step §4.2's MetaClass.findProperty performs
// when useCamelCaseMapping is set, implemented via go-strcase's lower-camel
// conversion: case-insensitive comparison afterwards makes "user_name" and
// "userName" equivalent to the literal "remove underscores" rule the spec describes.
func camelFold(name string) string {
	return strcase.LowerCamelCase(name)
}
