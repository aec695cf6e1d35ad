package mapping

import (
	"reflect"
	"strings"

	"github.com/zsy619/mapcore/errs"
)

// ResultFlag marks a ResultMapping as contributing to object identity or
// constructor binding.
type ResultFlag string

const (
	FlagID          ResultFlag = "ID"
	FlagConstructor ResultFlag = "CONSTRUCTOR"
)

// ResultMapping is one column -> property binding inside a ResultMap (§3).
type ResultMapping struct {
	Property       string
	Column         string
	JavaType       reflect.Type
	JdbcType       string
	TypeHandler    string
	NestedSelect   string // fully qualified statement id
	NestedResultMap string // fully qualified result-map id
	Flags          []ResultFlag
	Composite      []ResultMapping // multi-column key components
	NotNullColumns []string
	ColumnPrefix   string
	ForeignColumn  string
	Lazy           bool
}

// HasFlag reports whether f is set on rm.
func (rm ResultMapping) HasFlag(f ResultFlag) bool {
	for _, x := range rm.Flags {
		if x == f {
			return true
		}
	}
	return false
}

// Discriminator is a column-value dispatch selecting among alternative sub-result-maps
// (GLOSSARY, supplemented per the MyBatis domain since spec.md's data model only names it).
type Discriminator struct {
	Column       string
	JavaType     reflect.Type
	JdbcType     string
	// CaseResultMapIDs maps a raw discriminator column value to a result-map id, which
	// the builder qualifies with the namespace when written bare. The id is not checked
	// against the registered result maps at build time, so the referenced map may be
	// defined later, the same way nested result maps are.
	CaseResultMapIDs map[string]string
}

// ResultMap is id-addressable, built once by the configuration builder (§3).
type ResultMap struct {
	ID            string
	Type          reflect.Type
	Mappings      []ResultMapping
	Discriminator *Discriminator
	Extends       string // parent result-map id, already resolved into Mappings at build time
	AutoMapping   *bool  // nil defers to Configuration's global AutoMappingBehavior
}

// IDMappings returns the subset of rm.Mappings flagged ID, used to build the cache key
// / object-identity key for nested result-map resolution.
func (rm *ResultMap) IDMappings() []ResultMapping {
	var out []ResultMapping
	for _, m := range rm.Mappings {
		if m.HasFlag(FlagID) {
			out = append(out, m)
		}
	}
	return out
}

// MergeExtends implements §4.2 scenario 2's extends rule: the child's own mappings come
// first, followed by the parent's, except those the child redeclares by property, and if
// the child declares any CONSTRUCTOR mapping, every parent CONSTRUCTOR mapping is
// dropped outright (positional constructor args don't partially merge).
func MergeExtends(child, parent *ResultMap) []ResultMapping {
	childHasConstructor := false
	childProps := make(map[string]bool, len(child.Mappings))
	for _, m := range child.Mappings {
		childProps[m.Property] = true
		if m.HasFlag(FlagConstructor) {
			childHasConstructor = true
		}
	}

	merged := make([]ResultMapping, 0, len(parent.Mappings)+len(child.Mappings))
	merged = append(merged, child.Mappings...)
	for _, pm := range parent.Mappings {
		if pm.HasFlag(FlagConstructor) && childHasConstructor {
			continue
		}
		if childProps[pm.Property] {
			continue
		}
		merged = append(merged, pm)
	}
	return merged
}

// ParseCompositeColumnName implements §9's resolved Open Question: a composite-key
// column attribute like "prop1=col1,prop2=col2" must decompose into an even number of
// tokens. An odd count raises BuilderError instead of silently truncating the trailing
// token, which is what the reference implementation historically did.
func ParseCompositeColumnName(raw string) ([]ResultMapping, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	pairs := strings.Split(raw, ",")
	out := make([]ResultMapping, 0, len(pairs))
	for _, pair := range pairs {
		tokens := strings.Split(strings.TrimSpace(pair), "=")
		if len(tokens) != 2 {
			return nil, errs.NewBuilder("composite column name %q has an odd token count, expected prop=col pairs", raw)
		}
		out = append(out, ResultMapping{Property: strings.TrimSpace(tokens[0]), Column: strings.TrimSpace(tokens[1])})
	}
	return out, nil
}
