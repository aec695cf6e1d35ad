package config

import (
	"strings"

	"github.com/zsy619/mapcore/errs"
)

// NormalizeDefinitionID implements §4.3's identifier normalization for a *definition*
// (a statement/result-map/parameter-map id as declared, not referenced): a dotted id
// is rejected outright (only a reference may already carry a namespace qualifier), an
// undotted id is prefixed with namespace.
func NormalizeDefinitionID(namespace, raw string) (string, error) {
	if namespace == "" {
		return "", errs.NewBuilder("cannot normalize id %q: no namespace bound", raw)
	}
	if strings.Contains(raw, ".") {
		return "", errs.NewBuilder("definition id %q must not contain a dot; namespace %q is prefixed automatically", raw, namespace)
	}
	return namespace + "." + raw, nil
}

// NormalizeReferenceID implements the reference-side counterpart: a raw reference
// containing a dot is accepted as-is (it already names a fully qualified id, possibly
// in another namespace); an undotted reference is resolved relative to namespace.
func NormalizeReferenceID(namespace, raw string) string {
	if strings.Contains(raw, ".") {
		return raw
	}
	return namespace + "." + raw
}
