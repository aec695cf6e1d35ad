package mapping

import "reflect"

// ParameterMode is the direction of a stored-procedure parameter.
type ParameterMode string

const (
	ParamIn    ParameterMode = "IN"
	ParamOut   ParameterMode = "OUT"
	ParamInOut ParameterMode = "INOUT"
)

// ParameterMapping is one parameter binding inside a ParameterMap (§3), analogous to
// ResultMapping but for the inbound direction.
type ParameterMapping struct {
	Property    string
	JavaType    reflect.Type
	JdbcType    string
	Mode        ParameterMode
	Scale       int
	TypeHandler string
}

// ParameterMap is id-addressable, built once by the configuration builder.
type ParameterMap struct {
	ID       string
	Type     reflect.Type
	Mappings []ParameterMapping
}

// InlineID is the id a statement's auto-generated empty parameter map is keyed under
// when none is declared (§4.3's addMappedStatement: "an inline empty map keyed
// statementId-Inline").
func InlineID(statementID string) string { return statementID + "-Inline" }
