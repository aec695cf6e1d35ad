// Package mapping holds the immutable value objects the configuration builder
// produces and execution consumes (§3): mapped statements, result maps, parameter
// maps, and their mapping entries.
package mapping

import "time"

// SQLCommandKind is the statement's SQL command kind.
type SQLCommandKind string

const (
	SQLSelect SQLCommandKind = "SELECT"
	SQLInsert SQLCommandKind = "INSERT"
	SQLUpdate SQLCommandKind = "UPDATE"
	SQLDelete SQLCommandKind = "DELETE"
	SQLFlush  SQLCommandKind = "FLUSH"
)

// StatementKind is how the statement is issued to the driver.
type StatementKind string

const (
	StatementStatement StatementKind = "STATEMENT"
	StatementPrepared   StatementKind = "PREPARED"
	StatementCallable    StatementKind = "CALLABLE"
)

// SqlSource is the external collaborator (§1's "OUT of scope... SQL-text dynamic
// assembly") that turns a statement's parameter object into executable SQL text plus
// bound parameter values. The builder attaches a plain-text implementation (the
// statement body after <include> and ${...} substitution, with no parameter
// mappings); dynamic assembly is left to implementations outside this module.
type SqlSource interface {
	BoundSql(parameterObject any) (sql string, parameterMappings []ParameterMapping)
}

// Cache is the narrow surface the mapped statement needs from a namespace cache; the
// full decorator chain lives in package cache.
type Cache interface {
	ID() string
	Put(key, value any)
	Get(key any) (any, bool)
	Remove(key any)
	Clear()
	Size() int
}

// MappedStatement is id-addressable, built once by the configuration builder and
// never mutated afterward (§3).
type MappedStatement struct {
	ID              string
	Resource        string
	SQLCommandKind  SQLCommandKind
	StatementKind   StatementKind
	SqlSource       SqlSource
	ParameterMapID  string
	ResultMapIDs    []string
	FetchSize       int
	Timeout         time.Duration
	FlushCache      bool
	UseCache        bool
	KeyGenerator    string
	KeyProperty     []string
	KeyColumn       []string
	DatabaseID      string
	Cache           Cache
	ResultOrdered   bool
	// DirtySelect marks a SELECT that also mutates state (e.g. via a stored
	// procedure OUT parameter) and therefore must not be treated as cacheable-by-default
	// even when UseCache is otherwise on.
	DirtySelect bool
}

// IsSelect reports whether the statement is a SELECT.
func (ms *MappedStatement) IsSelect() bool { return ms.SQLCommandKind == SQLSelect }

// Cacheable reports whether a result may be served from ms.Cache: selects only, not
// flagged dirty, and UseCache is set.
func (ms *MappedStatement) Cacheable() bool {
	return ms.IsSelect() && !ms.DirtySelect && ms.UseCache && ms.Cache != nil
}
