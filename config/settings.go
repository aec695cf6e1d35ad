// Package config implements the registry/dispatch surface (§3, §4.3's Configuration):
// the process-wide aggregation of statements, result/parameter maps, caches, and the
// three pending queues the builder drains to completion.
package config

import (
	"strconv"
	"strings"

	"github.com/zsy619/mapcore/errs"
)

// AutoMappingBehavior controls how unmapped columns are handled for a result with no
// explicit <resultMap>.
type AutoMappingBehavior string

const (
	AutoMappingNone    AutoMappingBehavior = "NONE"
	AutoMappingPartial AutoMappingBehavior = "PARTIAL"
	AutoMappingFull    AutoMappingBehavior = "FULL"
)

// AutoMappingUnknownColumnBehavior controls what happens when auto-mapping can't place a column.
type AutoMappingUnknownColumnBehavior string

const (
	UnknownColumnNone    AutoMappingUnknownColumnBehavior = "NONE"
	UnknownColumnWarning AutoMappingUnknownColumnBehavior = "WARNING"
	UnknownColumnFailing AutoMappingUnknownColumnBehavior = "FAILING"
)

// ExecutorType selects the default statement-execution strategy.
type ExecutorType string

const (
	ExecutorSimple ExecutorType = "SIMPLE"
	ExecutorReuse  ExecutorType = "REUSE"
	ExecutorBatch  ExecutorType = "BATCH"
)

// LocalCacheScope controls how long the session-local (first-level) cache lives.
type LocalCacheScope string

const (
	LocalCacheSession   LocalCacheScope = "SESSION"
	LocalCacheStatement LocalCacheScope = "STATEMENT"
)

// Settings is the <settings> section (§6), with the reference defaults pre-applied by
// NewSettings.
type Settings struct {
	CacheEnabled                      bool
	LazyLoadingEnabled                bool
	AggressiveLazyLoading             bool
	MultipleResultSetsEnabled         bool
	UseColumnLabel                    bool
	UseGeneratedKeys                  bool
	AutoMappingBehavior               AutoMappingBehavior
	AutoMappingUnknownColumnBehavior  AutoMappingUnknownColumnBehavior
	DefaultExecutorType               ExecutorType
	DefaultStatementTimeout           int
	DefaultFetchSize                  int
	MapUnderscoreToCamelCase          bool
	LocalCacheScope                   LocalCacheScope
	JdbcTypeForNull                   string
	LazyLoadTriggerMethods            []string
	SafeRowBoundsEnabled              bool
	SafeResultHandlerEnabled          bool
	DefaultScriptingLanguage          string
	DefaultEnumTypeHandler            string
	CallSettersOnNulls                bool
	ReturnInstanceForEmptyRow         bool
	ShrinkWhitespacesInSql            bool
	ArgNameBasedConstructorAutoMapping bool
	NullableOnForEach                 bool
}

// NewSettings returns the documented defaults.
func NewSettings() *Settings {
	return &Settings{
		CacheEnabled:              true,
		UseColumnLabel:            true,
		AutoMappingBehavior:       AutoMappingPartial,
		AutoMappingUnknownColumnBehavior: UnknownColumnNone,
		DefaultExecutorType:       ExecutorSimple,
		LocalCacheScope:           LocalCacheSession,
		JdbcTypeForNull:           "OTHER",
		LazyLoadTriggerMethods:    []string{"equals", "clone", "hashCode", "toString"},
		SafeResultHandlerEnabled:  true,
		DefaultScriptingLanguage:  "XML",
		ReturnInstanceForEmptyRow: false,
	}
}

// Apply validates and applies a <settings> key/value map (§4.3: "every key must be a
// recognized configuration setter... unknown keys abort with a BuilderError").
func (s *Settings) Apply(kv map[string]string) error {
	for key, value := range kv {
		if err := s.applyOne(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Settings) applyOne(key, value string) error {
	asBool := func() (bool, error) { return strconv.ParseBool(value) }
	asInt := func() (int, error) { return strconv.Atoi(value) }

	switch key {
	case "cacheEnabled":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.CacheEnabled = v
	case "lazyLoadingEnabled":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.LazyLoadingEnabled = v
	case "aggressiveLazyLoading":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.AggressiveLazyLoading = v
	case "multipleResultSetsEnabled":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.MultipleResultSetsEnabled = v
	case "useColumnLabel":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.UseColumnLabel = v
	case "useGeneratedKeys":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.UseGeneratedKeys = v
	case "autoMappingBehavior":
		s.AutoMappingBehavior = AutoMappingBehavior(strings.ToUpper(value))
	case "autoMappingUnknownColumnBehavior":
		s.AutoMappingUnknownColumnBehavior = AutoMappingUnknownColumnBehavior(strings.ToUpper(value))
	case "defaultExecutorType":
		s.DefaultExecutorType = ExecutorType(strings.ToUpper(value))
	case "defaultStatementTimeout":
		v, err := asInt()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.DefaultStatementTimeout = v
	case "defaultFetchSize":
		v, err := asInt()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.DefaultFetchSize = v
	case "mapUnderscoreToCamelCase":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.MapUnderscoreToCamelCase = v
	case "localCacheScope":
		s.LocalCacheScope = LocalCacheScope(strings.ToUpper(value))
	case "jdbcTypeForNull":
		s.JdbcTypeForNull = value
	case "lazyLoadTriggerMethods":
		s.LazyLoadTriggerMethods = strings.Split(value, ",")
	case "safeRowBoundsEnabled":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.SafeRowBoundsEnabled = v
	case "safeResultHandlerEnabled":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.SafeResultHandlerEnabled = v
	case "defaultScriptingLanguage":
		s.DefaultScriptingLanguage = value
	case "defaultEnumTypeHandler":
		s.DefaultEnumTypeHandler = value
	case "callSettersOnNulls":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.CallSettersOnNulls = v
	case "returnInstanceForEmptyRow":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.ReturnInstanceForEmptyRow = v
	case "shrinkWhitespacesInSql":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.ShrinkWhitespacesInSql = v
	case "argNameBasedConstructorAutoMapping":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.ArgNameBasedConstructorAutoMapping = v
	case "nullableOnForEach":
		v, err := asBool()
		if err != nil {
			return errs.NewBuilder("setting %q: %v", key, err)
		}
		s.NullableOnForEach = v
	default:
		return errs.NewBuilder("unknown setting %q", key)
	}
	return nil
}
