package builder

import (
	"encoding/xml"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/zsy619/mapcore/cache"
	"github.com/zsy619/mapcore/config"
	"github.com/zsy619/mapcore/errs"
	"github.com/zsy619/mapcore/mapping"
)

type mapperXML struct {
	XMLName       xml.Name           `xml:"mapper"`
	Namespace     string             `xml:"namespace,attr"`
	CacheRef      *cacheRefXML       `xml:"cache-ref"`
	Cache         *cacheXML          `xml:"cache"`
	ParameterMaps []parameterMapXML  `xml:"parameterMap"`
	ResultMaps    []resultMapXML     `xml:"resultMap"`
	SQLFragments  []sqlFragmentXML   `xml:"sql"`
	Selects       []statementXML     `xml:"select"`
	Inserts       []statementXML     `xml:"insert"`
	Updates       []statementXML     `xml:"update"`
	Deletes       []statementXML     `xml:"delete"`
}

type cacheRefXML struct {
	Namespace string `xml:"namespace,attr"`
}

type cacheXML struct {
	Eviction      string       `xml:"eviction,attr"`
	FlushInterval string       `xml:"flushInterval,attr"`
	Size          string       `xml:"size,attr"`
	ReadOnly      string       `xml:"readOnly,attr"`
	Blocking      string       `xml:"blocking,attr"`
	Properties    []propertyKV `xml:"property"`
}

type parameterMapXML struct {
	ID     string     `xml:"id,attr"`
	Type   string     `xml:"type,attr"`
	Params []paramXML `xml:"parameter"`
}

type paramXML struct {
	Property    string `xml:"property,attr"`
	JavaType    string `xml:"javaType,attr"`
	JdbcType    string `xml:"jdbcType,attr"`
	Mode        string `xml:"mode,attr"`
	Scale       string `xml:"scale,attr"`
	TypeHandler string `xml:"typeHandler,attr"`
}

type sqlFragmentXML struct {
	ID         string `xml:"id,attr"`
	DatabaseID string `xml:"databaseId,attr"`
	Content    string `xml:",innerxml"`
}

type resultMappingXML struct {
	Property      string `xml:"property,attr"`
	Column        string `xml:"column,attr"`
	JavaType      string `xml:"javaType,attr"`
	JdbcType      string `xml:"jdbcType,attr"`
	TypeHandler   string `xml:"typeHandler,attr"`
	Select        string `xml:"select,attr"`
	ResultMap     string `xml:"resultMap,attr"`
	ColumnPrefix  string `xml:"columnPrefix,attr"`
	NotNullColumn string `xml:"notNullColumn,attr"`
	ForeignColumn string `xml:"foreignColumn,attr"`
}

type constructorXML struct {
	IDArgs []resultMappingXML `xml:"idArg"`
	Args   []resultMappingXML `xml:"arg"`
}

type discriminatorCaseXML struct {
	Value     string `xml:"value,attr"`
	ResultMap string `xml:"resultMap,attr"`
}

type discriminatorXML struct {
	Column   string                 `xml:"column,attr"`
	JavaType string                 `xml:"javaType,attr"`
	JdbcType string                 `xml:"jdbcType,attr"`
	Cases    []discriminatorCaseXML `xml:"case"`
}

type resultMapXML struct {
	ID            string             `xml:"id,attr"`
	Type          string             `xml:"type,attr"`
	Extends       string             `xml:"extends,attr"`
	AutoMapping   string             `xml:"autoMapping,attr"`
	IDs           []resultMappingXML `xml:"id"`
	Results       []resultMappingXML `xml:"result"`
	Constructor   *constructorXML    `xml:"constructor"`
	Associations  []resultMappingXML `xml:"association"`
	Collections   []resultMappingXML `xml:"collection"`
	Discriminator *discriminatorXML  `xml:"discriminator"`
}

type statementXML struct {
	ID               string `xml:"id,attr"`
	ParameterType    string `xml:"parameterType,attr"`
	ParameterMap     string `xml:"parameterMap,attr"`
	ResultType       string `xml:"resultType,attr"`
	ResultMap        string `xml:"resultMap,attr"`
	UseCache         string `xml:"useCache,attr"`
	FlushCache       string `xml:"flushCache,attr"`
	Timeout          string `xml:"timeout,attr"`
	FetchSize        string `xml:"fetchSize,attr"`
	DatabaseID       string `xml:"databaseId,attr"`
	StatementType    string `xml:"statementType,attr"`
	KeyProperty      string `xml:"keyProperty,attr"`
	KeyColumn        string `xml:"keyColumn,attr"`
	UseGeneratedKeys string `xml:"useGeneratedKeys,attr"`
	ResultOrdered    string `xml:"resultOrdered,attr"`
	AffectsData      string `xml:"affectsData,attr"`
	Content          string `xml:",innerxml"`
}

type rawSQLSource struct{ sql string }

func (s rawSQLSource) BoundSql(any) (string, []mapping.ParameterMapping) { return s.sql, nil }

// ParseMapperFile parses one mapper XML document at path into cfg (§4.3). catalog
// resolves javaType/parameterType/resultType spellings; props resolves ${...}
// placeholders in statement SQL text; databaseID filters statements whose
// databaseId attribute names a different environment.
func ParseMapperFile(cfg *config.Configuration, path string, catalog TypeCatalog, props map[string]string, databaseID string) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.WithContext(errs.NewBuilder("cannot open mapper %q: %v", path, err), map[string]any{"path": path})
	}
	defer f.Close()
	return parseMapperReader(cfg, f, catalog, props, databaseID)
}

func parseMapperReader(cfg *config.Configuration, r io.Reader, catalog TypeCatalog, props map[string]string, databaseID string) error {
	var doc mapperXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return errs.NewBuilder("malformed mapper document: %v", err)
	}
	if doc.Namespace == "" {
		return errs.NewBuilder("mapper document has no namespace")
	}
	ns := doc.Namespace

	if !cfg.MarkResourceLoaded("mapper:" + ns) {
		log.WithField("namespace", ns).Debug("mapper already loaded, skipping")
		return nil
	}

	fragmentDocs := make(map[string]sqlFragmentXML, len(doc.SQLFragments))
	for _, s := range doc.SQLFragments {
		id := config.NormalizeReferenceID(ns, s.ID)
		if shouldUseFragment(fragmentDocs, id, s.DatabaseID, databaseID) {
			fragmentDocs[id] = s
		}
	}
	fragments := make(map[string]string, len(fragmentDocs))
	for id, s := range fragmentDocs {
		text := strings.TrimSpace(s.Content)
		fragments[id] = text
		fragments[s.ID] = text
	}

	if err := parseCacheSection(cfg, ns, &doc); err != nil {
		return err
	}
	if err := parseParameterMaps(cfg, ns, doc.ParameterMaps, catalog); err != nil {
		return err
	}
	if err := parseResultMaps(cfg, ns, doc.ResultMaps, catalog); err != nil {
		return err
	}

	kinds := []struct {
		kind  mapping.SQLCommandKind
		stmts []statementXML
	}{
		{mapping.SQLSelect, doc.Selects},
		{mapping.SQLInsert, doc.Inserts},
		{mapping.SQLUpdate, doc.Updates},
		{mapping.SQLDelete, doc.Deletes},
	}
	// §4.3 step 7: database-specific statements are registered first; an id-less
	// statement is only registered afterward if no database-specific statement already
	// claimed its id, so a mapper mixing a generic and a databaseId-scoped statement of
	// the same id doesn't raise a duplicate-registration conflict.
	dbMatched := make(map[string]bool)
	for _, group := range kinds {
		for _, stmt := range group.stmts {
			if stmt.DatabaseID == "" || stmt.DatabaseID != databaseID {
				continue
			}
			id, err := config.NormalizeDefinitionID(ns, stmt.ID)
			if err != nil {
				return err
			}
			if err := parseStatement(cfg, ns, stmt, group.kind, catalog, props, fragments); err != nil {
				return err
			}
			dbMatched[id] = true
		}
	}
	for _, group := range kinds {
		for _, stmt := range group.stmts {
			if stmt.DatabaseID != "" {
				continue
			}
			id, err := config.NormalizeDefinitionID(ns, stmt.ID)
			if err != nil {
				return err
			}
			if dbMatched[id] {
				continue
			}
			if err := parseStatement(cfg, ns, stmt, group.kind, catalog, props, fragments); err != nil {
				return err
			}
		}
	}

	return nil
}

// shouldUseFragment implements §4.3 step 6's databaseId-matching rule for <sql>
// fragments: a fragment naming a databaseId is kept only when it matches the current
// one, and an id-less fragment loses to an already-registered, database-specific
// fragment sharing its id.
func shouldUseFragment(existing map[string]sqlFragmentXML, id, fragmentDatabaseID, requiredDatabaseID string) bool {
	if fragmentDatabaseID != "" {
		return fragmentDatabaseID == requiredDatabaseID
	}
	prev, ok := existing[id]
	if !ok {
		return true
	}
	return prev.DatabaseID == ""
}

func parseCacheSection(cfg *config.Configuration, ns string, doc *mapperXML) error {
	switch {
	case doc.CacheRef != nil:
		target := doc.CacheRef.Namespace
		cfg.SetCacheRef(ns, target)
		if !cfg.ResolveCacheRef(ns) {
			cfg.PendingCacheRefs.Enqueue(&cacheRefResolver{cfg: cfg, namespace: ns})
		}
	case doc.Cache != nil:
		b := cache.NewBuilder(ns)
		if doc.Cache.Size != "" {
			if n, err := strconv.Atoi(doc.Cache.Size); err == nil {
				b.Size(n)
			}
		}
		if doc.Cache.FlushInterval != "" {
			if ms, err := strconv.Atoi(doc.Cache.FlushInterval); err == nil {
				b.FlushInterval(time.Duration(ms) * time.Millisecond)
			}
		}
		if doc.Cache.ReadOnly != "" {
			ro, _ := strconv.ParseBool(doc.Cache.ReadOnly)
			b.ReadWrite(!ro)
		}
		if doc.Cache.Blocking != "" {
			blocking, _ := strconv.ParseBool(doc.Cache.Blocking)
			b.Blocking(blocking)
		}
		for _, p := range doc.Cache.Properties {
			b.Property(p.Name, p.Value)
		}
		built, err := b.Build()
		if err != nil {
			return err
		}
		if err := cfg.RegisterCache(ns, built); err != nil {
			return err
		}
	}
	return nil
}

// cacheRefResolver waits for the referenced namespace's cache to appear (its mapper
// may be parsed later, §4.3's forward-reference tolerance).
type cacheRefResolver struct {
	cfg       *config.Configuration
	namespace string
}

func (r *cacheRefResolver) ID() string { return r.namespace }
func (r *cacheRefResolver) TryResolve() error {
	if !r.cfg.ResolveCacheRef(r.namespace) {
		return errs.NewForwardReference("namespace %q's cache-ref has not resolved yet", r.namespace)
	}
	return nil
}

func parseParameterMaps(cfg *config.Configuration, ns string, docs []parameterMapXML, catalog TypeCatalog) error {
	for _, pm := range docs {
		t, err := catalog.Lookup(cfg, pm.Type)
		if err != nil {
			return err
		}
		id, err := config.NormalizeDefinitionID(ns, pm.ID)
		if err != nil {
			return err
		}
		mappings := make([]mapping.ParameterMapping, 0, len(pm.Params))
		for _, p := range pm.Params {
			jt, err := catalog.Lookup(cfg, p.JavaType)
			if err != nil {
				return err
			}
			scale := 0
			if p.Scale != "" {
				scale, _ = strconv.Atoi(p.Scale)
			}
			mode := mapping.ParamIn
			if p.Mode != "" {
				mode = mapping.ParameterMode(strings.ToUpper(p.Mode))
			}
			mappings = append(mappings, mapping.ParameterMapping{
				Property: p.Property, JavaType: jt, JdbcType: p.JdbcType,
				Mode: mode, Scale: scale, TypeHandler: p.TypeHandler,
			})
		}
		if err := cfg.RegisterParameterMap(&mapping.ParameterMap{ID: id, Type: t, Mappings: mappings}); err != nil {
			return err
		}
	}
	return nil
}

func buildResultMapping(cfg *config.Configuration, ns string, x resultMappingXML, catalog TypeCatalog, flags ...mapping.ResultFlag) (mapping.ResultMapping, error) {
	jt, err := catalog.Lookup(cfg, x.JavaType)
	if err != nil {
		return mapping.ResultMapping{}, err
	}
	var composite []mapping.ResultMapping
	column := x.Column
	if strings.Contains(column, "=") {
		composite, err = mapping.ParseCompositeColumnName(column)
		if err != nil {
			return mapping.ResultMapping{}, err
		}
		column = ""
	}
	var notNull []string
	if x.NotNullColumn != "" {
		notNull = strings.Split(x.NotNullColumn, ",")
	}
	nestedResultMap := ""
	if x.ResultMap != "" {
		nestedResultMap = config.NormalizeReferenceID(ns, x.ResultMap)
	}
	nestedSelect := ""
	if x.Select != "" {
		nestedSelect = config.NormalizeReferenceID(ns, x.Select)
	}
	return mapping.ResultMapping{
		Property: x.Property, Column: column, JavaType: jt, JdbcType: x.JdbcType,
		TypeHandler: x.TypeHandler, NestedSelect: nestedSelect, NestedResultMap: nestedResultMap,
		Flags: flags, Composite: composite, NotNullColumns: notNull,
		ColumnPrefix: x.ColumnPrefix, ForeignColumn: x.ForeignColumn, Lazy: nestedSelect != "",
	}, nil
}

func buildResultMapBody(cfg *config.Configuration, ns string, rm resultMapXML, catalog TypeCatalog) ([]mapping.ResultMapping, *mapping.Discriminator, error) {
	var out []mapping.ResultMapping
	for _, x := range rm.IDs {
		m, err := buildResultMapping(cfg, ns, x, catalog, mapping.FlagID)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, m)
	}
	for _, x := range rm.Results {
		m, err := buildResultMapping(cfg, ns, x, catalog)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, m)
	}
	if rm.Constructor != nil {
		for _, x := range rm.Constructor.IDArgs {
			m, err := buildResultMapping(cfg, ns, x, catalog, mapping.FlagID, mapping.FlagConstructor)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, m)
		}
		for _, x := range rm.Constructor.Args {
			m, err := buildResultMapping(cfg, ns, x, catalog, mapping.FlagConstructor)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, m)
		}
	}
	for _, x := range rm.Associations {
		m, err := buildResultMapping(cfg, ns, x, catalog)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, m)
	}
	for _, x := range rm.Collections {
		m, err := buildResultMapping(cfg, ns, x, catalog)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, m)
	}

	var disc *mapping.Discriminator
	if rm.Discriminator != nil {
		jt, err := catalog.Lookup(cfg, rm.Discriminator.JavaType)
		if err != nil {
			return nil, nil, err
		}
		cases := make(map[string]string, len(rm.Discriminator.Cases))
		for _, c := range rm.Discriminator.Cases {
			cases[c.Value] = config.NormalizeReferenceID(ns, c.ResultMap)
		}
		disc = &mapping.Discriminator{Column: rm.Discriminator.Column, JavaType: jt, JdbcType: rm.Discriminator.JdbcType, CaseResultMapIDs: cases}
	}
	return out, disc, nil
}

func parseResultMaps(cfg *config.Configuration, ns string, docs []resultMapXML, catalog TypeCatalog) error {
	for _, rm := range docs {
		id, err := config.NormalizeDefinitionID(ns, rm.ID)
		if err != nil {
			return err
		}
		t, err := catalog.Lookup(cfg, rm.Type)
		if err != nil {
			return err
		}
		mappings, disc, err := buildResultMapBody(cfg, ns, rm, catalog)
		if err != nil {
			return err
		}
		var autoMapping *bool
		if rm.AutoMapping != "" {
			v, _ := strconv.ParseBool(rm.AutoMapping)
			autoMapping = &v
		}

		if rm.Extends == "" {
			out := &mapping.ResultMap{ID: id, Type: t, Mappings: mappings, Discriminator: disc, AutoMapping: autoMapping}
			if err := cfg.RegisterResultMap(out); err != nil {
				return err
			}
			continue
		}

		parentID := config.NormalizeReferenceID(ns, rm.Extends)
		res := &resultMapResolver{
			cfg: cfg, id: id, parentID: parentID, typ: t, mappings: mappings,
			discriminator: disc, autoMapping: autoMapping,
		}
		if err := res.tryRegisterOrEnqueue(); err != nil {
			return err
		}
	}
	return nil
}

// resultMapResolver implements extends-merge forward-reference tolerance (§4.2
// scenario 2): a child declared before its parent is enqueued and retried on every
// drain pass until the parent appears.
type resultMapResolver struct {
	cfg           *config.Configuration
	id            string
	parentID      string
	typ           reflect.Type
	mappings      []mapping.ResultMapping
	discriminator *mapping.Discriminator
	autoMapping   *bool
}

func (r *resultMapResolver) ID() string { return r.id }

func (r *resultMapResolver) tryRegisterOrEnqueue() error {
	if err := r.TryResolve(); err != nil {
		if errs.Is(err, errs.KindForwardReference) {
			r.cfg.PendingResultMaps.Enqueue(r)
			return nil
		}
		return err
	}
	return nil
}

func (r *resultMapResolver) TryResolve() error {
	parent, ok := r.cfg.ResultMap(r.parentID)
	if !ok {
		return errs.NewForwardReference("result map %q extends unresolved %q", r.id, r.parentID)
	}
	t := r.typ
	if t == nil {
		t = parent.Type
	}
	child := &mapping.ResultMap{
		ID: r.id, Type: t, Mappings: r.mappings, Discriminator: r.discriminator,
		Extends: r.parentID, AutoMapping: r.autoMapping,
	}
	child.Mappings = mapping.MergeExtends(child, parent)
	return r.cfg.RegisterResultMap(child)
}

func parseStatement(cfg *config.Configuration, ns string, stmt statementXML, kind mapping.SQLCommandKind, catalog TypeCatalog, props map[string]string, fragments map[string]string) error {
	id, err := config.NormalizeDefinitionID(ns, stmt.ID)
	if err != nil {
		return err
	}

	ms := &mapping.MappedStatement{
		ID: id, SQLCommandKind: kind, StatementKind: mapping.StatementPrepared,
		DatabaseID: stmt.DatabaseID,
	}
	ms.SqlSource = rawSQLSource{sql: ResolvePlaceholders(resolveIncludes(stmt.Content, fragments), props)}

	if stmt.StatementType != "" {
		ms.StatementKind = mapping.StatementKind(strings.ToUpper(stmt.StatementType))
	}
	if stmt.Timeout != "" {
		if n, err := strconv.Atoi(stmt.Timeout); err == nil {
			ms.Timeout = time.Duration(n) * time.Second
		}
	}
	if stmt.FetchSize != "" {
		ms.FetchSize, _ = strconv.Atoi(stmt.FetchSize)
	}
	if stmt.KeyProperty != "" {
		ms.KeyProperty = strings.Split(stmt.KeyProperty, ",")
	}
	if stmt.KeyColumn != "" {
		ms.KeyColumn = strings.Split(stmt.KeyColumn, ",")
	}
	if useGenerated, _ := strconv.ParseBool(stmt.UseGeneratedKeys); useGenerated {
		ms.KeyGenerator = "Jdbc3KeyGenerator"
	}
	if stmt.ResultOrdered != "" {
		ms.ResultOrdered, _ = strconv.ParseBool(stmt.ResultOrdered)
	}
	if stmt.AffectsData != "" {
		ms.DirtySelect, _ = strconv.ParseBool(stmt.AffectsData)
	}

	switch kind {
	case mapping.SQLSelect:
		ms.UseCache = stmt.UseCache != "false"
	default:
		ms.UseCache = stmt.UseCache == "true"
	}
	if stmt.FlushCache != "" {
		ms.FlushCache, _ = strconv.ParseBool(stmt.FlushCache)
	} else {
		ms.FlushCache = kind != mapping.SQLSelect
	}

	if stmt.ParameterMap != "" {
		ms.ParameterMapID = config.NormalizeReferenceID(ns, stmt.ParameterMap)
	} else if stmt.ParameterType != "" {
		t, err := catalog.Lookup(cfg, stmt.ParameterType)
		if err != nil {
			return err
		}
		inlineID := mapping.InlineID(id)
		if err := cfg.RegisterParameterMap(&mapping.ParameterMap{ID: inlineID, Type: t}); err != nil {
			return err
		}
		ms.ParameterMapID = inlineID
	}

	if stmt.ResultMap != "" {
		for _, rid := range strings.Split(stmt.ResultMap, ",") {
			ms.ResultMapIDs = append(ms.ResultMapIDs, config.NormalizeReferenceID(ns, strings.TrimSpace(rid)))
		}
	} else if stmt.ResultType != "" {
		t, err := catalog.Lookup(cfg, stmt.ResultType)
		if err != nil {
			return err
		}
		inlineID := id + "-Inline-Result"
		if err := cfg.RegisterResultMap(&mapping.ResultMap{ID: inlineID, Type: t}); err != nil {
			return err
		}
		ms.ResultMapIDs = []string{inlineID}
	}

	res := &statementResolver{cfg: cfg, namespace: ns, ms: ms}
	if cfg.ResolveCacheRef(ns) {
		return res.TryResolve()
	}
	cfg.PendingStatements.Enqueue(res)
	return nil
}

// resolveIncludes replaces <include refid="..."/> with the matching fragment's text
// (one non-recursive pass; SQL-text dynamic assembly beyond this is a downstream
// execution concern, not this module's).
func resolveIncludes(content string, fragments map[string]string) string {
	content = strings.TrimSpace(content)
	pos := 0
	for {
		start := strings.Index(content[pos:], "<include")
		if start < 0 {
			break
		}
		start += pos
		end := strings.Index(content[start:], "/>")
		if end < 0 {
			break
		}
		end += start + len("/>")
		tag := content[start:end]
		refStart := strings.Index(tag, `refid="`)
		if refStart < 0 {
			break
		}
		refStart += len(`refid="`)
		refEnd := strings.Index(tag[refStart:], `"`)
		if refEnd < 0 {
			break
		}
		refid := tag[refStart : refStart+refEnd]
		replacement := fragments[refid]
		content = content[:start] + replacement + content[end:]
		pos = start + len(replacement)
	}
	return content
}

// statementResolver implements a statement's dependency on its namespace's cache-ref
// (§4.3: "a select issued before its namespace's cache-ref resolves is enqueued").
type statementResolver struct {
	cfg       *config.Configuration
	namespace string
	ms        *mapping.MappedStatement
}

func (r *statementResolver) ID() string { return r.ms.ID }

func (r *statementResolver) TryResolve() error {
	if !r.cfg.ResolveCacheRef(r.namespace) {
		return errs.NewForwardReference("statement %q blocked on namespace %q's unresolved cache-ref", r.ms.ID, r.namespace)
	}
	if r.ms.UseCache {
		if c, ok := r.cfg.Cache(r.namespace); ok {
			r.ms.Cache = c
		}
	}
	return r.cfg.RegisterStatement(r.ms)
}
