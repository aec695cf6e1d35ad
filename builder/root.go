// Package builder implements the two-phase, forward-reference-tolerant configuration
// builder (§4.3): an ordered-section root-document parser and a per-namespace mapper
// parser, both driving a shared config.Configuration and its three pending queues.
package builder

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zsy619/mapcore/config"
	"github.com/zsy619/mapcore/errs"
	"github.com/zsy619/mapcore/pool"
)

var log = logrus.WithField("component", "builder")

// TypeCatalog resolves a document's "type"/"javaType"/"ofType" spelling to a concrete
// reflect.Type. The reference builder resolves these by loading the named class at
// runtime (Class.forName); Go has no equivalent, so the embedding application supplies
// the set of types its mappers may reference up front. A catalog entry that also
// appears in the alias registry is reachable either way — by alias or by this direct
// qualified-name lookup.
type TypeCatalog map[string]reflect.Type

// Lookup resolves name directly against the catalog, then falls through to cfg's alias
// registry (covers both a bare alias like "User" and a fully qualified name registered there).
func (tc TypeCatalog) Lookup(cfg *config.Configuration, name string) (reflect.Type, error) {
	if name == "" {
		return nil, nil
	}
	if t, ok := tc[name]; ok {
		return t, nil
	}
	return cfg.Aliases.Resolve(name)
}

// rootXML mirrors <configuration>'s ordered top-level sections (§4.3: "a document's
// sections are processed strictly in declaration order — typeAliases seen after a
// mapper that needed them is a BuilderError, not a forward reference"). plugins,
// objectFactory, objectWrapperFactory and reflectorFactory have no home in this
// module — it carries no interceptor chain or pluggable object-construction layer — so
// environments and databaseIdProvider are the next sections actually processed, in
// their documented position between typeAliases and mappers.
type rootXML struct {
	XMLName            xml.Name               `xml:"configuration"`
	Properties         *propertiesXML         `xml:"properties"`
	Settings           *settingsXML           `xml:"settings"`
	TypeAliases        *typeAliasesXML        `xml:"typeAliases"`
	Environments       *environmentsXML       `xml:"environments"`
	DatabaseIdProvider *databaseIdProviderXML `xml:"databaseIdProvider"`
	Mappers            *mappersXML            `xml:"mappers"`
}

type environmentsXML struct {
	Default      string           `xml:"default,attr"`
	Environments []environmentXML `xml:"environment"`
}

type environmentXML struct {
	ID         string        `xml:"id,attr"`
	DataSource dataSourceXML `xml:"dataSource"`
}

type dataSourceXML struct {
	Type       string       `xml:"type,attr"`
	Properties []propertyKV `xml:"property"`
}

type databaseIdProviderXML struct {
	Type       string       `xml:"type,attr"`
	Properties []propertyKV `xml:"property"`
}

type propertiesXML struct {
	Resource string       `xml:"resource,attr"`
	URL      string       `xml:"url,attr"`
	Entries  []propertyKV `xml:"property"`
}

type propertyKV struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type settingsXML struct {
	Entries []propertyKV `xml:"setting"`
}

type typeAliasesXML struct {
	Aliases  []typeAliasXML `xml:"typeAlias"`
	Packages []packageXML   `xml:"package"`
}

type typeAliasXML struct {
	Alias string `xml:"alias,attr"`
	Type  string `xml:"type,attr"`
}

type packageXML struct {
	Name string `xml:"name,attr"`
}

type mappersXML struct {
	Entries []mapperRefXML `xml:"mapper"`
}

type mapperRefXML struct {
	Resource string `xml:"resource,attr"`
	URL      string `xml:"url,attr"`
}

// EnvironmentConfig is the data-source construction recipe named by <environments>'s
// default (or sole) <environment>. The embedding application turns it into a
// pool.ConnectionFactory (e.g. pool.NewSQLConnFactory) — this module stops short of
// opening a real connection itself, matching §4.3's environments note that data-source
// construction runs after custom object factories, which this module has none of.
type EnvironmentConfig struct {
	ID         string
	DriverName string
	DataSource string
	Username   string
	Password   string
	Pool       pool.Config
}

// BuildResult carries what the root parse produced besides the populated Configuration:
// the merged property table (for mapper-level placeholder resolution), the selected
// environment (if any), the database id resolved by <databaseIdProvider> (if any), and
// the list of mapper documents still to be parsed, in declaration order.
type BuildResult struct {
	Properties  map[string]string
	MapperPaths []string
	Environment *EnvironmentConfig
	DatabaseID  string
}

// BuildRoot parses the root configuration document at path into cfg, processing the
// sections in a fixed order (properties, settings, typeAliases, environments,
// databaseIdProvider, mappers) whatever their order in the document (§4.3). catalog
// resolves any <typeAlias type="..."> to a concrete Go type; relative
// <mapper resource="..."/> entries are anchored at path's directory.
func BuildRoot(cfg *config.Configuration, path string, catalog TypeCatalog) (*BuildResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.WithContext(errs.NewBuilder("cannot open root configuration %q: %v", path, err), map[string]any{"path": path})
	}
	defer f.Close()
	return buildRootFrom(cfg, f, filepath.Dir(path), catalog)
}

func buildRootFrom(cfg *config.Configuration, r io.Reader, baseDir string, catalog TypeCatalog) (*BuildResult, error) {
	var doc rootXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.NewBuilder("malformed root configuration document: %v", err)
	}

	result := &BuildResult{Properties: map[string]string{}}

	// <properties> — external resource first, inline entries override (§4.3). resource
	// and url are mutually exclusive.
	if doc.Properties != nil {
		if doc.Properties.Resource != "" && doc.Properties.URL != "" {
			return nil, errs.NewBuilder("<properties> specifies both resource %q and url %q; only one is allowed", doc.Properties.Resource, doc.Properties.URL)
		}
		if doc.Properties.Resource != "" {
			loaded, err := LoadProperties(filepath.Join(baseDir, doc.Properties.Resource))
			if err != nil {
				return nil, err
			}
			result.Properties = MergeProperties(result.Properties, loaded)
		} else if doc.Properties.URL != "" {
			loaded, err := LoadProperties(doc.Properties.URL)
			if err != nil {
				return nil, err
			}
			result.Properties = MergeProperties(result.Properties, loaded)
		}
		inline := make(map[string]string, len(doc.Properties.Entries))
		for _, e := range doc.Properties.Entries {
			inline[e.Name] = e.Value
		}
		result.Properties = MergeProperties(result.Properties, inline)
	}

	// <settings> — every key must be recognized (§6).
	if doc.Settings != nil {
		kv := make(map[string]string, len(doc.Settings.Entries))
		for _, e := range doc.Settings.Entries {
			kv[e.Name] = ResolvePlaceholders(e.Value, result.Properties)
		}
		if err := cfg.Settings.Apply(kv); err != nil {
			return nil, err
		}
	}

	// <typeAliases> — individual aliases, then whole-package registration.
	if doc.TypeAliases != nil {
		for _, a := range doc.TypeAliases.Aliases {
			t, ok := catalog[a.Type]
			if !ok {
				return nil, errs.WithContext(
					errs.NewBuilder("typeAlias %q refers to type %q, not present in the supplied type catalog", a.Alias, a.Type),
					map[string]any{"alias": a.Alias, "type": a.Type},
				)
			}
			if a.Alias != "" {
				if err := cfg.Aliases.Register(a.Alias, t); err != nil {
					return nil, err
				}
			} else if err := cfg.Aliases.RegisterType(t); err != nil {
				return nil, err
			}
		}
		for _, p := range doc.TypeAliases.Packages {
			candidates := catalog.packageCandidates(p.Name)
			if err := cfg.Aliases.RegisterPackage(candidates, nil); err != nil {
				return nil, err
			}
		}
	}

	// <environments> — selects the default (or sole) environment's data-source recipe.
	if doc.Environments != nil {
		env, err := selectEnvironment(doc.Environments)
		if err != nil {
			return nil, err
		}
		if env != nil {
			result.Environment = env
		}
	}

	// <databaseIdProvider> — resolves the current database id from the selected
	// environment's driver, the source §4.3 steps 6-7 consume throughout mapper parsing.
	if doc.DatabaseIdProvider != nil && result.Environment != nil {
		result.DatabaseID = resolveDatabaseID(doc.DatabaseIdProvider, result.Environment.DriverName)
	}

	// <mappers> — resolved to file paths only; parsing happens in a later pass so the
	// caller can choose sequential or ants-bounded concurrent loading (see load.go).
	if doc.Mappers != nil {
		for _, m := range doc.Mappers.Entries {
			switch {
			case m.Resource != "":
				result.MapperPaths = append(result.MapperPaths, filepath.Join(baseDir, m.Resource))
			case m.URL != "":
				result.MapperPaths = append(result.MapperPaths, m.URL)
			}
		}
	}

	return result, nil
}

// selectEnvironment picks doc.Default's <environment> (or the sole one, if only one is
// declared) and turns its <dataSource> properties into an EnvironmentConfig.
func selectEnvironment(doc *environmentsXML) (*EnvironmentConfig, error) {
	if len(doc.Environments) == 0 {
		return nil, nil
	}
	var chosen *environmentXML
	if doc.Default != "" {
		for i := range doc.Environments {
			if doc.Environments[i].ID == doc.Default {
				chosen = &doc.Environments[i]
				break
			}
		}
		if chosen == nil {
			return nil, errs.NewBuilder("environments default %q does not match any declared <environment>", doc.Default)
		}
	} else if len(doc.Environments) == 1 {
		chosen = &doc.Environments[0]
	} else {
		return nil, errs.NewBuilder("<environments> declares more than one environment but no default")
	}

	props := make(map[string]string, len(chosen.DataSource.Properties))
	for _, p := range chosen.DataSource.Properties {
		props[p.Name] = p.Value
	}
	cfg := pool.DefaultConfig()
	if v, ok := props["poolMaximumActiveConnections"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxActive = n
		}
	}
	if v, ok := props["poolMaximumIdleConnections"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIdle = n
		}
	}
	if v, ok := props["poolMaximumCheckoutTime"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxCheckoutTime = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := props["poolTimeToWait"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeToWait = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := props["poolMaximumLocalBadConnectionTolerance"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxLocalBadTolerance = n
		}
	}
	if v, ok := props["poolPingEnabled"]; ok {
		cfg.PingEnabled, _ = strconv.ParseBool(v)
	}
	cfg.PingQuery = props["poolPingQuery"]
	if v, ok := props["poolPingConnectionsNotUsedFor"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PingNotUsedFor = time.Duration(n) * time.Millisecond
		}
	}

	return &EnvironmentConfig{
		ID:         chosen.ID,
		DriverName: props["driver"],
		DataSource: props["url"],
		Username:   props["username"],
		Password:   props["password"],
		Pool:       cfg,
	}, nil
}

// resolveDatabaseID implements the DB_VENDOR databaseIdProvider: the environment's
// driver name is looked up against the provider's property table, falling back to
// "_default" the way the reference VendorDatabaseIdProvider falls back when the
// detected product name has no explicit mapping.
func resolveDatabaseID(doc *databaseIdProviderXML, driverName string) string {
	props := make(map[string]string, len(doc.Properties))
	for _, p := range doc.Properties {
		props[p.Name] = p.Value
	}
	if id, ok := props[driverName]; ok {
		return id
	}
	return props["_default"]
}

// packageCandidates returns every catalog type whose PkgPath's last element matches
// pkg — the stand-in for "every type in package pkg" (see TypeCatalog's doc comment).
func (tc TypeCatalog) packageCandidates(pkg string) []reflect.Type {
	var out []reflect.Type
	for _, t := range tc {
		if filepath.Base(t.PkgPath()) == pkg {
			out = append(out, t)
		}
	}
	return out
}
