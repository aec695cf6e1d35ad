package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zsy619/mapcore/alias"
	"github.com/zsy619/mapcore/cache"
	"github.com/zsy619/mapcore/errs"
	"github.com/zsy619/mapcore/mapping"
)

var log = logrus.WithField("component", "config")

// Configuration is the process-wide registry (§3): it is passed explicitly wherever
// it's needed (builder, execution) — design note §9 is explicit that "there is no
// module-level singleton".
type Configuration struct {
	mu sync.RWMutex

	Settings *Settings
	Aliases  *alias.Registry

	statements    map[string]*mapping.MappedStatement
	resultMaps    map[string]*mapping.ResultMap
	parameterMaps map[string]*mapping.ParameterMap
	caches        map[string]cache.Cache

	cacheRefMap     map[string]string // namespace -> namespace it borrows a cache from
	loadedResources map[string]bool

	PendingResultMaps *PendingQueue
	PendingCacheRefs  *PendingQueue
	PendingStatements *PendingQueue
}

// New returns an empty Configuration with default settings and a freshly seeded alias registry.
func New() *Configuration {
	return &Configuration{
		Settings:          NewSettings(),
		Aliases:           alias.New(),
		statements:        make(map[string]*mapping.MappedStatement),
		resultMaps:        make(map[string]*mapping.ResultMap),
		parameterMaps:     make(map[string]*mapping.ParameterMap),
		caches:            make(map[string]cache.Cache),
		cacheRefMap:       make(map[string]string),
		loadedResources:   make(map[string]bool),
		PendingResultMaps: &PendingQueue{},
		PendingCacheRefs:  &PendingQueue{},
		PendingStatements: &PendingQueue{},
	}
}

// MarkResourceLoaded is the idempotence guard over loaded resource identifiers (§3):
// it returns true the first time resource is seen, false on every subsequent call.
func (c *Configuration) MarkResourceLoaded(resource string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadedResources[resource] {
		return false
	}
	c.loadedResources[resource] = true
	return true
}

func registerIdempotent[T any](mu *sync.RWMutex, m map[string]*T, id string, value *T, kind string) error {
	mu.Lock()
	defer mu.Unlock()
	if existing, ok := m[id]; ok {
		if !reflect.DeepEqual(existing, value) {
			return errs.WithContext(
				errs.NewBuilder("%s id %q already registered with a different value", kind, id),
				map[string]any{"id": id, "kind": kind},
			)
		}
		return nil
	}
	m[id] = value
	return nil
}

// RegisterStatement registers ms under ms.ID, which must already be fully qualified.
func (c *Configuration) RegisterStatement(ms *mapping.MappedStatement) error {
	if err := registerIdempotent(&c.mu, c.statements, ms.ID, ms, "statement"); err != nil {
		return err
	}
	log.WithField("id", ms.ID).Debug("registered mapped statement")
	return nil
}

// Statement resolves a fully qualified statement id.
func (c *Configuration) Statement(id string) (*mapping.MappedStatement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ms, ok := c.statements[id]
	return ms, ok
}

// RegisterResultMap registers rm under rm.ID.
func (c *Configuration) RegisterResultMap(rm *mapping.ResultMap) error {
	if err := registerIdempotent(&c.mu, c.resultMaps, rm.ID, rm, "result map"); err != nil {
		return err
	}
	log.WithField("id", rm.ID).Debug("registered result map")
	return nil
}

// ResultMap resolves a fully qualified result-map id.
func (c *Configuration) ResultMap(id string) (*mapping.ResultMap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rm, ok := c.resultMaps[id]
	return rm, ok
}

// RegisterParameterMap registers pm under pm.ID.
func (c *Configuration) RegisterParameterMap(pm *mapping.ParameterMap) error {
	if err := registerIdempotent(&c.mu, c.parameterMaps, pm.ID, pm, "parameter map"); err != nil {
		return err
	}
	return nil
}

// ParameterMap resolves a fully qualified parameter-map id.
func (c *Configuration) ParameterMap(id string) (*mapping.ParameterMap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pm, ok := c.parameterMaps[id]
	return pm, ok
}

// RegisterCache registers c2 under namespace (a cache is namespace-identified, §3).
func (c *Configuration) RegisterCache(namespace string, c2 cache.Cache) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.caches[namespace]; ok {
		return errs.NewBuilder("cache for namespace %q already registered", namespace)
	}
	c.caches[namespace] = c2
	return nil
}

// Cache resolves the cache registered for namespace, following a cache-ref if one is
// recorded and has resolved.
func (c *Configuration) Cache(namespace string) (cache.Cache, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ref, ok := c.cacheRefMap[namespace]; ok {
		ch, ok := c.caches[ref]
		return ch, ok
	}
	ch, ok := c.caches[namespace]
	return ch, ok
}

// SetCacheRef records that namespace borrows its cache from referenced.
func (c *Configuration) SetCacheRef(namespace, referenced string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheRefMap[namespace] = referenced
}

// ResolveCacheRef reports whether namespace's cache-ref (if any) currently resolves to
// a defined cache. A namespace with no recorded cache-ref trivially resolves (it has
// no unresolved dependency to block on).
func (c *Configuration) ResolveCacheRef(namespace string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.cacheRefMap[namespace]
	if !ok {
		return true
	}
	_, found := c.caches[ref]
	return found
}

// Seal drains all three pending queues to a fixpoint and fails with a BuilderError
// naming every entry that never resolved (§4.3, §7: "a drain attempt that leaves any
// queue non-empty must raise BuilderError reporting the unresolved entries").
func (c *Configuration) Seal() error {
	for _, q := range []*PendingQueue{c.PendingCacheRefs, c.PendingResultMaps, c.PendingStatements} {
		if err := DrainToFixpoint(q); err != nil {
			return err
		}
	}

	var unresolved []string
	if ids := c.PendingCacheRefs.IDs(); len(ids) > 0 {
		unresolved = append(unresolved, fmt.Sprintf("cache-refs: %v", ids))
	}
	if ids := c.PendingResultMaps.IDs(); len(ids) > 0 {
		unresolved = append(unresolved, fmt.Sprintf("result-maps: %v", ids))
	}
	if ids := c.PendingStatements.IDs(); len(ids) > 0 {
		unresolved = append(unresolved, fmt.Sprintf("statements: %v", ids))
	}
	if len(unresolved) > 0 {
		return errs.NewBuilder("configuration seal failed, unresolved entries remain: %v", unresolved)
	}
	return nil
}
