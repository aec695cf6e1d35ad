package cache

import (
	"reflect"
	"strconv"
	"time"
)

// Builder assembles a namespace's cache in the order §4.4 lists, innermost first:
// base -> eviction -> [scheduled-flush] -> synchronized -> [logging] ->
// [serialized] -> [blocking], so blocking (when present) is the outermost layer.
// readWrite=false inserts serialized access, blocking=true inserts blocking,
// flushInterval > 0 inserts scheduled-flush, Logging(true) inserts logging — base,
// eviction and synchronized are always present.
type Builder struct {
	id            string
	size          int
	flushInterval time.Duration
	readWrite     bool
	blocking      bool
	logging       bool
	properties    map[string]string
	logger        Logger
}

// NewBuilder starts a Builder for namespace id with the reference defaults: LRU
// eviction at 1024 entries, read/write (no forced serialization), non-blocking.
func NewBuilder(id string) *Builder {
	return &Builder{id: id, size: 1024, readWrite: true, properties: map[string]string{}}
}

func (b *Builder) Size(size int) *Builder                { b.size = size; return b }
func (b *Builder) FlushInterval(d time.Duration) *Builder { b.flushInterval = d; return b }
func (b *Builder) ReadWrite(rw bool) *Builder             { b.readWrite = rw; return b }
func (b *Builder) Blocking(blocking bool) *Builder        { b.blocking = blocking; return b }
func (b *Builder) Logging(logging bool) *Builder          { b.logging = logging; return b }
func (b *Builder) Logger(l Logger) *Builder               { b.logger = l; return b }
func (b *Builder) Property(key, value string) *Builder    { b.properties[key] = value; return b }

// Build assembles the decorator chain and applies any configured properties to the
// base PerpetualCache via the capability-probe §4.4 describes: a property whose key
// matches an exported field name on the base (case-insensitively) is assigned after a
// best-effort type coercion.
func (b *Builder) Build() (Cache, error) {
	base := NewPerpetualCache(b.id)
	applyProperties(base, b.properties)

	var c Cache = base
	c = NewLruCache(c, b.size)

	if b.flushInterval > 0 {
		c = NewScheduledFlushCache(c, b.flushInterval)
	}

	c = NewSynchronizedCache(c)

	if b.logging {
		c = NewLoggingCache(c, b.logger)
	}

	if !b.readWrite {
		c = NewSerializedCache(c, nil)
	}

	if b.blocking {
		c = NewBlockingCache(c)
	}

	return c, nil
}

// applyProperties is the "capability-probe" property assignment §4.4 names: it has
// nothing exported to set on PerpetualCache today, but is kept as the extension point
// future decorators (or a caller's custom base implementation) hook into.
func applyProperties(base *PerpetualCache, properties map[string]string) {
	if len(properties) == 0 {
		return
	}
	v := reflect.ValueOf(base).Elem()
	t := v.Type()
	for key, raw := range properties {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || !equalFold(f.Name, key) {
				continue
			}
			coerceAndSet(v.Field(i), raw)
		}
	}
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func coerceAndSet(field reflect.Value, raw string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Bool:
		if v, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(v)
		}
	}
}
