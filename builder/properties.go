package builder

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/zsy619/mapcore/errs"
)

// LoadProperties reads the root <properties resource="..."/> or <properties url="..."/>
// declaration (§4.3) via viper, which is also how the rest of this module's ambient
// configuration is loaded. The file's extension selects viper's decoder; a bare
// ".properties" file is read as the flat key=value format the reference builder uses.
func LoadProperties(path string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if strings.HasSuffix(path, ".properties") {
		v.SetConfigType("properties")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, errs.WithContext(
			errs.NewBuilder("failed to load properties resource %q: %v", path, err),
			map[string]any{"resource": path},
		)
	}

	out := make(map[string]string)
	for _, key := range v.AllKeys() {
		out[key] = v.GetString(key)
	}
	return out, nil
}

// MergeProperties layers override on top of base, returning a new map (§4.3: inline
// <property> children of <properties> take precedence over the external resource).
func MergeProperties(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// ResolvePlaceholders substitutes "${key}" occurrences in s from props, leaving any
// unresolved placeholder untouched rather than failing — the reference builder treats
// an unresolvable property placeholder as a literal, deferring the error (if any) to
// whatever eventually tries to use the unresolved value.
func ResolvePlaceholders(s string, props map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start
		b.WriteString(s[:start])
		key := s[start+2 : end]
		if v, ok := props[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	return b.String()
}
