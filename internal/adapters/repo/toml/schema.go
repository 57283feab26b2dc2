package toml

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	currentSchemaVersion = 1
	versionKey           = "version"
)

// document is the decoded config file: nested tables keyed by the segments of
// a dotted key, plus the schema version at the top level.
type document map[string]any

func (d document) applyDefaults() {
	if _, ok := d[versionKey]; !ok {
		d[versionKey] = int64(currentSchemaVersion)
	}
}

func (d document) validateVersion() error {
	raw, ok := d[versionKey]
	if !ok {
		return nil
	}
	version, ok := raw.(int64)
	if !ok {
		return fmt.Errorf("config schema version must be an integer, got %T", raw)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("unsupported config schema version %d (current %d)", version, currentSchemaVersion)
	}
	return nil
}

func (d document) lookup(key string) (any, bool) {
	segments := splitKey(key)
	table := map[string]any(d)
	for i, segment := range segments {
		value, ok := table[segment]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return value, true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		table = next
	}
	return nil, false
}

func (d document) set(key string, value any) error {
	segments := splitKey(key)
	table := map[string]any(d)
	for _, segment := range segments[:len(segments)-1] {
		existing, ok := table[segment]
		if !ok {
			next := map[string]any{}
			table[segment] = next
			table = next
			continue
		}
		next, ok := existing.(map[string]any)
		if !ok {
			return fmt.Errorf("config key %q: %q is not a table", key, segment)
		}
		table = next
	}
	table[segments[len(segments)-1]] = value
	return nil
}

// unset removes key and prunes tables left empty.
func (d document) unset(key string) bool {
	return unsetIn(map[string]any(d), splitKey(key))
}

func unsetIn(table map[string]any, segments []string) bool {
	head := segments[0]
	if len(segments) == 1 {
		if _, ok := table[head]; !ok {
			return false
		}
		delete(table, head)
		return true
	}
	next, ok := table[head].(map[string]any)
	if !ok {
		return false
	}
	removed := unsetIn(next, segments[1:])
	if removed && len(next) == 0 {
		delete(table, head)
	}
	return removed
}

func (d document) flatten() map[string]string {
	out := map[string]string{}
	flattenInto(out, "", map[string]any(d))
	delete(out, versionKey)
	return out
}

func flattenInto(out map[string]string, prefix string, table map[string]any) {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := table[key].(map[string]any); ok {
			flattenInto(out, full, nested)
			continue
		}
		out[full] = formatValue(table[key])
	}
}

func splitKey(key string) []string {
	return strings.Split(strings.ToLower(strings.TrimSpace(key)), ".")
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("config key is required")
	}
	for _, segment := range splitKey(key) {
		if segment == "" {
			return fmt.Errorf("config key %q has an empty segment", key)
		}
	}
	if strings.EqualFold(strings.TrimSpace(key), versionKey) {
		return fmt.Errorf("config key %q is reserved", key)
	}
	return nil
}

// parseValue stores integers and booleans with their TOML type so viper and
// hand edits see the same shape.
func parseValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && strconv.FormatInt(n, 10) == raw {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	return raw
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}
