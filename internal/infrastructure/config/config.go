package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// ErrLoad is returned when an explicitly named configuration file cannot be
// read or parsed. It is distinct from a lookup miss, which is never an error.
var ErrLoad = errors.New("config: cannot load configuration file")

// Store is a read-only group/key/value configuration source.
//
// A nil *Store is valid and behaves as an empty source: every lookup reports
// the key as absent. This lets callers run without any configuration file.
//
// Thread Safety:
//   - Store is immutable after Load and safe for concurrent reads.
type Store struct {
	path   string
	groups map[string]map[string]string
}

// Load reads a configuration file and returns an immutable Store.
//
// The format is chosen by extension:
//   - ".yaml", ".yml": a YAML mapping of groups to key/value mappings
//   - anything else: a key file with [Group] headers and Key=Value lines
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns:
//   - *Store: Loaded store
//   - error: Wraps ErrLoad if the file cannot be read or parsed
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrLoad, path, err)
	}

	var groups map[string]map[string]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		groups, err = parseYAML(data)
	default:
		groups, err = parseKeyFile(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrLoad, path, err)
	}

	return &Store{path: path, groups: groups}, nil
}

// parseKeyFile parses [Group] / Key=Value content. Every key must follow a
// group header.
func parseKeyFile(data []byte) (map[string]map[string]string, error) {
	// Key files have no inline comments: "Password=a#b" keeps the '#'.
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]map[string]string)
	for _, sec := range f.Sections() {
		keys := sec.Keys()
		if sec.Name() == ini.DefaultSection {
			if len(keys) > 0 {
				return nil, fmt.Errorf("key %q outside of any group", keys[0].Name())
			}
			continue
		}
		values := make(map[string]string, len(keys))
		for _, k := range keys {
			values[k.Name()] = k.String()
		}
		groups[sec.Name()] = values
	}
	return groups, nil
}

// parseYAML parses a two-level YAML mapping. Nested values below the key
// level are not representable in a group/key store and are dropped, which
// makes their lookups report absent.
func parseYAML(data []byte) (map[string]map[string]string, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	groups := make(map[string]map[string]string, len(raw))
	for group, kv := range raw {
		values := make(map[string]string, len(kv))
		for key, v := range kv {
			if s, ok := scalarString(v); ok {
				values[key] = s
			}
		}
		groups[group] = values
	}
	return groups, nil
}

// scalarString renders a YAML scalar the way a key file would store it.
func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// Path returns the file the store was loaded from, or "" for a nil store.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Groups returns the sorted group names present in the store.
func (s *Store) Groups() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String looks up a string value. The boolean is false when the file, the
// group or the key is absent.
func (s *Store) String(group, key string) (string, bool) {
	if s == nil {
		return "", false
	}
	values, ok := s.groups[group]
	if !ok {
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

// Int looks up an integer value. A value that is present but does not parse
// as a base-10 integer is reported as absent.
func (s *Store) Int(group, key string) (int, bool) {
	raw, ok := s.String(group, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

// LoggingConfig contains logging settings read from the Logging group.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// LoggingSettings returns the Logging group with defaults applied for
// absent keys (info, text, stderr).
func LoggingSettings(s *Store) LoggingConfig {
	cfg := LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}
	InjectString(s, &cfg.Level, "Logging", "Level")
	InjectString(s, &cfg.Format, "Logging", "Format")
	InjectString(s, &cfg.Output, "Logging", "Output")
	return cfg
}
