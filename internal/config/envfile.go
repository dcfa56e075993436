package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/subosito/gotenv"
)

// ReadEnvFile parses a dotenv file (KEY=VALUE lines, comments, quoting and
// `export` prefixes as understood by gotenv).
func ReadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer func() { _ = f.Close() }()

	values, err := gotenv.StrictParse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file %s: %w", path, err)
	}
	return values, nil
}

// MergeEnviron returns base with the extra variables appended, skipping
// every key that base already defines. Variables set by the platform always
// win over the dotenv file. Appended entries are sorted by key.
func MergeEnviron(base []string, extra map[string]string) []string {
	out := make([]string, len(base), len(base)+len(extra))
	copy(out, base)

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if _, ok := LookupEnviron(base, k); ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

// LookupEnviron finds key in a KEY=VALUE list. When a key appears more
// than once the last entry wins, matching os/exec.
func LookupEnviron(environ []string, key string) (string, bool) {
	value, found := "", false
	prefix := key + "="
	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			value, found = kv[len(prefix):], true
		}
	}
	return value, found
}

// SetEnviron returns environ with key set to value, replacing earlier
// entries for the same key.
func SetEnviron(environ []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return append(out, prefix+value)
}
