package main

import (
	"fmt"
	"sort"
	"strings"
)

// mappingFlag implements flag.Value to collect repeatable KEY=VALUE flags
// into the configuration mapping.
type mappingFlag map[string]string

func (m mappingFlag) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ",")
}

func (m mappingFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", v)
	}
	m[key] = strings.TrimSpace(value)
	return nil
}
