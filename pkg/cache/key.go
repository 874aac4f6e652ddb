package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CacheKey identifies the cached records of one search.
type CacheKey struct {
	// Name is a human readable label, e.g. "open-bugs". Optional.
	Name string

	JQL    string
	Fields []string
}

// NewKey creates a cache key.
func NewKey(name, jql string, fields []string) CacheKey {
	return CacheKey{Name: name, JQL: jql, Fields: fields}
}

// Hash returns a fingerprint of the JQL and the field projection. Field
// order does not change the fingerprint.
func (k CacheKey) Hash() string {
	fields := make([]string, len(k.Fields))
	copy(fields, k.Fields)
	sort.Strings(fields)

	h := xxhash.New()
	h.WriteString(k.JQL)
	h.WriteString("\x00")
	h.WriteString(strings.Join(fields, ","))
	return fmt.Sprintf("%016x", h.Sum64())
}

// String generates a deterministic cache key string.
// Format: jira:records:name:hash
//
// Example:
//
//	jira:records:open-bugs:9b2f0c6d1e4a7f30
func (k CacheKey) String() string {
	parts := []string{"jira", "records"}
	if name := k.safeName(); name != "" {
		parts = append(parts, name)
	}
	parts = append(parts, k.Hash())
	return strings.Join(parts, ":")
}

// Filename returns the file name used by FileStore.
func (k CacheKey) Filename() string {
	if name := k.safeName(); name != "" {
		return name + "-" + k.Hash() + ".json"
	}
	return k.Hash() + ".json"
}

// safeName keeps letters, digits, dash, dot and underscore.
func (k CacheKey) safeName() string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.Trim(k.Name, " ./"))
}
