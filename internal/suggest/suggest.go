// Package suggest keeps a derived, in-memory autosuggest index over the
// free-text fields of accounting entries. It is rebuilt from the record store
// at warm-up, so there is no second durable structure to recover after a
// crash.
package suggest

import (
	"sort"
	"strings"
	"sync"
)

// Field names an indexed entry field.
type Field string

const (
	FieldName     Field = "name"
	FieldCompany  Field = "company"
	FieldCategory Field = "category"
)

// Index counts how many records use each value, so a value disappears from
// lookups only when the last record carrying it is gone.
type Index struct {
	mu     sync.RWMutex
	fields map[Field]map[string]int
}

func NewIndex() *Index {
	return &Index{fields: make(map[Field]map[string]int)}
}

// Add registers one use of value for the field. Empty values are ignored.
func (i *Index) Add(field Field, value string) {
	if value == "" {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	values, ok := i.fields[field]
	if !ok {
		values = make(map[string]int)
		i.fields[field] = values
	}

	values[value]++
}

// Remove unregisters one use of value for the field.
func (i *Index) Remove(field Field, value string) {
	if value == "" {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	values, ok := i.fields[field]
	if !ok {
		return
	}

	if values[value] <= 1 {
		delete(values, value)
		return
	}

	values[value]--
}

// Lookup returns up to limit values starting with prefix, case-insensitive,
// sorted. A non-positive limit returns all matches.
func (i *Index) Lookup(field Field, prefix string, limit int) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	lowered := strings.ToLower(prefix)

	var matches []string

	for value := range i.fields[field] {
		if strings.HasPrefix(strings.ToLower(value), lowered) {
			matches = append(matches, value)
		}
	}

	sort.Strings(matches)

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches
}
