package rest

import (
	"net/http"
	"strings"
)

// Header is one name/value pair inside a HeaderSet.
type Header struct {
	Name  string
	Value string
}

// HeaderSet is an ordered header collection with case-insensitive name
// uniqueness: setting a name that matches an existing entry (ignoring case)
// replaces that entry's value in place instead of appending. No two entries
// ever compare equal under case-insensitive name comparison.
//
// The zero value is ready to use.
type HeaderSet struct {
	entries []Header
}

// NewHeaderSet builds a HeaderSet from the given pairs, applying the
// replace-in-place rule in order.
func NewHeaderSet(headers ...Header) HeaderSet {
	var hs HeaderSet
	for _, h := range headers {
		hs.Set(h.Name, h.Value)
	}
	return hs
}

// Set inserts the pair, replacing the value of an existing entry whose name
// matches case-insensitively. The original entry keeps its position and
// spelling.
func (hs *HeaderSet) Set(name, value string) {
	for i := range hs.entries {
		if strings.EqualFold(hs.entries[i].Name, name) {
			hs.entries[i].Value = value
			return
		}
	}
	hs.entries = append(hs.entries, Header{Name: name, Value: value})
}

// Get returns the value stored under name (case-insensitive) and whether it
// was present.
func (hs *HeaderSet) Get(name string) (string, bool) {
	for i := range hs.entries {
		if strings.EqualFold(hs.entries[i].Name, name) {
			return hs.entries[i].Value, true
		}
	}
	return "", false
}

// Remove deletes the entry stored under name (case-insensitive), if any.
func (hs *HeaderSet) Remove(name string) {
	for i := range hs.entries {
		if strings.EqualFold(hs.entries[i].Name, name) {
			hs.entries = append(hs.entries[:i], hs.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of entries.
func (hs *HeaderSet) Len() int { return len(hs.entries) }

// Entries returns a copy of the entries in insertion order.
func (hs *HeaderSet) Entries() []Header {
	out := make([]Header, len(hs.entries))
	copy(out, hs.entries)
	return out
}

// clone returns an independent copy of the set.
func (hs *HeaderSet) clone() HeaderSet {
	return HeaderSet{entries: hs.Entries()}
}

// apply writes every entry into dst.
func (hs *HeaderSet) apply(dst http.Header) {
	for _, h := range hs.entries {
		dst.Set(h.Name, h.Value)
	}
}
