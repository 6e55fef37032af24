package assembly

import "strings"

// Entry pairs a placeholder token with the fragment that replaces it.
type Entry struct {
	Token  string `json:"token" yaml:"token"`
	Source string `json:"source" yaml:"source"`
}

// Manifest is an ordered, validated list of entries. It is immutable once
// built.
type Manifest struct {
	entries []Entry
}

// NewManifest copies entries and validates them. Tokens must be non-empty and
// unique, no token may be a substring of another one, and no token may end
// with the start of another one. No files are touched.
func NewManifest(entries []Entry) (*Manifest, error) {
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.Token == "" {
			return nil, &ManifestError{Kind: EmptyToken, Index: i}
		}
		if e.Source == "" {
			return nil, &ManifestError{Kind: EmptySource, Index: i, Token: e.Token}
		}
		if _, dup := seen[e.Token]; dup {
			return nil, &ManifestError{Kind: DuplicateToken, Index: i, Token: e.Token}
		}
		seen[e.Token] = i
	}

	for i, e := range entries {
		for j, other := range entries {
			if i == j {
				continue
			}
			if strings.Contains(other.Token, e.Token) {
				return nil, &ManifestError{Kind: OverlappingToken, Index: i, Token: e.Token, Other: other.Token}
			}
			if edgeOverlap(e.Token, other.Token) {
				return nil, &ManifestError{Kind: AdjacentOverlap, Index: i, Token: e.Token, Other: other.Token}
			}
		}
	}

	m := &Manifest{entries: make([]Entry, len(entries))}
	copy(m.entries, entries)
	return m, nil
}

// edgeOverlap reports whether a proper suffix of a is a proper prefix of b,
// so that an occurrence of a and one of b can share characters.
func edgeOverlap(a, b string) bool {
	for k := 1; k < len(a) && k < len(b); k++ {
		if a[len(a)-k:] == b[:k] {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (m *Manifest) Len() int { return len(m.entries) }

// Entries returns a copy of the entries in manifest order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
