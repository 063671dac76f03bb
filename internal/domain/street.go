package domain

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// StreetTypeIndex maps an unexpected suffix token to the street names that end in it.
type StreetTypeIndex map[string]StringSet

// StreetVocabulary configures suffix extraction, auditing and rewriting.
// Lookups against all three tables ignore case. Build one with
// NewStreetVocabulary or DefaultStreetVocabulary; it is immutable and safe
// for concurrent use.
type StreetVocabulary struct {
	expected   map[string]struct{}
	mapping    map[string]string
	directions map[string]struct{}
}

// fold builds a fresh Caser per call; a Caser must not be shared between
// goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// NewStreetVocabulary folds the expected suffixes, the suffix mapping and
// the direction words into lookup tables. Two mapping keys that differ only
// in case must map to the same value.
func NewStreetVocabulary(expected []string, mapping map[string]string, directions []string) (*StreetVocabulary, error) {
	v := &StreetVocabulary{
		expected:   make(map[string]struct{}, len(expected)),
		mapping:    make(map[string]string, len(mapping)),
		directions: make(map[string]struct{}, len(directions)),
	}
	for _, e := range expected {
		v.expected[fold(e)] = struct{}{}
	}

	from := make([]string, 0, len(mapping))
	for k := range mapping {
		from = append(from, k)
	}
	sort.Strings(from)
	seen := make(map[string]string, len(mapping))
	for _, k := range from {
		key := fold(k)
		if prev, dup := seen[key]; dup && mapping[prev] != mapping[k] {
			return nil, fmt.Errorf("%w: %q => %q and %q => %q", ErrConflictingMapping, prev, mapping[prev], k, mapping[k])
		}
		seen[key] = k
		v.mapping[key] = mapping[k]
	}

	for _, d := range directions {
		v.directions[fold(strings.TrimSuffix(d, "."))] = struct{}{}
	}
	return v, nil
}

// DefaultStreetVocabulary returns the US street-type vocabulary used when no
// vocabulary file is configured.
func DefaultStreetVocabulary() *StreetVocabulary {
	v, err := NewStreetVocabulary(DefaultExpectedSuffixes(), DefaultSuffixMapping(), DefaultDirections())
	if err != nil {
		panic(err)
	}
	return v
}

// DefaultExpectedSuffixes lists the street types left out of suffix audits.
func DefaultExpectedSuffixes() []string {
	return []string{
		"Street", "Avenue", "Boulevard", "Drive", "Court", "Place", "Square",
		"Lane", "Road", "Trail", "Parkway", "Commons", "Highway", "Way",
		"Terrace", "Circle", "Crescent",
	}
}

// DefaultSuffixMapping maps common abbreviations to the full street type.
func DefaultSuffixMapping() map[string]string {
	return map[string]string{
		"St":    "Street",
		"St.":   "Street",
		"Ave":   "Avenue",
		"Ave.":  "Avenue",
		"Blvd":  "Boulevard",
		"Blvd.": "Boulevard",
		"Dr":    "Drive",
		"Dr.":   "Drive",
		"Ct":    "Court",
		"Pl":    "Place",
		"Sq":    "Square",
		"Ln":    "Lane",
		"Rd":    "Road",
		"Rd.":   "Road",
		"Pkwy":  "Parkway",
		"Hwy":   "Highway",
		"Cres":  "Crescent",
	}
}

// DefaultDirections lists the qualifiers skipped when they end a name.
func DefaultDirections() []string {
	return []string{"N", "North", "E", "East", "South", "West", "W"}
}

// suffixIndex returns the index within fields of the semantic suffix token,
// or -1 for an empty name.
func (v *StreetVocabulary) suffixIndex(fields []string) int {
	last := len(fields) - 1
	if last < 0 {
		return -1
	}
	if last > 0 && v.isDirection(fields[last]) {
		return last - 1
	}
	return last
}

func (v *StreetVocabulary) isDirection(token string) bool {
	_, ok := v.directions[fold(strings.TrimSuffix(token, "."))]
	return ok
}

// ExtractSuffix returns the trailing word of name, period included. A
// trailing direction word is skipped in favour of the word before it, so
// "Main St N" yields "St". A name made of a single direction word yields
// that word. An empty name yields "".
func (v *StreetVocabulary) ExtractSuffix(name string) string {
	fields := strings.Fields(name)
	i := v.suffixIndex(fields)
	if i < 0 {
		return ""
	}
	return fields[i]
}

// IsExpected reports whether suffix is in the expected set.
func (v *StreetVocabulary) IsExpected(suffix string) bool {
	_, ok := v.expected[fold(suffix)]
	return ok
}

// AuditSuffixes groups every name whose suffix is not expected under that suffix.
func (v *StreetVocabulary) AuditSuffixes(names []string) StreetTypeIndex {
	index := make(StreetTypeIndex)
	for _, name := range names {
		suffix := v.ExtractSuffix(name)
		if suffix == "" || v.IsExpected(suffix) {
			continue
		}
		if index[suffix] == nil {
			index[suffix] = make(StringSet)
		}
		index[suffix].Add(name)
	}
	return index
}

// Rewrite replaces the suffix token of name with its mapped form, keeping
// any trailing direction word. The suffix must have a mapping entry; names
// are not rewritten twice, so calling Rewrite on its own output fails unless
// the new suffix is itself mapped.
func (v *StreetVocabulary) Rewrite(name string) (string, error) {
	fields := strings.Fields(name)
	i := v.suffixIndex(fields)
	if i < 0 {
		return "", &UnmappedSuffixError{Name: name}
	}
	to, ok := v.mapping[fold(fields[i])]
	if !ok {
		return "", &UnmappedSuffixError{Name: name, Suffix: fields[i]}
	}

	// Splice by byte offset so the rest of the name keeps its spacing.
	start := tokenOffset(name, i)
	end := start + len(fields[i])
	return name[:start] + to + name[end:], nil
}

// tokenOffset returns the byte offset of the n-th whitespace-separated token.
func tokenOffset(s string, n int) int {
	inToken := false
	count := -1
	for i, r := range s {
		space := unicode.IsSpace(r)
		if !space && !inToken {
			count++
			if count == n {
				return i
			}
		}
		inToken = !space
	}
	return len(s)
}
