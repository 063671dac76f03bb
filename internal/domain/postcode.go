package domain

import (
	"regexp"
	"strings"
)

// postcodeKey is the tag key holding postal codes.
const postcodeKey = addrPrefix + "postcode"

// DefaultPostcodePattern matches Canadian postal codes such as "K1A 0B1".
const DefaultPostcodePattern = `^([a-zA-Z]\d[a-zA-Z]( )?\d[a-zA-Z]\d)$`

// PostcodeAudit is the outcome of checking postcodes against a pattern.
type PostcodeAudit struct {
	Valid   int       `json:"valid"`
	Invalid StringSet `json:"invalid"`
}

// AuditPostcodes checks every value against pattern after trimming
// surrounding whitespace.
func AuditPostcodes(values []string, pattern *regexp.Regexp) PostcodeAudit {
	audit := PostcodeAudit{Invalid: make(StringSet)}
	for _, v := range values {
		if pattern.MatchString(strings.TrimSpace(v)) {
			audit.Valid++
			continue
		}
		audit.Invalid.Add(v)
	}
	return audit
}

// Postcodes returns every addr:postcode value seen under any element tag.
func (r *AuditReport) Postcodes() StringSet {
	out := make(StringSet)
	for _, byKey := range r.TagValues {
		out.Union(byKey[postcodeKey])
	}
	return out
}
