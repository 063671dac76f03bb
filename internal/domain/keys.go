package domain

import "regexp"

// KeyClass is the diagnostic shape of a tag key.
type KeyClass string

const (
	KeyPlain      KeyClass = "lower"
	KeyNamespaced KeyClass = "lower_colon"
	KeyProblem    KeyClass = "problemchars"
	KeyOther      KeyClass = "other"
)

var (
	lowerRe      = regexp.MustCompile(`^[a-z_]*$`)
	lowerColonRe = regexp.MustCompile(`^[a-z_]*:[a-z_]*$`)

	// problemCharsRe matches characters that cannot appear in a document-store
	// field name.
	problemCharsRe = regexp.MustCompile(`[=+/&<>;'"?%#$@,. \t\r\n]`)
)

// ClassifyKey sorts a tag key into one of the four KeyClass buckets. It is
// used only for auditing; IsUnsafeKey decides what reaches a record.
func ClassifyKey(key string) KeyClass {
	switch {
	case lowerRe.MatchString(key):
		return KeyPlain
	case lowerColonRe.MatchString(key):
		return KeyNamespaced
	case problemCharsRe.MatchString(key):
		return KeyProblem
	default:
		return KeyOther
	}
}

// IsUnsafeKey reports whether key contains a problem character.
func IsUnsafeKey(key string) bool {
	return problemCharsRe.MatchString(key)
}

// CheckKeys returns, in input order, the keys that fail the unsafe-character check.
func CheckKeys(keys []string) []string {
	var problems []string
	for _, k := range keys {
		if IsUnsafeKey(k) {
			problems = append(problems, k)
		}
	}
	return problems
}
