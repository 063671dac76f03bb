package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyKey(t *testing.T) {
	tests := []struct {
		key  string
		want KeyClass
	}{
		{"highway", KeyPlain},
		{"building_levels", KeyPlain},
		{"", KeyPlain},
		{"addr:street", KeyNamespaced},
		{"name:en", KeyNamespaced},
		{":", KeyNamespaced},
		{"addr:street:name", KeyOther},
		{"Building", KeyOther},
		{"name_1", KeyOther},
		{"fixme?", KeyProblem},
		{"opening hours", KeyProblem},
		{"note.1", KeyProblem},
		{"Addr:Street=x", KeyProblem},
		{"tab\there", KeyProblem},
		{"line\nbreak", KeyProblem},
		{"cr\rhere", KeyProblem},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyKey(tt.key))
		})
	}
}

func TestIsUnsafeKey_EveryProblemCharacter(t *testing.T) {
	for _, c := range "=+/&<>;'\"?%#$@,. \t\r\n" {
		key := "a" + string(c) + "b"
		assert.True(t, IsUnsafeKey(key), "%q should be unsafe", key)
	}
	for _, key := range []string{"addr:street", "name_en", "Building", "name:de-CH", "ref*"} {
		assert.False(t, IsUnsafeKey(key), "%q should be safe", key)
	}
}

func TestCheckKeys(t *testing.T) {
	got := CheckKeys([]string{"name", "fixme?", "addr:street", "note#1", "fixme?"})
	assert.Equal(t, []string{"fixme?", "note#1", "fixme?"}, got)
	assert.Empty(t, CheckKeys([]string{"name", "addr:city"}))
	assert.Empty(t, CheckKeys(nil))
}
