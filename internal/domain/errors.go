package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDocument is matched by errors from a source that cannot be
	// parsed as well-formed XML. It aborts the whole run.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrMissingAttribute means a recognized element lacks a required attribute.
	ErrMissingAttribute = errors.New("missing required attribute")

	// ErrInvalidAttribute means a required attribute is present but does not parse.
	ErrInvalidAttribute = errors.New("invalid attribute value")

	// ErrUnmappedSuffix is returned by Rewrite for a suffix with no mapping entry.
	ErrUnmappedSuffix = errors.New("unmapped street suffix")

	// ErrConflictingMapping means two suffix mapping keys fold to the same
	// token but rewrite to different values.
	ErrConflictingMapping = errors.New("conflicting suffix mapping")
)

// MalformedDocumentError carries the parser failure and the byte offset
// reached in the input.
type MalformedDocumentError struct {
	Offset int64
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document at offset %d: %v", e.Offset, e.Err)
}

func (e *MalformedDocumentError) Unwrap() []error {
	return []error{ErrMalformedDocument, e.Err}
}

// AttributeError reports a per-element attribute failure. It unwraps to
// ErrMissingAttribute or ErrInvalidAttribute.
type AttributeError struct {
	Tag       string
	ID        string // empty when the id itself is the problem
	Attribute string
	Value     string
	Err       error
}

func (e *AttributeError) Error() string {
	subject := e.Tag
	if e.ID != "" {
		subject += " " + e.ID
	}
	if errors.Is(e.Err, ErrInvalidAttribute) {
		return fmt.Sprintf("%s: %v: %s=%q", subject, e.Err, e.Attribute, e.Value)
	}
	return fmt.Sprintf("%s: %v: %s", subject, e.Err, e.Attribute)
}

func (e *AttributeError) Unwrap() error { return e.Err }

// UnmappedSuffixError names the street and the suffix that had no rewrite.
type UnmappedSuffixError struct {
	Name   string
	Suffix string
}

func (e *UnmappedSuffixError) Error() string {
	return fmt.Sprintf("%v %q in %q", ErrUnmappedSuffix, e.Suffix, e.Name)
}

func (e *UnmappedSuffixError) Is(target error) bool { return target == ErrUnmappedSuffix }
