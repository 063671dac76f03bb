package domain

// Kind is the normalized element type written to the record's "type" field.
type Kind string

const (
	KindPoint    Kind = "point"
	KindPath     Kind = "path"
	KindRelation Kind = "relation"
	KindUnknown  Kind = ""
)

// Sub-element names with special meaning inside a top-level element.
const (
	SubTagTag     = "tag"
	SubTagNodeRef = "nd"
	SubTagMember  = "member"
)

// Attr is a single XML attribute. Order within an element follows the document.
type Attr struct {
	Name  string
	Value string
}

// Element is one node of the source tree together with its materialized
// descendants. The walker yields top-level elements only; nested ones are
// reachable through Children.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []*Element
}

// Kind maps the XML tag to the element kind. OSM exports use node/way/relation.
func (e *Element) Kind() Kind {
	switch e.Tag {
	case "node", "point":
		return KindPoint
	case "way", "path":
		return KindPath
	case "relation":
		return KindRelation
	default:
		return KindUnknown
	}
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Walk calls fn for e and then every descendant, depth-first in document order.
func (e *Element) Walk(fn func(*Element)) {
	fn(e)
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// ChildTags returns the distinct tag names of the immediate children.
func (e *Element) ChildTags() []string {
	if len(e.Children) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(e.Children))
	tags := make([]string, 0, len(e.Children))
	for _, c := range e.Children {
		if _, ok := seen[c.Tag]; ok {
			continue
		}
		seen[c.Tag] = struct{}{}
		tags = append(tags, c.Tag)
	}
	return tags
}
