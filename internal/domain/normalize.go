package domain

import (
	"strconv"
	"strings"
)

// addrPrefix is the tag namespace routed into Record.Address.
const addrPrefix = "addr:"

// NormalizeStats reports what Normalize filtered out of one element.
type NormalizeStats struct {
	UnsafeKeysDropped int
}

// Normalize shapes one top-level element into a Record.
//
// ok is false, with a nil error, when the element is not a point, path, or
// relation. An *AttributeError is returned when a required attribute is
// missing or does not parse; the caller decides whether to skip or abort.
func Normalize(el *Element) (Record, bool, error) {
	rec, _, ok, err := NormalizeWithStats(el)
	return rec, ok, err
}

// NormalizeWithStats is Normalize plus a count of the tags it dropped.
func NormalizeWithStats(el *Element) (Record, NormalizeStats, bool, error) {
	var stats NormalizeStats

	kind := el.Kind()
	if kind == KindUnknown {
		return Record{}, stats, false, nil
	}

	rawID, ok := el.Attr("id")
	if !ok {
		return Record{}, stats, false, &AttributeError{Tag: el.Tag, Attribute: "id", Err: ErrMissingAttribute}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return Record{}, stats, false, &AttributeError{Tag: el.Tag, Attribute: "id", Value: rawID, Err: ErrInvalidAttribute}
	}

	rec := Record{Type: kind, ID: id}

	if kind == KindPoint {
		lat, err := floatAttr(el, rawID, "lat")
		if err != nil {
			return Record{}, stats, false, err
		}
		lon, err := floatAttr(el, rawID, "lon")
		if err != nil {
			return Record{}, stats, false, err
		}
		rec.Position = &[2]float64{lat, lon}
	}

	if err := splitAttributes(el, rawID, &rec); err != nil {
		return Record{}, stats, false, err
	}

	var walkErr error
	el.Walk(func(sub *Element) {
		if walkErr != nil || sub == el {
			return
		}
		switch sub.Tag {
		case SubTagTag:
			if !addTag(sub, &rec) {
				stats.UnsafeKeysDropped++
			}
		case SubTagNodeRef:
			ref, err := refAttr(sub, el, rawID, true)
			if err != nil {
				walkErr = err
				return
			}
			rec.NodeRefs = append(rec.NodeRefs, *ref)
		case SubTagMember:
			m, err := memberOf(sub, el, rawID)
			if err != nil {
				walkErr = err
				return
			}
			rec.Members = append(rec.Members, m)
		}
	})
	if walkErr != nil {
		return Record{}, stats, false, walkErr
	}

	return rec, stats, true, nil
}

// splitAttributes routes the element's own attributes into Created or Extra.
func splitAttributes(el *Element, rawID string, rec *Record) error {
	for _, a := range el.Attrs {
		switch a.Name {
		case "id", "lat", "lon":
			// consumed above
		case "version", "changeset", "uid":
			n, err := strconv.ParseInt(strings.TrimSpace(a.Value), 10, 64)
			if err != nil {
				return &AttributeError{Tag: el.Tag, ID: rawID, Attribute: a.Name, Value: a.Value, Err: ErrInvalidAttribute}
			}
			switch a.Name {
			case "version":
				rec.Created.Version = n
			case "changeset":
				rec.Created.Changeset = n
			default:
				rec.Created.UID = &n
			}
		case "user":
			rec.Created.User = a.Value
		case "timestamp":
			rec.Created.Timestamp = a.Value
		default:
			setExtra(rec, a.Name, a.Value)
		}
	}
	return nil
}

// addTag applies one k/v tag to rec. It returns false when the key was
// dropped for containing a problem character.
func addTag(tag *Element, rec *Record) bool {
	k, ok := tag.Attr("k")
	if !ok {
		return true
	}
	if IsUnsafeKey(k) {
		return false
	}
	v, _ := tag.Attr("v")

	if rest, isAddr := strings.CutPrefix(k, addrPrefix); isAddr {
		// Nested address keys such as addr:street:name are not flattened.
		if rest == "" || strings.Contains(rest, ":") {
			return true
		}
		if rec.Address == nil {
			rec.Address = make(map[string]string)
		}
		rec.Address[rest] = v
		return true
	}

	setExtra(rec, k, v)
	return true
}

func setExtra(rec *Record, k, v string) {
	if rec.Extra == nil {
		rec.Extra = make(map[string]string)
	}
	rec.Extra[k] = v
}

func memberOf(sub, el *Element, rawID string) (Member, error) {
	ref, err := refAttr(sub, el, rawID, false)
	if err != nil {
		return Member{}, err
	}
	// Empty strings are dropped by the omitempty tags.
	typ, _ := sub.Attr("type")
	role, _ := sub.Attr("role")
	return Member{Type: typ, Ref: ref, Role: role}, nil
}

// refAttr parses the "ref" attribute of an nd or member sub-element. A
// missing or empty ref is an error only when required is set.
func refAttr(sub, el *Element, rawID string, required bool) (*int64, error) {
	raw, ok := sub.Attr("ref")
	if !ok || raw == "" {
		if required {
			return nil, &AttributeError{Tag: el.Tag, ID: rawID, Attribute: sub.Tag + ".ref", Err: ErrMissingAttribute}
		}
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, &AttributeError{Tag: el.Tag, ID: rawID, Attribute: sub.Tag + ".ref", Value: raw, Err: ErrInvalidAttribute}
	}
	return &n, nil
}

func floatAttr(el *Element, rawID, name string) (float64, error) {
	raw, ok := el.Attr(name)
	if !ok {
		return 0, &AttributeError{Tag: el.Tag, ID: rawID, Attribute: name, Err: ErrMissingAttribute}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	// ParseFloat accepts NaN and Inf, which JSON cannot encode.
	if err != nil || !finite(f) {
		return 0, &AttributeError{Tag: el.Tag, ID: rawID, Attribute: name, Value: raw, Err: ErrInvalidAttribute}
	}
	return f, nil
}
