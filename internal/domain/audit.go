package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// streetKey is the tag key holding street names.
const streetKey = addrPrefix + "street"

// AuditReport inventories the shape of one document. Build one with
// NewAuditReport per run and feed it to Aggregate; it is not safe for
// concurrent writers.
type AuditReport struct {
	// Attributes: element tag -> attribute -> observed values.
	Attributes map[string]map[string]StringSet `json:"attributes"`
	// SubTagAttributes: element tag -> sub-element tag -> attribute -> observed values.
	SubTagAttributes map[string]map[string]map[string]StringSet `json:"sub_tag_attributes"`
	// SubTagChildren: element tag -> sub-element tag -> child tag names.
	SubTagChildren map[string]map[string]StringSet `json:"sub_tag_children"`
	// TagValues: element tag -> tag k -> observed v.
	TagValues map[string]map[string]StringSet `json:"tag_values"`
	// KeyClasses groups every tag k seen by its diagnostic class.
	KeyClasses map[KeyClass]StringSet `json:"key_classes"`
	// Elements counts top-level elements per tag.
	Elements map[string]int `json:"elements"`

	bounds *geom.Bounds
}

// NewAuditReport returns an empty report.
func NewAuditReport() *AuditReport {
	return &AuditReport{
		Attributes:       make(map[string]map[string]StringSet),
		SubTagAttributes: make(map[string]map[string]map[string]StringSet),
		SubTagChildren:   make(map[string]map[string]StringSet),
		TagValues:        make(map[string]map[string]StringSet),
		KeyClasses:       make(map[KeyClass]StringSet),
		Elements:         make(map[string]int),
		bounds:           geom.NewBounds(geom.XY),
	}
}

// Aggregate folds one top-level element into report.
//
// The element's own attributes go to Attributes. The element and each of its
// descendants contribute to SubTagAttributes and SubTagChildren, and every
// "tag" sub-element contributes its k/v pair to TagValues and KeyClasses.
// Unsafe keys are recorded like any other; only Normalize filters them.
func Aggregate(el *Element, report *AuditReport) {
	report.Elements[el.Tag]++

	attrs := mapIn(report.Attributes, el.Tag)
	for _, a := range el.Attrs {
		setIn(attrs, a.Name).Add(a.Value)
	}
	if el.Kind() == KindPoint {
		report.extendBounds(el)
	}

	subAttrs, ok := report.SubTagAttributes[el.Tag]
	if !ok {
		subAttrs = make(map[string]map[string]StringSet)
		report.SubTagAttributes[el.Tag] = subAttrs
	}
	children := mapIn(report.SubTagChildren, el.Tag)
	tagValues := mapIn(report.TagValues, el.Tag)

	el.Walk(func(sub *Element) {
		if tags := sub.ChildTags(); len(tags) > 0 {
			setIn(children, sub.Tag).Add(tags...)
		}
		if len(sub.Attrs) > 0 {
			byAttr := mapIn(subAttrs, sub.Tag)
			for _, a := range sub.Attrs {
				setIn(byAttr, a.Name).Add(a.Value)
			}
		}
		if sub.Tag != SubTagTag {
			return
		}
		k, ok := sub.Attr("k")
		if !ok {
			return
		}
		v, _ := sub.Attr("v")
		setIn(tagValues, k).Add(v)

		class := ClassifyKey(k)
		if report.KeyClasses[class] == nil {
			report.KeyClasses[class] = make(StringSet)
		}
		report.KeyClasses[class].Add(k)
	})
}

func (r *AuditReport) extendBounds(el *Element) {
	rawLat, okLat := el.Attr("lat")
	rawLon, okLon := el.Attr("lon")
	if !okLat || !okLon {
		return
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(rawLon), 64)
	if errLat != nil || errLon != nil || !finite(lat) || !finite(lon) {
		return
	}
	if r.bounds == nil {
		r.bounds = geom.NewBounds(geom.XY)
	}
	r.bounds.Extend(geom.NewPointFlat(geom.XY, []float64{lon, lat}))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Bounds is the lat/lon box around every point that carried valid coordinates.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Bounds returns the point extent, or false when no point had coordinates.
func (r *AuditReport) Bounds() (Bounds, bool) {
	if r.bounds == nil || r.bounds.IsEmpty() {
		return Bounds{}, false
	}
	return Bounds{
		MinLat: r.bounds.Min(1),
		MinLon: r.bounds.Min(0),
		MaxLat: r.bounds.Max(1),
		MaxLon: r.bounds.Max(0),
	}, true
}

// TagValuesOf returns the union of values seen for tag key k under the given
// element tags.
func (r *AuditReport) TagValuesOf(k string, tags ...string) StringSet {
	out := make(StringSet)
	for _, tag := range tags {
		out.Union(r.TagValues[tag][k])
	}
	return out
}

// StreetNames returns every addr:street value. With no tags it collects from
// all point and path elements.
func (r *AuditReport) StreetNames(tags ...string) StringSet {
	if len(tags) == 0 {
		for tag := range r.TagValues {
			if k := (&Element{Tag: tag}).Kind(); k == KindPoint || k == KindPath {
				tags = append(tags, tag)
			}
		}
	}
	return r.TagValuesOf(streetKey, tags...)
}

// MarshalJSON adds the point bounds to the exported maps.
func (r *AuditReport) MarshalJSON() ([]byte, error) {
	type plain AuditReport
	out := struct {
		*plain
		Bounds *Bounds `json:"bounds,omitempty"`
	}{plain: (*plain)(r)}
	if b, ok := r.Bounds(); ok {
		out.Bounds = &b
	}
	return json.Marshal(out)
}
