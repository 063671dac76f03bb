// Package domain models OpenStreetMap XML elements and the rules that shape
// and audit them.
//
// # Source Elements
//
// An OSM export is a flat list of top-level elements under the <osm> root:
//
//	<node id="261114295" lat="41.9731" lon="-87.6930" version="7" .../>
//	<way id="258219703" ...><nd ref="2636086179"/><tag k="highway" v="service"/></way>
//	<relation id="1557627" ...><member type="way" ref="30316829" role="outer"/></relation>
//
// node, way and relation map to the point, path and relation kinds. Other
// top-level tags (bounds, changeset) are audited but never shaped.
//
// # Records
//
// [Normalize] turns one element into a [Record]:
//
//	{"type":"point","id":261114295,"position":[41.9731,-87.6930],
//	 "created":{"version":7,"changeset":11129782,"timestamp":"2012-03-28T18:31:23Z",
//	            "user":"bbmiller","uid":451048},
//	 "address":{"street":"North Lincoln Ave","housenumber":"5157"},
//	 "amenity":"restaurant"}
//
// Tag keys holding any of = + / & < > ; ' " ? % # $ @ , . or whitespace are
// dropped. addr:* keys become address fields; addr:street:name style keys
// with a second colon are dropped rather than flattened.
//
// # Audits
//
// [Aggregate] accumulates an [AuditReport] over a whole document so the value
// distribution of every attribute and tag can be inspected before records are
// written. Street names collected there feed [StreetVocabulary.AuditSuffixes],
// which surfaces abbreviations such as "St." or "Rd" that [StreetVocabulary.Rewrite]
// can then expand.
package domain
