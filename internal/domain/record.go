package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Created holds the editing metadata of an element.
type Created struct {
	Version   int64  `json:"version,omitempty"`
	Changeset int64  `json:"changeset,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	User      string `json:"user,omitempty"`
	UID       *int64 `json:"uid,omitempty"`
}

// Member is one entry of a relation's member list. Attributes absent or empty
// in the source are left out.
type Member struct {
	Type string `json:"type,omitempty"`
	Ref  *int64 `json:"ref,omitempty"`
	Role string `json:"role,omitempty"`
}

// Record is the flat, storage-ready shape of one top-level element.
//
// The fixed fields cover everything with a known meaning. Extra holds the
// remaining attributes and safe tag keys; it is flattened onto the JSON object
// next to the fixed fields.
type Record struct {
	Type     Kind              `json:"type"`
	ID       int64             `json:"id"`
	Position *[2]float64       `json:"position,omitempty"`
	Created  Created           `json:"created"`
	Address  map[string]string `json:"address,omitempty"`
	Members  []Member          `json:"member,omitempty"`
	NodeRefs []int64           `json:"node_refs,omitempty"`
	Extra    map[string]string `json:"-"`
}

// reservedFields are the JSON keys of the fixed schema. Extra keys that
// collide with them are not emitted.
var reservedFields = map[string]struct{}{
	"type": {}, "id": {}, "position": {}, "created": {},
	"address": {}, "member": {}, "node_refs": {},
}

// Key is the storage identity of a record, e.g. "point/42".
func (r Record) Key() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// MarshalJSON writes the fixed schema followed by the extra keys in sorted order.
func (r Record) MarshalJSON() ([]byte, error) {
	type fixed Record
	base, err := json.Marshal(fixed(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		if _, reserved := reservedFields[k]; reserved {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return base, nil
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Grow(len(base) + 32*len(keys))
	buf.Write(base[:len(base)-1])
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.Extra[k])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reverses MarshalJSON: unknown string-valued keys land in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	type fixed Record
	var f fixed
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, raw := range all {
		if _, reserved := reservedFields[k]; reserved {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("extra field %q: %w", k, err)
		}
		if f.Extra == nil {
			f.Extra = make(map[string]string)
		}
		f.Extra[k] = s
	}

	*r = Record(f)
	return nil
}
