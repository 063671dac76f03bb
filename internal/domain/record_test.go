package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Key(t *testing.T) {
	assert.Equal(t, "point/42", Record{Type: KindPoint, ID: 42}.Key())
	assert.Equal(t, "relation/-1", Record{Type: KindRelation, ID: -1}.Key())
}

func TestRecord_MarshalJSON_FlattensExtraInOrder(t *testing.T) {
	rec := Record{
		Type:     KindPoint,
		ID:       1,
		Position: &[2]float64{1.5, -2.25},
		Created:  Created{Version: 3, UID: int64p(0)},
		Extra:    map[string]string{"zeta": "z", "amenity": "cafe", "name": "Café"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t,
		`{"type":"point","id":1,"position":[1.5,-2.25],"created":{"version":3,"uid":0},"amenity":"cafe","name":"Café","zeta":"z"}`,
		string(data))
}

func TestRecord_MarshalJSON_SchemaFieldsWinOverExtra(t *testing.T) {
	rec := Record{
		Type:  KindRelation,
		ID:    7,
		Extra: map[string]string{"type": "multipolygon", "id": "x", "member": "y", "name": "Park"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "relation", flat["type"])
	assert.InDelta(t, 7, flat["id"], 0)
	assert.NotContains(t, flat, "member")
	assert.Equal(t, "Park", flat["name"])
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	rec := Record{
		Type:     KindPath,
		ID:       5090250,
		Created:  Created{Version: 3, Changeset: 33000000, Timestamp: "2015-07-08T09:10:11Z", User: "mapper", UID: int64p(12)},
		Address:  map[string]string{"street": "King St"},
		NodeRefs: []int64{1, 2, 3},
		Extra:    map[string]string{"highway": "residential", "name:en": "King"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(rec, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRecord_UnmarshalJSON_RejectsNonStringExtra(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"type":"point","id":1,"created":{},"levels":3}`), &rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"levels"`)
}

func TestCreated_UIDZeroIsKept(t *testing.T) {
	data, err := json.Marshal(Created{UID: int64p(0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"uid":0}`, string(data))

	data, err = json.Marshal(Created{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}
