package jsonl

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
)

func sampleRecords() []domain.Record {
	uid := int64(0)
	ref := int64(7)
	return []domain.Record{
		{
			Type:     domain.KindPoint,
			ID:       1,
			Position: &[2]float64{43.5, -79.25},
			Created:  domain.Created{Version: 2, User: "alice", UID: &uid},
			Address:  map[string]string{"street": "Main St"},
			Extra:    map[string]string{"amenity": "cafe", "name": "A & B"},
		},
		{
			Type:    domain.KindRelation,
			ID:      9,
			Members: []domain.Member{{Type: "way", Ref: &ref, Role: "outer"}},
		},
	}
}

func TestWriter_Compact(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)

	require.NoError(t, w.LoadBatch(context.Background(), sampleRecords()))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{
		"type":"point","id":1,"position":[43.5,-79.25],
		"created":{"version":2,"user":"alice","uid":0},
		"address":{"street":"Main St"},
		"amenity":"cafe","name":"A & B"
	}`, lines[0])
	assert.Contains(t, lines[0], `"A & B"`, "HTML characters are not escaped")
	assert.JSONEq(t, `{"type":"relation","id":9,"created":{},"member":[{"type":"way","ref":7,"role":"outer"}]}`, lines[1])
}

func TestWriter_PrettyIndentsFourSpaces(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)

	require.NoError(t, w.LoadBatch(context.Background(), sampleRecords()[:1]))
	require.NoError(t, w.Close())

	assert.True(t, strings.HasPrefix(buf.String(), "{\n    \"type\": \"point\""), buf.String())
}

func TestWriter_LoadBatchHonoursContext(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.LoadBatch(ctx, sampleRecords()), context.Canceled)
}

func TestRead_RoundTripsBothLayouts(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		var buf bytes.Buffer
		w := NewWriter(&buf, pretty)
		require.NoError(t, w.LoadBatch(context.Background(), sampleRecords()))
		require.NoError(t, w.Close())

		var got []domain.Record
		require.NoError(t, Read(&buf, func(r domain.Record) error {
			got = append(got, r)
			return nil
		}))
		if diff := cmp.Diff(sampleRecords(), got); diff != "" {
			t.Fatalf("pretty=%v mismatch (-want +got):\n%s", pretty, diff)
		}
	}
}

func TestRead_ReportsPosition(t *testing.T) {
	err := Read(strings.NewReader(`{"type":"point","id":1,"created":{}}`+"\n{oops"), func(domain.Record) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 2")
}

func TestCreate_WritesFile(t *testing.T) {
	input := filepath.Join(t.TempDir(), "map.osm")
	path := DefaultPath(input)
	assert.Equal(t, input+".json", path)

	w, err := Create(path, false)
	require.NoError(t, err)
	require.NoError(t, w.LoadBatch(context.Background(), sampleRecords()))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}

func TestWriter_FailedBatchWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)

	bad := sampleRecords()
	bad[1].Position = &[2]float64{math.NaN(), 0}

	for range 3 {
		err := w.LoadBatch(context.Background(), bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "encode record relation/9")
	}
	require.NoError(t, w.LoadBatch(context.Background(), sampleRecords()[1:]))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "records before the failing one are not written")
	assert.Contains(t, lines[0], `"id":9`)
}
