package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
)

func openTestStore(t *testing.T, clock clockwork.Clock) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "osm.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_LoadBatchAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, clockwork.NewFakeClock())

	uid := int64(12)
	point := domain.Record{
		Type:     domain.KindPoint,
		ID:       261114297,
		Position: &[2]float64{43.655, -79.4},
		Created:  domain.Created{Version: 1, User: "mapper", UID: &uid},
		Address:  map[string]string{"street": "Spadina Ave"},
		Extra:    map[string]string{"Building": "yes"},
	}
	way := domain.Record{Type: domain.KindPath, ID: 261114297, NodeRefs: []int64{1, 2}}

	require.NoError(t, s.LoadBatch(ctx, []domain.Record{point, way}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "same id under a different type is a separate row")

	got, err := s.Get(ctx, domain.KindPoint, 261114297)
	require.NoError(t, err)
	if diff := cmp.Diff(point, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LoadBatchUpserts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, clockwork.NewFakeClock())

	first := domain.Record{Type: domain.KindPath, ID: 1, Created: domain.Created{Version: 1}}
	second := domain.Record{Type: domain.KindPath, ID: 1, Created: domain.Created{Version: 2}}

	require.NoError(t, s.LoadBatch(ctx, []domain.Record{first}))
	require.NoError(t, s.LoadBatch(ctx, []domain.Record{second}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, domain.KindPath, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Created.Version)
}

func TestStore_ProcessedAtFromClock(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC))
	s := openTestStore(t, clock)

	require.NoError(t, s.LoadBatch(ctx, []domain.Record{{Type: domain.KindRelation, ID: 3}}))

	var at string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT processed_at FROM records`).Scan(&at))
	assert.Contains(t, at, "2024-04-26")
}

func TestStore_GetNotFound(t *testing.T) {
	s := openTestStore(t, clockwork.NewFakeClock())

	_, err := s.Get(context.Background(), domain.KindPoint, 404)
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
}

func TestStore_EmptyBatchAndReadiness(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, clockwork.NewFakeClock())

	require.NoError(t, s.LoadBatch(ctx, nil))
	require.NoError(t, s.CheckReadiness(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
