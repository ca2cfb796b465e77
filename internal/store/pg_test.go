package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты гоняются только при VITRINA_PG_TEST=1 —
// нужен Docker.
func startPostgres(t *testing.T) *Postgres {
	t.Helper()
	if os.Getenv("VITRINA_PG_TEST") != "1" {
		t.Skip("set VITRINA_PG_TEST=1 to run postgres integration tests")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("vitrina"),
		tcpostgres.WithUsername("vitrina"),
		tcpostgres.WithPassword("vitrina"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pg, err := Open(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })
	return pg
}

func TestPostgresCRUD(t *testing.T) {
	pg := startPostgres(t)
	ctx := context.Background()

	rec, err := pg.Insert(ctx, "pages", map[string]any{"title": "Home", "order": 1.0})
	require.NoError(t, err)

	got, err := pg.Get(ctx, "pages", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Data["title"])

	// Patch — jsonb merge по верхним ключам
	out, err := pg.Patch(ctx, "pages", rec.ID, map[string]any{"order": 2.0})
	require.NoError(t, err)
	assert.Equal(t, "Home", out.Data["title"])
	assert.Equal(t, 2.0, out.Data["order"])
	assert.EqualValues(t, 2, out.Version)

	// Put — полная замена
	out, err = pg.Put(ctx, "pages", rec.ID, map[string]any{"title": "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", out.Data["title"])
	_, hasOrder := out.Data["order"]
	assert.False(t, hasOrder)

	require.NoError(t, pg.SoftDelete(ctx, "pages", rec.ID))
	_, err = pg.Get(ctx, "pages", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, pg.Restore(ctx, "pages", rec.ID))
	_, err = pg.Get(ctx, "pages", rec.ID)
	assert.NoError(t, err)
}

func TestPostgresListBehavesLikeMemory(t *testing.T) {
	pg := startPostgres(t)
	ctx := context.Background()

	for _, doc := range []map[string]any{
		{"name": "a", "status": "published", "order": 3.0},
		{"name": "b", "status": "draft", "order": 1.0},
		{"name": "c", "status": "published", "order": 2.0},
	} {
		_, err := pg.Insert(ctx, "pages", doc)
		require.NoError(t, err)
	}

	recs, total, err := pg.List(ctx, "pages", Query{
		Filters: map[string]any{"status": "published"},
		Sort:    []SortKey{{Field: "order"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].Data["name"])
	assert.Equal(t, "a", recs[1].Data["name"])
}

func TestPostgresFindOneCaseInsensitive(t *testing.T) {
	pg := startPostgres(t)
	ctx := context.Background()

	_, err := pg.Insert(ctx, "layouts", map[string]any{"name": "MainHeader"})
	require.NoError(t, err)

	got, err := pg.FindOne(ctx, "layouts", "name", "MAINHEADER")
	require.NoError(t, err)
	assert.Equal(t, "MainHeader", got.Data["name"])
}

func TestPostgresDDLIsIdempotent(t *testing.T) {
	pg := startPostgres(t)
	// повторный накат того же DDL не должен падать
	assert.NoError(t, applyDDL(pg.db, documentsDDL))
}
