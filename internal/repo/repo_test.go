package repo

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktdde/internal/catalog"
	"ktdde/internal/db"
	"ktdde/internal/events"
	"ktdde/internal/migrate"
)

func setup(t *testing.T) (Repo, *catalog.Catalog) {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(ctx, conn))

	c, err := catalog.Default()
	require.NoError(t, err)
	return Repo{DB: conn}, c
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestReplaceCatalog(t *testing.T) {
	ctx := context.Background()
	r, c := setup(t)

	st, err := r.ReplaceCatalog(ctx, c, events.Writer{Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, 7, st.Actors)
	assert.Equal(t, 15, st.Documents)
	assert.Equal(t, 16, st.Events)
	assert.Equal(t, 31, st.Mappings)

	docs, err := r.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 15)
	assert.Equal(t, "purchase_order", docs[0].Key)

	inv, err := r.GetDocument(ctx, "commercial_invoice")
	require.NoError(t, err)
	assert.Equal(t, "CommercialInvoice", inv.Type)
	assert.True(t, inv.HasMapping)
	assert.True(t, strings.HasPrefix(string(inv.Content), `{"@type":"CommercialInvoice","invoiceNumber":"9000002000"`))
	assert.True(t, json.Valid(inv.Content))

	_, err = r.GetDocument(ctx, "dangerous_goods_declaration")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotViewsMatchCatalog(t *testing.T) {
	ctx := context.Background()
	r, c := setup(t)
	_, err := r.ReplaceCatalog(ctx, c, events.Writer{Now: fixedNow})
	require.NoError(t, err)

	for _, a := range c.Actors() {
		docs, err := r.DocumentsFor(ctx, a.Key)
		require.NoError(t, err)
		var keys []string
		for _, d := range docs {
			keys = append(keys, d.Key)
		}
		assert.Equal(t, c.DocumentsFor(a.Key), keys, a.Key)
	}

	actors, err := r.ListActors(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.Actors(), actors)

	tl, err := r.Timeline(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.Events(), tl)

	maps, err := r.Mappings(ctx, "purchase_order")
	require.NoError(t, err)
	require.Len(t, maps, 8)
	assert.Equal(t, "EKKO.EBELN", maps[0].Source)
}

func TestReplaceIsIdempotentAndLogsEvents(t *testing.T) {
	ctx := context.Background()
	r, c := setup(t)
	for i := 0; i < 2; i++ {
		_, err := r.ReplaceCatalog(ctx, c, events.Writer{Now: fixedNow})
		require.NoError(t, err)
	}
	docs, err := r.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 15)

	evts, err := events.List(ctx, r.DB, events.SnapshotCreated)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, "2026-03-01T12:00:00Z", evts[0].TS)
	assert.Equal(t, "FINLAND_TO_JAPAN_GLUELAM_TIMBER", evts[0].EntityID)
	assert.EqualValues(t, 15, evts[0].Payload["documents"])
}

func TestMigrateVersion(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	v, err := migrate.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, migrate.Migrate(ctx, conn))
	require.NoError(t, migrate.Migrate(ctx, conn))
	latest, err := migrate.Latest()
	require.NoError(t, err)
	v, err = migrate.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, v)
}

func TestVerifyDetectsDrift(t *testing.T) {
	ctx := context.Background()
	r, c := setup(t)

	drift, err := r.Verify(ctx, c)
	require.NoError(t, err)
	assert.NotEmpty(t, drift, "empty snapshot must not match")

	_, err = r.ReplaceCatalog(ctx, c, events.Writer{Now: fixedNow})
	require.NoError(t, err)
	drift, err = r.Verify(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, drift)

	_, err = r.DB.ExecContext(ctx, `UPDATE documents SET content_json='{}' WHERE key='packing_list'`)
	require.NoError(t, err)
	_, err = r.DB.ExecContext(ctx, `DELETE FROM field_mappings WHERE doc_key='bill_of_lading' AND position=0`)
	require.NoError(t, err)
	_, err = r.DB.ExecContext(ctx, `UPDATE actor_views SET rank=99 WHERE actor_key='bank' AND doc_key='purchase_order'`)
	require.NoError(t, err)

	drift, err = r.Verify(ctx, c)
	require.NoError(t, err)
	kinds := map[string]string{}
	for _, d := range drift {
		kinds[d.Kind+"/"+d.Key] = d.Message
	}
	assert.Equal(t, "content differs", kinds["document/packing_list"])
	assert.Contains(t, kinds, "mappings/bill_of_lading")
	assert.Contains(t, kinds, "view/bank")
	assert.Len(t, drift, 3)
}
