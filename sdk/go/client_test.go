package ktddesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktdde/internal/catalog"
	"ktdde/internal/metrics"
	"ktdde/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	h, err := server.New(server.Config{
		Catalog:  catalog.NewLive(c),
		BasePath: "/v0",
		Metrics:  metrics.New(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestActorsAndDocuments(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	actors, err := c.Actors(ctx)
	require.NoError(t, err)
	assert.Len(t, actors, 7)

	cards, err := c.ActorDocuments(ctx, "customs")
	require.NoError(t, err)
	require.NotEmpty(t, cards)
	assert.Equal(t, "commercial_invoice", cards[0].Key)

	doc, err := c.Document(ctx, "certificate_of_origin")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Views["chamber"])
	var content map[string]any
	require.NoError(t, json.Unmarshal(doc.Content, &content))
	assert.Equal(t, doc.Type, content["@type"])
}

func TestNotFoundIsAPIError(t *testing.T) {
	c := newClient(t)
	_, err := c.Document(context.Background(), "nope")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestCredentialIsDeterministic(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	at := time.Date(2026, 2, 4, 9, 30, 0, 0, time.UTC)
	a, err := c.Credential(ctx, "bill_of_lading", at)
	require.NoError(t, err)
	b, err := c.Credential(ctx, "bill_of_lading", at)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestTimelineAndIntegrity(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	rows, err := c.Timeline(ctx, "bank")
	require.NoError(t, err)
	assert.Len(t, rows, 16)

	rep, err := c.Integrity(ctx)
	require.NoError(t, err)
	assert.True(t, rep.OK)
}

func TestMappingAndSteps(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	m, err := c.Mapping(ctx, "bill_of_lading")
	require.NoError(t, err)
	assert.Equal(t, "BillOfLading", m.Type)
	assert.Len(t, m.Mappings, 7)
	require.NotEmpty(t, m.Tables)
	require.NotEmpty(t, m.Tables[0].Records)

	steps, err := c.Steps(ctx, "bill_of_lading", time.Date(2026, 2, 4, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, steps.Steps, 7)
	assert.Equal(t, "Transforming... (7/7 fields)", steps.Steps[6].Status)
	require.NotEmpty(t, steps.Steps[0].Sources)
	assert.NotEmpty(t, steps.Steps[0].Sources[0].Table)
	var cred map[string]any
	require.NoError(t, json.Unmarshal(steps.Credential, &cred))
	assert.Equal(t, "2026-02-04T09:30:00Z", cred["issuanceDate"])

	_, err = c.Mapping(ctx, "packing_list")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "no_mapping", apiErr.Code)
}
