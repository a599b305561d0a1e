package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/tam-cli/internal/metrics"
	"github.com/sells-group/tam-cli/internal/model"
	"github.com/sells-group/tam-cli/internal/store"
	"github.com/sells-group/tam-cli/pkg/activecampaign"
)

// newTestAPI builds an apiServer over a migrated SQLite store with one
// seeded market and region.
func newTestAPI(t *testing.T) (*apiServer, store.Store, *model.Region) {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	m, err := st.UpsertMarket(ctx, "South Africa", "ZA")
	require.NoError(t, err)
	r, err := st.UpsertRegion(ctx, m.ID, "Gauteng", 937)
	require.NoError(t, err)

	api := &apiServer{
		store: st,
		th:    metrics.DefaultThresholds,
		log:   zap.NewNop(),
	}
	return api, st, r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAPI_Health(t *testing.T) {
	api, _, _ := newTestAPI(t)
	rec := doJSON(t, api.router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestAPI_SchoolLifecycle(t *testing.T) {
	api, _, region := newTestAPI(t)
	router := api.router()

	rec := doJSON(t, router, http.MethodPost, "/api/schools", model.School{
		RegionID: region.ID,
		Name:     "Aurora Academy",
		Email:    "head@aurora.za",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.School](t, rec)
	assert.Equal(t, model.StatusUncontacted, created.Status)

	rec = doJSON(t, router, http.MethodGet, "/api/schools/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/api/schools/"+created.ID, map[string]any{
		"status": "contacted",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusContacted, decode[model.School](t, rec).Status)

	rec = doJSON(t, router, http.MethodGet, "/api/schools/?status=contacted", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[store.SchoolPage](t, rec)
	assert.Equal(t, 1, page.Total)

	rec = doJSON(t, router, http.MethodDelete, "/api/schools/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/schools/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateSchool_Validation(t *testing.T) {
	api, _, region := newTestAPI(t)
	router := api.router()

	rec := doJSON(t, router, http.MethodPost, "/api/schools", model.School{Name: "No Region"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/schools", model.School{
		RegionID: region.ID, Name: "Bad Status", Status: "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ImportSchools(t *testing.T) {
	api, _, region := newTestAPI(t)
	router := api.router()

	rec := doJSON(t, router, http.MethodPost, "/api/schools/import", map[string]any{
		"schools": []model.School{
			{RegionID: region.ID, Name: "Aurora Academy"},
			{RegionID: region.ID, Name: "Bishops Prep"},
			{RegionID: region.ID, Name: "Aurora Academy"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[store.BulkResult](t, rec)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

func TestAPI_Metrics(t *testing.T) {
	api, st, region := newTestAPI(t)
	ctx := context.Background()

	for _, status := range []model.SchoolStatus{
		model.StatusContacted, model.StatusContacted, model.StatusYes, model.StatusNo,
	} {
		_, err := st.CreateSchool(ctx, model.School{
			RegionID: region.ID,
			Name:     "School " + string(status) + uniqueSuffix(),
			Status:   status,
		})
		require.NoError(t, err)
	}

	rec := doJSON(t, api.router(), http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Regions []metrics.RegionMetrics `json:"regions"`
		Totals  metrics.Totals          `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Regions, 1)
	assert.Equal(t, 4, resp.Regions[0].TotalTouched)
	assert.Equal(t, 937, resp.Totals.TAM)
	assert.Equal(t, 933, resp.Totals.Runway)
}

func TestAPI_UpdateRegionTAM(t *testing.T) {
	api, _, region := newTestAPI(t)
	router := api.router()

	rec := doJSON(t, router, http.MethodPatch, "/api/regions/"+region.ID, map[string]int{"tam": 1000})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1000, decode[model.Region](t, rec).TAM)

	rec = doJSON(t, router, http.MethodPatch, "/api/regions/"+region.ID, map[string]int{"tam": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/api/regions/missing", map[string]int{"tam": 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/api/regions/"+region.ID, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SyncWithoutCRM(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec := doJSON(t, api.router(), http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// failingCRM fails every call; the contact stream errors on its first
// page.
type failingCRM struct{}

func (failingCRM) GetContacts(ctx context.Context, offset, limit int) (*activecampaign.ContactsPage, error) {
	return nil, eris.New("activecampaign: status 500: upstream down")
}

func (failingCRM) GetContact(ctx context.Context, id string) (*activecampaign.Contact, error) {
	return nil, eris.New("activecampaign: unavailable")
}

func (failingCRM) GetContactDeals(ctx context.Context, contactID string) ([]activecampaign.Deal, error) {
	return nil, eris.New("activecampaign: unavailable")
}

func (failingCRM) GetDeals(ctx context.Context, offset, limit int) (*activecampaign.DealsPage, error) {
	return nil, eris.New("activecampaign: unavailable")
}

func (f failingCRM) AllContacts() *activecampaign.ContactPager {
	return activecampaign.NewContactPager(f, activecampaign.DefaultPageSize)
}

func (f failingCRM) AllDeals() *activecampaign.DealPager {
	return activecampaign.NewDealPager(f, activecampaign.DefaultPageSize)
}

func TestAPI_SyncFailureReportsDetails(t *testing.T) {
	api, _, _ := newTestAPI(t)
	api.crm = failingCRM{}

	rec := doJSON(t, api.router(), http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "sync failed", resp["error"])
	assert.Contains(t, resp["details"], "status 500")
}

func TestAPI_SyncStatus_Empty(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec := doJSON(t, api.router(), http.MethodGet, "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		LastRun       *model.SyncRun `json:"last_run"`
		LinkedSchools int            `json:"linked_schools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.LastRun)
	assert.Equal(t, 0, resp.LinkedSchools)
}

func TestAPI_SyncRuns(t *testing.T) {
	api, st, _ := newTestAPI(t)
	ctx := context.Background()

	run, err := st.CreateSyncRun(ctx, "activecampaign")
	require.NoError(t, err)
	require.NoError(t, st.CompleteSyncRun(ctx, run.ID, 12, nil))

	rec := doJSON(t, api.router(), http.MethodGet, "/api/sync/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Runs []model.SyncRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, model.SyncStatusCompleted, resp.Runs[0].Status)
}

var suffixCounter int

func uniqueSuffix() string {
	suffixCounter++
	return string(rune('a' + suffixCounter%26))
}
