package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tam-cli/internal/metrics"
	"github.com/sells-group/tam-cli/internal/model"
	"github.com/sells-group/tam-cli/internal/recon"
	"github.com/sells-group/tam-cli/internal/store"
	"github.com/sells-group/tam-cli/pkg/activecampaign"
)

// apiServer holds the dependencies behind the HTTP API.
type apiServer struct {
	store store.Store
	crm   activecampaign.Client
	th    metrics.Thresholds
	log   *zap.Logger
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics", s.handleMetrics)

		r.Get("/regions", s.handleListRegions)
		r.Patch("/regions/{id}", s.handleUpdateRegionTAM)

		r.Route("/schools", func(r chi.Router) {
			r.Get("/", s.handleListSchools)
			r.Post("/", s.handleCreateSchool)
			r.Post("/import", s.handleImportSchools)
			r.Get("/{id}", s.handleGetSchool)
			r.Patch("/{id}", s.handleUpdateSchool)
			r.Delete("/{id}", s.handleDeleteSchool)
		})

		r.Post("/sync", s.handleSync)
		r.Get("/sync/status", s.handleSyncStatus)
		r.Get("/sync/runs", s.handleListSyncRuns)
	})

	return r
}

// -- metrics --

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.RegionStatusCounts(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}

	regions, totals := metrics.ComputeAll(counts, s.th)
	writeJSON(w, http.StatusOK, map[string]any{
		"regions": regions,
		"totals":  totals,
	})
}

// -- regions --

func (s *apiServer) handleListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.store.ListRegions(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": regions})
}

func (s *apiServer) handleUpdateRegionTAM(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TAM *int `json:"tam"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TAM == nil {
		writeError(w, http.StatusBadRequest, "tam is required")
		return
	}
	if *req.TAM < 0 {
		writeError(w, http.StatusBadRequest, "tam must be non-negative")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.UpdateRegionTAM(r.Context(), id, *req.TAM); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "region not found")
			return
		}
		s.serverError(w, err)
		return
	}

	region, err := s.store.GetRegion(r.Context(), id)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// -- schools --

func (s *apiServer) handleListSchools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := store.SchoolFilter{
		RegionID: q.Get("region_id"),
		Status:   model.SchoolStatus(q.Get("status")),
		Search:   q.Get("search"),
		Page:     page,
		Limit:    limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	result, err := s.store.ListSchools(r.Context(), filter)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleCreateSchool(w http.ResponseWriter, r *http.Request) {
	var school model.School
	if err := json.NewDecoder(r.Body).Decode(&school); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if school.Name == "" || school.RegionID == "" {
		writeError(w, http.StatusBadRequest, "name and region_id are required")
		return
	}
	if school.Status != "" && !school.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	created, err := s.store.CreateSchool(r.Context(), school)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *apiServer) handleImportSchools(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Schools []model.School `json:"schools"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Schools) == 0 {
		writeError(w, http.StatusBadRequest, "schools is required")
		return
	}

	result, err := s.store.BulkInsertSchools(r.Context(), req.Schools)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleGetSchool(w http.ResponseWriter, r *http.Request) {
	school, err := s.store.GetSchool(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "school not found")
			return
		}
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, school)
}

func (s *apiServer) handleUpdateSchool(w http.ResponseWriter, r *http.Request) {
	var patch model.SchoolPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Status != nil && !patch.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	school, err := s.store.UpdateSchool(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "school not found")
			return
		}
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, school)
}

func (s *apiServer) handleDeleteSchool(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSchool(r.Context(), chi.URLParam(r, "id")); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "school not found")
			return
		}
		s.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- sync --

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.crm == nil {
		writeError(w, http.StatusServiceUnavailable, "crm is not configured")
		return
	}

	summary, err := recon.New(s.store, s.crm).Run(r.Context())
	if err != nil {
		if eris.Is(err, recon.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "sync already in progress")
			return
		}
		s.log.Error("sync failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "sync failed",
			"details": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *apiServer) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestSyncRun(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	linked, err := s.store.CountLinkedSchools(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"last_run":       run,
		"linked_schools": linked,
	})
}

func (s *apiServer) handleListSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListSyncRuns(r.Context(), limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// -- helpers --

func (s *apiServer) serverError(w http.ResponseWriter, err error) {
	s.log.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
