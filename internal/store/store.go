// Package store provides persistence for schools, regions, pipeline
// stages and sync runs, with Postgres and SQLite backends behind a
// single interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tam-cli/internal/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = eris.New("store: not found")

// SchoolFilter specifies criteria for listing schools.
type SchoolFilter struct {
	RegionID string             `json:"region_id,omitempty"`
	Status   model.SchoolStatus `json:"status,omitempty"`
	Search   string             `json:"search,omitempty"`
	Page     int                `json:"page,omitempty"`
	Limit    int                `json:"limit,omitempty"`
}

// SchoolPage is one page of a filtered school listing.
type SchoolPage struct {
	Schools    []model.School `json:"schools"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// BulkResult summarizes a bulk school insert.
type BulkResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Store defines the persistence interface for the outreach tracker.
type Store interface {
	// Markets and regions
	UpsertMarket(ctx context.Context, name, code string) (*model.Market, error)
	UpsertRegion(ctx context.Context, marketID, name string, tam int) (*model.Region, error)
	ListRegions(ctx context.Context) ([]model.Region, error)
	GetRegion(ctx context.Context, id string) (*model.Region, error)
	UpdateRegionTAM(ctx context.Context, id string, tam int) error
	// RegionStatusCounts recomputes per-region school status tallies on
	// every call; no cached copy is authoritative.
	RegionStatusCounts(ctx context.Context) ([]model.StatusCounts, error)

	// Schools
	CreateSchool(ctx context.Context, school model.School) (*model.School, error)
	GetSchool(ctx context.Context, id string) (*model.School, error)
	ListSchools(ctx context.Context, filter SchoolFilter) (*SchoolPage, error)
	UpdateSchool(ctx context.Context, id string, patch model.SchoolPatch) (*model.School, error)
	DeleteSchool(ctx context.Context, id string) error
	// BulkInsertSchools inserts schools, skipping rows whose
	// (region, name) already exists. This is the import endpoint's
	// output contract.
	BulkInsertSchools(ctx context.Context, schools []model.School) (*BulkResult, error)

	// Reconciliation support
	// FindSchoolByCRMRef matches by CRM contact id first, then by email
	// when the contact carries one. Returns (nil, nil) when no school
	// matches. On duplicates, storage order decides which row wins.
	FindSchoolByCRMRef(ctx context.Context, crmContactID, email string) (*model.School, error)
	// LinkCRMContact always (re)writes the CRM contact id and fills the
	// phone only while the school's phone is still empty.
	LinkCRMContact(ctx context.Context, schoolID, crmContactID, phone string) error
	SetSchoolStage(ctx context.Context, schoolID, stageID string) error
	CountLinkedSchools(ctx context.Context) (int, error)

	// Pipeline stages
	UpsertPipeline(ctx context.Context, p model.Pipeline) (*model.Pipeline, error)
	UpsertPipelineStage(ctx context.Context, s model.PipelineStage) (*model.PipelineStage, error)
	ListPipelineStages(ctx context.Context) ([]model.PipelineStage, error)

	// Sync run ledger
	CreateSyncRun(ctx context.Context, syncType string) (*model.SyncRun, error)
	CompleteSyncRun(ctx context.Context, id string, contactsSynced int, errs []string) error
	FailSyncRun(ctx context.Context, id string, errMsg string) error
	// LatestSyncRun returns (nil, nil) when no run has ever happened.
	LatestSyncRun(ctx context.Context) (*model.SyncRun, error)
	ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// truncateErrors bounds the persisted error list to model.MaxRunErrors.
func truncateErrors(errs []string) []string {
	if len(errs) > model.MaxRunErrors {
		return errs[:model.MaxRunErrors]
	}
	return errs
}
