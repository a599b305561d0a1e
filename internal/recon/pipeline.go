// Package recon reconciles the local school book against the remote
// CRM: it streams every remote contact, links contacts to schools, and
// pulls each linked school's pipeline stage from its most recent deal.
package recon

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tam-cli/internal/model"
	"github.com/sells-group/tam-cli/internal/store"
	"github.com/sells-group/tam-cli/pkg/activecampaign"
)

// SyncType identifies reconciliation runs in the ledger.
const SyncType = "activecampaign"

// ErrSyncInProgress is returned when a run is requested while the
// previous one has not reached a terminal state.
var ErrSyncInProgress = eris.New("recon: sync already in progress")

// Summary reports the outcome of one reconciliation run.
type Summary struct {
	RunID          string           `json:"run_id"`
	Status         model.SyncStatus `json:"status"`
	ContactsSynced int              `json:"contacts_synced"`
	ErrorCount     int              `json:"error_count"`
	// StageFailures counts contacts whose deal or stage could not be
	// resolved. These are not errors: the contact link still succeeds.
	StageFailures int `json:"stage_failures"`
}

// Pipeline drives a full CRM reconciliation pass.
type Pipeline struct {
	store store.Store
	crm   activecampaign.Client
	log   *zap.Logger
}

// New creates a reconciliation pipeline.
func New(st store.Store, crm activecampaign.Client) *Pipeline {
	return &Pipeline{
		store: st,
		crm:   crm,
		log:   zap.L().With(zap.String("component", "recon")),
	}
}

// Run executes one reconciliation pass. At most one run may be in
// flight: if the latest ledger entry is still running, Run refuses
// with ErrSyncInProgress and writes nothing.
//
// Per-contact failures are accumulated on the run and never abort the
// pass. A failure of the contact stream itself is fatal: the run is
// marked failed and the error propagates.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	latest, err := p.store.LatestSyncRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "recon: check latest run")
	}
	if latest != nil && latest.Status == model.SyncStatusRunning {
		return nil, eris.Wrapf(ErrSyncInProgress, "run %s started at %s", latest.ID, latest.StartedAt.Format("15:04:05"))
	}

	run, err := p.store.CreateSyncRun(ctx, SyncType)
	if err != nil {
		return nil, eris.Wrap(err, "recon: create sync run")
	}
	p.log.Info("sync started", zap.String("run_id", run.ID))

	stageByCRMID, err := p.stageMap(ctx)
	if err != nil {
		return p.fail(ctx, run.ID, err)
	}

	var (
		synced        int
		errorCount    int
		stageFailures int
		recorded      []string
	)
	record := func(msg string) {
		errorCount++
		if len(recorded) < model.MaxRunErrors {
			recorded = append(recorded, msg)
		}
	}

	pager := p.crm.AllContacts()
	for {
		contacts, err := pager.Next(ctx)
		if err != nil {
			return p.fail(ctx, run.ID, eris.Wrap(err, "recon: list contacts"))
		}
		if contacts == nil {
			break
		}

		for _, contact := range contacts {
			matched, err := p.syncContact(ctx, contact, stageByCRMID, &stageFailures)
			if err != nil {
				record(fmt.Sprintf("contact %s: %s", contact.ID, err.Error()))
				continue
			}
			if matched {
				synced++
			}
		}
	}

	if err := p.store.CompleteSyncRun(ctx, run.ID, synced, recorded); err != nil {
		return nil, eris.Wrap(err, "recon: complete sync run")
	}
	p.log.Info("sync completed",
		zap.String("run_id", run.ID),
		zap.Int("contacts_synced", synced),
		zap.Int("errors", errorCount),
		zap.Int("stage_failures", stageFailures),
	)

	return &Summary{
		RunID:          run.ID,
		Status:         model.SyncStatusCompleted,
		ContactsSynced: synced,
		ErrorCount:     errorCount,
		StageFailures:  stageFailures,
	}, nil
}

// syncContact links one remote contact to its school and refreshes the
// school's pipeline stage. It reports whether the contact matched a
// school: contacts that match none are skipped silently, since the
// remote CRM holds far more contacts than schools.
func (p *Pipeline) syncContact(ctx context.Context, contact activecampaign.Contact, stageByCRMID map[int]string, stageFailures *int) (bool, error) {
	school, err := p.store.FindSchoolByCRMRef(ctx, contact.ID, contact.Email)
	if err != nil {
		return false, eris.Wrap(err, "match school")
	}
	if school == nil {
		return false, nil
	}

	if err := p.store.LinkCRMContact(ctx, school.ID, contact.ID, contact.Phone); err != nil {
		return false, eris.Wrap(err, "link contact")
	}

	deals, err := p.crm.GetContactDeals(ctx, contact.ID)
	if err != nil {
		// A deal fetch failure degrades the stage, not the link.
		*stageFailures++
		p.log.Warn("deal fetch failed",
			zap.String("contact_id", contact.ID),
			zap.String("school", school.Name),
			zap.Error(err))
		return true, nil
	}
	if len(deals) == 0 {
		return true, nil
	}

	// The most recently created deal decides the stage.
	last := deals[len(deals)-1]
	crmStageID, err := strconv.Atoi(last.Stage)
	if err != nil {
		*stageFailures++
		p.log.Warn("unparseable deal stage",
			zap.String("contact_id", contact.ID),
			zap.String("stage", last.Stage))
		return true, nil
	}
	stageID, ok := stageByCRMID[crmStageID]
	if !ok {
		*stageFailures++
		p.log.Warn("unknown deal stage",
			zap.String("contact_id", contact.ID),
			zap.Int("crm_stage_id", crmStageID))
		return true, nil
	}

	if err := p.store.SetSchoolStage(ctx, school.ID, stageID); err != nil {
		// The link already succeeded; a stage write failure degrades
		// the stage like any other stage-resolution failure.
		*stageFailures++
		p.log.Warn("stage update failed",
			zap.String("contact_id", contact.ID),
			zap.String("school", school.Name),
			zap.Error(err))
		return true, nil
	}
	return true, nil
}

// stageMap indexes local pipeline stages by their remote CRM stage id.
func (p *Pipeline) stageMap(ctx context.Context) (map[int]string, error) {
	stages, err := p.store.ListPipelineStages(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "recon: list pipeline stages")
	}
	m := make(map[int]string, len(stages))
	for _, st := range stages {
		m[st.CRMStageID] = st.ID
	}
	return m, nil
}

// fail marks the run failed and returns the original error. A failure
// while writing the ledger is logged but does not mask the cause.
func (p *Pipeline) fail(ctx context.Context, runID string, cause error) (*Summary, error) {
	if err := p.store.FailSyncRun(ctx, runID, cause.Error()); err != nil {
		p.log.Error("failed to record sync failure", zap.String("run_id", runID), zap.Error(err))
	}
	p.log.Error("sync failed", zap.String("run_id", runID), zap.Error(cause))
	return nil, cause
}
