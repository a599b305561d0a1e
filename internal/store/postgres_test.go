package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tam-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetRegion_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, market_id, name, tam, created_at FROM regions WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRegion(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRegionTAM_RejectsNegative(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.UpdateRegionTAM(context.Background(), "r1", -5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestPostgresStore_UpdateRegionTAM_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE regions SET tam = \$1 WHERE id = \$2`).
		WithArgs(500, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRegionTAM(context.Background(), "missing", 500)
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RegionStatusCounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "name", "tam", "known", "uncontacted", "contacted", "replied", "yes", "no",
	}).
		AddRow("r1", "Eastern Cape", 305, 40, 10, 20, 5, 2, 3).
		AddRow("r2", "Gauteng", 937, 100, 30, 40, 15, 10, 5)

	mock.ExpectQuery(`SELECT r\.id, r\.name, r\.tam`).WillReturnRows(rows)

	counts, err := s.RegionStatusCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "Eastern Cape", counts[0].Name)
	assert.Equal(t, 305, counts[0].TAM)
	assert.Equal(t, 20, counts[0].Contacted)
	assert.Equal(t, 100, counts[1].Known)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSchool_DefaultsStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO schools`).
		WithArgs(pgxmock.AnyArg(), "r1", "Bishops", "", "uncontacted",
			"", "", "", "", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	school, err := s.CreateSchool(context.Background(), model.School{
		RegionID: "r1",
		Name:     "Bishops",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUncontacted, school.Status)
	assert.NotEmpty(t, school.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSchool_RejectsInvalidStatus(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, err := s.CreateSchool(context.Background(), model.School{
		RegionID: "r1",
		Name:     "Bishops",
		Status:   "maybe",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid school status")
}

func TestPostgresStore_CreateSchool_RequiresNameAndRegion(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, err := s.CreateSchool(context.Background(), model.School{Name: "Bishops"})
	require.Error(t, err)

	_, err = s.CreateSchool(context.Background(), model.School{RegionID: "r1"})
	require.Error(t, err)
}

func TestPostgresStore_FindSchoolByCRMRef_NoMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM schools\s+WHERE \(crm_contact_id = \$1 AND \$1 <> ''\) OR \(email = \$2 AND \$2 <> ''\)`).
		WithArgs("42", "head@school.za").
		WillReturnError(pgx.ErrNoRows)

	school, err := s.FindSchoolByCRMRef(context.Background(), "42", "head@school.za")
	require.NoError(t, err)
	assert.Nil(t, school)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindSchoolByCRMRef_Match(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	var nilStage *string
	rows := pgxmock.NewRows([]string{
		"id", "region_id", "name", "type", "status", "email", "phone",
		"contact_person", "notes", "crm_contact_id", "pipeline_stage_id",
		"created_at", "updated_at",
	}).AddRow("s1", "r1", "Bishops", "private", "contacted", "head@school.za", "",
		"", "", "42", nilStage, now, now)

	mock.ExpectQuery(`FROM schools\s+WHERE \(crm_contact_id = \$1`).
		WithArgs("42", "head@school.za").
		WillReturnRows(rows)

	school, err := s.FindSchoolByCRMRef(context.Background(), "42", "head@school.za")
	require.NoError(t, err)
	require.NotNil(t, school)
	assert.Equal(t, "s1", school.ID)
	assert.Equal(t, "42", school.CRMContactID)
	assert.Empty(t, school.PipelineStageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LinkCRMContact_MergesPhoneConditionally(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE schools SET crm_contact_id = \$1, phone = CASE WHEN phone = '' THEN \$2 ELSE phone END`).
		WithArgs("42", "+27 21 555 0100", pgxmock.AnyArg(), "s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.LinkCRMContact(context.Background(), "s1", "42", "+27 21 555 0100")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetSchoolStage_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE schools SET pipeline_stage_id = \$1`).
		WithArgs("st1", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetSchoolStage(context.Background(), "missing", "st1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSyncRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO sync_runs`).
		WithArgs(pgxmock.AnyArg(), "activecampaign", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateSyncRun(context.Background(), "activecampaign")
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusRunning, run.Status)
	assert.NotEmpty(t, run.ID)
	assert.Nil(t, run.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteSyncRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE sync_runs SET status = \$1, contacts_synced = \$2, errors = \$3, completed_at = \$4`).
		WithArgs("completed", 57, pgxmock.AnyArg(), pgxmock.AnyArg(), "run1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteSyncRun(context.Background(), "run1", 57, []string{"contact 9: no region"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSyncRun_NoneYet(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM sync_runs ORDER BY started_at DESC LIMIT 1`).
		WillReturnError(pgx.ErrNoRows)

	run, err := s.LatestSyncRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSyncRun_DecodesErrors(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC().Add(-time.Minute)
	completed := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "sync_type", "status", "contacts_synced", "errors", "started_at", "completed_at",
	}).AddRow("run1", "activecampaign", "completed", 12,
		[]byte(`["contact 3: stage lookup failed"]`), started, &completed)

	mock.ExpectQuery(`FROM sync_runs ORDER BY started_at DESC LIMIT 1`).
		WillReturnRows(rows)

	run, err := s.LatestSyncRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.SyncStatusCompleted, run.Status)
	assert.Equal(t, 12, run.ContactsSynced)
	assert.Equal(t, []string{"contact 3: stage lookup failed"}, run.Errors)
	require.NotNil(t, run.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateErrors_Bounded(t *testing.T) {
	errs := make([]string, model.MaxRunErrors+25)
	for i := range errs {
		errs[i] = "boom"
	}
	assert.Len(t, truncateErrors(errs), model.MaxRunErrors)

	short := []string{"one", "two"}
	assert.Equal(t, short, truncateErrors(short))
}
