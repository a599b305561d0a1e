package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tam-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// single-operator installs where running Postgres is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS markets (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS regions (
	id         TEXT PRIMARY KEY,
	market_id  TEXT NOT NULL REFERENCES markets(id),
	name       TEXT NOT NULL,
	tam        INTEGER NOT NULL DEFAULT 0 CHECK (tam >= 0),
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (market_id, name)
);

CREATE TABLE IF NOT EXISTS pipelines (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	crm_group_id INTEGER NOT NULL UNIQUE,
	sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pipeline_stages (
	id           TEXT PRIMARY KEY,
	pipeline_id  TEXT NOT NULL REFERENCES pipelines(id),
	name         TEXT NOT NULL,
	crm_stage_id INTEGER NOT NULL UNIQUE,
	sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS schools (
	id                TEXT PRIMARY KEY,
	region_id         TEXT NOT NULL REFERENCES regions(id),
	name              TEXT NOT NULL,
	type              TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'uncontacted',
	email             TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	contact_person    TEXT NOT NULL DEFAULT '',
	notes             TEXT NOT NULL DEFAULT '',
	crm_contact_id    TEXT NOT NULL DEFAULT '',
	pipeline_stage_id TEXT REFERENCES pipeline_stages(id),
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (region_id, name)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_schools_crm_contact ON schools(crm_contact_id) WHERE crm_contact_id <> '';
CREATE INDEX IF NOT EXISTS idx_schools_region ON schools(region_id);
CREATE INDEX IF NOT EXISTS idx_schools_status ON schools(status);
CREATE INDEX IF NOT EXISTS idx_schools_email ON schools(email);

CREATE TABLE IF NOT EXISTS sync_runs (
	id              TEXT PRIMARY KEY,
	sync_type       TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'running',
	contacts_synced INTEGER NOT NULL DEFAULT 0,
	errors          TEXT,
	started_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}

// -- markets & regions --

func (s *SQLiteStore) UpsertMarket(ctx context.Context, name, code string) (*model.Market, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO markets (id, name, code) VALUES (?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET name = excluded.name`,
		uuid.New().String(), name, code,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert market %s", code)
	}

	var m model.Market
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, code FROM markets WHERE code = ?`, code,
	).Scan(&m.ID, &m.Name, &m.Code)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: reload market %s", code)
	}
	return &m, nil
}

func (s *SQLiteStore) UpsertRegion(ctx context.Context, marketID, name string, tam int) (*model.Region, error) {
	if tam < 0 {
		return nil, eris.Errorf("sqlite: region tam must be non-negative (got %d)", tam)
	}
	// Seeding never overwrites an existing TAM.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO regions (id, market_id, name, tam, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (market_id, name) DO UPDATE SET name = excluded.name`,
		uuid.New().String(), marketID, name, tam, time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert region %s", name)
	}

	var r model.Region
	err = s.db.QueryRowContext(ctx,
		`SELECT id, market_id, name, tam, created_at FROM regions WHERE market_id = ? AND name = ?`,
		marketID, name,
	).Scan(&r.ID, &r.MarketID, &r.Name, &r.TAM, &r.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: reload region %s", name)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, market_id, name, tam, created_at FROM regions ORDER BY name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.MarketID, &r.Name, &r.TAM, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "sqlite: list regions iterate")
}

func (s *SQLiteStore) GetRegion(ctx context.Context, id string) (*model.Region, error) {
	var r model.Region
	err := s.db.QueryRowContext(ctx,
		`SELECT id, market_id, name, tam, created_at FROM regions WHERE id = ?`, id,
	).Scan(&r.ID, &r.MarketID, &r.Name, &r.TAM, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: region %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get region %s", id)
	}
	return &r, nil
}

func (s *SQLiteStore) UpdateRegionTAM(ctx context.Context, id string, tam int) error {
	if tam < 0 {
		return eris.Errorf("sqlite: tam must be non-negative (got %d)", tam)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE regions SET tam = ? WHERE id = ?`, tam, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update region tam %s", id)
	}
	return checkRowsAffected(res, "region", id)
}

func (s *SQLiteStore) RegionStatusCounts(ctx context.Context) ([]model.StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.name, r.tam,
			COUNT(sc.id),
			COUNT(CASE WHEN sc.status = 'uncontacted' THEN 1 END),
			COUNT(CASE WHEN sc.status = 'contacted' THEN 1 END),
			COUNT(CASE WHEN sc.status = 'replied' THEN 1 END),
			COUNT(CASE WHEN sc.status = 'yes' THEN 1 END),
			COUNT(CASE WHEN sc.status = 'no' THEN 1 END)
		 FROM regions r
		 LEFT JOIN schools sc ON sc.region_id = r.id
		 GROUP BY r.id, r.name, r.tam
		 ORDER BY r.name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: region status counts")
	}
	defer rows.Close()

	var counts []model.StatusCounts
	for rows.Next() {
		var c model.StatusCounts
		if err := rows.Scan(&c.RegionID, &c.Name, &c.TAM, &c.Known,
			&c.Uncontacted, &c.Contacted, &c.Replied, &c.Yes, &c.No); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status counts")
		}
		counts = append(counts, c)
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: region status counts iterate")
}

// -- schools --

func (s *SQLiteStore) CreateSchool(ctx context.Context, school model.School) (*model.School, error) {
	if school.Name == "" || school.RegionID == "" {
		return nil, eris.New("sqlite: school name and region are required")
	}
	if school.Status == "" {
		school.Status = model.StatusUncontacted
	}
	if !school.Status.Valid() {
		return nil, eris.Errorf("sqlite: invalid school status %q", school.Status)
	}

	school.ID = uuid.New().String()
	now := time.Now().UTC()
	school.CreatedAt = now
	school.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schools (id, region_id, name, type, status, email, phone, contact_person, notes, crm_contact_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		school.ID, school.RegionID, school.Name, school.Type, string(school.Status),
		school.Email, school.Phone, school.ContactPerson, school.Notes, school.CRMContactID,
		school.CreatedAt, school.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert school %s", school.Name)
	}
	return &school, nil
}

func (s *SQLiteStore) GetSchool(ctx context.Context, id string) (*model.School, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+schoolColumns+` FROM schools WHERE id = ?`, id,
	)
	school, err := scanSchool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: school %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get school %s", id)
	}
	return school, nil
}

func (s *SQLiteStore) ListSchools(ctx context.Context, filter SchoolFilter) (*SchoolPage, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if filter.RegionID != "" {
		where += ` AND region_id = ?`
		args = append(args, filter.RegionID)
	}
	if filter.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Search != "" {
		where += ` AND name LIKE '%' || ? || '%'`
		args = append(args, filter.Search)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schools`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count schools")
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + schoolColumns + ` FROM schools` + where + ` ORDER BY name ASC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list schools")
	}
	defer rows.Close()

	var schools []model.School
	for rows.Next() {
		school, err := scanSchool(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan school")
		}
		schools = append(schools, *school)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list schools iterate")
	}

	return &SchoolPage{
		Schools:    schools,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *SQLiteStore) UpdateSchool(ctx context.Context, id string, patch model.SchoolPatch) (*model.School, error) {
	set := `updated_at = ?`
	args := []any{time.Now().UTC()}

	add := func(col string, val any) {
		set += fmt.Sprintf(`, %s = ?`, col)
		args = append(args, val)
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.RegionID != nil {
		add("region_id", *patch.RegionID)
	}
	if patch.Type != nil {
		add("type", *patch.Type)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, eris.Errorf("sqlite: invalid school status %q", *patch.Status)
		}
		add("status", string(*patch.Status))
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.ContactPerson != nil {
		add("contact_person", *patch.ContactPerson)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE schools SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update school %s", id)
	}
	if err := checkRowsAffected(res, "school", id); err != nil {
		return nil, err
	}
	return s.GetSchool(ctx, id)
}

func (s *SQLiteStore) DeleteSchool(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schools WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete school %s", id)
	}
	return checkRowsAffected(res, "school", id)
}

func (s *SQLiteStore) BulkInsertSchools(ctx context.Context, schools []model.School) (*BulkResult, error) {
	if len(schools) == 0 {
		return &BulkResult{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: bulk insert begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO schools (id, region_id, name, type, status, email, phone, contact_person, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: bulk insert prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	result := &BulkResult{}
	for _, school := range schools {
		if school.Name == "" || school.RegionID == "" {
			return nil, eris.New("sqlite: bulk insert: school name and region are required")
		}
		status := school.Status
		if status == "" {
			status = model.StatusUncontacted
		}
		if !status.Valid() {
			return nil, eris.Errorf("sqlite: bulk insert: invalid status %q for %s", status, school.Name)
		}

		res, err := stmt.ExecContext(ctx,
			uuid.New().String(), school.RegionID, school.Name, school.Type, string(status),
			school.Email, school.Phone, school.ContactPerson, school.Notes, now, now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: bulk insert school %s", school.Name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: bulk insert rows affected")
		}
		if n > 0 {
			result.Created++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: bulk insert commit")
	}
	return result, nil
}

// -- reconciliation support --

func (s *SQLiteStore) FindSchoolByCRMRef(ctx context.Context, crmContactID, email string) (*model.School, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+schoolColumns+` FROM schools
		 WHERE (crm_contact_id = ?1 AND ?1 <> '') OR (email = ?2 AND ?2 <> '')
		 ORDER BY name ASC LIMIT 1`,
		crmContactID, email,
	)
	school, err := scanSchool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find school by crm ref %s", crmContactID)
	}
	return school, nil
}

func (s *SQLiteStore) LinkCRMContact(ctx context.Context, schoolID, crmContactID, phone string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schools SET crm_contact_id = ?, phone = CASE WHEN phone = '' THEN ? ELSE phone END, updated_at = ? WHERE id = ?`,
		crmContactID, phone, time.Now().UTC(), schoolID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: link crm contact %s", schoolID)
	}
	return checkRowsAffected(res, "school", schoolID)
}

func (s *SQLiteStore) SetSchoolStage(ctx context.Context, schoolID, stageID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schools SET pipeline_stage_id = ?, updated_at = ? WHERE id = ?`,
		stageID, time.Now().UTC(), schoolID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set school stage %s", schoolID)
	}
	return checkRowsAffected(res, "school", schoolID)
}

func (s *SQLiteStore) CountLinkedSchools(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schools WHERE crm_contact_id <> ''`,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count linked schools")
	}
	return n, nil
}

// -- pipeline stages --

func (s *SQLiteStore) UpsertPipeline(ctx context.Context, p model.Pipeline) (*model.Pipeline, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipelines (id, name, crm_group_id, sort_order) VALUES (?, ?, ?, ?)
		 ON CONFLICT (crm_group_id) DO UPDATE SET name = excluded.name, sort_order = excluded.sort_order`,
		uuid.New().String(), p.Name, p.CRMGroupID, p.SortOrder,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert pipeline %s", p.Name)
	}

	var out model.Pipeline
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, crm_group_id, sort_order FROM pipelines WHERE crm_group_id = ?`, p.CRMGroupID,
	).Scan(&out.ID, &out.Name, &out.CRMGroupID, &out.SortOrder)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: reload pipeline %s", p.Name)
	}
	return &out, nil
}

func (s *SQLiteStore) UpsertPipelineStage(ctx context.Context, stage model.PipelineStage) (*model.PipelineStage, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_stages (id, pipeline_id, name, crm_stage_id, sort_order) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (crm_stage_id) DO UPDATE SET pipeline_id = excluded.pipeline_id, name = excluded.name, sort_order = excluded.sort_order`,
		uuid.New().String(), stage.PipelineID, stage.Name, stage.CRMStageID, stage.SortOrder,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert pipeline stage %s", stage.Name)
	}

	var out model.PipelineStage
	err = s.db.QueryRowContext(ctx,
		`SELECT id, pipeline_id, name, crm_stage_id, sort_order FROM pipeline_stages WHERE crm_stage_id = ?`, stage.CRMStageID,
	).Scan(&out.ID, &out.PipelineID, &out.Name, &out.CRMStageID, &out.SortOrder)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: reload pipeline stage %s", stage.Name)
	}
	return &out, nil
}

func (s *SQLiteStore) ListPipelineStages(ctx context.Context) ([]model.PipelineStage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pipeline_id, name, crm_stage_id, sort_order FROM pipeline_stages ORDER BY pipeline_id, sort_order ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pipeline stages")
	}
	defer rows.Close()

	var stages []model.PipelineStage
	for rows.Next() {
		var st model.PipelineStage
		if err := rows.Scan(&st.ID, &st.PipelineID, &st.Name, &st.CRMStageID, &st.SortOrder); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pipeline stage")
		}
		stages = append(stages, st)
	}
	return stages, eris.Wrap(rows.Err(), "sqlite: list pipeline stages iterate")
}

// -- sync run ledger --

func (s *SQLiteStore) CreateSyncRun(ctx context.Context, syncType string) (*model.SyncRun, error) {
	run := model.SyncRun{
		ID:        uuid.New().String(),
		SyncType:  syncType,
		Status:    model.SyncStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, sync_type, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.SyncType, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert sync run")
	}
	return &run, nil
}

func (s *SQLiteStore) CompleteSyncRun(ctx context.Context, id string, contactsSynced int, errs []string) error {
	var errsJSON any
	if len(errs) > 0 {
		b, err := json.Marshal(truncateErrors(errs))
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal sync errors")
		}
		errsJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, contacts_synced = ?, errors = ?, completed_at = ? WHERE id = ?`,
		string(model.SyncStatusCompleted), contactsSynced, errsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete sync run %s", id)
	}
	return checkRowsAffected(res, "sync run", id)
}

func (s *SQLiteStore) FailSyncRun(ctx context.Context, id string, errMsg string) error {
	b, err := json.Marshal([]string{errMsg})
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sync error")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, errors = ?, completed_at = ? WHERE id = ?`,
		string(model.SyncStatusFailed), string(b), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail sync run %s", id)
	}
	return checkRowsAffected(res, "sync run", id)
}

func (s *SQLiteStore) LatestSyncRun(ctx context.Context) (*model.SyncRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sync_type, status, contacts_synced, errors, started_at, completed_at
		 FROM sync_runs ORDER BY started_at DESC LIMIT 1`,
	)
	run, err := scanSQLiteSyncRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest sync run")
	}
	return run, nil
}

func (s *SQLiteStore) ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sync_type, status, contacts_synced, errors, started_at, completed_at
		 FROM sync_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync runs")
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		run, err := scanSQLiteSyncRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list sync runs iterate")
}

func scanSQLiteSyncRun(row scannable) (*model.SyncRun, error) {
	var run model.SyncRun
	var errsJSON sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&run.ID, &run.SyncType, &run.Status, &run.ContactsSynced,
		&errsJSON, &run.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if errsJSON.Valid && errsJSON.String != "" {
		if err := json.Unmarshal([]byte(errsJSON.String), &run.Errors); err != nil {
			return nil, eris.Wrap(err, "unmarshal sync run errors")
		}
	}
	return &run, nil
}
