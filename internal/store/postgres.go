package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tam-cli/internal/db"
	"github.com/sells-group/tam-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
// These are the per-record hot path of a reconciliation run.
var preparedStatements = map[string]string{
	"find_school_by_crm_ref": `SELECT ` + schoolColumns + ` FROM schools WHERE (crm_contact_id = $1 AND $1 <> '') OR (email = $2 AND $2 <> '') ORDER BY name ASC LIMIT 1`,
	"link_crm_contact":       `UPDATE schools SET crm_contact_id = $1, phone = CASE WHEN phone = '' THEN $2 ELSE phone END, updated_at = $3 WHERE id = $4`,
	"set_school_stage":       `UPDATE schools SET pipeline_stage_id = $1, updated_at = $2 WHERE id = $3`,
}

const schoolColumns = `id, region_id, name, type, status, email, phone, contact_person, notes, crm_contact_id, pipeline_stage_id, created_at, updated_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
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
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	errors          JSONB,
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// -- markets & regions --

func (s *PostgresStore) UpsertMarket(ctx context.Context, name, code string) (*model.Market, error) {
	var m model.Market
	err := s.pool.QueryRow(ctx,
		`INSERT INTO markets (id, name, code) VALUES ($1, $2, $3)
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, code`,
		uuid.New().String(), name, code,
	).Scan(&m.ID, &m.Name, &m.Code)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert market %s", code)
	}
	return &m, nil
}

func (s *PostgresStore) UpsertRegion(ctx context.Context, marketID, name string, tam int) (*model.Region, error) {
	if tam < 0 {
		return nil, eris.Errorf("postgres: region tam must be non-negative (got %d)", tam)
	}
	var r model.Region
	// On conflict the existing TAM wins: seeding never clobbers an
	// administrator-set capacity.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO regions (id, market_id, name, tam, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (market_id, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, market_id, name, tam, created_at`,
		uuid.New().String(), marketID, name, tam, time.Now().UTC(),
	).Scan(&r.ID, &r.MarketID, &r.Name, &r.TAM, &r.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert region %s", name)
	}
	return &r, nil
}

func (s *PostgresStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, name, tam, created_at FROM regions ORDER BY name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.MarketID, &r.Name, &r.TAM, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "postgres: list regions iterate")
}

func (s *PostgresStore) GetRegion(ctx context.Context, id string) (*model.Region, error) {
	var r model.Region
	err := s.pool.QueryRow(ctx,
		`SELECT id, market_id, name, tam, created_at FROM regions WHERE id = $1`, id,
	).Scan(&r.ID, &r.MarketID, &r.Name, &r.TAM, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: region %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get region %s", id)
	}
	return &r, nil
}

func (s *PostgresStore) UpdateRegionTAM(ctx context.Context, id string, tam int) error {
	if tam < 0 {
		return eris.Errorf("postgres: tam must be non-negative (got %d)", tam)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE regions SET tam = $1 WHERE id = $2`, tam, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update region tam %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: region %s", id)
	}
	return nil
}

func (s *PostgresStore) RegionStatusCounts(ctx context.Context) ([]model.StatusCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.name, r.tam,
			COUNT(sc.id),
			COUNT(sc.id) FILTER (WHERE sc.status = 'uncontacted'),
			COUNT(sc.id) FILTER (WHERE sc.status = 'contacted'),
			COUNT(sc.id) FILTER (WHERE sc.status = 'replied'),
			COUNT(sc.id) FILTER (WHERE sc.status = 'yes'),
			COUNT(sc.id) FILTER (WHERE sc.status = 'no')
		 FROM regions r
		 LEFT JOIN schools sc ON sc.region_id = r.id
		 GROUP BY r.id, r.name, r.tam
		 ORDER BY r.name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: region status counts")
	}
	defer rows.Close()

	var counts []model.StatusCounts
	for rows.Next() {
		var c model.StatusCounts
		if err := rows.Scan(&c.RegionID, &c.Name, &c.TAM, &c.Known,
			&c.Uncontacted, &c.Contacted, &c.Replied, &c.Yes, &c.No); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status counts")
		}
		counts = append(counts, c)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: region status counts iterate")
}

// -- schools --

func (s *PostgresStore) CreateSchool(ctx context.Context, school model.School) (*model.School, error) {
	if school.Name == "" || school.RegionID == "" {
		return nil, eris.New("postgres: school name and region are required")
	}
	if school.Status == "" {
		school.Status = model.StatusUncontacted
	}
	if !school.Status.Valid() {
		return nil, eris.Errorf("postgres: invalid school status %q", school.Status)
	}

	school.ID = uuid.New().String()
	now := time.Now().UTC()
	school.CreatedAt = now
	school.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO schools (id, region_id, name, type, status, email, phone, contact_person, notes, crm_contact_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		school.ID, school.RegionID, school.Name, school.Type, string(school.Status),
		school.Email, school.Phone, school.ContactPerson, school.Notes, school.CRMContactID,
		school.CreatedAt, school.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert school %s", school.Name)
	}
	return &school, nil
}

func (s *PostgresStore) GetSchool(ctx context.Context, id string) (*model.School, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id,
	)
	school, err := scanSchool(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: school %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get school %s", id)
	}
	return school, nil
}

func (s *PostgresStore) ListSchools(ctx context.Context, filter SchoolFilter) (*SchoolPage, error) {
	where := ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RegionID != "" {
		where += fmt.Sprintf(` AND region_id = $%d`, argIdx)
		args = append(args, filter.RegionID)
		argIdx++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(` AND name ILIKE '%%' || $%d || '%%'`, argIdx)
		args = append(args, filter.Search)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM schools`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "postgres: count schools")
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + schoolColumns + ` FROM schools` + where +
		fmt.Sprintf(` ORDER BY name ASC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list schools")
	}
	defer rows.Close()

	var schools []model.School
	for rows.Next() {
		school, err := scanSchool(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan school")
		}
		schools = append(schools, *school)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list schools iterate")
	}

	return &SchoolPage{
		Schools:    schools,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *PostgresStore) UpdateSchool(ctx context.Context, id string, patch model.SchoolPatch) (*model.School, error) {
	set := `updated_at = $1`
	args := []any{time.Now().UTC()}
	argIdx := 2

	add := func(col string, val any) {
		set += fmt.Sprintf(`, %s = $%d`, col, argIdx)
		args = append(args, val)
		argIdx++
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
			return nil, eris.Errorf("postgres: invalid school status %q", *patch.Status)
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

	query := fmt.Sprintf(`UPDATE schools SET %s WHERE id = $%d RETURNING `+schoolColumns, set, argIdx)
	args = append(args, id)

	school, err := scanSchool(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: school %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update school %s", id)
	}
	return school, nil
}

func (s *PostgresStore) DeleteSchool(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM schools WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete school %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: school %s", id)
	}
	return nil
}

func (s *PostgresStore) BulkInsertSchools(ctx context.Context, schools []model.School) (*BulkResult, error) {
	if len(schools) == 0 {
		return &BulkResult{}, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(schools))
	for _, school := range schools {
		if school.Name == "" || school.RegionID == "" {
			return nil, eris.New("postgres: bulk insert: school name and region are required")
		}
		status := school.Status
		if status == "" {
			status = model.StatusUncontacted
		}
		if !status.Valid() {
			return nil, eris.Errorf("postgres: bulk insert: invalid status %q for %s", status, school.Name)
		}
		rows = append(rows, []any{
			uuid.New().String(), school.RegionID, school.Name, school.Type, string(status),
			school.Email, school.Phone, school.ContactPerson, school.Notes, now, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "schools",
		Columns: []string{
			"id", "region_id", "name", "type", "status",
			"email", "phone", "contact_person", "notes", "created_at", "updated_at",
		},
		ConflictKeys: []string{"region_id", "name"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: bulk insert schools")
	}

	return &BulkResult{Created: int(n), Skipped: len(schools) - int(n)}, nil
}

// -- reconciliation support --

func (s *PostgresStore) FindSchoolByCRMRef(ctx context.Context, crmContactID, email string) (*model.School, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+schoolColumns+` FROM schools
		 WHERE (crm_contact_id = $1 AND $1 <> '') OR (email = $2 AND $2 <> '')
		 ORDER BY name ASC LIMIT 1`,
		crmContactID, email,
	)
	school, err := scanSchool(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find school by crm ref %s", crmContactID)
	}
	return school, nil
}

func (s *PostgresStore) LinkCRMContact(ctx context.Context, schoolID, crmContactID, phone string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schools SET crm_contact_id = $1, phone = CASE WHEN phone = '' THEN $2 ELSE phone END, updated_at = $3 WHERE id = $4`,
		crmContactID, phone, time.Now().UTC(), schoolID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: link crm contact %s", schoolID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: school %s", schoolID)
	}
	return nil
}

func (s *PostgresStore) SetSchoolStage(ctx context.Context, schoolID, stageID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schools SET pipeline_stage_id = $1, updated_at = $2 WHERE id = $3`,
		stageID, time.Now().UTC(), schoolID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set school stage %s", schoolID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: school %s", schoolID)
	}
	return nil
}

func (s *PostgresStore) CountLinkedSchools(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM schools WHERE crm_contact_id <> ''`,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count linked schools")
	}
	return n, nil
}

// -- pipeline stages --

func (s *PostgresStore) UpsertPipeline(ctx context.Context, p model.Pipeline) (*model.Pipeline, error) {
	var out model.Pipeline
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pipelines (id, name, crm_group_id, sort_order) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (crm_group_id) DO UPDATE SET name = EXCLUDED.name, sort_order = EXCLUDED.sort_order
		 RETURNING id, name, crm_group_id, sort_order`,
		uuid.New().String(), p.Name, p.CRMGroupID, p.SortOrder,
	).Scan(&out.ID, &out.Name, &out.CRMGroupID, &out.SortOrder)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert pipeline %s", p.Name)
	}
	return &out, nil
}

func (s *PostgresStore) UpsertPipelineStage(ctx context.Context, stage model.PipelineStage) (*model.PipelineStage, error) {
	var out model.PipelineStage
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pipeline_stages (id, pipeline_id, name, crm_stage_id, sort_order) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (crm_stage_id) DO UPDATE SET pipeline_id = EXCLUDED.pipeline_id, name = EXCLUDED.name, sort_order = EXCLUDED.sort_order
		 RETURNING id, pipeline_id, name, crm_stage_id, sort_order`,
		uuid.New().String(), stage.PipelineID, stage.Name, stage.CRMStageID, stage.SortOrder,
	).Scan(&out.ID, &out.PipelineID, &out.Name, &out.CRMStageID, &out.SortOrder)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert pipeline stage %s", stage.Name)
	}
	return &out, nil
}

func (s *PostgresStore) ListPipelineStages(ctx context.Context) ([]model.PipelineStage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, pipeline_id, name, crm_stage_id, sort_order FROM pipeline_stages ORDER BY pipeline_id, sort_order ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pipeline stages")
	}
	defer rows.Close()

	var stages []model.PipelineStage
	for rows.Next() {
		var st model.PipelineStage
		if err := rows.Scan(&st.ID, &st.PipelineID, &st.Name, &st.CRMStageID, &st.SortOrder); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pipeline stage")
		}
		stages = append(stages, st)
	}
	return stages, eris.Wrap(rows.Err(), "postgres: list pipeline stages iterate")
}

// -- sync run ledger --

func (s *PostgresStore) CreateSyncRun(ctx context.Context, syncType string) (*model.SyncRun, error) {
	run := model.SyncRun{
		ID:        uuid.New().String(),
		SyncType:  syncType,
		Status:    model.SyncStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, sync_type, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.SyncType, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert sync run")
	}
	return &run, nil
}

func (s *PostgresStore) CompleteSyncRun(ctx context.Context, id string, contactsSynced int, errs []string) error {
	var errsJSON []byte
	if len(errs) > 0 {
		var err error
		errsJSON, err = json.Marshal(truncateErrors(errs))
		if err != nil {
			return eris.Wrap(err, "postgres: marshal sync errors")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs SET status = $1, contacts_synced = $2, errors = $3, completed_at = $4 WHERE id = $5`,
		string(model.SyncStatusCompleted), contactsSynced, errsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete sync run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: sync run %s", id)
	}
	return nil
}

func (s *PostgresStore) FailSyncRun(ctx context.Context, id string, errMsg string) error {
	errsJSON, err := json.Marshal([]string{errMsg})
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sync error")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs SET status = $1, errors = $2, completed_at = $3 WHERE id = $4`,
		string(model.SyncStatusFailed), errsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail sync run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: sync run %s", id)
	}
	return nil
}

func (s *PostgresStore) LatestSyncRun(ctx context.Context) (*model.SyncRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, sync_type, status, contacts_synced, errors, started_at, completed_at
		 FROM sync_runs ORDER BY started_at DESC LIMIT 1`,
	)
	run, err := scanSyncRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest sync run")
	}
	return run, nil
}

func (s *PostgresStore) ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, sync_type, status, contacts_synced, errors, started_at, completed_at
		 FROM sync_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync runs")
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list sync runs iterate")
}

// -- scan helpers --

type scannable interface {
	Scan(dest ...any) error
}

func scanSchool(row scannable) (*model.School, error) {
	var school model.School
	var stageID *string
	err := row.Scan(
		&school.ID, &school.RegionID, &school.Name, &school.Type, &school.Status,
		&school.Email, &school.Phone, &school.ContactPerson, &school.Notes,
		&school.CRMContactID, &stageID, &school.CreatedAt, &school.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stageID != nil {
		school.PipelineStageID = *stageID
	}
	return &school, nil
}

func scanSyncRun(row scannable) (*model.SyncRun, error) {
	var run model.SyncRun
	var errsJSON []byte
	var completedAt *time.Time
	err := row.Scan(&run.ID, &run.SyncType, &run.Status, &run.ContactsSynced,
		&errsJSON, &run.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	run.CompletedAt = completedAt
	if len(errsJSON) > 0 {
		if err := json.Unmarshal(errsJSON, &run.Errors); err != nil {
			return nil, eris.Wrap(err, "unmarshal sync run errors")
		}
	}
	return &run, nil
}
