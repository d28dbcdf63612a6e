package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/allergen-risk/internal/db"
	"github.com/sells-group/allergen-risk/internal/model"
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

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
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
CREATE TABLE IF NOT EXISTS products (
	identifier       TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	brand            TEXT NOT NULL DEFAULT '',
	source           TEXT NOT NULL DEFAULT 'database',
	ingredients_text TEXT NOT NULL DEFAULT '',
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_allergen_facts (
	product_identifier TEXT NOT NULL REFERENCES products(identifier) ON DELETE CASCADE,
	allergen_code      TEXT NOT NULL,
	relation           TEXT NOT NULL CHECK (relation IN ('contains', 'may_contain', 'facility_risk')),
	confidence         DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
	source             TEXT NOT NULL,
	PRIMARY KEY (product_identifier, allergen_code, relation, source)
);

CREATE TABLE IF NOT EXISTS facility_allergen_profile (
	facility_id                 TEXT NOT NULL,
	allergen_code               TEXT NOT NULL,
	product_count_with_allergen INTEGER NOT NULL CHECK (product_count_with_allergen >= 0),
	total_products_at_facility  INTEGER NOT NULL CHECK (total_products_at_facility >= product_count_with_allergen),
	PRIMARY KEY (facility_id, allergen_code)
);

CREATE TABLE IF NOT EXISTS facility_products (
	facility_id        TEXT NOT NULL,
	product_identifier TEXT NOT NULL,
	PRIMARY KEY (facility_id, product_identifier)
);

CREATE TABLE IF NOT EXISTS assessments (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	identifier     TEXT NOT NULL,
	product_name   TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	user_allergens TEXT[] NOT NULL DEFAULT '{}',
	final_score    DOUBLE PRECISION NOT NULL,
	result         JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_facility_products_product ON facility_products(product_identifier);
CREATE INDEX IF NOT EXISTS idx_assessments_identifier ON assessments(identifier);
CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments(created_at DESC);
`

var factColumns = []string{"product_identifier", "allergen_code", "relation", "confidence", "source"}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertProduct writes the product row and replaces its facts via COPY.
func (s *PostgresStore) UpsertProduct(ctx context.Context, p *model.ProductInfo) error {
	if err := validateProduct(p); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	source := p.Source
	if source == "" {
		source = model.SourceDatabase
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO products (identifier, name, brand, source, ingredients_text, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (identifier) DO UPDATE SET
			name = EXCLUDED.name, brand = EXCLUDED.brand, source = EXCLUDED.source,
			ingredients_text = EXCLUDED.ingredients_text, updated_at = now()`,
		p.Identifier, p.Name, p.Brand, source, p.IngredientsText,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert product %s", p.Identifier)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_allergen_facts WHERE product_identifier = $1`, p.Identifier); err != nil {
		return eris.Wrapf(err, "postgres: clear facts %s", p.Identifier)
	}

	facts := model.DedupeFacts(p.Facts)
	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, []any{p.Identifier, f.AllergenCode, string(f.Relation), f.Confidence, f.Source})
	}
	if _, err := db.CopyFrom(ctx, tx, "product_allergen_facts", factColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy facts %s", p.Identifier)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit product")
}

// GetProduct loads a product with its facts and linked facility profiles.
func (s *PostgresStore) GetProduct(ctx context.Context, identifier string) (*model.ProductInfo, error) {
	p := model.NewProductInfo(identifier, "", "")
	err := s.pool.QueryRow(ctx,
		`SELECT name, brand, source, ingredients_text FROM products WHERE identifier = $1`,
		identifier,
	).Scan(&p.Name, &p.Brand, &p.Source, &p.IngredientsText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: product %s", identifier)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", identifier)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT allergen_code, relation, confidence, source FROM product_allergen_facts
		 WHERE product_identifier = $1 ORDER BY allergen_code, relation, source`,
		identifier,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get facts %s", identifier)
	}
	defer rows.Close()

	for rows.Next() {
		var f model.AllergenFact
		var rel string
		if err := rows.Scan(&f.AllergenCode, &rel, &f.Confidence, &f.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		f.Relation = model.Relation(rel)
		p.Facts = append(p.Facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: get facts iterate")
	}

	p.Facilities, err = s.FacilityProfilesForProduct(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertFacilityProfiles bulk-loads profiles through a temp table.
func (s *PostgresStore) UpsertFacilityProfiles(ctx context.Context, profiles []model.FacilityAllergenProfile) (int64, error) {
	profiles = normalizeProfiles(profiles)
	if err := validateProfiles(profiles); err != nil {
		return 0, err
	}
	n, err := db.UpsertFacilityProfiles(ctx, s.pool, profiles)
	return n, eris.Wrap(err, "postgres: upsert profiles")
}

// LinkFacility records that identifier is produced at facilityID.
func (s *PostgresStore) LinkFacility(ctx context.Context, identifier, facilityID string) error {
	if strings.TrimSpace(identifier) == "" || strings.TrimSpace(facilityID) == "" {
		return eris.New("postgres: identifier and facility id are required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO facility_products (facility_id, product_identifier) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		facilityID, identifier,
	)
	return eris.Wrapf(err, "postgres: link %s to %s", identifier, facilityID)
}

// FacilityProfilesForProduct returns the profiles of every facility linked
// to identifier, ordered by facility and allergen.
func (s *PostgresStore) FacilityProfilesForProduct(ctx context.Context, identifier string) ([]model.FacilityAllergenProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.facility_id, f.allergen_code, f.product_count_with_allergen, f.total_products_at_facility
		 FROM facility_allergen_profile f
		 JOIN facility_products fp ON fp.facility_id = f.facility_id
		 WHERE fp.product_identifier = $1
		 ORDER BY f.facility_id, f.allergen_code`,
		identifier,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: facilities for %s", identifier)
	}
	defer rows.Close()

	var out []model.FacilityAllergenProfile
	for rows.Next() {
		var p model.FacilityAllergenProfile
		if err := rows.Scan(&p.FacilityID, &p.AllergenCode, &p.ProductCountWithAllergen, &p.TotalProductsAtFacility); err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: facilities iterate")
}

// SaveAssessment stores a. Empty ID and CreatedAt are filled in.
func (s *PostgresStore) SaveAssessment(ctx context.Context, a *model.Assessment) error {
	prepareAssessment(a)
	resultJSON, err := json.Marshal(a.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	codes := a.UserAllergens
	if codes == nil {
		codes = []string{}
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO assessments (id, identifier, product_name, source, user_allergens, final_score, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Identifier, a.ProductName, a.Source, codes, a.FinalScore, resultJSON, a.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert assessment %s", a.ID)
}

// ListAssessments returns saved assessments, newest first.
func (s *PostgresStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, error) {
	query := `SELECT id, identifier, product_name, source, user_allergens, final_score, result, created_at FROM assessments WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Identifier != "" {
		query += fmt.Sprintf(` AND identifier = $%d`, argIdx)
		args = append(args, filter.Identifier)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assessments")
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		var a model.Assessment
		var resultJSON []byte
		if err := rows.Scan(&a.ID, &a.Identifier, &a.ProductName, &a.Source, &a.UserAllergens, &a.FinalScore, &resultJSON, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assessment")
		}
		if err := json.Unmarshal(resultJSON, &a.Result); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal result %s", a.ID)
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list assessments iterate")
}
