package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/allergen-risk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS products (
	identifier       TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	brand            TEXT NOT NULL DEFAULT '',
	source           TEXT NOT NULL DEFAULT 'database',
	ingredients_text TEXT NOT NULL DEFAULT '',
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS product_allergen_facts (
	product_identifier TEXT NOT NULL REFERENCES products(identifier) ON DELETE CASCADE,
	allergen_code      TEXT NOT NULL,
	relation           TEXT NOT NULL CHECK (relation IN ('contains', 'may_contain', 'facility_risk')),
	confidence         REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
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
	id             TEXT PRIMARY KEY,
	identifier     TEXT NOT NULL,
	product_name   TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	user_allergens TEXT NOT NULL DEFAULT '',
	final_score    REAL NOT NULL,
	result         TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_facility_products_product ON facility_products(product_identifier);
CREATE INDEX IF NOT EXISTS idx_assessments_identifier ON assessments(identifier);
CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertProduct writes the product row and replaces its facts.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *model.ProductInfo) error {
	if err := validateProduct(p); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	source := p.Source
	if source == "" {
		source = model.SourceDatabase
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (identifier, name, brand, source, ingredients_text, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (identifier) DO UPDATE SET
			name = excluded.name, brand = excluded.brand, source = excluded.source,
			ingredients_text = excluded.ingredients_text, updated_at = excluded.updated_at`,
		p.Identifier, p.Name, p.Brand, source, p.IngredientsText, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert product %s", p.Identifier)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_allergen_facts WHERE product_identifier = ?`, p.Identifier); err != nil {
		return eris.Wrapf(err, "sqlite: clear facts %s", p.Identifier)
	}
	for _, f := range model.DedupeFacts(p.Facts) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO product_allergen_facts (product_identifier, allergen_code, relation, confidence, source) VALUES (?, ?, ?, ?, ?)`,
			p.Identifier, f.AllergenCode, string(f.Relation), f.Confidence, f.Source,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert fact %s for %s", f.Key(), p.Identifier)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit product")
}

// GetProduct loads a product with its facts and linked facility profiles.
func (s *SQLiteStore) GetProduct(ctx context.Context, identifier string) (*model.ProductInfo, error) {
	p := model.NewProductInfo(identifier, "", "")
	err := s.db.QueryRowContext(ctx,
		`SELECT name, brand, source, ingredients_text FROM products WHERE identifier = ?`,
		identifier,
	).Scan(&p.Name, &p.Brand, &p.Source, &p.IngredientsText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: product %s", identifier)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", identifier)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT allergen_code, relation, confidence, source FROM product_allergen_facts
		 WHERE product_identifier = ? ORDER BY allergen_code, relation, source`,
		identifier,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get facts %s", identifier)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var f model.AllergenFact
		var rel string
		if err := rows.Scan(&f.AllergenCode, &rel, &f.Confidence, &f.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact")
		}
		f.Relation = model.Relation(rel)
		p.Facts = append(p.Facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: get facts iterate")
	}

	p.Facilities, err = s.FacilityProfilesForProduct(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertFacilityProfiles inserts or replaces profiles in one transaction.
func (s *SQLiteStore) UpsertFacilityProfiles(ctx context.Context, profiles []model.FacilityAllergenProfile) (int64, error) {
	profiles = normalizeProfiles(profiles)
	if err := validateProfiles(profiles); err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facility_allergen_profile (facility_id, allergen_code, product_count_with_allergen, total_products_at_facility)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (facility_id, allergen_code) DO UPDATE SET
			product_count_with_allergen = excluded.product_count_with_allergen,
			total_products_at_facility = excluded.total_products_at_facility`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare profile upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, p := range profiles {
		res, err := stmt.ExecContext(ctx, p.FacilityID, p.AllergenCode, p.ProductCountWithAllergen, p.TotalProductsAtFacility)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert profile %s/%s", p.FacilityID, p.AllergenCode)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit profiles")
	}
	return n, nil
}

// LinkFacility records that identifier is produced at facilityID.
func (s *SQLiteStore) LinkFacility(ctx context.Context, identifier, facilityID string) error {
	if strings.TrimSpace(identifier) == "" || strings.TrimSpace(facilityID) == "" {
		return eris.New("sqlite: identifier and facility id are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facility_products (facility_id, product_identifier) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		facilityID, identifier,
	)
	return eris.Wrapf(err, "sqlite: link %s to %s", identifier, facilityID)
}

// FacilityProfilesForProduct returns the profiles of every facility linked
// to identifier, ordered by facility and allergen.
func (s *SQLiteStore) FacilityProfilesForProduct(ctx context.Context, identifier string) ([]model.FacilityAllergenProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.facility_id, f.allergen_code, f.product_count_with_allergen, f.total_products_at_facility
		 FROM facility_allergen_profile f
		 JOIN facility_products fp ON fp.facility_id = f.facility_id
		 WHERE fp.product_identifier = ?
		 ORDER BY f.facility_id, f.allergen_code`,
		identifier,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: facilities for %s", identifier)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.FacilityAllergenProfile
	for rows.Next() {
		var p model.FacilityAllergenProfile
		if err := rows.Scan(&p.FacilityID, &p.AllergenCode, &p.ProductCountWithAllergen, &p.TotalProductsAtFacility); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: facilities iterate")
}

// SaveAssessment stores a. Empty ID and CreatedAt are filled in.
func (s *SQLiteStore) SaveAssessment(ctx context.Context, a *model.Assessment) error {
	prepareAssessment(a)
	resultJSON, err := json.Marshal(a.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessments (id, identifier, product_name, source, user_allergens, final_score, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Identifier, a.ProductName, a.Source, joinCodes(a.UserAllergens), a.FinalScore, string(resultJSON), a.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert assessment %s", a.ID)
}

// ListAssessments returns saved assessments, newest first.
func (s *SQLiteStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, error) {
	query := `SELECT id, identifier, product_name, source, user_allergens, final_score, result, created_at FROM assessments WHERE 1=1`
	var args []any
	if filter.Identifier != "" {
		query += ` AND identifier = ?`
		args = append(args, filter.Identifier)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assessments")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Assessment
	for rows.Next() {
		var a model.Assessment
		var codes, resultJSON string
		if err := rows.Scan(&a.ID, &a.Identifier, &a.ProductName, &a.Source, &codes, &a.FinalScore, &resultJSON, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assessment")
		}
		a.UserAllergens = splitCodes(codes)
		if err := json.Unmarshal([]byte(resultJSON), &a.Result); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal result %s", a.ID)
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list assessments iterate")
}

func prepareAssessment(a *model.Assessment) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
