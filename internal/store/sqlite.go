package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jobsift/jobsift/internal/model"
)

// SQLiteStore persists postings, adapter breaker state, and run summaries
// in a single SQLite database. It implements model.JobStore,
// model.AdapterStateStore, and model.RunStore.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ model.JobStore          = (*SQLiteStore)(nil)
	_ model.AdapterStateStore = (*SQLiteStore)(nil)
	_ model.RunStore          = (*SQLiteStore)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS job_postings (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	company       TEXT NOT NULL,
	title_key     TEXT NOT NULL,
	company_key   TEXT NOT NULL,
	location      TEXT,
	low_conf_loc  INTEGER NOT NULL DEFAULT 0,
	salary_min    REAL,
	salary_max    REAL,
	salary_ccy    TEXT,
	salary_period TEXT,
	salary_unspec INTEGER NOT NULL DEFAULT 1,
	description   TEXT,
	technologies  TEXT,
	experience    TEXT,
	posted_at     DATETIME,
	source        TEXT,
	url           TEXT,
	first_seen    DATETIME NOT NULL,
	last_seen     DATETIME NOT NULL,
	saved         INTEGER NOT NULL DEFAULT 0,
	UNIQUE(title_key, company_key)
);

CREATE TABLE IF NOT EXISTS adapter_state (
	platform       TEXT PRIMARY KEY,
	failures       INTEGER NOT NULL DEFAULT 0,
	state          TEXT NOT NULL,
	open_count     INTEGER NOT NULL DEFAULT 0,
	cooldown_until DATETIME,
	last_success   DATETIME
);

CREATE TABLE IF NOT EXISTS ingestion_runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	adapters    TEXT NOT NULL,
	raw_count   INTEGER NOT NULL,
	normalized  INTEGER NOT NULL,
	deduped     INTEGER NOT NULL,
	inserted    INTEGER NOT NULL,
	updated     INTEGER NOT NULL
);
`

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	// Upserts on the natural key must serialize; a single writer avoids
	// SQLITE_BUSY churn under the fan-in.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindByNaturalKey returns the posting matching the case-insensitive
// (title, company) key, or nil if none exists.
func (s *SQLiteStore) FindByNaturalKey(title, company string) (*model.JobPosting, error) {
	row := s.db.QueryRow(
		`SELECT `+postingColumns+` FROM job_postings WHERE title_key = ? AND company_key = ?`,
		model.NormalizeKeyPart(title), model.NormalizeKeyPart(company),
	)
	posting, err := scanPosting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding posting by key: %w", err)
	}
	return posting, nil
}

// Upsert writes the posting, assigning a synthetic ID on first insertion.
// Conflicts on the natural key resolve in favor of the incoming record,
// which the caller has already reconciled; the stored id and first_seen are
// kept so identity stays stable across re-scrapes.
func (s *SQLiteStore) Upsert(p model.JobPosting) (model.UpsertResult, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	titleKey, companyKey := p.NaturalKey()

	var exists int
	err := s.db.QueryRow(
		`SELECT 1 FROM job_postings WHERE title_key = ? AND company_key = ?`,
		titleKey, companyKey,
	).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("checking posting %q/%q: %w", p.Title, p.Company, err)
	}
	preexisting := err == nil

	techs, err := json.Marshal(p.Technologies)
	if err != nil {
		return "", fmt.Errorf("marshal technologies: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO job_postings (
			id, title, company, title_key, company_key, location, low_conf_loc,
			salary_min, salary_max, salary_ccy, salary_period, salary_unspec,
			description, technologies, experience, posted_at, source, url,
			first_seen, last_seen, saved
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title_key, company_key) DO UPDATE SET
			title         = excluded.title,
			company       = excluded.company,
			location      = excluded.location,
			low_conf_loc  = excluded.low_conf_loc,
			salary_min    = excluded.salary_min,
			salary_max    = excluded.salary_max,
			salary_ccy    = excluded.salary_ccy,
			salary_period = excluded.salary_period,
			salary_unspec = excluded.salary_unspec,
			description   = excluded.description,
			technologies  = excluded.technologies,
			experience    = excluded.experience,
			posted_at     = excluded.posted_at,
			source        = excluded.source,
			url           = excluded.url,
			last_seen     = excluded.last_seen,
			saved         = excluded.saved`,
		p.ID, p.Title, p.Company, titleKey, companyKey, p.Location, boolInt(p.LowConfidenceLocation),
		nullFloat(p.Salary.Min, p.Salary.Unspecified), nullFloat(p.Salary.Max, p.Salary.Unspecified),
		p.Salary.Currency, p.Salary.Period, boolInt(p.Salary.Unspecified),
		p.Description, string(techs), string(p.Experience), nullTime(p.PostedAt), p.Source, p.URL,
		p.FirstSeen, p.LastSeen, boolInt(p.Saved),
	)
	if err != nil {
		return "", fmt.Errorf("upserting posting %q/%q: %w", p.Title, p.Company, err)
	}

	if preexisting {
		return model.UpsertUpdated, nil
	}
	return model.UpsertInserted, nil
}

// SetSaved flips the saved flag for a posting.
func (s *SQLiteStore) SetSaved(id string, saved bool) error {
	res, err := s.db.Exec(`UPDATE job_postings SET saved = ? WHERE id = ?`, boolInt(saved), id)
	if err != nil {
		return fmt.Errorf("setting saved for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no posting with id %s", id)
	}
	return nil
}

// List returns postings ordered by last seen, newest first.
func (s *SQLiteStore) List(limit int) ([]model.JobPosting, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(
		`SELECT `+postingColumns+` FROM job_postings ORDER BY last_seen DESC, title ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	defer rows.Close()

	var postings []model.JobPosting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		postings = append(postings, *p)
	}
	return postings, rows.Err()
}

// ExpireUnsaved deletes postings never marked saved whose last_seen is older
// than the retention window. Saved postings are never deleted.
func (s *SQLiteStore) ExpireUnsaved(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.Exec(`DELETE FROM job_postings WHERE saved = 0 AND last_seen < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring unsaved postings: %w", err)
	}
	return res.RowsAffected()
}

const postingColumns = `id, title, company, location, low_conf_loc,
	salary_min, salary_max, salary_ccy, salary_period, salary_unspec,
	description, technologies, experience, posted_at, source, url,
	first_seen, last_seen, saved`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (*model.JobPosting, error) {
	var (
		p          model.JobPosting
		lowConf    int
		salaryMin  sql.NullFloat64
		salaryMax  sql.NullFloat64
		ccy        sql.NullString
		period     sql.NullString
		unspec     int
		desc       sql.NullString
		techs      sql.NullString
		experience sql.NullString
		postedAt   sql.NullTime
		source     sql.NullString
		url        sql.NullString
		saved      int
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Company, &p.Location, &lowConf,
		&salaryMin, &salaryMax, &ccy, &period, &unspec,
		&desc, &techs, &experience, &postedAt, &source, &url,
		&p.FirstSeen, &p.LastSeen, &saved,
	)
	if err != nil {
		return nil, err
	}

	p.LowConfidenceLocation = lowConf != 0
	p.Saved = saved != 0
	p.Description = desc.String
	p.Source = source.String
	p.URL = url.String
	p.Experience = model.ExperienceLevel(experience.String)
	if p.Experience == "" {
		p.Experience = model.ExperienceUnknown
	}
	if postedAt.Valid {
		t := postedAt.Time
		p.PostedAt = &t
	}

	p.Salary = model.Salary{Unspecified: unspec != 0}
	if !p.Salary.Unspecified {
		p.Salary.Min = salaryMin.Float64
		p.Salary.Max = salaryMax.Float64
		p.Salary.Currency = ccy.String
		p.Salary.Period = period.String
	}

	if techs.Valid && techs.String != "" {
		if err := json.Unmarshal([]byte(techs.String), &p.Technologies); err != nil {
			// Legacy comma-separated fallback rather than failing the scan.
			p.Technologies = strings.Split(techs.String, ",")
		}
	}

	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(v float64, unspecified bool) any {
	if unspecified {
		return nil
	}
	return v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
