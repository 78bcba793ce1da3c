// Package sqlite implements the store on a single-file SQLite database via
// modernc.org/sqlite. Descriptors are stored as little-endian float32 blobs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/cases"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS cases (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	age                INTEGER NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	last_seen_location TEXT NOT NULL DEFAULT '',
	reported_at        TIMESTAMP NOT NULL,
	photo_ref          TEXT NOT NULL DEFAULT '',
	descriptor         BLOB,
	descriptor_origin  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);

CREATE TABLE IF NOT EXISTS alerts (
	id           TEXT PRIMARY KEY,
	case_id      TEXT NOT NULL REFERENCES cases(id),
	similarity   REAL NOT NULL,
	confidence   REAL NOT NULL,
	source_role  TEXT NOT NULL,
	status       TEXT NOT NULL,
	assignee     TEXT NOT NULL DEFAULT '',
	assigned_at  TIMESTAMP,
	completed_at TIMESTAMP,
	location     TEXT NOT NULL DEFAULT '',
	latitude     REAL,
	longitude    REAL,
	photo_ref    TEXT NOT NULL DEFAULT '',
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
`

// Store is a SQLite-backed store.Store implementation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and prepares the
// schema. The pragmas keep concurrent reader/writer behavior sane for a
// single-process deployment.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeDescriptor packs a descriptor as little-endian float32 bytes.
func encodeDescriptor(d []float32) []byte {
	if len(d) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(d))
	for i, v := range d {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeDescriptor unpacks little-endian float32 bytes.
func decodeDescriptor(buf []byte) ([]float32, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("descriptor blob length %d not a multiple of 4", len(buf))
	}
	d := make([]float32, len(buf)/4)
	for i := range d {
		d[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return d, nil
}

// CreateCase stores a new case.
func (s *Store) CreateCase(ctx context.Context, c cases.Case) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (id, name, age, status, last_seen_location, reported_at, photo_ref, descriptor, descriptor_origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Age, string(c.Status), c.LastSeenLocation, c.ReportedAt.UTC(),
		c.PhotoRef, encodeDescriptor(c.Descriptor), c.DescriptorOrigin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("case %s: %w", c.ID, store.ErrAlreadyExists)
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

// GetCase retrieves a case by id.
func (s *Store) GetCase(ctx context.Context, id string) (cases.Case, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, age, status, last_seen_location, reported_at, photo_ref, descriptor, descriptor_origin
		FROM cases WHERE id = ?`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cases.Case{}, fmt.Errorf("case %s: %w", id, store.ErrNotFound)
	}
	return c, err
}

// ListCases returns every case, newest first.
func (s *Store) ListCases(ctx context.Context) ([]cases.Case, error) {
	return s.queryCases(ctx, `
		SELECT id, name, age, status, last_seen_location, reported_at, photo_ref, descriptor, descriptor_origin
		FROM cases ORDER BY reported_at DESC, id`)
}

// ListActiveCases returns the matching candidates.
func (s *Store) ListActiveCases(ctx context.Context) ([]cases.Case, error) {
	return s.queryCases(ctx, `
		SELECT id, name, age, status, last_seen_location, reported_at, photo_ref, descriptor, descriptor_origin
		FROM cases WHERE status = ? ORDER BY reported_at DESC, id`, string(cases.StatusActive))
}

// UpdateCaseStatus mutates a case's status.
func (s *Store) UpdateCaseStatus(ctx context.Context, id string, status cases.Status) error {
	res, err := s.db.ExecContext(ctx, "UPDATE cases SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("case %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) queryCases(ctx context.Context, query string, args ...any) ([]cases.Case, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var out []cases.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (cases.Case, error) {
	var c cases.Case
	var status string
	var blob []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Age, &status, &c.LastSeenLocation,
		&c.ReportedAt, &c.PhotoRef, &blob, &c.DescriptorOrigin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cases.Case{}, err
		}
		return cases.Case{}, fmt.Errorf("scan case: %w", err)
	}
	c.Status = cases.Status(status)
	d, err := decodeDescriptor(blob)
	if err != nil {
		return cases.Case{}, fmt.Errorf("case %s: %w", c.ID, err)
	}
	c.Descriptor = d
	c.ReportedAt = c.ReportedAt.UTC()
	return c, nil
}

// CreateAlert stores a new alert.
func (s *Store) CreateAlert(ctx context.Context, a alert.Alert) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal alert metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, case_id, similarity, confidence, source_role, status,
			assignee, assigned_at, completed_at, location, latitude, longitude,
			photo_ref, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CaseID, a.Similarity, a.Confidence, string(a.SourceRole), string(a.Status),
		a.Assignee, a.AssignedAt, a.CompletedAt, a.Location, a.Latitude, a.Longitude,
		a.PhotoRef, string(meta), a.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("alert %s: %w", a.ID, store.ErrAlreadyExists)
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (alert.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, case_id, similarity, confidence, source_role, status,
			assignee, assigned_at, completed_at, location, latitude, longitude,
			photo_ref, metadata, created_at
		FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alert.Alert{}, fmt.Errorf("alert %s: %w", id, store.ErrNotFound)
	}
	return a, err
}

// ListRecentAlerts returns the newest alerts up to limit.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]alert.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, similarity, confidence, source_role, status,
			assignee, assigned_at, completed_at, location, latitude, longitude,
			photo_ref, metadata, created_at
		FROM alerts ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

// UpdateAlertStatus applies lifecycle changes guarded by the expected status.
// The WHERE clause carries the guard, so two racing transitions cannot both
// succeed.
func (s *Store) UpdateAlertStatus(ctx context.Context, id string, expected alert.Status, changes alert.Changes) error {
	sets := []string{"status = ?"}
	args := []any{string(changes.To)}
	if changes.Assignee != "" {
		sets = append(sets, "assignee = ?")
		args = append(args, changes.Assignee)
	}
	if changes.AssignedAt != nil {
		sets = append(sets, "assigned_at = ?")
		args = append(args, changes.AssignedAt.UTC())
	}
	if changes.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, changes.CompletedAt.UTC())
	}
	args = append(args, id, string(expected))

	res, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?", args...)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Distinguish a missing alert from a lost race.
	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM alerts WHERE id = ?)", id).Scan(&exists); err != nil {
		return fmt.Errorf("check alert exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("alert %s: %w", id, store.ErrNotFound)
	}
	return fmt.Errorf("alert %s no longer %s: %w", id, expected, store.ErrConflict)
}

func scanAlert(row rowScanner) (alert.Alert, error) {
	var a alert.Alert
	var sourceRole, status, meta string
	var assignedAt, completedAt sql.NullTime
	if err := row.Scan(&a.ID, &a.CaseID, &a.Similarity, &a.Confidence, &sourceRole, &status,
		&a.Assignee, &assignedAt, &completedAt, &a.Location, &a.Latitude, &a.Longitude,
		&a.PhotoRef, &meta, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return alert.Alert{}, err
		}
		return alert.Alert{}, fmt.Errorf("scan alert: %w", err)
	}
	a.SourceRole = alert.Role(sourceRole)
	a.Status = alert.Status(status)
	if assignedAt.Valid {
		t := assignedAt.Time.UTC()
		a.AssignedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		a.CompletedAt = &t
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return alert.Alert{}, fmt.Errorf("unmarshal alert metadata: %w", err)
		}
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports SQLITE_CONSTRAINT_PRIMARYKEY in the message.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ store.Store = (*Store)(nil)
