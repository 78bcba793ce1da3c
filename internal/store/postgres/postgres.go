// Package postgres implements the store on PostgreSQL with pgvector case
// descriptors. An optional in-memory HNSW index over active case descriptors
// prefilters matching candidates once the case count grows large; the exact
// cosine pass downstream still scores every returned candidate.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/cases"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store"
)

// Options parameterizes the PostgreSQL store.
type Options struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	// HNSWMinCases enables the in-memory candidate prefilter once at least
	// this many active cases are indexed. 0 disables prefiltering.
	HNSWMinCases int
}

// Store is a PostgreSQL-backed store.Store implementation.
type Store struct {
	db           *sql.DB
	log          *zap.Logger
	index        *caseIndex
	hnswMinCases int
}

// Open connects, verifies the connection, runs migrations and loads the
// active-case index.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*Store, error) {
	if opts.URL == "" {
		return nil, errors.New("database URL is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("postgres", opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:           db,
		log:          log,
		index:        newCaseIndex(),
		hnswMinCases: opts.HNSWMinCases,
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if s.hnswMinCases > 0 {
		active, err := s.ListActiveCases(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("loading active cases for index: %w", err)
		}
		s.index.rebuild(active)
		log.Info("active case index built", zap.Int("cases", s.index.count()))
	}

	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func descriptorArg(d []float32) any {
	if len(d) == 0 {
		return nil
	}
	return pgvector.NewVector(d)
}

// CreateCase stores a new case and indexes it when active.
func (s *Store) CreateCase(ctx context.Context, c cases.Case) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (id, name, age, status, last_seen_location, reported_at, photo_ref, descriptor, descriptor_origin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.Age, string(c.Status), c.LastSeenLocation, c.ReportedAt.UTC(),
		c.PhotoRef, descriptorArg(c.Descriptor), c.DescriptorOrigin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("case %s: %w", c.ID, store.ErrAlreadyExists)
		}
		return fmt.Errorf("insert case: %w", err)
	}
	if s.hnswMinCases > 0 && c.Status == cases.StatusActive {
		s.index.add(c)
	}
	return nil
}

// GetCase retrieves a case by id.
func (s *Store) GetCase(ctx context.Context, id string) (cases.Case, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, age, status, last_seen_location, reported_at, photo_ref, descriptor, descriptor_origin
		FROM cases WHERE id = $1`, id)
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
		FROM cases WHERE status = $1 ORDER BY reported_at DESC, id`, string(cases.StatusActive))
}

// NearestActiveCases returns up to k active cases closest to the query by
// cosine distance. Below the configured index size, or with the index
// disabled, it degrades to the full active list so small deployments never
// lose exactness.
func (s *Store) NearestActiveCases(ctx context.Context, query []float32, k int) ([]cases.Case, error) {
	if s.hnswMinCases <= 0 || s.index.count() < s.hnswMinCases {
		return s.ListActiveCases(ctx)
	}
	return s.index.nearest(query, k), nil
}

// UpdateCaseStatus mutates a case's status and keeps the index in step.
func (s *Store) UpdateCaseStatus(ctx context.Context, id string, status cases.Status) error {
	res, err := s.db.ExecContext(ctx, "UPDATE cases SET status = $1 WHERE id = $2", string(status), id)
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

	if s.hnswMinCases > 0 {
		if status == cases.StatusActive {
			c, err := s.GetCase(ctx, id)
			if err != nil {
				return err
			}
			s.index.add(c)
		} else {
			s.index.remove(id)
		}
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
	var vec sql.Null[pgvector.Vector]
	if err := row.Scan(&c.ID, &c.Name, &c.Age, &status, &c.LastSeenLocation,
		&c.ReportedAt, &c.PhotoRef, &vec, &c.DescriptorOrigin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cases.Case{}, err
		}
		return cases.Case{}, fmt.Errorf("scan case: %w", err)
	}
	c.Status = cases.Status(status)
	if vec.Valid {
		c.Descriptor = vec.V.Slice()
	}
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.CaseID, a.Similarity, a.Confidence, string(a.SourceRole), string(a.Status),
		a.Assignee, a.AssignedAt, a.CompletedAt, a.Location, a.Latitude, a.Longitude,
		a.PhotoRef, meta, a.CreatedAt.UTC(),
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
		FROM alerts WHERE id = $1`, id)
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
		FROM alerts ORDER BY created_at DESC, id LIMIT $1`, limit)
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
func (s *Store) UpdateAlertStatus(ctx context.Context, id string, expected alert.Status, changes alert.Changes) error {
	sets := []string{"status = $1"}
	args := []any{string(changes.To)}
	if changes.Assignee != "" {
		args = append(args, changes.Assignee)
		sets = append(sets, fmt.Sprintf("assignee = $%d", len(args)))
	}
	if changes.AssignedAt != nil {
		args = append(args, changes.AssignedAt.UTC())
		sets = append(sets, fmt.Sprintf("assigned_at = $%d", len(args)))
	}
	if changes.CompletedAt != nil {
		args = append(args, changes.CompletedAt.UTC())
		sets = append(sets, fmt.Sprintf("completed_at = $%d", len(args)))
	}
	args = append(args, id, string(expected))

	query := fmt.Sprintf("UPDATE alerts SET %s WHERE id = $%d AND status = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
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

	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM alerts WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("check alert exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("alert %s: %w", id, store.ErrNotFound)
	}
	return fmt.Errorf("alert %s no longer %s: %w", id, expected, store.ErrConflict)
}

func scanAlert(row rowScanner) (alert.Alert, error) {
	var a alert.Alert
	var sourceRole, status string
	var meta []byte
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
	if len(meta) > 0 && string(meta) != "{}" && string(meta) != "null" {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return alert.Alert{}, fmt.Errorf("unmarshal alert metadata: %w", err)
		}
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ store.Store = (*Store)(nil)
