// Package store persists users, projects and project images in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors. Callers match these with errors.Is.
var (
	// ErrNotFound marks a missing row (user, project or image).
	ErrNotFound = errors.New("store: not found")
	// ErrConflict marks a unique-constraint violation (duplicate
	// username or project name).
	ErrConflict = errors.New("store: conflict")
)

// User represents a row in the users table.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    string
}

// Project represents a row in the projects table. Body is the raw
// markup source.
type Project struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"-"`
	Name      string `json:"name"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ProjectSummary is the list view of a project: no body, no images.
type ProjectSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ImageUpload is one image in a sync request.
type ImageUpload struct {
	Name string
	Blob []byte // nil keeps the stored blob for an existing name
}

// SyncResult reports what a sync changed, so the caller can invalidate
// only the affected dimension cache entries.
type SyncResult struct {
	Deleted []string
	Updated []string
}

// Store wraps the SQLite database for all underlog persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- User operations ---

// CreateUser inserts a user with an already-hashed password and
// returns the new ID. A taken username yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: username %q", ErrConflict, username)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetUserByUsername retrieves a user for credential checking.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// --- Project operations ---

// CreateProject inserts a project for the user and returns its ID.
// A duplicate name for the same user yields ErrConflict.
func (s *Store) CreateProject(ctx context.Context, userID int64, name, body string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (user_id, name, body) VALUES (?, ?, ?)",
		userID, name, body)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: project %q", ErrConflict, name)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetProject retrieves a project owned by the user. A project that
// exists but belongs to someone else is reported as not found.
func (s *Store) GetProject(ctx context.Context, userID, projectID int64) (*Project, error) {
	p := &Project{}
	var body sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, body, created_at, updated_at
		FROM projects WHERE id = ? AND user_id = ?
	`, projectID, userID).Scan(&p.ID, &p.UserID, &p.Name, &body, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: project %d", ErrNotFound, projectID)
	}
	if err != nil {
		return nil, err
	}
	p.Body = body.String
	return p, nil
}

// ListProjects returns the user's projects, most recently updated
// first.
func (s *Store) ListProjects(ctx context.Context, userID int64) ([]ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name FROM projects WHERE user_id = ? ORDER BY updated_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []ProjectSummary{}
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject stores a project's name and body. Ownership is part of
// the predicate; zero rows affected means not found.
func (s *Store) UpdateProject(ctx context.Context, userID, projectID int64, name, body string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, body = ? WHERE id = ? AND user_id = ?",
		name, body, projectID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: project %q", ErrConflict, name)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: project %d", ErrNotFound, projectID)
	}
	return nil
}

// DeleteProject removes a project; images cascade.
func (s *Store) DeleteProject(ctx context.Context, userID, projectID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM projects WHERE id = ? AND user_id = ?", projectID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: project %d", ErrNotFound, projectID)
	}
	return nil
}

// --- Image operations ---

// ListImageNames returns the names of a project's stored images.
func (s *Store) ListImageNames(ctx context.Context, projectID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM images WHERE project_id = ? ORDER BY name", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetImage returns the raw blob for a project image.
func (s *Store) GetImage(ctx context.Context, projectID int64, name string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT blob FROM images WHERE project_id = ? AND name = ?",
		projectID, name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: image %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// SyncImages reconciles a project's stored images with the client's
// full set: images absent from the request are deleted, uploads with a
// blob are upserted, and a named entry without a blob keeps the stored
// one. The whole reconciliation is one transaction.
func (s *Store) SyncImages(ctx context.Context, projectID int64, uploads []ImageUpload) (*SyncResult, error) {
	result := &SyncResult{}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT name FROM images WHERE project_id = ?", projectID)
		if err != nil {
			return err
		}
		existing := make(map[string]bool)
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			existing[name] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		requested := make(map[string]ImageUpload, len(uploads))
		for _, up := range uploads {
			if up.Name != "" {
				requested[up.Name] = up
			}
		}

		for name := range existing {
			if _, ok := requested[name]; !ok {
				if _, err := tx.ExecContext(ctx,
					"DELETE FROM images WHERE project_id = ? AND name = ?",
					projectID, name); err != nil {
					return err
				}
				result.Deleted = append(result.Deleted, name)
			}
		}

		for name, up := range requested {
			if up.Blob == nil {
				// No blob and no stored image: nothing to keep.
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO images (project_id, name, blob) VALUES (?, ?, ?)
				ON CONFLICT(project_id, name) DO UPDATE SET blob = excluded.blob
			`, projectID, name, up.Blob); err != nil {
				return err
			}
			result.Updated = append(result.Updated, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
