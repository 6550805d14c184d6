package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/invoice-extractor/backend/internal/models"
)

const extractionColumns = `id, file_name, mime_type, size, kind, provider, model, status,
	fields, issues, error, duration_ms, created_at`

// DuckStore persists extraction history in a DuckDB file.
type DuckStore struct {
	db         *sql.DB
	dbPath     string
	maxEntries int
}

// NewDuckStore opens (or creates) the database at dbPath.
func NewDuckStore(dbPath string, maxEntries int) (*DuckStore, error) {
	slog.Debug("history.duckdb.open", "path", dbPath)

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS extractions (
			id          VARCHAR PRIMARY KEY,
			file_name   VARCHAR NOT NULL,
			mime_type   VARCHAR NOT NULL,
			size        BIGINT NOT NULL,
			kind        VARCHAR,
			provider    VARCHAR NOT NULL,
			model       VARCHAR NOT NULL,
			status      VARCHAR NOT NULL,
			fields      VARCHAR,
			issues      VARCHAR,
			error       VARCHAR,
			duration_ms BIGINT NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &DuckStore{db: db, dbPath: dbPath, maxEntries: maxEntries}, nil
}

// Save inserts or replaces rec and trims the table to maxEntries rows.
func (s *DuckStore) Save(ctx context.Context, rec *models.Extraction) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("saving extraction: missing id")
	}

	var fields, issues sql.NullString
	if len(rec.Fields) > 0 {
		fields = sql.NullString{String: string(rec.Fields), Valid: true}
	}
	if len(rec.Issues) > 0 {
		b, err := json.Marshal(rec.Issues)
		if err != nil {
			return fmt.Errorf("encoding issues: %w", err)
		}
		issues = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO extractions (`+extractionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileName, rec.MIMEType, rec.Size, string(rec.Kind), rec.Provider, rec.Model,
		string(rec.Status), fields, issues, nullString(rec.Error), rec.DurationMs, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting extraction: %w", err)
	}

	if s.maxEntries > 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM extractions WHERE id NOT IN (
				SELECT id FROM extractions ORDER BY created_at DESC, id DESC LIMIT ?
			)`, s.maxEntries)
		if err != nil {
			return fmt.Errorf("trimming history: %w", err)
		}
	}
	return nil
}

// Get retrieves an extraction by ID.
func (s *DuckStore) Get(ctx context.Context, id string) (*models.Extraction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE id = ?`, id)
	rec, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns the most recent extractions.
func (s *DuckStore) List(ctx context.Context, limit int) ([]*models.Extraction, error) {
	query := `SELECT ` + extractionColumns + ` FROM extractions ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing extractions: %w", err)
	}
	defer rows.Close()

	var out []*models.Extraction
	for rows.Next() {
		rec, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes an extraction.
func (s *DuckStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM extractions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting extraction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database. The file is kept.
func (s *DuckStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (*models.Extraction, error) {
	var (
		rec                    models.Extraction
		kind, status           string
		fields, issues, errMsg sql.NullString
		createdAt              time.Time
	)
	err := row.Scan(&rec.ID, &rec.FileName, &rec.MIMEType, &rec.Size, &kind, &rec.Provider, &rec.Model,
		&status, &fields, &issues, &errMsg, &rec.DurationMs, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.Kind = models.DocumentKind(kind)
	rec.Status = models.ExtractionStatus(status)
	rec.Error = errMsg.String
	rec.CreatedAt = createdAt.UTC()
	if fields.Valid {
		rec.Fields = json.RawMessage(fields.String)
	}
	if issues.Valid {
		if err := json.Unmarshal([]byte(issues.String), &rec.Issues); err != nil {
			return nil, fmt.Errorf("decoding issues: %w", err)
		}
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
