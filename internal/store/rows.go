package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tablekit/internal/row"
)

const selectRows = `
	SELECT id, name, status, category, value, date, tags, metadata
	FROM rows`

// Load returns every row in import order.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) Load(ctx context.Context) ([]row.Row, error) {
	rows, err := s.db.QueryContext(ctx, selectRows+`
		ORDER BY position ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	out := []row.Row{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Get returns the row with id. The second result is false when no such row
// exists.
func (s *Store) Get(ctx context.Context, id string) (row.Row, bool, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx, selectRows+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return row.Row{}, false, nil
	}
	if err != nil {
		return row.Row{}, false, err
	}
	return r, true, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rows`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// ReplaceAll atomically replaces the stored dataset with rows, keeping
// their order.
func (s *Store) ReplaceAll(ctx context.Context, rows []row.Row) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace rows: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM rows`); err != nil {
		return fmt.Errorf("replace rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rows (id, position, name, status, category, value, date, tags, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace rows: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		args, err := rowArgs(r)
		if err != nil {
			return fmt.Errorf("replace rows: row %q: %w", r.ID, err)
		}
		if _, err = stmt.ExecContext(ctx, append([]any{r.ID, i}, args...)...); err != nil {
			return fmt.Errorf("replace rows: row %q: %w", r.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("replace rows: %w", err)
	}
	return nil
}

// SaveRow inserts or updates r. An existing row keeps its position; a new
// row is appended after the last one.
func (s *Store) SaveRow(ctx context.Context, r row.Row) error {
	args, err := rowArgs(r)
	if err != nil {
		return fmt.Errorf("save row: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rows (id, position, name, status, category, value, date, tags, metadata)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM rows), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			category = excluded.category,
			value = excluded.value,
			date = excluded.date,
			tags = excluded.tags,
			metadata = excluded.metadata
	`, append([]any{r.ID}, args...)...)
	if err != nil {
		return fmt.Errorf("save row: %w", err)
	}
	return nil
}

// DeleteRow removes the row with id. Deleting a missing row is a no-op.
func (s *Store) DeleteRow(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rows WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	return nil
}

// rowArgs returns the column values after id and position.
func rowArgs(r row.Row) ([]any, error) {
	tags, err := marshalTags(r.Tags)
	if err != nil {
		return nil, err
	}
	md, err := marshalMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		r.Name,
		string(r.Status),
		r.Category,
		r.Value,
		row.FormatDate(r.Date),
		tags,
		md,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (row.Row, error) {
	var (
		r                  row.Row
		status, date       string
		tagsJSON, metaJSON string
	)
	if err := sc.Scan(&r.ID, &r.Name, &status, &r.Category, &r.Value, &date, &tagsJSON, &metaJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return row.Row{}, err
		}
		return row.Row{}, fmt.Errorf("scan row: %w", err)
	}
	r.Status = row.Status(status)

	t, err := time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return row.Row{}, fmt.Errorf("scan row %q: date: %w", r.ID, err)
	}
	r.Date = t

	if r.Tags, err = unmarshalTags(tagsJSON); err != nil {
		return row.Row{}, fmt.Errorf("scan row %q: %w", r.ID, err)
	}
	if r.Metadata, err = unmarshalMetadata(metaJSON); err != nil {
		return row.Row{}, fmt.Errorf("scan row %q: %w", r.ID, err)
	}
	return r, nil
}
