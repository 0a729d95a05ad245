package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aimaster/apiserver/internal/db"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// tableSpec describes how an owned entity maps onto its table.
// owner_id is handled by ownedTable and must not appear in the write columns.
type tableSpec[T any] struct {
	Table   string
	Columns []string
	Scan    func(rowScanner) (T, error)

	InsertColumns []string
	InsertValues  func(T) ([]any, error)
	UpdateColumns []string
	UpdateValues  func(T) ([]any, error)
}

// ownedTable runs every read and write for an owned entity. Each statement it
// issues filters on owner_id, so a row owned by another user behaves exactly
// like a missing one.
type ownedTable[T any] struct {
	spec tableSpec[T]

	listQuery   string
	getQuery    string
	lockQuery   string
	insertQuery string
	updateQuery string
	deleteQuery string
}

func newOwnedTable[T any](spec tableSpec[T]) *ownedTable[T] {
	cols := strings.Join(spec.Columns, ", ")

	insertCols := append([]string{"owner_id"}, spec.InsertColumns...)
	placeholders := make([]string, len(insertCols))
	for i := range insertCols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := make([]string, len(spec.UpdateColumns))
	for i, col := range spec.UpdateColumns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	n := len(spec.UpdateColumns)

	return &ownedTable[T]{
		spec:      spec,
		listQuery: fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = $1 ORDER BY id", cols, spec.Table),
		getQuery:  fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND owner_id = $2", cols, spec.Table),
		lockQuery: fmt.Sprintf("SELECT id FROM %s WHERE id = $1 AND owner_id = $2 FOR SHARE", spec.Table),
		insertQuery: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			spec.Table, strings.Join(insertCols, ", "), strings.Join(placeholders, ", "), cols),
		updateQuery: fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d AND owner_id = $%d RETURNING %s",
			spec.Table, strings.Join(sets, ", "), n+1, n+2, cols),
		deleteQuery: fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND owner_id = $2", spec.Table),
	}
}

func (t *ownedTable[T]) list(ctx context.Context, q db.DBTX, ownerID int) ([]T, error) {
	rows, err := q.QueryContext(ctx, t.listQuery, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := t.spec.Scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *ownedTable[T]) get(ctx context.Context, q db.DBTX, ownerID, id int, forUpdate bool) (T, error) {
	query := t.getQuery
	if forUpdate {
		query += " FOR UPDATE"
	}
	return t.one(q.QueryRowContext(ctx, query, id, ownerID))
}

// lock takes a share lock on an owned row so it cannot be deleted before the
// surrounding transaction ends.
func (t *ownedTable[T]) lock(ctx context.Context, q db.DBTX, ownerID, id int) error {
	var locked int
	err := q.QueryRowContext(ctx, t.lockQuery, id, ownerID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// findBy returns the first owned row whose column equals value. column must
// be a constant from the calling repository, never user input.
func (t *ownedTable[T]) findBy(ctx context.Context, q db.DBTX, ownerID int, column string, value any) (T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = $1 AND %s = $2 ORDER BY id LIMIT 1",
		strings.Join(t.spec.Columns, ", "), t.spec.Table, column)
	return t.one(q.QueryRowContext(ctx, query, ownerID, value))
}

func (t *ownedTable[T]) insert(ctx context.Context, q db.DBTX, ownerID int, item T) (T, error) {
	values, err := t.spec.InsertValues(item)
	if err != nil {
		var zero T
		return zero, err
	}
	args := append([]any{ownerID}, values...)
	created, err := t.one(q.QueryRowContext(ctx, t.insertQuery, args...))
	if err != nil {
		return created, mapWriteError(err)
	}
	return created, nil
}

func (t *ownedTable[T]) update(ctx context.Context, q db.DBTX, ownerID, id int, item T) (T, error) {
	values, err := t.spec.UpdateValues(item)
	if err != nil {
		var zero T
		return zero, err
	}
	args := append(values, id, ownerID)
	updated, err := t.one(q.QueryRowContext(ctx, t.updateQuery, args...))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return updated, mapWriteError(err)
	}
	return updated, err
}

func (t *ownedTable[T]) delete(ctx context.Context, q db.DBTX, ownerID, id int) error {
	result, err := q.ExecContext(ctx, t.deleteQuery, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *ownedTable[T]) one(row rowScanner) (T, error) {
	item, err := t.spec.Scan(row)
	if err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return item, nil
}
