package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"expense-ledger/internal/models"

	"github.com/google/uuid"
)

// User-owned rows sort before global ones with the same name.
const lookupCategoryQuery = `SELECT id FROM categories
	WHERE category_name = ? AND (user_id = ? OR user_id IS NULL)
	ORDER BY CASE WHEN user_id IS NULL THEN 1 ELSE 0 END
	LIMIT 1`

// ResolveCategory returns the category named name visible to userID,
// creating a user-owned one when neither the user nor the globals have it.
//
// Two transactions creating the same name race on the unique key. The loser
// inserts nothing and reads back the winner's row, so callers never fail
// because of the race.
func (t *Tx) ResolveCategory(ctx context.Context, userID uuid.UUID, name string) (uuid.UUID, error) {
	id, err := t.lookupCategory(ctx, userID, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, storageErr("look up category", err)
	}

	newID := uuid.New()
	res, err := t.exec(ctx,
		"INSERT INTO categories (id, user_id, category_name) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		newID, userID, name,
	)
	switch {
	case err == nil:
		n, err := res.RowsAffected()
		if err != nil {
			return uuid.Nil, storageErr("create category", err)
		}
		if n == 1 {
			slog.DebugContext(ctx, "Created category", "category_id", newID, "user_id", userID, "name", name)
			return newID, nil
		}
	case !isUniqueViolation(err):
		return uuid.Nil, storageErr("create category", err)
	}

	id, err = t.lookupCategory(ctx, userID, name)
	if err != nil {
		return uuid.Nil, storageErr("re-read category", err)
	}
	slog.DebugContext(ctx, "Category created concurrently, reusing", "category_id", id, "user_id", userID, "name", name)
	return id, nil
}

func (t *Tx) lookupCategory(ctx context.Context, userID uuid.UUID, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := t.queryRow(ctx, lookupCategoryQuery, name, userID).Scan(&id)
	return id, err
}

// ListCategories returns the categories visible to userID: their own first,
// then the globals, each group ordered by name.
func (db *DB) ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`SELECT id, user_id, category_name FROM categories
		WHERE user_id = ? OR user_id IS NULL
		ORDER BY CASE WHEN user_id IS NULL THEN 1 ELSE 0 END, category_name`), userID)
	if err != nil {
		return nil, storageErr("list categories", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name); err != nil {
			return nil, storageErr("scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list categories", err)
	}
	return categories, nil
}
