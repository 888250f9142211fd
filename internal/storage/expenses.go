package storage

import (
	"context"
	"database/sql"
	"fmt"

	"expense-ledger/internal/models"

	"github.com/google/uuid"
)

// InsertExpense inserts e inside the transaction.
func (t *Tx) InsertExpense(ctx context.Context, e *models.Expense) error {
	_, err := t.exec(ctx,
		`INSERT INTO expenses (id, title, amount, user_id, expense_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Amount, e.UserID, e.Date.String(), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storageErr(fmt.Sprintf("insert expense: owner %s does not exist", e.UserID), err)
		}
		return storageErr("insert expense", err)
	}
	return nil
}

// LinkCategory records that expenseID is tagged with categoryID.
func (t *Tx) LinkCategory(ctx context.Context, expenseID, categoryID uuid.UUID) error {
	_, err := t.exec(ctx,
		"INSERT INTO expenses_categories (expense_id, category_id) VALUES (?, ?)",
		expenseID, categoryID,
	)
	if err != nil {
		return storageErr("link category", err)
	}
	return nil
}

// DeleteExpense removes an expense owned by userID. Unknown ids and ids
// owned by someone else both yield models.ErrNotFound. The category link
// goes with it; the category stays.
func (db *DB) DeleteExpense(ctx context.Context, userID, expenseID uuid.UUID) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(
		"DELETE FROM expenses WHERE id = ? AND user_id = ?"), expenseID, userID)
	if err != nil {
		return storageErr("delete expense", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete expense", err)
	}
	if n == 0 {
		return fmt.Errorf("delete expense %s: %w", expenseID, models.ErrNotFound)
	}
	return nil
}

// ListExpenses retrieves userID's expenses dated on or after since (all of
// them when since is nil), ordered by date descending.
func (db *DB) ListExpenses(ctx context.Context, userID uuid.UUID, since *models.Date) ([]models.ExpenseView, error) {
	query := `SELECT e.id, e.title, e.amount, e.expense_date, c.category_name
		FROM expenses e
		LEFT JOIN expenses_categories ec ON ec.expense_id = e.id
		LEFT JOIN categories c ON c.id = ec.category_id
		WHERE e.user_id = ?`
	args := []any{userID}
	if since != nil {
		query += " AND e.expense_date >= ?"
		args = append(args, since.String())
	}
	query += " ORDER BY e.expense_date DESC, e.created_at DESC"

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, storageErr("list expenses", err)
	}
	defer rows.Close()

	expenses := []models.ExpenseView{}
	for rows.Next() {
		var (
			e        models.ExpenseView
			category sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Amount, &e.Date, &category); err != nil {
			return nil, storageErr("scan expense", err)
		}
		if category.Valid {
			e.CategoryName = &category.String
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list expenses", err)
	}
	return expenses, nil
}
