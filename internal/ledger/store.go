package ledger

import (
	"context"

	"expense-ledger/internal/models"

	"github.com/google/uuid"
)

// Tx is the set of writes that make up one expense add. Every call made
// through a Tx commits or rolls back together.
type Tx interface {
	// ResolveCategory returns the id of the category named name that is
	// visible to userID, creating a user-owned one when none exists. A
	// user-owned category wins over a global one with the same name.
	ResolveCategory(ctx context.Context, userID uuid.UUID, name string) (uuid.UUID, error)
	InsertExpense(ctx context.Context, e *models.Expense) error
	LinkCategory(ctx context.Context, expenseID, categoryID uuid.UUID) error
}

// Store persists expenses and categories.
type Store interface {
	// WithinTx runs fn in a single transaction, committing when fn returns
	// nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(Tx) error) error
	// DeleteExpense removes the expense only when userID owns it. It
	// returns models.ErrNotFound when no row matched.
	DeleteExpense(ctx context.Context, userID, expenseID uuid.UUID) error
	// ListExpenses returns userID's expenses dated on or after since, or
	// all of them when since is nil, newest first.
	ListExpenses(ctx context.Context, userID uuid.UUID, since *models.Date) ([]models.ExpenseView, error)
	ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error)
}

// Publisher announces committed ledger changes.
type Publisher interface {
	Publish(ctx context.Context, ev models.ExpenseEvent) error
}
