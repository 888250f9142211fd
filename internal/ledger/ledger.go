// Package ledger records, deletes and lists a user's expenses. Adding an
// expense resolves its category, inserts the expense and links the two in a
// single unit of work.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"expense-ledger/internal/models"

	"github.com/google/uuid"
)

const (
	minTitleLength    = 3
	minCategoryLength = 3
)

// Filter selects a date window for ListExpenses.
type Filter string

const (
	FilterAll     Filter = ""
	FilterWeekly  Filter = "weekly"
	FilterMonthly Filter = "monthly"
)

// ParseFilter validates a filter query value.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case FilterAll, FilterWeekly, FilterMonthly:
		return f, nil
	}
	verr := &models.ValidationError{}
	verr.Add("filter", `must be "weekly" or "monthly"`)
	return "", verr
}

// NewExpense is the caller-supplied part of an expense.
type NewExpense struct {
	Title    string
	Amount   int64
	Category string
	Date     string
}

// Validate reports every invalid field of e.
func (e NewExpense) Validate() error {
	var verr models.ValidationError
	if utf8.RuneCountInString(strings.TrimSpace(e.Title)) < minTitleLength {
		verr.Add("title", fmt.Sprintf("must be at least %d characters", minTitleLength))
	}
	if e.Amount <= 0 {
		verr.Add("amount", "must be a positive integer")
	}
	if utf8.RuneCountInString(strings.TrimSpace(e.Category)) < minCategoryLength {
		verr.Add("category", fmt.Sprintf("must be at least %d characters", minCategoryLength))
	}
	if _, err := models.ParseDate(e.Date); err != nil {
		verr.Add("date", "must be a valid date in YYYY-MM-DD format")
	}
	return verr.Err()
}

// Ledger is the expense service. It holds no per-request state.
type Ledger struct {
	store     Store
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for timestamps and date windows.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithPublisher announces committed changes through p.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a Ledger backed by store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddExpense validates in and records it for userID, returning the new
// expense id. The category is resolved or created in the same transaction
// as the expense, so a failure at any step leaves no partial rows behind.
func (l *Ledger) AddExpense(ctx context.Context, userID uuid.UUID, in NewExpense) (uuid.UUID, error) {
	if err := in.Validate(); err != nil {
		return uuid.Nil, err
	}
	date, _ := models.ParseDate(in.Date)

	now := l.now().UTC()
	expense := &models.Expense{
		ID:        uuid.New(),
		Title:     in.Title,
		Amount:    in.Amount,
		UserID:    userID,
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := l.store.WithinTx(ctx, func(tx Tx) error {
		categoryID, err := tx.ResolveCategory(ctx, userID, in.Category)
		if err != nil {
			return err
		}
		if err := tx.InsertExpense(ctx, expense); err != nil {
			return err
		}
		return tx.LinkCategory(ctx, expense.ID, categoryID)
	})
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to add expense", "user_id", userID, "error", err)
		return uuid.Nil, asStorage("add expense", err)
	}

	l.logger.InfoContext(ctx, "Expense added", "expense_id", expense.ID, "user_id", userID)
	l.publish(ctx, models.ExpenseEvent{
		Type:       models.EventExpenseCreated,
		ExpenseID:  expense.ID,
		UserID:     userID,
		Title:      expense.Title,
		Amount:     expense.Amount,
		Category:   in.Category,
		Date:       &date,
		OccurredAt: now,
	})
	return expense.ID, nil
}

// DeleteExpense removes expenseID when userID owns it. Unknown and foreign
// ids both report models.ErrNotFound.
func (l *Ledger) DeleteExpense(ctx context.Context, userID, expenseID uuid.UUID) error {
	if err := l.store.DeleteExpense(ctx, userID, expenseID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			l.logger.WarnContext(ctx, "Expense not found for delete", "expense_id", expenseID, "user_id", userID)
			return err
		}
		l.logger.ErrorContext(ctx, "Failed to delete expense", "expense_id", expenseID, "error", err)
		return asStorage("delete expense", err)
	}

	l.logger.InfoContext(ctx, "Expense deleted", "expense_id", expenseID, "user_id", userID)
	l.publish(ctx, models.ExpenseEvent{
		Type:       models.EventExpenseDeleted,
		ExpenseID:  expenseID,
		UserID:     userID,
		OccurredAt: l.now().UTC(),
	})
	return nil
}

// ListExpenses returns userID's expenses inside the window selected by
// filter, newest first.
func (l *Ledger) ListExpenses(ctx context.Context, userID uuid.UUID, filter Filter) ([]models.ExpenseView, error) {
	since, err := l.since(filter)
	if err != nil {
		return nil, err
	}

	expenses, err := l.store.ListExpenses(ctx, userID, since)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to list expenses", "user_id", userID, "error", err)
		return nil, asStorage("list expenses", err)
	}
	return expenses, nil
}

// ListCategories returns the categories userID can tag expenses with.
func (l *Ledger) ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	categories, err := l.store.ListCategories(ctx, userID)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to list categories", "user_id", userID, "error", err)
		return nil, asStorage("list categories", err)
	}
	return categories, nil
}

// since returns the earliest date included by filter, or nil for no bound.
// Both windows include their boundary day.
func (l *Ledger) since(filter Filter) (*models.Date, error) {
	today := models.DateOf(l.now())
	var d models.Date
	switch filter {
	case FilterAll:
		return nil, nil
	case FilterWeekly:
		d = today.AddDays(-7)
	case FilterMonthly:
		d = today.MonthBefore()
	default:
		_, err := ParseFilter(string(filter))
		return nil, err
	}
	return &d, nil
}

func (l *Ledger) publish(ctx context.Context, ev models.ExpenseEvent) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, ev); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish expense event", "type", ev.Type, "expense_id", ev.ExpenseID, "error", err)
	}
}

// asStorage leaves classified errors alone and marks everything else as a
// storage failure.
func asStorage(op string, err error) error {
	for _, known := range []error{models.ErrStorage, models.ErrNotFound, models.ErrConflict, models.ErrValidation} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStorage, err)
}
