package models

import (
	"time"

	"github.com/google/uuid"
)

// Expense represents a financial expense record owned by one user.
type Expense struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Amount    int64     `json:"amount"`
	UserID    uuid.UUID `json:"userId"`
	Date      Date      `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ExpenseView is the read model returned when listing expenses. CategoryName
// is nil when the expense's category link has been orphaned.
type ExpenseView struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Amount       int64     `json:"amount"`
	Date         Date      `json:"date"`
	CategoryName *string   `json:"categoryName"`
}

// Category is a label attached to expenses. A category without an owner is
// global and shared by every user.
type Category struct {
	ID     uuid.UUID     `json:"id"`
	UserID uuid.NullUUID `json:"userId"`
	Name   string        `json:"categoryName"`
}

// IsGlobal reports whether the category is shared by all users.
func (c Category) IsGlobal() bool {
	return !c.UserID.Valid
}

// User represents a user account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Claims is the identity carried by a session token.
type Claims struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
}

// ExpenseEvent describes a committed change to the ledger.
type ExpenseEvent struct {
	Type       string    `json:"type"`
	ExpenseID  uuid.UUID `json:"expenseId"`
	UserID     uuid.UUID `json:"userId"`
	Title      string    `json:"title,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Category   string    `json:"category,omitempty"`
	Date       *Date     `json:"date,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Event types published for ledger changes.
const (
	EventExpenseCreated = "expense.created"
	EventExpenseDeleted = "expense.deleted"
)
