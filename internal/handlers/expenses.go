package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"expense-ledger/internal/ledger"
	"expense-ledger/internal/models"

	"github.com/google/uuid"
)

type addExpenseRequest struct {
	Title    string `json:"title"`
	Amount   any    `json:"amount"`
	Category string `json:"category"`
	Date     string `json:"date"`
}

// AddExpense records an expense for the authenticated user.
func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusBadRequest, "User validation failed")
		return
	}

	var req addExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.ledger.AddExpense(r.Context(), claims.ID, ledger.NewExpense{
		Title:    req.Title,
		Amount:   integerAmount(req.Amount),
		Category: req.Category,
		Date:     req.Date,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, response{
			Status:    statusSuccess,
			Message:   "Expense insertion successful",
			ExpenseID: id.String(),
		})
	case errors.Is(err, models.ErrValidation):
		writeValidation(w, err)
	case errors.Is(err, models.ErrStorage):
		writeFailure(w, http.StatusBadRequest, "Failed to insert expense. Please try again.")
	default:
		writeInternal(w, r, err)
	}
}

// integerAmount returns v as an int64 when it is a JSON number with no
// fractional part. Anything else yields 0, which fails validation with the
// other fields.
func integerAmount(v any) int64 {
	n, ok := v.(json.Number)
	if !ok {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

type deleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

// DeleteExpense removes one of the authenticated user's expenses.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusBadRequest, "User validation failed")
		return
	}

	var req deleteExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	expenseID, err := uuid.Parse(req.ExpenseID)
	if err != nil {
		var verr models.ValidationError
		verr.Add("expenseId", "Not a valid expense")
		writeValidation(w, verr.Err())
		return
	}

	err = h.ledger.DeleteExpense(r.Context(), claims.ID, expenseID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, models.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "Expense doesn't exist")
	default:
		writeInternal(w, r, err)
	}
}

// ListExpenses returns the authenticated user's expenses, optionally
// limited by ?filter=weekly or ?filter=monthly.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusBadRequest, "User validation failed")
		return
	}

	filter, err := ledger.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeValidation(w, err)
		return
	}

	expenses, err := h.ledger.ListExpenses(r.Context(), claims.ID, filter)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, response{Status: statusSuccess, Message: "Expense get successful", Data: expenses})
	case errors.Is(err, models.ErrStorage):
		writeFailure(w, http.StatusBadRequest, "Failed to fetch expenses. Please try again.")
	default:
		writeInternal(w, r, err)
	}
}

// ListCategories returns the categories the authenticated user can use.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusBadRequest, "User validation failed")
		return
	}

	categories, err := h.ledger.ListCategories(r.Context(), claims.ID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, response{Status: statusSuccess, Message: "Category get successful", Data: categories})
	case errors.Is(err, models.ErrStorage):
		writeFailure(w, http.StatusBadRequest, "Failed to fetch categories. Please try again.")
	default:
		writeInternal(w, r, err)
	}
}
