package api

import (
	"net/http"

	"github.com/freewilll/potluck/ledger"
	"github.com/shopspring/decimal"
)

// Pointer fields tell an absent field apart from a zero one
type createExpenseRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	Description   *string          `json:"description"`
	SharedBetween []int            `json:"shared_between"`
}

type updateAmountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type expenseUpdatedResponse struct {
	Msg     string         `json:"msg"`
	Expense ledger.Expense `json:"expense"`
}

// getExpenses returns all expenses
func (api *API) getExpenses(w http.ResponseWriter, r *http.Request) {
	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	expenses, err := dbh.ListExpenses(r.Context())
	if err != nil {
		api.fail(w, r, "expense", err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

// getExpense returns a single expense
func (api *API) getExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	expense, err := dbh.GetExpense(r.Context(), id)
	if err != nil {
		api.fail(w, r, "expense", err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// createExpense adds an expense shared between a group of users
func (api *API) createExpense(w http.ResponseWriter, r *http.Request) {
	var e createExpenseRequest
	if !decode(w, r, &e) {
		return
	}

	if e.Amount == nil || e.Description == nil || e.SharedBetween == nil {
		missingFields(w)
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	expense := ledger.Expense{Amount: *e.Amount, Description: *e.Description, SharedBetween: e.SharedBetween}
	id, err := dbh.CreateExpense(r.Context(), expense)
	if err != nil {
		api.fail(w, r, "expense", err)
		return
	}

	logger(r).Info("Added expense", "id", id, "amount", expense.Amount, "shared_between", expense.SharedBetween)
	writeJSON(w, http.StatusCreated, msgResponse{Msg: "Expense was successfully created", ID: id})
}

// updateExpense changes the amount of an expense. An unknown id is reported
// before a missing amount.
func (api *API) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	// Read the body before holding a connection
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	if _, err := dbh.GetExpense(r.Context(), id); err != nil {
		api.fail(w, r, "expense", err)
		return
	}

	var u updateAmountRequest
	if !decodeBytes(w, r, body, &u) {
		return
	}
	if u.Amount == nil {
		writeError(w, http.StatusBadRequest, "missing required field: amount")
		return
	}

	expense, err := dbh.UpdateExpenseAmount(r.Context(), id, *u.Amount)
	if err != nil {
		api.fail(w, r, "expense", err)
		return
	}
	writeJSON(w, http.StatusOK, expenseUpdatedResponse{Msg: "Expense was successfully updated", Expense: expense})
}

// deleteExpense removes an expense
func (api *API) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	if err := dbh.DeleteExpense(r.Context(), id); err != nil {
		api.fail(w, r, "expense", err)
		return
	}

	logger(r).Info("Deleted expense", "id", id)
	writeJSON(w, http.StatusOK, msgResponse{Msg: "Expense successfully deleted"})
}
