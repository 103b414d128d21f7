package api

import (
	"net/http"

	"github.com/freewilll/potluck/ledger"
	"github.com/shopspring/decimal"
)

type createDebtRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Debtor *int             `json:"debtor"`
}

type debtUpdatedResponse struct {
	Msg  string      `json:"msg"`
	Debt ledger.Debt `json:"debt"`
}

func (api *API) getDebts(w http.ResponseWriter, r *http.Request) {
	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	debts, err := dbh.ListDebts(r.Context())
	if err != nil {
		api.fail(w, r, "debt", err)
		return
	}
	writeJSON(w, http.StatusOK, debts)
}

func (api *API) getDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	debt, err := dbh.GetDebt(r.Context(), id)
	if err != nil {
		api.fail(w, r, "debt", err)
		return
	}
	writeJSON(w, http.StatusOK, debt)
}

func (api *API) createDebt(w http.ResponseWriter, r *http.Request) {
	var d createDebtRequest
	if !decode(w, r, &d) {
		return
	}

	if d.Amount == nil || d.Debtor == nil {
		missingFields(w)
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	id, err := dbh.CreateDebt(r.Context(), ledger.Debt{AmountToPay: *d.Amount, DebtorID: *d.Debtor})
	if err != nil {
		api.fail(w, r, "debt", err)
		return
	}

	logger(r).Info("Added debt", "id", id, "debtor", *d.Debtor, "amount", *d.Amount)
	writeJSON(w, http.StatusCreated, msgResponse{Msg: "Debt was successfully created", ID: id})
}

// updateDebt changes the amount to pay of a debt
func (api *API) updateDebt(w http.ResponseWriter, r *http.Request) {
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

	if _, err := dbh.GetDebt(r.Context(), id); err != nil {
		api.fail(w, r, "debt", err)
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

	debt, err := dbh.UpdateDebtAmount(r.Context(), id, *u.Amount)
	if err != nil {
		api.fail(w, r, "debt", err)
		return
	}
	writeJSON(w, http.StatusOK, debtUpdatedResponse{Msg: "Debt was successfully updated", Debt: debt})
}

func (api *API) deleteDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	if err := dbh.DeleteDebt(r.Context(), id); err != nil {
		api.fail(w, r, "debt", err)
		return
	}

	logger(r).Info("Deleted debt", "id", id)
	writeJSON(w, http.StatusOK, msgResponse{Msg: "Debt successfully deleted"})
}
