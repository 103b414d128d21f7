package api

import (
	"net/http"

	"github.com/freewilll/potluck/ledger"
	"github.com/shopspring/decimal"
)

type createPaymentRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	Payer    *int             `json:"payer"`
	Receiver *int             `json:"receiver"`
}

func (api *API) getPayments(w http.ResponseWriter, r *http.Request) {
	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	payments, err := dbh.ListPayments(r.Context())
	if err != nil {
		api.fail(w, r, "payment", err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (api *API) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	payment, err := dbh.GetPayment(r.Context(), id)
	if err != nil {
		api.fail(w, r, "payment", err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// createPayment records a payment. Payments can't be changed afterwards.
func (api *API) createPayment(w http.ResponseWriter, r *http.Request) {
	var p createPaymentRequest
	if !decode(w, r, &p) {
		return
	}

	if p.Amount == nil || p.Payer == nil || p.Receiver == nil {
		missingFields(w)
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	payment := ledger.Payment{Amount: *p.Amount, PayerID: *p.Payer, ReceiverID: *p.Receiver}
	id, err := dbh.CreatePayment(r.Context(), payment)
	if err != nil {
		api.fail(w, r, "payment", err)
		return
	}

	logger(r).Info("Added payment", "id", id, "payer", payment.PayerID, "receiver", payment.ReceiverID, "amount", payment.Amount)
	writeJSON(w, http.StatusCreated, msgResponse{Msg: "Payment was successfully done", ID: id})
}
