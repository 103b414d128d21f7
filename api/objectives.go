package api

import (
	"net/http"

	"github.com/freewilll/potluck/ledger"
	"github.com/freewilll/potluck/lock"
	"github.com/freewilll/potluck/notify"
	"github.com/shopspring/decimal"
)

type createObjectiveRequest struct {
	Name   *string          `json:"name"`
	Amount *decimal.Decimal `json:"amount"`
}

// Both fields are optional on update
type updateObjectiveRequest struct {
	Name   *string          `json:"name"`
	Amount *decimal.Decimal `json:"amount"`
}

type objectiveUpdatedResponse struct {
	Msg       string           `json:"msg"`
	Objective ledger.Objective `json:"objective"`
}

type createContributionRequest struct {
	Objective *int             `json:"objective"`
	Amount    *decimal.Decimal `json:"amount"`
	User      *int             `json:"user"`
}

func (api *API) getObjectives(w http.ResponseWriter, r *http.Request) {
	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	objectives, err := dbh.ListObjectives(r.Context())
	if err != nil {
		api.fail(w, r, "objective", err)
		return
	}
	writeJSON(w, http.StatusOK, objectives)
}

func (api *API) getObjective(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	objective, err := dbh.GetObjective(r.Context(), id)
	if err != nil {
		api.fail(w, r, "objective", err)
		return
	}
	writeJSON(w, http.StatusOK, objective)
}

// createObjective adds a savings objective. Names are unique; a 409
// (conflict) is returned if the name is taken.
func (api *API) createObjective(w http.ResponseWriter, r *http.Request) {
	var o createObjectiveRequest
	if !decode(w, r, &o) {
		return
	}

	if o.Name == nil || o.Amount == nil {
		missingFields(w)
		return
	}
	if err := ledger.CheckTarget(*o.Amount, decimal.Zero); err != nil {
		api.fail(w, r, "objective", err)
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	id, err := dbh.CreateObjective(r.Context(), ledger.Objective{Name: *o.Name, TargetAmount: *o.Amount})
	if err != nil {
		api.fail(w, r, "objective", err)
		return
	}

	logger(r).Info("Added objective", "id", id, "name", *o.Name, "target_amount", *o.Amount)
	writeJSON(w, http.StatusCreated, msgResponse{Msg: "Objective was successfully created", ID: id})
}

// updateObjective renames an objective and/or changes its target. A target
// change holds the objective's lock like a contribution does.
func (api *API) updateObjective(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var u updateObjectiveRequest
	if !decode(w, r, &u) {
		return
	}

	if u.Amount != nil {
		unlock, err := api.locker.Lock(r.Context(), lock.ObjectiveKey(id))
		if err != nil {
			api.fail(w, r, "objective", err)
			return
		}
		defer unlock()
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	objective, err := dbh.UpdateObjective(r.Context(), id, ledger.ObjectiveUpdate{Name: u.Name, TargetAmount: u.Amount})
	if err != nil {
		api.fail(w, r, "objective", err)
		return
	}
	writeJSON(w, http.StatusOK, objectiveUpdatedResponse{Msg: "Objective was successfully updated", Objective: objective})
}

// deleteObjective removes an objective and every contribution to it
func (api *API) deleteObjective(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	if err := dbh.DeleteObjective(r.Context(), id); err != nil {
		api.fail(w, r, "objective", err)
		return
	}

	logger(r).Info("Deleted objective", "id", id)
	writeJSON(w, http.StatusOK, msgResponse{Msg: "Objective successfully deleted"})
}

// createContribution adds a user's contribution to an objective, provided
// the total stays within the objective's target amount
func (api *API) createContribution(w http.ResponseWriter, r *http.Request) {
	var c createContributionRequest
	if !decode(w, r, &c) {
		return
	}

	if c.Objective == nil || c.Amount == nil || c.User == nil {
		missingFields(w)
		return
	}

	// Wait for the lock before taking a connection from the pool
	unlock, err := api.locker.Lock(r.Context(), lock.ObjectiveKey(*c.Objective))
	if err != nil {
		api.fail(w, r, "objective", err)
		return
	}
	defer unlock()

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	contribution := ledger.Contribution{AmountContributed: *c.Amount, UserID: *c.User, ObjectiveID: *c.Objective}
	contribution.ID, err = dbh.CreateContribution(r.Context(), contribution)
	if err != nil {
		api.fail(w, r, "objective", err)
		return
	}

	logger(r).Info("Added contribution",
		"id", contribution.ID,
		"objective", contribution.ObjectiveID,
		"user", contribution.UserID,
		"amount", contribution.AmountContributed)
	api.publish(r, func() (notify.Event, error) { return notify.ContributionAdded(contribution) })

	writeJSON(w, http.StatusCreated, msgResponse{Msg: "Contribution was successfully added", ID: contribution.ID})
}

// getContributions lists the contributions to an objective
func (api *API) getContributions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	contributions, err := dbh.GetContributions(r.Context(), id)
	if err != nil {
		api.fail(w, r, "objective", err)
		return
	}
	writeJSON(w, http.StatusOK, contributions)
}
