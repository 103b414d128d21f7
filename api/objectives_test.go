package api

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/freewilll/potluck/ledger"
	"github.com/freewilll/potluck/notify"
	"github.com/shopspring/decimal"
)

func TestObjectiveNameIsUnique(t *testing.T) {
	h, _ := newTestAPI()
	create(t, h, "/create/objective", map[string]any{"name": "Trip", "amount": 1000})

	response := do(t, h, http.MethodPost, "/create/objective", map[string]any{"name": "Trip", "amount": 50})
	expectStatus(t, response, http.StatusConflict)

	// Renaming onto a taken name conflicts too
	id := create(t, h, "/create/objective", map[string]any{"name": "Bike", "amount": 300})
	response = do(t, h, http.MethodPut, "/objective/update/"+itoa(id), map[string]any{"name": "Trip"})
	expectStatus(t, response, http.StatusConflict)
}

func TestObjectiveTargetMustBePositive(t *testing.T) {
	h, _ := newTestAPI()
	for _, amount := range []any{0, -5} {
		response := do(t, h, http.MethodPost, "/create/objective", map[string]any{"name": "Trip", "amount": amount})
		expectStatus(t, response, http.StatusBadRequest)
	}
}

func TestContributions(t *testing.T) {
	// Contributions are accepted until they would take the total past the target

	h, notifier := newTestAPI()
	id := create(t, h, "/create/objective", map[string]any{"name": "Trip", "amount": 1000})

	tests := []struct {
		amount any
		user   int
		wanted int
	}{
		{600, 1, http.StatusCreated},
		{500, 2, http.StatusBadRequest},
		{400, 2, http.StatusCreated},
		{"0.01", 3, http.StatusBadRequest},
		{0, 3, http.StatusBadRequest},
	}

	for _, test := range tests {
		response := do(t, h, http.MethodPost, "/objective/contributions",
			map[string]any{"objective": id, "amount": test.amount, "user": test.user})
		if response.Code != test.wanted {
			t.Errorf("contributing %v: wanted %d, got %d", test.amount, test.wanted, response.Code)
		}
	}

	response := do(t, h, http.MethodGet, "/objective/"+itoa(id)+"/contributions", nil)
	expectStatus(t, response, http.StatusOK)
	var contributions []ledger.Contribution
	decodeBody(t, response, &contributions)
	if len(contributions) != 2 {
		t.Fatalf("wanted 2 contributions, got %+v", contributions)
	}
	if total := ledger.Total(contributions); !total.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("wanted total 1000, got %s", total)
	}

	wanted := []string{notify.TypeContributionAdded, notify.TypeContributionAdded}
	if got := notifier.types(); !reflect.DeepEqual(got, wanted) {
		t.Errorf("wanted events %v, got %v", wanted, got)
	}
}

func TestUpdateObjective(t *testing.T) {
	h, _ := newTestAPI()
	id := create(t, h, "/create/objective", map[string]any{"name": "Trip", "amount": 1000})
	create(t, h, "/objective/contributions", map[string]any{"objective": id, "amount": 600, "user": 1})

	// The amount sets the target
	response := do(t, h, http.MethodPut, "/objective/update/"+itoa(id), map[string]any{"amount": 800})
	expectStatus(t, response, http.StatusOK)
	var updated objectiveUpdatedResponse
	decodeBody(t, response, &updated)
	if updated.Objective.Name != "Trip" || !updated.Objective.TargetAmount.Equal(decimal.NewFromInt(800)) {
		t.Errorf("wrong updated objective %+v", updated.Objective)
	}

	// Not below what has been contributed
	response = do(t, h, http.MethodPut, "/objective/update/"+itoa(id), map[string]any{"amount": 500})
	expectStatus(t, response, http.StatusBadRequest)

	response = do(t, h, http.MethodPut, "/objective/update/"+itoa(id), map[string]any{"name": "Holiday"})
	expectStatus(t, response, http.StatusOK)

	response = do(t, h, http.MethodGet, "/objective/"+itoa(id), nil)
	expectStatus(t, response, http.StatusOK)
	var got map[string]any
	decodeBody(t, response, &got)
	wanted := map[string]any{"id": float64(id), "name": "Holiday", "target_amount": float64(800)}
	if !reflect.DeepEqual(got, wanted) {
		t.Errorf("wanted %v, got %v", wanted, got)
	}
}

func TestDeleteObjective(t *testing.T) {
	h, _ := newTestAPI()
	id := create(t, h, "/create/objective", map[string]any{"name": "Trip", "amount": 100})
	create(t, h, "/objective/contributions", map[string]any{"objective": id, "amount": 10, "user": 1})

	response := do(t, h, http.MethodDelete, "/objective/delete/"+itoa(id), nil)
	expectStatus(t, response, http.StatusOK)

	response = do(t, h, http.MethodGet, "/objective/"+itoa(id)+"/contributions", nil)
	expectStatus(t, response, http.StatusNotFound)

	// The name is free again
	create(t, h, "/create/objective", map[string]any{"name": "Trip", "amount": 100})
}
