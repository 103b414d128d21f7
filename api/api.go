package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/freewilll/potluck/database"
	"github.com/freewilll/potluck/ledger"
	"github.com/freewilll/potluck/lock"
	"github.com/freewilll/potluck/notify"
	"golang.org/x/sync/errgroup"
)

var shutdownTimeout = 30 * time.Second

type errorResponse struct {
	Error string `json:"error"`
}

type msgResponse struct {
	Msg string `json:"msg"`
	ID  int    `json:"id,omitempty"` // Set when a record was created
}

type healthResponse struct {
	Status string `json:"status"`
}

// API holds the config and functionality for HTTP REST/JSON API for the application
type API struct {
	db       database.Database // The authoritative data store
	locker   lock.Locker       // Serializes writes per objective
	notifier notify.Notifier   // Told about committed messages and contributions
	log      *slog.Logger
}

// NewAPI Creates a new instance of the HTTP REST/JSON API for the application
func NewAPI(db database.Database, locker lock.Locker, notifier notify.Notifier) *API {
	return &API{db: db, locker: locker, notifier: notifier, log: slog.Default()}
}

// writeJSON marshalls data into a response with content-type application/json
func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to write response", "error", err)
	}
}

// writeError writes a status code and error message
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{message})
}

// fail maps an error from the database or the ledger to a response. what
// names the record the request was about.
func (api *API) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, database.ErrDuplicate):
		logger(r).Info("Uniqueness failed", "record", what)
		writeError(w, http.StatusConflict, fmt.Sprintf("an %s with that name already exists", what))
	case ledger.IsRuleViolation(err):
		logger(r).Info("Ledger rule violated", "record", what, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		logger(r).Info("Request cancelled", "record", what)
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		logger(r).Error("Request failed", "record", what, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// connect gets a database handle for the request. On failure the response
// has been written and ok is false.
func (api *API) connect(w http.ResponseWriter, r *http.Request) (dbh database.Handle, ok bool) {
	dbh, err := api.db.Connect(r.Context())
	if err != nil {
		api.fail(w, r, "database", err)
		return nil, false
	}
	return dbh, true
}

// decode parses the JSON request body into v
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger(r).Info("Unable to decode and parse json", "error", err)
		writeError(w, http.StatusBadRequest, "unable to decode and parse json")
		return false
	}
	return true
}

// readBody reads the whole request body so it can be decoded after a
// database handle is taken
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger(r).Info("Unable to read request body", "error", err)
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return nil, false
	}
	return body, true
}

// decodeBytes parses a body read with readBody into v
func decodeBytes(w http.ResponseWriter, r *http.Request, body []byte, v any) bool {
	if err := json.Unmarshal(body, v); err != nil {
		logger(r).Info("Unable to decode and parse json", "error", err)
		writeError(w, http.StatusBadRequest, "unable to decode and parse json")
		return false
	}
	return true
}

// pathID parses an integer path parameter
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func missingFields(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "missing required fields")
}

// publish sends an event about a committed write. The write stands whether
// or not the event gets out.
func (api *API) publish(r *http.Request, makeEvent func() (notify.Event, error)) {
	e, err := makeEvent()
	if err == nil {
		err = api.notifier.Publish(r.Context(), e)
	}
	if err != nil {
		logger(r).Warn("Unable to publish event", "error", err)
	}
}

// health reports that the server is up
func (api *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Handler routes all endpoints, wrapped in CORS and request logging
func (api *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", api.health)

	mux.HandleFunc("GET /expenses", api.getExpenses)
	mux.HandleFunc("GET /expense/{id}", api.getExpense)
	mux.HandleFunc("POST /expense/create", api.createExpense)
	mux.HandleFunc("PUT /expense/update/{id}", api.updateExpense)
	mux.HandleFunc("DELETE /expense/delete/{id}", api.deleteExpense)

	mux.HandleFunc("GET /debts", api.getDebts)
	mux.HandleFunc("GET /debt/{id}", api.getDebt)
	mux.HandleFunc("POST /create/debt", api.createDebt)
	mux.HandleFunc("PUT /debt/update/{id}", api.updateDebt)
	mux.HandleFunc("DELETE /debt/delete/{id}", api.deleteDebt)

	mux.HandleFunc("GET /payments", api.getPayments)
	mux.HandleFunc("GET /payment/{id}", api.getPayment)
	mux.HandleFunc("POST /create/payment", api.createPayment)

	mux.HandleFunc("GET /objectives", api.getObjectives)
	mux.HandleFunc("GET /objective/{id}", api.getObjective)
	mux.HandleFunc("POST /create/objective", api.createObjective)
	mux.HandleFunc("PUT /objective/update/{id}", api.updateObjective)
	mux.HandleFunc("DELETE /objective/delete/{id}", api.deleteObjective)

	mux.HandleFunc("POST /objective/contributions", api.createContribution)
	mux.HandleFunc("GET /objective/{id}/contributions", api.getContributions)

	mux.HandleFunc("GET /messages/{recipient_id}", api.getMessages)
	mux.HandleFunc("POST /send/message", api.sendMessage)

	return api.logRequests(allowCORS(mux))
}

// Serve runs the API on port until ctx is done, then shuts down gracefully
func (api *API) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        api.Handler(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		api.log.Info("Listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		api.log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
