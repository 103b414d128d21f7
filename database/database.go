package database

import (
	"context"
	"errors"

	"github.com/freewilll/potluck/ledger"
	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned when create request fails due to a duplicate entry
var ErrDuplicate = errors.New("duplicate")

// ErrNotFound is returned when an entry could not be found
var ErrNotFound = errors.New("not found")

// Database is an interface that hands out handles to a data store.
// It is used to configure different types of databases
type Database interface {
	Connect(ctx context.Context) (Handle, error) // Get a handle for a single request
	CreateSchema(ctx context.Context) error      // Bring the schema up to date
	Close() error                                // Release all resources
}

// Handle is an interface containing methods to manage a database handle
// and perform the ledger's queries on it. Every write is committed before
// the method returns. Lookups by id return ErrNotFound for unknown ids.
type Handle interface {
	Close() error // Release the handle

	ListExpenses(ctx context.Context) ([]ledger.Expense, error)
	GetExpense(ctx context.Context, id int) (ledger.Expense, error)
	CreateExpense(ctx context.Context, e ledger.Expense) (int, error)
	UpdateExpenseAmount(ctx context.Context, id int, amount decimal.Decimal) (ledger.Expense, error)
	DeleteExpense(ctx context.Context, id int) error

	ListDebts(ctx context.Context) ([]ledger.Debt, error)
	GetDebt(ctx context.Context, id int) (ledger.Debt, error)
	CreateDebt(ctx context.Context, d ledger.Debt) (int, error)
	UpdateDebtAmount(ctx context.Context, id int, amount decimal.Decimal) (ledger.Debt, error)
	DeleteDebt(ctx context.Context, id int) error

	ListPayments(ctx context.Context) ([]ledger.Payment, error)
	GetPayment(ctx context.Context, id int) (ledger.Payment, error)
	CreatePayment(ctx context.Context, p ledger.Payment) (int, error)

	// CreateObjective returns ErrDuplicate if the name is taken
	ListObjectives(ctx context.Context) ([]ledger.Objective, error)
	GetObjective(ctx context.Context, id int) (ledger.Objective, error)
	CreateObjective(ctx context.Context, o ledger.Objective) (int, error)
	UpdateObjective(ctx context.Context, id int, u ledger.ObjectiveUpdate) (ledger.Objective, error)
	DeleteObjective(ctx context.Context, id int) error

	// CreateContribution checks the contribution against the objective's
	// target and inserts it in one transaction, serialized per objective.
	CreateContribution(ctx context.Context, c ledger.Contribution) (int, error)
	GetContributions(ctx context.Context, objectiveID int) ([]ledger.Contribution, error)

	CreateMessage(ctx context.Context, m ledger.Message) (int, error)
	GetMessages(ctx context.Context, recipientID int) ([]ledger.Message, error)
}
