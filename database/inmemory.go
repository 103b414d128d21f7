package database

import (
	"context"
	"sync"

	"github.com/freewilll/potluck/ledger"
	"github.com/shopspring/decimal"
)

// InMemoryDatabase implements the Database interface for an in memory database.
// A single mutex guards all tables, which also serializes contributions.
type InMemoryDatabase struct {
	mu            sync.Mutex
	lastID        int
	expenses      []ledger.Expense
	debts         []ledger.Debt
	payments      []ledger.Payment
	objectives    []ledger.Objective
	contributions []ledger.Contribution
	messages      []ledger.Message
}

// InMemoryHandle implements the Handle interface for an in memory database
type InMemoryHandle struct {
	db *InMemoryDatabase
}

// NewInMemoryDatabase creates an instance of InMemoryDatabase
func NewInMemoryDatabase() *InMemoryDatabase {
	return new(InMemoryDatabase)
}

// Connect creates a handle for the in memory database
func (d *InMemoryDatabase) Connect(_ context.Context) (Handle, error) {
	return &InMemoryHandle{db: d}, nil
}

// CreateSchema is a noop
func (d *InMemoryDatabase) CreateSchema(_ context.Context) error { return nil }

// Close is a noop
func (d *InMemoryDatabase) Close() error { return nil }

// nextID hands out ids. Callers hold the lock.
func (d *InMemoryDatabase) nextID() int {
	d.lastID++
	return d.lastID
}

// Close is a noop
func (h *InMemoryHandle) Close() error { return nil }

// ListExpenses returns a list of all expenses
func (h *InMemoryHandle) ListExpenses(_ context.Context) ([]ledger.Expense, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	expenses := make([]ledger.Expense, len(h.db.expenses))
	for i, e := range h.db.expenses {
		expenses[i] = copyExpense(e)
	}
	return expenses, nil
}

// GetExpense returns an expense by id
func (h *InMemoryHandle) GetExpense(_ context.Context, id int) (ledger.Expense, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.expenseIndex(id)
	if i < 0 {
		return ledger.Expense{}, ErrNotFound
	}
	return copyExpense(h.db.expenses[i]), nil
}

// CreateExpense creates an expense
func (h *InMemoryHandle) CreateExpense(_ context.Context, expense ledger.Expense) (int, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	expense.ID = h.db.nextID()
	h.db.expenses = append(h.db.expenses, copyExpense(expense))
	return expense.ID, nil
}

// UpdateExpenseAmount sets the amount of an expense
func (h *InMemoryHandle) UpdateExpenseAmount(_ context.Context, id int, amount decimal.Decimal) (ledger.Expense, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.expenseIndex(id)
	if i < 0 {
		return ledger.Expense{}, ErrNotFound
	}
	h.db.expenses[i].Amount = amount
	return copyExpense(h.db.expenses[i]), nil
}

// DeleteExpense removes an expense
func (h *InMemoryHandle) DeleteExpense(_ context.Context, id int) error {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.expenseIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	h.db.expenses = append(h.db.expenses[:i], h.db.expenses[i+1:]...)
	return nil
}

func (d *InMemoryDatabase) expenseIndex(id int) int {
	for i, e := range d.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// copyExpense keeps callers from sharing the SharedBetween backing array
func copyExpense(e ledger.Expense) ledger.Expense {
	e.SharedBetween = append(make([]int, 0, len(e.SharedBetween)), e.SharedBetween...)
	return e
}

// ListDebts returns a list of all debts
func (h *InMemoryHandle) ListDebts(_ context.Context) ([]ledger.Debt, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	return append(make([]ledger.Debt, 0, len(h.db.debts)), h.db.debts...), nil
}

// GetDebt returns a debt by id
func (h *InMemoryHandle) GetDebt(_ context.Context, id int) (ledger.Debt, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.debtIndex(id)
	if i < 0 {
		return ledger.Debt{}, ErrNotFound
	}
	return h.db.debts[i], nil
}

// CreateDebt creates a debt
func (h *InMemoryHandle) CreateDebt(_ context.Context, debt ledger.Debt) (int, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	debt.ID = h.db.nextID()
	h.db.debts = append(h.db.debts, debt)
	return debt.ID, nil
}

// UpdateDebtAmount sets the amount to pay of a debt
func (h *InMemoryHandle) UpdateDebtAmount(_ context.Context, id int, amount decimal.Decimal) (ledger.Debt, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.debtIndex(id)
	if i < 0 {
		return ledger.Debt{}, ErrNotFound
	}
	h.db.debts[i].AmountToPay = amount
	return h.db.debts[i], nil
}

// DeleteDebt removes a debt
func (h *InMemoryHandle) DeleteDebt(_ context.Context, id int) error {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.debtIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	h.db.debts = append(h.db.debts[:i], h.db.debts[i+1:]...)
	return nil
}

func (d *InMemoryDatabase) debtIndex(id int) int {
	for i, debt := range d.debts {
		if debt.ID == id {
			return i
		}
	}
	return -1
}

// ListPayments returns a list of all payments
func (h *InMemoryHandle) ListPayments(_ context.Context) ([]ledger.Payment, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	return append(make([]ledger.Payment, 0, len(h.db.payments)), h.db.payments...), nil
}

// GetPayment returns a payment by id
func (h *InMemoryHandle) GetPayment(_ context.Context, id int) (ledger.Payment, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	for _, p := range h.db.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return ledger.Payment{}, ErrNotFound
}

// CreatePayment records a payment
func (h *InMemoryHandle) CreatePayment(_ context.Context, payment ledger.Payment) (int, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	payment.ID = h.db.nextID()
	h.db.payments = append(h.db.payments, payment)
	return payment.ID, nil
}

// ListObjectives returns a list of all objectives
func (h *InMemoryHandle) ListObjectives(_ context.Context) ([]ledger.Objective, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	return append(make([]ledger.Objective, 0, len(h.db.objectives)), h.db.objectives...), nil
}

// GetObjective returns an objective by id
func (h *InMemoryHandle) GetObjective(_ context.Context, id int) (ledger.Objective, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.objectiveIndex(id)
	if i < 0 {
		return ledger.Objective{}, ErrNotFound
	}
	return h.db.objectives[i], nil
}

// CreateObjective adds an objective. ErrDuplicate is returned if another
// objective with the same name already exists.
func (h *InMemoryHandle) CreateObjective(_ context.Context, objective ledger.Objective) (int, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	if h.db.nameTaken(objective.Name, 0) {
		return 0, ErrDuplicate
	}

	objective.ID = h.db.nextID()
	h.db.objectives = append(h.db.objectives, objective)
	return objective.ID, nil
}

// UpdateObjective changes the name and/or target of an objective
func (h *InMemoryHandle) UpdateObjective(_ context.Context, id int, u ledger.ObjectiveUpdate) (ledger.Objective, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.objectiveIndex(id)
	if i < 0 {
		return ledger.Objective{}, ErrNotFound
	}

	objective := h.db.objectives[i]
	if u.Name != nil {
		if h.db.nameTaken(*u.Name, id) {
			return ledger.Objective{}, ErrDuplicate
		}
		objective.Name = *u.Name
	}
	if u.TargetAmount != nil {
		if err := ledger.CheckTarget(*u.TargetAmount, h.db.contributed(id)); err != nil {
			return ledger.Objective{}, err
		}
		objective.TargetAmount = *u.TargetAmount
	}

	h.db.objectives[i] = objective
	return objective, nil
}

// DeleteObjective removes an objective together with its contributions
func (h *InMemoryHandle) DeleteObjective(_ context.Context, id int) error {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.objectiveIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	h.db.objectives = append(h.db.objectives[:i], h.db.objectives[i+1:]...)

	kept := h.db.contributions[:0]
	for _, c := range h.db.contributions {
		if c.ObjectiveID != id {
			kept = append(kept, c)
		}
	}
	h.db.contributions = kept
	return nil
}

func (d *InMemoryDatabase) objectiveIndex(id int) int {
	for i, o := range d.objectives {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// nameTaken checks if an objective other than exceptID uses name
func (d *InMemoryDatabase) nameTaken(name string, exceptID int) bool {
	for _, o := range d.objectives {
		if o.Name == name && o.ID != exceptID {
			return true
		}
	}
	return false
}

// contributionsTo returns the contributions to an objective. Callers hold the lock.
func (d *InMemoryDatabase) contributionsTo(objectiveID int) []ledger.Contribution {
	contributions := make([]ledger.Contribution, 0)
	for _, c := range d.contributions {
		if c.ObjectiveID == objectiveID {
			contributions = append(contributions, c)
		}
	}
	return contributions
}

// contributed sums the contributions to an objective
func (d *InMemoryDatabase) contributed(objectiveID int) decimal.Decimal {
	return ledger.Total(d.contributionsTo(objectiveID))
}

// CreateContribution adds a contribution if it fits in the objective's target
func (h *InMemoryHandle) CreateContribution(_ context.Context, c ledger.Contribution) (int, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	i := h.db.objectiveIndex(c.ObjectiveID)
	if i < 0 {
		return 0, ErrNotFound
	}

	target := h.db.objectives[i].TargetAmount
	if err := ledger.CheckContribution(target, h.db.contributed(c.ObjectiveID), c.AmountContributed); err != nil {
		return 0, err
	}

	c.ID = h.db.nextID()
	h.db.contributions = append(h.db.contributions, c)
	return c.ID, nil
}

// GetContributions returns the contributions to an objective
func (h *InMemoryHandle) GetContributions(_ context.Context, objectiveID int) ([]ledger.Contribution, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	if h.db.objectiveIndex(objectiveID) < 0 {
		return nil, ErrNotFound
	}

	return h.db.contributionsTo(objectiveID), nil
}

// CreateMessage stores a message
func (h *InMemoryHandle) CreateMessage(_ context.Context, m ledger.Message) (int, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	m.ID = h.db.nextID()
	h.db.messages = append(h.db.messages, m)
	return m.ID, nil
}

// GetMessages returns all messages sent to a user
func (h *InMemoryHandle) GetMessages(_ context.Context, recipientID int) ([]ledger.Message, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	messages := make([]ledger.Message, 0)
	for _, m := range h.db.messages {
		if m.ToUserID == recipientID {
			messages = append(messages, m)
		}
	}
	return messages, nil
}
