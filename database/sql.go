package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/freewilll/potluck/ledger"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sql.Conn and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect holds what differs between the SQL engines
type dialect struct {
	name string

	// lockRow is appended to a SELECT of a single objective inside a
	// transaction to keep other writers off it until commit
	lockRow string

	sumContributions  func(ctx context.Context, q querier, objectiveID int) (decimal.Decimal, error)
	isUniqueViolation func(err error) bool
}

// SQLDatabase implements the Database interface for the SQL engines
type SQLDatabase struct {
	db      *sql.DB
	dialect dialect
	migrate func(ctx context.Context) error
}

// SQLHandle implements the Handle interface on a single pooled connection
type SQLHandle struct {
	conn    *sql.Conn
	dialect dialect
}

// Connect takes a connection from the pool for the duration of a request
func (d *SQLDatabase) Connect(ctx context.Context) (Handle, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get %s connection: %w", d.dialect.name, err)
	}
	return &SQLHandle{conn: conn, dialect: d.dialect}, nil
}

// CreateSchema runs the embedded migrations for the engine
func (d *SQLDatabase) CreateSchema(ctx context.Context) error {
	return d.migrate(ctx)
}

// Close closes the connection pool
func (d *SQLDatabase) Close() error {
	return d.db.Close()
}

// Close returns the connection to the pool
func (h *SQLHandle) Close() error {
	return h.conn.Close()
}

// inTx runs fn in a transaction, committing if it returns nil
func (h *SQLHandle) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// deleteByID runs a delete and translates "no rows" into ErrNotFound
func deleteByID(ctx context.Context, q querier, query string, id int) error {
	res, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectExpenses = `
	SELECT e.id, e.amount, e.description, m.user_id
	FROM expenses e LEFT JOIN expense_members m ON (e.id = m.expense_id)
`

// queryExpenses runs selectExpenses with an optional filter and folds the
// member rows into expenses, keeping the order of the rows
func queryExpenses(ctx context.Context, q querier, where string, args ...any) ([]ledger.Expense, error) {
	rows, err := q.QueryContext(ctx, selectExpenses+where+" ORDER BY e.id, m.position", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]ledger.Expense, 0)
	index := make(map[int]int)
	for rows.Next() {
		var id int
		var amount decimal.Decimal
		var description string
		var userID sql.NullInt64
		if err := rows.Scan(&id, &amount, &description, &userID); err != nil {
			return nil, err
		}

		i, exists := index[id]
		if !exists {
			i = len(expenses)
			index[id] = i
			expenses = append(expenses, ledger.Expense{
				ID: id, Amount: amount, Description: description, SharedBetween: make([]int, 0),
			})
		}
		if userID.Valid {
			expenses[i].SharedBetween = append(expenses[i].SharedBetween, int(userID.Int64))
		}
	}

	return expenses, rows.Err()
}

func getExpense(ctx context.Context, q querier, id int) (ledger.Expense, error) {
	expenses, err := queryExpenses(ctx, q, "WHERE e.id = $1", id)
	if err != nil {
		return ledger.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	if len(expenses) == 0 {
		return ledger.Expense{}, ErrNotFound
	}
	return expenses[0], nil
}

// ListExpenses returns all expenses in order of id
func (h *SQLHandle) ListExpenses(ctx context.Context) ([]ledger.Expense, error) {
	expenses, err := queryExpenses(ctx, h.conn, "")
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// GetExpense returns an expense with its members
func (h *SQLHandle) GetExpense(ctx context.Context, id int) (ledger.Expense, error) {
	return getExpense(ctx, h.conn, id)
}

// CreateExpense creates entries in the expenses and expense_members tables
func (h *SQLHandle) CreateExpense(ctx context.Context, e ledger.Expense) (int, error) {
	// Insert into expenses and expense_members in a transaction to ensure consistency
	var expenseID int
	err := h.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO expenses (amount, description)
			VALUES ($1, $2)
			RETURNING id
		`, e.Amount, e.Description).Scan(&expenseID)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO expense_members (expense_id, position, user_id)
			VALUES ($1, $2, $3)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for position, userID := range e.SharedBetween {
			if _, err := stmt.ExecContext(ctx, expenseID, position, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	return expenseID, nil
}

// UpdateExpenseAmount sets the amount of an expense and returns the result
func (h *SQLHandle) UpdateExpenseAmount(ctx context.Context, id int, amount decimal.Decimal) (ledger.Expense, error) {
	var expense ledger.Expense
	err := h.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE expenses SET amount = $1 WHERE id = $2", amount, id)
		if err != nil {
			return fmt.Errorf("update expense %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}

		expense, err = getExpense(ctx, tx, id)
		return err
	})
	return expense, err
}

// DeleteExpense removes an expense and its members
func (h *SQLHandle) DeleteExpense(ctx context.Context, id int) error {
	return h.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM expense_members WHERE expense_id = $1", id); err != nil {
			return fmt.Errorf("delete expense %d members: %w", id, err)
		}
		return deleteByID(ctx, tx, "DELETE FROM expenses WHERE id = $1", id)
	})
}

// ListDebts returns all debts in order of id
func (h *SQLHandle) ListDebts(ctx context.Context) ([]ledger.Debt, error) {
	rows, err := h.conn.QueryContext(ctx, "SELECT id, amount_to_pay, debtor_id FROM debts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	debts := make([]ledger.Debt, 0)
	for rows.Next() {
		var d ledger.Debt
		if err := rows.Scan(&d.ID, &d.AmountToPay, &d.DebtorID); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

func getDebt(ctx context.Context, q querier, id int) (ledger.Debt, error) {
	var d ledger.Debt
	err := q.QueryRowContext(ctx, "SELECT id, amount_to_pay, debtor_id FROM debts WHERE id = $1", id).
		Scan(&d.ID, &d.AmountToPay, &d.DebtorID)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, fmt.Errorf("get debt %d: %w", id, err)
	}
	return d, nil
}

// GetDebt returns a debt by id
func (h *SQLHandle) GetDebt(ctx context.Context, id int) (ledger.Debt, error) {
	return getDebt(ctx, h.conn, id)
}

// CreateDebt inserts a debt
func (h *SQLHandle) CreateDebt(ctx context.Context, d ledger.Debt) (int, error) {
	var id int
	err := h.conn.QueryRowContext(ctx, `
		INSERT INTO debts (amount_to_pay, debtor_id)
		VALUES ($1, $2)
		RETURNING id
	`, d.AmountToPay, d.DebtorID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create debt: %w", err)
	}
	return id, nil
}

// UpdateDebtAmount sets the amount to pay of a debt and returns the result
func (h *SQLHandle) UpdateDebtAmount(ctx context.Context, id int, amount decimal.Decimal) (ledger.Debt, error) {
	var debt ledger.Debt
	err := h.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE debts SET amount_to_pay = $1 WHERE id = $2", amount, id)
		if err != nil {
			return fmt.Errorf("update debt %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}

		debt, err = getDebt(ctx, tx, id)
		return err
	})
	return debt, err
}

// DeleteDebt removes a debt
func (h *SQLHandle) DeleteDebt(ctx context.Context, id int) error {
	return deleteByID(ctx, h.conn, "DELETE FROM debts WHERE id = $1", id)
}

// ListPayments returns all payments in order of id
func (h *SQLHandle) ListPayments(ctx context.Context) ([]ledger.Payment, error) {
	rows, err := h.conn.QueryContext(ctx, "SELECT id, amount, payer_id, receiver_id FROM payments ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]ledger.Payment, 0)
	for rows.Next() {
		var p ledger.Payment
		if err := rows.Scan(&p.ID, &p.Amount, &p.PayerID, &p.ReceiverID); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// GetPayment returns a payment by id
func (h *SQLHandle) GetPayment(ctx context.Context, id int) (ledger.Payment, error) {
	var p ledger.Payment
	err := h.conn.QueryRowContext(ctx, "SELECT id, amount, payer_id, receiver_id FROM payments WHERE id = $1", id).
		Scan(&p.ID, &p.Amount, &p.PayerID, &p.ReceiverID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("get payment %d: %w", id, err)
	}
	return p, nil
}

// CreatePayment inserts a payment
func (h *SQLHandle) CreatePayment(ctx context.Context, p ledger.Payment) (int, error) {
	var id int
	err := h.conn.QueryRowContext(ctx, `
		INSERT INTO payments (amount, payer_id, receiver_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, p.Amount, p.PayerID, p.ReceiverID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	return id, nil
}

// ListObjectives returns all objectives in order of id
func (h *SQLHandle) ListObjectives(ctx context.Context) ([]ledger.Objective, error) {
	rows, err := h.conn.QueryContext(ctx, "SELECT id, name, target_amount FROM objectives ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	defer rows.Close()

	objectives := make([]ledger.Objective, 0)
	for rows.Next() {
		var o ledger.Objective
		if err := rows.Scan(&o.ID, &o.Name, &o.TargetAmount); err != nil {
			return nil, fmt.Errorf("scan objective: %w", err)
		}
		objectives = append(objectives, o)
	}
	return objectives, rows.Err()
}

// getObjective reads an objective. lock is appended to the query.
func getObjective(ctx context.Context, q querier, id int, lock string) (ledger.Objective, error) {
	var o ledger.Objective
	err := q.QueryRowContext(ctx, "SELECT id, name, target_amount FROM objectives WHERE id = $1 "+lock, id).
		Scan(&o.ID, &o.Name, &o.TargetAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, fmt.Errorf("get objective %d: %w", id, err)
	}
	return o, nil
}

// GetObjective returns an objective by id
func (h *SQLHandle) GetObjective(ctx context.Context, id int) (ledger.Objective, error) {
	return getObjective(ctx, h.conn, id, "")
}

// CreateObjective inserts an objective. ErrDuplicate is returned if another
// objective with the same name already exists.
func (h *SQLHandle) CreateObjective(ctx context.Context, o ledger.Objective) (int, error) {
	var id int
	err := h.conn.QueryRowContext(ctx, `
		INSERT INTO objectives (name, target_amount)
		VALUES ($1, $2)
		RETURNING id
	`, o.Name, o.TargetAmount).Scan(&id)
	if err != nil {
		if h.dialect.isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("create objective: %w", err)
	}
	return id, nil
}

// UpdateObjective changes the name and/or target of an objective. The
// objective row is locked so the target can't race with contributions.
func (h *SQLHandle) UpdateObjective(ctx context.Context, id int, u ledger.ObjectiveUpdate) (ledger.Objective, error) {
	var objective ledger.Objective
	err := h.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		objective, err = getObjective(ctx, tx, id, h.dialect.lockRow)
		if err != nil {
			return err
		}

		if u.Name != nil {
			_, err := tx.ExecContext(ctx, "UPDATE objectives SET name = $1 WHERE id = $2", *u.Name, id)
			if err != nil {
				if h.dialect.isUniqueViolation(err) {
					return ErrDuplicate
				}
				return fmt.Errorf("rename objective %d: %w", id, err)
			}
			objective.Name = *u.Name
		}

		if u.TargetAmount != nil {
			contributed, err := h.dialect.sumContributions(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("sum contributions to objective %d: %w", id, err)
			}
			if err := ledger.CheckTarget(*u.TargetAmount, contributed); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, "UPDATE objectives SET target_amount = $1 WHERE id = $2", *u.TargetAmount, id)
			if err != nil {
				return fmt.Errorf("update objective %d target: %w", id, err)
			}
			objective.TargetAmount = *u.TargetAmount
		}
		return nil
	})
	return objective, err
}

// DeleteObjective removes an objective and all contributions to it
func (h *SQLHandle) DeleteObjective(ctx context.Context, id int) error {
	return h.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM contributions WHERE objective_id = $1", id); err != nil {
			return fmt.Errorf("delete objective %d contributions: %w", id, err)
		}
		return deleteByID(ctx, tx, "DELETE FROM objectives WHERE id = $1", id)
	})
}

// CreateContribution locks the objective, sums what has been contributed so
// far and inserts the contribution if it fits in the target.
func (h *SQLHandle) CreateContribution(ctx context.Context, c ledger.Contribution) (int, error) {
	var id int
	err := h.inTx(ctx, func(tx *sql.Tx) error {
		objective, err := getObjective(ctx, tx, c.ObjectiveID, h.dialect.lockRow)
		if err != nil {
			return err
		}

		contributed, err := h.dialect.sumContributions(ctx, tx, c.ObjectiveID)
		if err != nil {
			return fmt.Errorf("sum contributions to objective %d: %w", c.ObjectiveID, err)
		}

		if err := ledger.CheckContribution(objective.TargetAmount, contributed, c.AmountContributed); err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO contributions (amount_contributed, user_id, objective_id)
			VALUES ($1, $2, $3)
			RETURNING id
		`, c.AmountContributed, c.UserID, c.ObjectiveID).Scan(&id)
		if err != nil {
			return fmt.Errorf("create contribution: %w", err)
		}
		return nil
	})
	return id, err
}

// GetContributions returns the contributions to an objective in order of id
func (h *SQLHandle) GetContributions(ctx context.Context, objectiveID int) ([]ledger.Contribution, error) {
	if _, err := getObjective(ctx, h.conn, objectiveID, ""); err != nil {
		return nil, err
	}

	rows, err := h.conn.QueryContext(ctx, `
		SELECT id, amount_contributed, user_id, objective_id
		FROM contributions
		WHERE objective_id = $1
		ORDER BY id
	`, objectiveID)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	contributions := make([]ledger.Contribution, 0)
	for rows.Next() {
		var c ledger.Contribution
		if err := rows.Scan(&c.ID, &c.AmountContributed, &c.UserID, &c.ObjectiveID); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

// CreateMessage inserts a message
func (h *SQLHandle) CreateMessage(ctx context.Context, m ledger.Message) (int, error) {
	var id int
	err := h.conn.QueryRowContext(ctx, `
		INSERT INTO messages (sent_to_userid, from_userid, message)
		VALUES ($1, $2, $3)
		RETURNING id
	`, m.ToUserID, m.FromUserID, m.Message).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create message: %w", err)
	}
	return id, nil
}

// GetMessages returns the messages sent to a user in order of id
func (h *SQLHandle) GetMessages(ctx context.Context, recipientID int) ([]ledger.Message, error) {
	rows, err := h.conn.QueryContext(ctx, `
		SELECT id, sent_to_userid, from_userid, message
		FROM messages
		WHERE sent_to_userid = $1
		ORDER BY id
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("get messages for %d: %w", recipientID, err)
	}
	defer rows.Close()

	messages := make([]ledger.Message, 0)
	for rows.Next() {
		var m ledger.Message
		if err := rows.Scan(&m.ID, &m.ToUserID, &m.FromUserID, &m.Message); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
