package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

// ErrExceedsTarget is returned when a contribution would push an objective
// past its target amount
var ErrExceedsTarget = errors.New("contribution exceeds target amount")

// ErrTargetBelowContributed is returned when an objective's target is lowered
// below what has already been contributed to it
var ErrTargetBelowContributed = errors.New("target amount is below the amount already contributed")

// ErrNonPositive is returned when a target or contribution amount is zero or negative
var ErrNonPositive = errors.New("amount must be positive")

// IsRuleViolation reports whether err is one of the ledger's business rule errors
func IsRuleViolation(err error) bool {
	return errors.Is(err, ErrExceedsTarget) ||
		errors.Is(err, ErrTargetBelowContributed) ||
		errors.Is(err, ErrNonPositive)
}

// Expense is a single expense, shared between a group of users
type Expense struct {
	ID            int             `json:"id"`             // Id of the expense
	Amount        decimal.Decimal `json:"amount"`         // Total amount of the expense
	Description   string          `json:"description"`    // Free text description
	SharedBetween []int           `json:"shared_between"` // User ids sharing the expense, in the order given
}

// Debt is an amount a user owes
type Debt struct {
	ID          int             `json:"id"`
	AmountToPay decimal.Decimal `json:"amount_to_pay"`
	DebtorID    int             `json:"debtor"`
}

// Payment is money paid by one user to another. Payments are never changed
// once recorded.
type Payment struct {
	ID         int             `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	PayerID    int             `json:"payer"`
	ReceiverID int             `json:"receiver"`
}

// Objective is a savings target. The sum of all contributions to an objective
// never exceeds TargetAmount.
type Objective struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
}

// ObjectiveUpdate holds the optional fields of an objective update. Nil
// fields are left alone.
type ObjectiveUpdate struct {
	Name         *string
	TargetAmount *decimal.Decimal
}

// Contribution is an amount a user has put toward an objective
type Contribution struct {
	ID                int             `json:"id"`
	AmountContributed decimal.Decimal `json:"amount_contributed"`
	UserID            int             `json:"user"`
	ObjectiveID       int             `json:"objective"`
}

// Message is a direct message between two users
type Message struct {
	ID         int    `json:"id"`
	ToUserID   int    `json:"sent_to_userid"`
	FromUserID int    `json:"from_userid"`
	Message    string `json:"message"`
}

// CheckTarget validates a new or updated target amount against the amount
// already contributed to the objective.
func CheckTarget(target, contributed decimal.Decimal) error {
	if !target.IsPositive() {
		return ErrNonPositive
	}
	if contributed.GreaterThan(target) {
		return ErrTargetBelowContributed
	}
	return nil
}

// CheckContribution decides whether amount may be added to an objective that
// already holds contributed out of target. Reaching the target exactly is
// allowed. This is the heart of the application.
func CheckContribution(target, contributed, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositive
	}
	if contributed.Add(amount).GreaterThan(target) {
		return ErrExceedsTarget
	}
	return nil
}

// Total sums the amounts of a slice of contributions
func Total(contributions []Contribution) decimal.Decimal {
	total := decimal.Zero
	for _, c := range contributions {
		total = total.Add(c.AmountContributed)
	}
	return total
}
