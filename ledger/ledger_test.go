package ledger

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// d parses a decimal, panicking on bad test input
func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCheckContribution(t *testing.T) {
	// Walk through an objective with a target of 1000 and make sure the
	// boundary is inclusive and anything past it is rejected.

	tests := []struct {
		name        string
		target      string
		contributed string
		amount      string
		want        error
	}{
		{"first contribution", "1000", "0", "600", nil},
		{"over the target", "1000", "600", "500", ErrExceedsTarget},
		{"exactly the target", "1000", "600", "400", nil},
		{"full objective", "1000", "1000", "0.01", ErrExceedsTarget},
		{"over by a cent", "10.00", "9.99", "0.02", ErrExceedsTarget},
		{"cents up to the target", "10.00", "9.99", "0.01", nil},
		{"zero amount", "1000", "0", "0", ErrNonPositive},
		{"negative amount", "1000", "600", "-100", ErrNonPositive},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := CheckContribution(d(test.target), d(test.contributed), d(test.amount))
			if !errors.Is(got, test.want) {
				t.Errorf("wanted %v, got %v", test.want, got)
			}
		})
	}
}

func TestCheckTarget(t *testing.T) {
	tests := []struct {
		target      string
		contributed string
		want        error
	}{
		{"1000", "0", nil},
		{"1000", "1000", nil},
		{"999.99", "1000", ErrTargetBelowContributed},
		{"0", "0", ErrNonPositive},
		{"-5", "0", ErrNonPositive},
	}

	for _, test := range tests {
		got := CheckTarget(d(test.target), d(test.contributed))
		if !errors.Is(got, test.want) {
			t.Errorf("CheckTarget(%s, %s): wanted %v, got %v", test.target, test.contributed, test.want, got)
		}
	}
}

func TestIsRuleViolation(t *testing.T) {
	if !IsRuleViolation(ErrExceedsTarget) {
		t.Errorf("ErrExceedsTarget should be a rule violation")
	}
	if IsRuleViolation(errors.New("connection refused")) {
		t.Errorf("driver errors should not be rule violations")
	}
}

func TestTotal(t *testing.T) {
	contributions := []Contribution{
		{AmountContributed: d("0.10")},
		{AmountContributed: d("0.20")},
		{AmountContributed: d("599.70")},
	}
	if got := Total(contributions); !got.Equal(d("600")) {
		t.Errorf("wanted 600, got %s", got)
	}
	if got := Total(nil); !got.IsZero() {
		t.Errorf("wanted 0 for no contributions, got %s", got)
	}
}

func TestAmountsMarshalAsNumbers(t *testing.T) {
	expense := Expense{ID: 1, Amount: d("50"), Description: "lunch", SharedBetween: []int{1, 2}}
	got, err := json.Marshal(expense)
	if err != nil {
		t.Fatalf("unable to marshal expense: %v", err)
	}
	wanted := `{"id":1,"amount":50,"description":"lunch","shared_between":[1,2]}`
	if string(got) != wanted {
		t.Errorf("wanted %s, got %s", wanted, got)
	}
}
