// Package finance keeps the amortizing loans that finance building purchases.
package finance

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/tapajos/internal/economy"
)

// ErrLoanNotFound is returned when a loan id has no ledger entry.
var ErrLoanNotFound = errors.New("loan not found")

const (
	// Spread is added to the market base rate for every new loan.
	Spread = 0.015
	// Term is the fixed loan length in years.
	Term = 30
)

// Loan is a fixed-payment amortizing loan.
type Loan struct {
	ID        string  `json:"id"`
	Principal int64   `json:"principal"`
	Balance   int64   `json:"balance"`
	Rate      float64 `json:"rate"`
	Term      int     `json:"term"`
	Payment   int64   `json:"payment"`
	Hint      string  `json:"hint,omitempty"`
}

// Ledger owns every open loan, in opening order.
type Ledger struct {
	Loans []*Loan `json:"loans"`
}

// Open creates a loan at baseRate plus the spread and adds it to the ledger.
func (l *Ledger) Open(principal int64, baseRate float64, hint string) *Loan {
	rate := baseRate + Spread
	loan := &Loan{
		ID:        uuid.NewString(),
		Principal: principal,
		Balance:   principal,
		Rate:      rate,
		Term:      Term,
		Payment:   economy.AnnuityPayment(principal, rate, Term),
		Hint:      hint,
	}
	l.Loans = append(l.Loans, loan)
	return loan
}

// Find returns the loan with id.
func (l *Ledger) Find(id string) (*Loan, error) {
	for _, loan := range l.Loans {
		if loan.ID == id {
			return loan, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLoanNotFound, id)
}

// Remove drops the loan with id from the ledger.
func (l *Ledger) Remove(id string) error {
	for i, loan := range l.Loans {
		if loan.ID == id {
			l.Loans = append(l.Loans[:i], l.Loans[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrLoanNotFound, id)
}

// Settle zeroes a loan, removes it and returns the payoff that was owed.
func (l *Ledger) Settle(id string) (int64, error) {
	loan, err := l.Find(id)
	if err != nil {
		return 0, err
	}
	payoff := loan.Balance
	loan.Balance = 0
	if err := l.Remove(id); err != nil {
		return 0, err
	}
	return payoff, nil
}

// Amortize pays amount toward principal. The balance never drops below zero;
// the applied amount is returned.
func (l *Ledger) Amortize(id string, amount int64) (int64, error) {
	loan, err := l.Find(id)
	if err != nil {
		return 0, err
	}
	if amount > loan.Balance {
		amount = loan.Balance
	}
	if amount < 0 {
		amount = 0
	}
	loan.Balance -= amount
	return amount, nil
}

// Accrue runs one year of interest and scheduled principal over every loan
// with a positive balance. A payment below the interest due amortizes
// nothing and the balance does not grow.
func (l *Ledger) Accrue() (interest, principal int64) {
	for _, loan := range l.Loans {
		i, p := loan.accrue()
		interest += i
		principal += p
	}
	return interest, principal
}

func (loan *Loan) accrue() (interest, principal int64) {
	if loan.Balance <= 0 {
		return 0, 0
	}
	interest = economy.Round(float64(loan.Balance) * loan.Rate)
	principal = loan.Payment - interest
	if principal < 0 {
		principal = 0
	}
	if principal > loan.Balance {
		principal = loan.Balance
	}
	loan.Balance -= principal
	return interest, principal
}

// TotalDebt sums the outstanding balances.
func (l *Ledger) TotalDebt() int64 {
	var total int64
	for _, loan := range l.Loans {
		total += loan.Balance
	}
	return total
}
