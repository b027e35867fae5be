package engine

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tapajos/internal/finance"
	"github.com/talgya/tapajos/internal/property"
)

// Sentinel errors. Every rejected action leaves the game state unchanged.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNegotiationUsed   = fmt.Errorf("%w: negotiation already held this year", property.ErrInvalidState)
	ErrGameOver          = fmt.Errorf("%w: game is over", property.ErrInvalidState)
)

// ActionError names the player action that was rejected.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return e.Action + ": " + e.Err.Error()
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func reject(action string, err error) error {
	return &ActionError{Action: action, Err: err}
}

func insufficient(cost, cash int64) error {
	return fmt.Errorf("%w: costs %s kr, cash %s kr", ErrInsufficientFunds, humanize.Comma(cost), humanize.Comma(cash))
}

// Kind classifies a rejection for presentation.
type Kind int

const (
	KindUnknown Kind = iota
	KindFunds
	KindState
	KindMissing
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindFunds:
		return "insufficient_funds"
	case KindState:
		return "invalid_state"
	case KindMissing:
		return "not_found"
	case KindInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInsufficientFunds):
		return KindFunds
	case errors.Is(err, property.ErrInvalidState):
		return KindState
	case errors.Is(err, ErrNotFound), errors.Is(err, finance.ErrLoanNotFound):
		return KindMissing
	case errors.Is(err, ErrInvalidInput):
		return KindInput
	default:
		return KindUnknown
	}
}
