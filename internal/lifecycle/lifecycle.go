package lifecycle

import "errors"

// Market statuses. Open is the initial state; resolved and cancelled are
// terminal.
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusResolved  = "resolved"
	StatusCancelled = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid market status transition")

var transitions = map[string]map[string]bool{
	StatusOpen: {
		StatusClosed:    true,
		StatusCancelled: true,
	},
	StatusClosed: {
		// Reopening re-exposes the market to new bets at the pool odds from
		// before the close; callers log it as an unusual action.
		StatusOpen:      true,
		StatusResolved:  true,
		StatusCancelled: true,
	},
}

func Can(from, to string) bool {
	return transitions[from][to]
}

// Check returns ErrInvalidTransition unless from -> to is a legal move.
func Check(from, to string) error {
	if !Can(from, to) {
		return ErrInvalidTransition
	}
	return nil
}

func IsTerminal(status string) bool {
	return status == StatusResolved || status == StatusCancelled
}

func ValidStatus(status string) bool {
	switch status {
	case StatusOpen, StatusClosed, StatusResolved, StatusCancelled:
		return true
	}
	return false
}
