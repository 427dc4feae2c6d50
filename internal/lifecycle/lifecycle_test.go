package lifecycle

import "testing"

func TestTransitions(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{StatusOpen, StatusClosed, true},
		{StatusOpen, StatusCancelled, true},
		{StatusOpen, StatusResolved, false},
		{StatusOpen, StatusOpen, false},
		{StatusClosed, StatusOpen, true},
		{StatusClosed, StatusResolved, true},
		{StatusClosed, StatusCancelled, true},
		{StatusResolved, StatusOpen, false},
		{StatusResolved, StatusClosed, false},
		{StatusResolved, StatusCancelled, false},
		{StatusCancelled, StatusOpen, false},
		{StatusCancelled, StatusResolved, false},
	}
	for _, tc := range cases {
		if got := Can(tc.from, tc.to); got != tc.allowed {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestCheck(t *testing.T) {
	if err := Check(StatusOpen, StatusClosed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Check(StatusResolved, StatusOpen); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTerminalStates(t *testing.T) {
	if !IsTerminal(StatusResolved) || !IsTerminal(StatusCancelled) {
		t.Fatal("resolved and cancelled must be terminal")
	}
	if IsTerminal(StatusOpen) || IsTerminal(StatusClosed) {
		t.Fatal("open and closed must not be terminal")
	}
}
