package model

import "testing"

func TestSwapStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to SwapStatus
		want     bool
	}{
		{SwapStatusPending, SwapStatusAccepted, true},
		{SwapStatusPending, SwapStatusRejected, true},
		{SwapStatusPending, SwapStatusCompleted, false},
		{SwapStatusAccepted, SwapStatusCompleted, true},
		{SwapStatusAccepted, SwapStatusRejected, false},
		{SwapStatusAccepted, SwapStatusAccepted, false},
		{SwapStatusRejected, SwapStatusAccepted, false},
		{SwapStatusRejected, SwapStatusCompleted, false},
		{SwapStatusCompleted, SwapStatusPending, false},
		{"bogus", SwapStatusAccepted, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSwapStatusTerminal(t *testing.T) {
	for s, want := range map[SwapStatus]bool{
		SwapStatusPending:   false,
		SwapStatusAccepted:  false,
		SwapStatusRejected:  true,
		SwapStatusCompleted: true,
		"bogus":             false,
	} {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestParseSwapType(t *testing.T) {
	if got, err := ParseSwapType("direct_swap"); err != nil || got != SwapTypeDirect {
		t.Errorf("ParseSwapType(direct_swap) = %q, %v", got, err)
	}
	if got, err := ParseSwapType("points_redemption"); err != nil || got != SwapTypePoints {
		t.Errorf("ParseSwapType(points_redemption) = %q, %v", got, err)
	}
	if _, err := ParseSwapType("gift"); err == nil {
		t.Error("expected error for unknown swap type")
	}
}

func TestParseSwapStatus(t *testing.T) {
	if _, err := ParseSwapStatus("accepted"); err != nil {
		t.Errorf("ParseSwapStatus(accepted): %v", err)
	}
	if _, err := ParseSwapStatus("cancelled"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestSwapIsParticipant(t *testing.T) {
	s := Swap{RequesterID: 1, OwnerID: 2}
	if !s.IsParticipant(1) || !s.IsParticipant(2) || s.IsParticipant(3) {
		t.Error("IsParticipant mismatch")
	}
}
