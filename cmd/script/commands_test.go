package main

import (
	"testing"
)

func TestLimitFlagsPerCommand(t *testing.T) {
	if tradesLimit != 50 {
		t.Fatalf("trades --limit default = %d, want 50", tradesLimit)
	}
	if holdersLimit != 20 {
		t.Fatalf("holders --limit default = %d, want 20", holdersLimit)
	}

	if err := tradesCmd.ParseFlags([]string{"--limit", "7"}); err != nil {
		t.Fatal(err)
	}
	if tradesLimit != 7 || holdersLimit != 20 {
		t.Fatalf("after trades --limit 7: trades=%d holders=%d", tradesLimit, holdersLimit)
	}
	if got := holdersCmd.Flags().Lookup("limit").DefValue; got != "20" {
		t.Errorf("holders --limit DefValue = %s, want 20", got)
	}
}
