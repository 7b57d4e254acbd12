package enums

import "testing"

func TestQuoteStatusTransitions(t *testing.T) {
	cases := []struct {
		from QuoteStatus
		to   QuoteStatus
		ok   bool
	}{
		{QuoteStatusDraft, QuoteStatusSubmitted, true},
		{QuoteStatusDraft, QuoteStatusAccepted, false},
		{QuoteStatusSubmitted, QuoteStatusAccepted, true},
		{QuoteStatusSubmitted, QuoteStatusDraft, false},
		{QuoteStatusAccepted, QuoteStatusCompleted, true},
		{QuoteStatusAccepted, QuoteStatusCancelled, true},
		{QuoteStatusCompleted, QuoteStatusCancelled, false},
		{QuoteStatusCancelled, QuoteStatusDraft, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestQuoteStatusTerminal(t *testing.T) {
	if !QuoteStatusCompleted.IsTerminal() || !QuoteStatusCancelled.IsTerminal() {
		t.Fatalf("completed and cancelled must be terminal")
	}
	if QuoteStatusSubmitted.IsTerminal() {
		t.Fatalf("submitted is not terminal")
	}
}

func TestParseQuoteStatus(t *testing.T) {
	status, err := ParseQuoteStatus("accepted")
	if err != nil || status != QuoteStatusAccepted {
		t.Fatalf("expected accepted, got %q err=%v", status, err)
	}
	if _, err := ParseQuoteStatus("archived"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestParseDiscountType(t *testing.T) {
	if dt, err := ParseDiscountType("PERCENT"); err != nil || dt != DiscountTypePercent {
		t.Fatalf("expected PERCENT, got %q err=%v", dt, err)
	}
	if _, err := ParseDiscountType("percent"); err == nil {
		t.Fatalf("discount types are case sensitive")
	}
}
