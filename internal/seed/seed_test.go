package seed

import "testing"

func TestFindIsExactAndIsolated(t *testing.T) {
	r, ok := Find("REQ-2024-001")
	if !ok {
		t.Fatalf("seed record missing")
	}
	if r.Status != "completed" || r.Progress != 100 {
		t.Fatalf("unexpected record: %+v", r)
	}
	r.Timeline[0].Status = "mutated"
	again, _ := Find("REQ-2024-001")
	if again.Timeline[0].Status != "Submitted" {
		t.Fatalf("seed data was mutated through a returned copy")
	}
	if _, ok := Find("req-2024-001"); ok {
		t.Fatalf("lookup must be case-sensitive")
	}
	if len(Requests()) != 2 {
		t.Fatalf("expected 2 seed records")
	}
}

func TestSeedTimelinesStartAtSubmission(t *testing.T) {
	for _, r := range Requests() {
		if len(r.Timeline) == 0 || r.Timeline[0].Date != r.SubmittedAt {
			t.Fatalf("%s: first timeline entry must match submittedAt", r.ReferenceID)
		}
	}
}
