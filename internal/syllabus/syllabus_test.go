package syllabus

import "testing"

func TestNames(t *testing.T) {
	want := []string{"SBI PO", "SBI Clerk", "IBPS PO", "IBPS Clerk", "IBPS RRB PO", "IBPS RRB Clerk"}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		query   string
		want    string
		wantErr bool
	}{
		{"SBI PO", "SBI PO", false},
		{"  sbi po ", "SBI PO", false},
		{"ibps rrb clerk", "IBPS RRB Clerk", false},
		{"UPSC", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			e, err := Lookup(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if e.Name != tt.want {
				t.Errorf("Lookup() = %q, want %q", e.Name, tt.want)
			}
		})
	}
}

func TestSBIPOPattern(t *testing.T) {
	e, err := Lookup("SBI PO")
	if err != nil {
		t.Fatal(err)
	}
	q, m := Totals(e.PrelimsPattern)
	if q != 100 || m != 100 {
		t.Errorf("prelims totals = %d questions, %d marks", q, m)
	}
	if len(e.Details) == 0 || e.Details[0].Label != "Exam Name" {
		t.Errorf("details = %+v", e.Details)
	}
	if len(e.PrelimsSyllabus) == 0 || len(e.PrelimsSyllabus[0].Topics) == 0 {
		t.Error("prelims syllabus missing topics")
	}
	if e.Interview == "" {
		t.Error("interview note missing")
	}
}
