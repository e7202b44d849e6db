package models

import "testing"

func TestParseJobKind(t *testing.T) {
	cases := map[string]JobKind{
		"corto":       JobShortTerm,
		" Corto ":     JobShortTerm,
		"corto_plazo": JobShortTerm,
		"largo-plazo": JobLongTerm,
		"LARGO":       JobLongTerm,
	}
	for in, want := range cases {
		got, ok := ParseJobKind(in)
		if !ok || got != want {
			t.Errorf("ParseJobKind(%q) = %q, %v", in, got, ok)
		}
	}
	for _, in := range []string{"", "medio", "cortoplazo"} {
		if _, ok := ParseJobKind(in); ok {
			t.Errorf("ParseJobKind(%q) should fail", in)
		}
	}
}

func TestJobSnapshot_Open(t *testing.T) {
	cases := []struct {
		state     JobState
		vacancies int
		want      bool
	}{
		{JobActive, 2, true},
		{JobActive, 0, false},
		{JobPaused, 1, false},
		{JobCompleted, 3, false},
	}
	for _, tc := range cases {
		s := JobSnapshot{State: tc.state, Vacancies: tc.vacancies}
		if s.Open() != tc.want {
			t.Errorf("%s/%d: open=%v", tc.state, tc.vacancies, s.Open())
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := (Worker{FirstName: "Luis"}).DisplayName(); got != "Luis" {
		t.Fatalf("got %q", got)
	}
	if got := (Contractor{FirstName: "Ana", LastName: "Ruiz"}).DisplayName(); got != "Ana Ruiz" {
		t.Fatalf("got %q", got)
	}
}
