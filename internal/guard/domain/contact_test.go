package domain

import (
	"errors"
	"testing"
	"time"
)

func TestListType_StringParseOpposite(t *testing.T) {
	if ListBlack.String() != "black" || ListWhite.String() != "white" {
		t.Fatalf("unexpected strings: %q %q", ListBlack, ListWhite)
	}
	if got := ListType(9).String(); got != "ListType(9)" {
		t.Fatalf("unknown list string = %q", got)
	}
	if ListBlack.Opposite() != ListWhite || ListWhite.Opposite() != ListBlack {
		t.Fatalf("Opposite is not an involution")
	}
	for _, s := range []string{"black", " BLACK ", "Black"} {
		if lt, err := ParseListType(s); err != nil || lt != ListBlack {
			t.Fatalf("ParseListType(%q) = %v, %v", s, lt, err)
		}
	}
	if lt, err := ParseListType("white"); err != nil || lt != ListWhite {
		t.Fatalf("ParseListType(white) = %v, %v", lt, err)
	}
	_, err := ParseListType("grey")
	if !errors.Is(err, ErrInvalidContact) {
		t.Fatalf("expected ErrInvalidContact, got %v", err)
	}
	if ListType(0).Valid() {
		t.Fatalf("zero list type must be invalid")
	}
}

func TestContactNumber_Matches(t *testing.T) {
	tests := []struct {
		name  string
		n     ContactNumber
		query string
		want  bool
	}{
		{"exact equal", Exact("5551111"), "5551111", true},
		{"exact differs", Exact("5551111"), "+15551111", false},
		{"partial suffix", Partial("1234"), "+155551234", true},
		{"partial not suffix", Partial("1234"), "+15555432", false},
		{"partial equal", Partial("1234"), "1234", true},
		{"partial longer than query", Partial("991234"), "1234", false},
		{"empty stored never matches", Partial(""), "1234", false},
		{"empty query never matches", Exact("1"), "", false},
		{"unknown mode", ContactNumber{Number: "1", Mode: 7}, "1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.n.Matches(tt.query); got != tt.want {
				t.Fatalf("Matches(%q) = %v; want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestContactEntry_Validate(t *testing.T) {
	good := ContactEntry{ID: "id", List: ListBlack, Numbers: []ContactNumber{Exact("1")}, CreatedAt: time.Now()}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]ContactEntry{
		"missing id":     {List: ListBlack, Numbers: []ContactNumber{Exact("1")}},
		"bad list":       {ID: "id", Numbers: []ContactNumber{Exact("1")}},
		"no numbers":     {ID: "id", List: ListWhite},
		"empty number":   {ID: "id", List: ListWhite, Numbers: []ContactNumber{Exact("")}},
		"bad match mode": {ID: "id", List: ListWhite, Numbers: []ContactNumber{{Number: "1", Mode: 5}}},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			if err := e.Validate(); !errors.Is(err, ErrInvalidContact) {
				t.Fatalf("expected ErrInvalidContact, got %v", err)
			}
		})
	}
}

func TestContactEntry_Helpers(t *testing.T) {
	e := ContactEntry{ID: "a", Name: "Spammer", List: ListBlack, Numbers: []ContactNumber{Exact("5551111"), Partial("999")}}

	if e.DisplayName() != "Spammer" {
		t.Fatalf("DisplayName = %q", e.DisplayName())
	}
	if (ContactEntry{Numbers: []ContactNumber{Exact("42")}}).DisplayName() != "42" {
		t.Fatalf("DisplayName should fall back to first number")
	}
	if (ContactEntry{}).DisplayName() != "" {
		t.Fatalf("DisplayName of empty entry should be empty")
	}

	for filter, want := range map[string]bool{"": true, "spam": true, "SPAM": true, "555": true, "zzz": false} {
		if got := e.ContainsText(filter); got != want {
			t.Errorf("ContainsText(%q) = %v; want %v", filter, got, want)
		}
	}

	c := e.Clone()
	c.Numbers[0].Number = "mutated"
	if e.Numbers[0].Number != "5551111" {
		t.Fatalf("Clone shares the numbers slice")
	}
}

func TestFindByList(t *testing.T) {
	entries := []ContactEntry{
		{ID: "b1", List: ListBlack},
		{ID: "w1", List: ListWhite},
		{ID: "b2", List: ListBlack},
	}
	if e, ok := FindByList(entries, ListBlack); !ok || e.ID != "b1" {
		t.Fatalf("expected first black entry, got %+v ok=%v", e, ok)
	}
	if e, ok := FindByList(entries, ListWhite); !ok || e.ID != "w1" {
		t.Fatalf("expected white entry, got %+v ok=%v", e, ok)
	}
	if _, ok := FindByList(nil, ListWhite); ok {
		t.Fatalf("expected miss on empty slice")
	}
}

func TestMatchMode_String(t *testing.T) {
	if MatchExact.String() != "exact" || MatchPartial.String() != "partial" || MatchMode(3).String() != "MatchMode(3)" {
		t.Fatalf("unexpected match mode strings")
	}
}
