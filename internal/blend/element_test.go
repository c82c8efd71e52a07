package blend

import (
	"testing"
)

func TestParseElements(t *testing.T) {
	got, err := ParseElements(" a, C ,,d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Element{ElementA, ElementC, ElementD}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if _, err := ParseElements("A,X"); err == nil {
		t.Fatalf("expected an error for an unknown element")
	}
}

func TestCompositionHelpers(t *testing.T) {
	c := Composition{ElementD: 10, ElementA: 40, ElementB: 0}

	if total := c.Total(); total != 50 {
		t.Fatalf("expected total 50, got %g", total)
	}
	if present := c.Present(); len(present) != 2 || present[0] != ElementA || present[1] != ElementD {
		t.Fatalf("unexpected present elements %v", present)
	}
	if s := c.String(); s != "A=40 B=0 D=10" {
		t.Fatalf("unexpected string %q", s)
	}

	clone := c.Clone()
	clone[ElementA] = 1
	if c[ElementA] != 40 {
		t.Fatalf("clone aliases the original")
	}

	var empty Composition
	if empty.Clone() != nil {
		t.Fatalf("expected the clone of nil to be nil")
	}
	if full := empty.Full(); len(full) != len(Elements) {
		t.Fatalf("expected %d entries, got %d", len(Elements), len(full))
	}
}
