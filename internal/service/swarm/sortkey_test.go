package swarm

import (
	"strings"
	"testing"
)

func assertBetween(t *testing.T, prev, next string) string {
	t.Helper()
	got := KeyBetween(prev, next)
	if prev != "" && got <= prev {
		t.Fatalf("KeyBetween(%q, %q) = %q, not above prev", prev, next, got)
	}
	if next != "" && got >= next {
		t.Fatalf("KeyBetween(%q, %q) = %q, not below next", prev, next, got)
	}
	if strings.HasSuffix(got, "a") {
		t.Fatalf("KeyBetween(%q, %q) = %q ends in the zero digit", prev, next, got)
	}
	return got
}

func TestKeyBetween(t *testing.T) {
	cases := [][2]string{
		{"", ""},
		{"n", ""},
		{"", "n"},
		{"a", "b"},
		{"az", "b"},
		{"n", "nb"},
		{"abc", "abd"},
		{"z", ""},
		{"zz", ""},
		{"", "b"},
		{"yz", "z"},
	}
	for _, c := range cases {
		assertBetween(t, c[0], c[1])
	}
}

func TestKeyBetweenDeepSubdivision(t *testing.T) {
	// Repeatedly insert just below the same upper bound; every new key
	// must stay strictly ordered and the chain must not blow up.
	upper := "n"
	prev := ""
	for i := 0; i < 200; i++ {
		prev = assertBetween(t, prev, upper)
	}
	if len(prev) > 250 {
		t.Fatalf("key grew unreasonably: %d chars", len(prev))
	}
}

func TestKeyBetweenAppendChain(t *testing.T) {
	// Appending at the end over and over, as task creation does.
	prev := ""
	for i := 0; i < 200; i++ {
		prev = assertBetween(t, prev, "")
	}
}
