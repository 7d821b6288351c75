package translator

import (
	"reflect"
	"testing"
)

func TestParseNumberedList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "1. A\n2. B\n3. C", []string{"A", "B", "C"}},
		{"continuation", "1. Hello\nworld\n2. Bye", []string{"Hello world", "Bye"}},
		{"crlf", "1. A\r\n2. B\r\n", []string{"A", "B"}},
		{"preamble dropped", "Sure! Here you go:\n1. A\n2. B", []string{"A", "B"}},
		{"blank lines", "1. A\n\n\n2. B\n", []string{"A", "B"}},
		{"indented markers", "  1. A\n  2. B", []string{"A", "B"}},
		{"no space after marker", "1.A\n2.B", []string{"A", "B"}},
		{"out of sequence number is text", "1. A\n3. C\n2. B", []string{"A 3. C", "B"}},
		{"ten items", "1. a\n2. b\n3. c\n4. d\n5. e\n6. f\n7. g\n8. h\n9. i\n10. j",
			[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}},
		{"ten is not one", "1. a\n10. still a", []string{"a 10. still a"}},
		{"empty", "", nil},
		{"no markers", "just some text", nil},
		{"empty item", "1.\n2. B", []string{"", "B"}},
		{"keeps later dots", "1. Mr. Smith. Yes.", []string{"Mr. Smith. Yes."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNumberedList(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseNumberedList(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecoverCount(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		expected int
		want     []string
	}{
		{"short by two", []string{"A"}, 3, []string{"A", MismatchWarning, ""}},
		{"short by one", []string{"A", "B"}, 3, []string{"A", "B", MismatchWarning}},
		{"nothing parsed", nil, 2, []string{MismatchWarning, ""}},
		{"exact", []string{"A", "B"}, 2, []string{"A", "B"}},
		{"too many kept", []string{"A", "B", "C"}, 2, []string{"A", "B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecoverCount(tt.items, tt.expected)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("RecoverCount(%q, %d) = %q, want %q", tt.items, tt.expected, got, tt.want)
			}
		})
	}
}
