package textutil

import (
	"reflect"
	"testing"
)

func TestFields(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"hello world", []string{"hello", "world"}},
		{"  spaces\tand\ttabs  ", []string{"spaces", "and", "tabs"}},
		{"", []string{}},
		{"café résumé", []string{"café", "résumé"}},
		{"don't split-punctuation", []string{"don't", "split-punctuation"}},
	}
	for _, tt := range tests {
		got := Fields(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Fields(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("Hello"); got != "hello" {
		t.Errorf("Normalize = %q, want hello", got)
	}
	if got := Normalize("ÉCOLE"); got != "école" {
		t.Errorf("Normalize = %q, want école", got)
	}
}

func TestIsPrintable(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"word", true},
		{"", false},
		{"a\x00b", false},
		{string([]byte{0xff, 0xfe}), false},
	}
	for _, tt := range tests {
		if got := IsPrintable(tt.input); got != tt.want {
			t.Errorf("IsPrintable(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
