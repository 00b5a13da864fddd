package common

import (
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"0", "0", false},
		{"1000000000000000000", "1000000000000000000", false},
		{" 42 ", "42", false},
		{"0x2a", "42", false},
		{"0X2A", "42", false},
		{"", "", true},
		{"abc", "", true},
		{"-5", "", true},
		{"1.5", "", true},
	}

	for _, tt := range tests {
		v, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error, got %s", tt.in, v.String())
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if v.String() != tt.expected {
			t.Errorf("ParseAmount(%q) = %s, expected %s", tt.in, v.String(), tt.expected)
		}
	}
}

func TestParseOptionalAmount(t *testing.T) {
	v, err := ParseOptionalAmount("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Sign() != 0 {
		t.Errorf("empty input should parse to zero, got %s", v.String())
	}

	if _, err := ParseOptionalAmount("xyz"); err == nil {
		t.Error("expected error for invalid optional amount")
	}
}
