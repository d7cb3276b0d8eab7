package minter

import (
	"errors"
	"testing"
)

func TestValidateCode(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		reason InvalidCodeReason // empty means valid
	}{
		{"four chars", "DEMO", ""},
		{"six chars", "DEMO12", ""},
		{"five lowercase", "abcde", ""},
		{"digits only", "12345", ""},
		{"mixed case", "AbC9z", ""},
		{"empty", "", ReasonLength},
		{"too short", "ABC", ReasonLength},
		{"too long", "ABCDEFG", ReasonLength},
		{"space", "AB CD", ReasonCharset},
		{"hyphen", "AB-CD", ReasonCharset},
		{"underscore", "AB_CD", ReasonCharset},
		{"unicode", "ABCé", ReasonCharset},
		{"length checked first", "AB!", ReasonLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCode(tt.code)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("ValidateCode(%q) = %v, want nil", tt.code, err)
				}
				return
			}

			var invalid *InvalidCodeError
			if !errors.As(err, &invalid) {
				t.Fatalf("ValidateCode(%q) = %v, want InvalidCodeError", tt.code, err)
			}
			if invalid.Reason != tt.reason {
				t.Errorf("reason = %s, want %s", invalid.Reason, tt.reason)
			}
			if invalid.Code != tt.code {
				t.Errorf("error code = %q, want %q", invalid.Code, tt.code)
			}
		})
	}
}
