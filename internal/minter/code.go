package minter

const (
	minCodeLen = 4
	maxCodeLen = 6
)

// ValidateCode checks the syntactic rules for a human-facing code: length
// 4-6 characters, ASCII letters and digits only, in that order. Pure; runs
// before any store access so malformed input never reaches storage.
func ValidateCode(code string) error {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return &InvalidCodeError{Code: code, Reason: ReasonLength}
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !isAlnum(c) {
			return &InvalidCodeError{Code: code, Reason: ReasonCharset}
		}
	}
	return nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
