package validation

import "strings"

// NormalizePhone приводит номер телефона к 11 цифрам, начинающимся с 7.
// Разделители отбрасываются, 10 цифр дополняются кодом страны, ведущая 8 заменяется на 7.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, ch := range raw {
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '+' || ch == ' ' || ch == '-' || ch == '(' || ch == ')':
		default:
			return "", false
		}
	}

	digits := b.String()
	switch {
	case len(digits) == 10:
		digits = "7" + digits
	case len(digits) == 11 && digits[0] == '8':
		digits = "7" + digits[1:]
	}

	if len(digits) != 11 || digits[0] != '7' {
		return "", false
	}
	return digits, true
}
