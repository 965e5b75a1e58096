// Package validation содержит функции валидации входных данных.
package validation

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/joeljunstrom/go-luhn"
)

// Номер заказа без контрольной цифры состоит из даты yymmdd и шести случайных цифр.
const orderNumberBodyLen = 12

// IsValidOrderNumber проверяет формат номера заказа и контрольную цифру по алгоритму Луна.
func IsValidOrderNumber(number string) bool {
	if len(number) != orderNumberBodyLen+1 {
		return false
	}
	for _, ch := range number {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return luhn.Valid(number)
}

// CheckDigit подбирает контрольную цифру Луна для строки цифр.
func CheckDigit(body string) (byte, error) {
	for d := byte('0'); d <= '9'; d++ {
		if luhn.Valid(body + string(d)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("no check digit for %q", body)
}

// NewOrderNumber генерирует номер заказа: дата оформления, шесть случайных цифр и контрольная цифра.
func NewOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}

	body := now.UTC().Format("060102") + fmt.Sprintf("%06d", n.Int64())
	d, err := CheckDigit(body)
	if err != nil {
		return "", err
	}
	return body + string(d), nil
}
