package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientPoints возвращается, если баллов недостаточно для операции.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrInsufficientFunds возвращается, если денежного баланса недостаточно для вывода.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrEmptyCart возвращается при оформлении пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound возвращается, если сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition возвращается при недопустимой смене статуса заказа.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConcurrencyConflict возвращается, если сущность изменилась параллельно.
	ErrConcurrencyConflict = errors.New("concurrent modification")
	// ErrUserExists возвращается при регистрации занятого логина.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden возвращается, если у пользователя нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrPrizeUnavailable возвращается, если приз снят с выдачи.
	ErrPrizeUnavailable = &ValidationError{Field: "prize", Reason: "prize is not available"}
)

// ValidationError описывает нарушенное правило валидации конкретного поля.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Unwrap относит любую ошибку валидации к ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// KopecksToDecimal переводит сумму в копейках в рубли.
func KopecksToDecimal(kopecks int64) decimal.Decimal {
	return decimal.New(kopecks, -2)
}

// DecimalToKopecks переводит сумму в рублях в копейки, округляя до копейки.
func DecimalToKopecks(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
