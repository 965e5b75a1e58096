// Package withdrawal проверяет заявки на вывод денежного баланса и рассчитывает комиссию.
package withdrawal

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/validation"
)

// Причины отказа. Каждое правило проверки имеет собственную ошибку.
var (
	ErrAmountMissing  = &model.ValidationError{Field: "amount", Reason: "amount is required"}
	ErrAmountInvalid  = &model.ValidationError{Field: "amount", Reason: "amount must be a positive number"}
	ErrAmountPrecise  = &model.ValidationError{Field: "amount", Reason: "amount must have at most 2 decimal places"}
	ErrAmountTooSmall = &model.ValidationError{Field: "amount", Reason: "amount is below the minimum"}
	ErrAmountTooLarge = &model.ValidationError{Field: "amount", Reason: "amount is above the maximum"}
	ErrPhoneInvalid   = &model.ValidationError{Field: "phone", Reason: "phone must contain 11 digits starting with 7"}
)

// Policy описывает ограничения и комиссию вывода.
type Policy struct {
	Min            decimal.Decimal
	Max            decimal.Decimal
	CommissionRate decimal.Decimal
}

// Request представляет заявку на вывод в том виде, в котором её прислал пользователь.
type Request struct {
	Amount   string
	Phone    string
	BankName string
}

// Quote содержит результат проверки заявки.
type Quote struct {
	Amount          decimal.Decimal
	Commission      decimal.Decimal
	AmountToReceive decimal.Decimal
	Phone           string
	BankName        string
}

// ParseAmount разбирает сумму вывода. Сумма задаётся с точностью до копейки.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrAmountMissing
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, ErrAmountInvalid
	}
	if !amount.Equal(amount.Truncate(2)) {
		return decimal.Zero, ErrAmountPrecise
	}
	return amount, nil
}

// Prepare проверяет заявку в фиксированном порядке: сумма, минимум, максимум,
// доступный баланс, телефон. Возвращается первая нарушенная причина.
func (p Policy) Prepare(req Request, available decimal.Decimal) (Quote, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return Quote{}, err
	}
	if amount.LessThan(p.Min) {
		return Quote{}, ErrAmountTooSmall
	}
	if !p.Max.IsZero() && amount.GreaterThan(p.Max) {
		return Quote{}, ErrAmountTooLarge
	}
	if amount.GreaterThan(available) {
		return Quote{}, model.ErrInsufficientFunds
	}

	phone, ok := validation.NormalizePhone(req.Phone)
	if !ok {
		return Quote{}, ErrPhoneInvalid
	}

	commission, receive := p.Split(amount)
	return Quote{
		Amount:          amount,
		Commission:      commission,
		AmountToReceive: receive,
		Phone:           phone,
		BankName:        strings.TrimSpace(req.BankName),
	}, nil
}

// Split делит сумму на комиссию, округлённую до целого рубля, и сумму к получению.
// Сумма к получению не бывает отрицательной, а вместе с комиссией всегда даёт amount.
func (p Policy) Split(amount decimal.Decimal) (commission, receive decimal.Decimal) {
	commission = amount.Mul(p.CommissionRate).Round(0)
	if commission.GreaterThan(amount) {
		commission = amount
	}
	receive = amount.Sub(commission)
	if receive.IsNegative() {
		receive = decimal.Zero
	}
	return commission, receive
}
