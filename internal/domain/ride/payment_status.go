package ride

import (
	"errors"
	"strings"
)

// PaymentStatus tracks settlement of the customer fare.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentVoided  PaymentStatus = "VOIDED"
)

var ErrInvalidPaymentStatus = errors.New("invalid payment status")

// ParsePaymentStatus normalizes (uppercases+trims) and validates a payment status string.
func ParsePaymentStatus(in string) (PaymentStatus, error) {
	ps := PaymentStatus(strings.ToUpper(strings.TrimSpace(in)))
	if ps.Valid() {
		return ps, nil
	}
	return "", ErrInvalidPaymentStatus
}

// Valid reports whether the payment status is one of the allowed constants.
func (status PaymentStatus) Valid() bool {
	switch status {
	case PaymentPending, PaymentPaid, PaymentVoided:
		return true
	default:
		return false
	}
}

// String returns the string representation of the PaymentStatus.
func (status PaymentStatus) String() string {
	return string(status)
}
