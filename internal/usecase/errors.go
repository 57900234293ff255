package usecase

import (
	"errors"
	"fmt"
)

const (
	CodeNotFound         = "NOT_FOUND"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeAlreadyClaimed   = "ALREADY_CLAIMED"
	CodeNotOwned         = "NOT_OWNED"
	CodeValidation       = "VALIDATION_ERROR"
	CodeDatabase         = "DATABASE_ERROR"
)

// DomainError is an expected business outcome the caller can act on.
// Count and Cap are only set for CAPACITY_EXCEEDED.
type DomainError struct {
	Code    string
	Message string
	Count   int
	Cap     int
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code so errors.Is(err, ErrCapacityExceeded) works for any count/cap.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound         = &DomainError{Code: CodeNotFound, Message: "lead not found"}
	ErrCapacityExceeded = &DomainError{Code: CodeCapacityExceeded, Message: "lead cap reached"}
	ErrAlreadyClaimed   = &DomainError{Code: CodeAlreadyClaimed, Message: "lead not available or already claimed"}
	ErrNotOwned         = &DomainError{Code: CodeNotOwned, Message: "lead not found or not owned by you"}
)

func CapacityExceeded(count, limit int) *DomainError {
	return &DomainError{
		Code:    CodeCapacityExceeded,
		Message: fmt.Sprintf("You're at %d/%d. Release a lead first.", count, limit),
		Count:   count,
		Cap:     limit,
	}
}

func NewValidationError(msg string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: msg}
}

// TechnicalError is an infrastructure failure outside the domain taxonomy.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

func storeFailure(op string, err error) error {
	return &TechnicalError{Code: CodeDatabase, Message: op, Err: err}
}
