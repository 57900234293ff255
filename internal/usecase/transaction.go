package usecase

import (
	"context"
	"errors"
	"fmt"
)

// Transaction runs operations in order and, when one fails, runs the
// compensations of the operations that already succeeded, newest first.
// Compensation i undoes operation i.
type Transaction struct {
	operations    []Operation
	compensations []Compensation
}

type Operation struct {
	Name string
	Fn   func(context.Context) error
}

type Compensation struct {
	Name string
	Fn   func(context.Context) error
}

func NewTransaction() *Transaction {
	return &Transaction{
		operations:    []Operation{},
		compensations: []Compensation{},
	}
}

func (t *Transaction) AddOperation(name string, fn func(context.Context) error) {
	t.operations = append(t.operations, Operation{name, fn})
}

func (t *Transaction) AddCompensation(name string, fn func(context.Context) error) {
	t.compensations = append(t.compensations, Compensation{name, fn})
}

// Execute returns the failing operation's error (wrapped) joined with any
// compensation failures.
func (t *Transaction) Execute(ctx context.Context) error {
	for i, op := range t.operations {
		if err := op.Fn(ctx); err != nil {
			opErr := &OperationError{Name: op.Name, Err: err}
			if rbErr := t.rollback(ctx, i); rbErr != nil {
				return errors.Join(opErr, rbErr)
			}
			return opErr
		}
	}
	return nil
}

func (t *Transaction) rollback(ctx context.Context, failedAtIndex int) error {
	var errs []error
	for i := failedAtIndex - 1; i >= 0; i-- {
		if i >= len(t.compensations) {
			continue
		}
		comp := t.compensations[i]
		if comp.Fn == nil {
			continue
		}
		if err := comp.Fn(ctx); err != nil {
			errs = append(errs, &CompensationError{Name: comp.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// OperationError names the operation that stopped the transaction.
type OperationError struct {
	Name string
	Err  error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation '%s' failed: %v", e.Name, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// CompensationError means a rollback step failed and state may be inconsistent.
type CompensationError struct {
	Name string
	Err  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation '%s' failed: %v", e.Name, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}
