package nutrition

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownQualifier = errors.New("unknown qualifier")
	ErrNotConverged     = errors.New("qualifier reduction did not converge")
	ErrNoQualifiers     = errors.New("no qualifiers to reduce")
	ErrInvalidRule      = errors.New("invalid qualifier rule")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrEmptyFoodName    = errors.New("food name is required")
	ErrEmptyFamily      = errors.New("family name is required")
	ErrEmptyMeal        = errors.New("meal is empty")
	ErrNotEnoughFoods   = errors.New("not enough foods selected")
	ErrInvalidDays      = errors.New("number of days must be at least 1")
	ErrFoodNotInMeal    = errors.New("food is not in the meal")
	ErrZeroQuantity     = errors.New("total quantity is zero")

	// Store-level failures. Implementations of FoodDataStore wrap these.
	ErrFoodNotFound    = errors.New("food not found")
	ErrFoodExists      = errors.New("food already exists")
	ErrFoodReferenced  = errors.New("food is referenced by a group or portion")
	ErrPortionNotFound = errors.New("portion not found")
	ErrNotComposite    = errors.New("food is not a group")

	ErrPathologyNotFound = errors.New("pathology not found")
)

// UserError is a failure caused by caller input. The operation that returned it
// left the meal untouched.
type UserError struct {
	Op  string
	Err error
}

func (e *UserError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UserError) Unwrap() error { return e.Err }

// InternalError signals a broken invariant or a violated caller contract.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// UserErrorf builds a UserError; %w verbs in format are honoured.
func UserErrorf(op, format string, args ...any) error {
	return &UserError{Op: op, Err: fmt.Errorf(format, args...)}
}

// InternalErrorf builds an InternalError; %w verbs in format are honoured.
func InternalErrorf(op, format string, args ...any) error {
	return &InternalError{Op: op, Err: fmt.Errorf(format, args...)}
}

// IsUserError reports whether err (or anything it wraps) is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsInternalError reports whether err (or anything it wraps) is an InternalError.
func IsInternalError(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
