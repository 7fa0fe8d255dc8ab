package lab

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("lab panel not found")
	ErrUnknownTest  = errors.New("unknown test")
	ErrInvalidRange = errors.New("invalid reference range")
)

// UnknownTestError is returned when a measurement carries no explicit range and
// its test name is missing from the reference table.
type UnknownTestError struct {
	TestName string
}

func (e *UnknownTestError) Error() string {
	return fmt.Sprintf("unknown test %q: no reference range configured", e.TestName)
}

func (e *UnknownTestError) Is(target error) bool { return target == ErrUnknownTest }

// ValidationError marks a malformed submission.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}
