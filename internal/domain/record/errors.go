package record

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("clinical record not found")
	ErrNotAuthor     = errors.New("record belongs to another hospital")
	ErrWindowExpired = errors.New("edit window expired")
)

// WindowExpiredError reports a mutation attempted after the record locked.
// It is terminal: retrying cannot succeed.
type WindowExpiredError struct {
	RecordID uuid.UUID
	Deadline time.Time
}

func (e *WindowExpiredError) Error() string {
	return fmt.Sprintf("record %s is locked: edit window closed at %s", e.RecordID, e.Deadline.UTC().Format(time.RFC3339))
}

func (e *WindowExpiredError) Is(target error) bool { return target == ErrWindowExpired }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}
