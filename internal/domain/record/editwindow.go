package record

import "time"

// DefaultEditWindow is how long a record stays mutable after creation.
const DefaultEditWindow = time.Hour

// EditWindow decides whether a record may still be changed. It holds no state
// besides the window length; every decision is made against the instant passed in.
type EditWindow struct {
	d time.Duration
}

func NewEditWindow(d time.Duration) EditWindow {
	if d <= 0 {
		d = DefaultEditWindow
	}
	return EditWindow{d: d}
}

func (w EditWindow) Duration() time.Duration { return w.d }

// Open returns the deadline for a record created at createdAt.
func (w EditWindow) Open(createdAt time.Time) time.Time {
	return createdAt.Add(w.d)
}

// Deadline is the stored deadline, or createdAt plus the window when none was stored.
func (w EditWindow) Deadline(rec *ClinicalRecord) time.Time {
	if rec.EditableUntil != nil {
		return *rec.EditableUntil
	}
	return w.Open(rec.CreatedAt)
}

// IsEditable reports whether now falls strictly before the deadline.
func (w EditWindow) IsEditable(rec *ClinicalRecord, now time.Time) bool {
	return now.Before(w.Deadline(rec))
}

func (w EditWindow) AuthorizeMutation(rec *ClinicalRecord, now time.Time) error {
	if w.IsEditable(rec, now) {
		return nil
	}
	return &WindowExpiredError{RecordID: rec.ID, Deadline: w.Deadline(rec)}
}

// Refresh recomputes the display flag. The stored value is never trusted.
func (w EditWindow) Refresh(rec *ClinicalRecord, now time.Time) {
	rec.Editable = w.IsEditable(rec, now)
}
