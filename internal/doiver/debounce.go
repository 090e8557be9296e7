package doiver

// Debouncer suppresses redundant update notifications for one article.
// Editors fire several "saved" notifications per logical edit, often within
// milliseconds; without this guard a single save could be recorded as two or
// three version increments.
//
// The guard is advisory, not a mutex: two updates arriving further apart than
// the window both pass, which is accepted behavior.
type Debouncer interface {
	// TryAcquire starts a TTL-bounded hold for the article and returns true,
	// or returns false if a hold is already active (the caller should treat
	// the notification as a duplicate and skip it). Holds self-expire; there
	// is no release call.
	TryAcquire(articleID string) bool
}
