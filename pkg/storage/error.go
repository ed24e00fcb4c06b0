package storage

// NotFoundError is returned when a record doesn't exist in the store.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return e.Kind + " not found"
	}

	return e.Kind + " not found: " + e.Key
}
